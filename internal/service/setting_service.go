package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"time"

	"ewallet/internal/config"
	"ewallet/internal/infrastructure/cache"
	"ewallet/internal/model"
	"ewallet/internal/repository"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/go-multierror"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrInvalidSetting = errors.New("Invalid setting value")

// ============================================================================
// 配置项定义
// ============================================================================

type settingDefinition struct {
	Type        string
	Default     string
	Description string
	Allowed     []string // 非空时 value 必须是其中之一
}

var settingDefinitions = map[string]settingDefinition{
	"transfer_charge_enabled": {model.SettingTypeBoolean, "false", "是否收取转账手续费", nil},
	"transfer_charge_type":    {model.SettingTypeString, FeeTypePercentage, "转账手续费类型", []string{FeeTypePercentage, FeeTypeFixed}},
	"transfer_charge_value":   {model.SettingTypeDecimal, "0", "转账手续费（百分比或固定金额）", nil},
	"transfer_charge_minimum": {model.SettingTypeDecimal, "0", "转账手续费下限", nil},
	"transfer_charge_maximum": {model.SettingTypeDecimal, "1000", "转账手续费上限", nil},

	"withdrawal_fee_enabled": {model.SettingTypeBoolean, "false", "是否收取提现手续费", nil},
	"withdrawal_fee_type":    {model.SettingTypeString, FeeTypePercentage, "提现手续费类型", []string{FeeTypePercentage, FeeTypeFixed}},
	"withdrawal_fee_value":   {model.SettingTypeDecimal, "0", "提现手续费（百分比或固定金额）", nil},
	"withdrawal_fee_minimum": {model.SettingTypeDecimal, "0", "提现手续费下限", nil},
	"withdrawal_fee_maximum": {model.SettingTypeDecimal, "1000", "提现手续费上限", nil},

	"deposits_enabled":    {model.SettingTypeBoolean, "true", "是否开放充值", nil},
	"withdrawals_enabled": {model.SettingTypeBoolean, "true", "是否开放提现", nil},
	"transfers_enabled":   {model.SettingTypeBoolean, "true", "是否开放转账", nil},

	"payment_method_wallet_enabled":        {model.SettingTypeBoolean, "true", "钱包支付", nil},
	"payment_method_bank_transfer_enabled": {model.SettingTypeBoolean, "true", "银行转账", nil},
	"payment_method_e_wallet_enabled":      {model.SettingTypeBoolean, "true", "电子钱包", nil},
	"payment_method_credit_card_enabled":   {model.SettingTypeBoolean, "true", "信用卡", nil},

	"tax_rate":                  {model.SettingTypeDecimal, "0", "税率（百分比）", nil},
	"wallet_mode":               {model.SettingTypeString, WalletModeLegacy, "余额模式", []string{WalletModeLegacy, WalletModeSegregated}},
	"withdrawal_hold_principal": {model.SettingTypeBoolean, "false", "提现提交时是否立即扣除本金", nil},
}

// 手续费规则的三个数值 key 和税率不能为负
var nonNegativeKeys = map[string]bool{
	"transfer_charge_value":   true,
	"transfer_charge_minimum": true,
	"transfer_charge_maximum": true,
	"withdrawal_fee_value":    true,
	"withdrawal_fee_minimum":  true,
	"withdrawal_fee_maximum":  true,
	"tax_rate":                true,
}

// feeBounds minimum/maximum 成对校验，key 是另一半
var feeBounds = map[string]struct {
	pair      string
	isMinimum bool
}{
	"transfer_charge_minimum": {"transfer_charge_maximum", true},
	"transfer_charge_maximum": {"transfer_charge_minimum", false},
	"withdrawal_fee_minimum":  {"withdrawal_fee_maximum", true},
	"withdrawal_fee_maximum":  {"withdrawal_fee_minimum", false},
}

var paymentMethods = []string{
	model.PaymentMethodWallet,
	model.PaymentMethodBankTransfer,
	model.PaymentMethodEWallet,
	model.PaymentMethodCreditCard,
}

// ============================================================================
// 解析
// ============================================================================

func parseBool(key, raw, def string) bool {
	v, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("[SettingService] 配置 %s 的值 %q 不是布尔值，使用默认值 %s", key, raw, def)
		v, _ = strconv.ParseBool(def)
	}
	return v
}

func parseDecimal(key, raw, def string) decimal.Decimal {
	v, err := decimal.NewFromString(raw)
	if err != nil {
		log.Printf("[SettingService] 配置 %s 的值 %q 不是数字，使用默认值 %s", key, raw, def)
		v, _ = decimal.NewFromString(def)
	}
	return v
}

func parseInt(key, raw, def string) int64 {
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("[SettingService] 配置 %s 的值 %q 不是整数，使用默认值 %s", key, raw, def)
		v, _ = strconv.ParseInt(def, 10, 64)
	}
	return v
}

// buildSettings lookup 返回 key 的原始值，缺失时由调用方给默认值
func buildSettings(lookup func(key string) string) *Settings {
	b := func(key string) bool { return parseBool(key, lookup(key), settingDefinitions[key].Default) }
	d := func(key string) decimal.Decimal {
		return parseDecimal(key, lookup(key), settingDefinitions[key].Default)
	}
	str := func(key string) string {
		v := lookup(key)
		if validateAllowed(settingDefinitions[key], v) != nil {
			log.Printf("[SettingService] 配置 %s 的值 %q 不合法，使用默认值", key, v)
			return settingDefinitions[key].Default
		}
		return v
	}
	fee := func(prefix string) FeePolicy {
		return FeePolicy{
			Enabled: b(prefix + "_enabled"),
			Type:    str(prefix + "_type"),
			Value:   d(prefix + "_value"),
			Minimum: d(prefix + "_minimum"),
			Maximum: d(prefix + "_maximum"),
		}
	}

	s := &Settings{
		TransferFee:             fee("transfer_charge"),
		WithdrawalFee:           fee("withdrawal_fee"),
		DepositsEnabled:         b("deposits_enabled"),
		WithdrawalsEnabled:      b("withdrawals_enabled"),
		TransfersEnabled:        b("transfers_enabled"),
		PaymentMethods:          make(map[string]bool, len(paymentMethods)),
		TaxRate:                 d("tax_rate"),
		WalletMode:              str("wallet_mode"),
		WithdrawalHoldPrincipal: b("withdrawal_hold_principal"),
	}
	for _, m := range paymentMethods {
		s.PaymentMethods[m] = b("payment_method_" + m + "_enabled")
	}
	return s
}

func validateAllowed(def settingDefinition, value string) error {
	if len(def.Allowed) == 0 {
		return nil
	}
	for _, a := range def.Allowed {
		if a == value {
			return nil
		}
	}
	return fmt.Errorf("%w: must be one of %v", ErrInvalidSetting, def.Allowed)
}

func validateType(typ, value string) error {
	var err error
	switch typ {
	case model.SettingTypeBoolean:
		_, err = strconv.ParseBool(value)
	case model.SettingTypeDecimal:
		_, err = decimal.NewFromString(value)
	case model.SettingTypeInteger:
		_, err = strconv.ParseInt(value, 10, 64)
	case model.SettingTypeString:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidSetting, typ)
	}
	if err != nil {
		return fmt.Errorf("%w: %q is not a valid %s", ErrInvalidSetting, value, typ)
	}
	return nil
}

// ============================================================================
// SettingService
// ============================================================================

type SettingService struct {
	settingRepo *repository.SettingRepository
	cache       *cache.JSONCache
	cacheTTL    time.Duration
}

// NewSettingService rdb 为 nil 时不缓存，每次都读库
func NewSettingService(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *SettingService {
	s := &SettingService{
		settingRepo: repository.NewSettingRepository(db),
		cacheTTL:    time.Duration(cfg.Business.SettingsCacheSeconds) * time.Second,
	}
	if rdb != nil && s.cacheTTL > 0 {
		s.cache = cache.NewJSONCache(rdb, "settings:")
	}
	return s
}

const snapshotCacheKey = "snapshot"

// Snapshot 读取全部配置构建快照，缺失或非法的 key 使用默认值
func (s *SettingService) Snapshot(ctx context.Context) (*Settings, error) {
	if s.cache != nil {
		var cached Settings
		hit, err := s.cache.Get(ctx, snapshotCacheKey, &cached)
		if err != nil {
			log.Printf("[SettingService] 读取配置缓存失败: %v", err)
		} else if hit {
			return &cached, nil
		}
	}

	values, err := s.values(ctx)
	if err != nil {
		return nil, err
	}
	settings := buildSettings(func(key string) string {
		if v, ok := values[key]; ok {
			return v
		}
		return settingDefinitions[key].Default
	})

	if s.cache != nil {
		if err := s.cache.Set(ctx, snapshotCacheKey, settings, s.cacheTTL); err != nil {
			log.Printf("[SettingService] 写入配置缓存失败: %v", err)
		}
	}
	return settings, nil
}

func (s *SettingService) values(ctx context.Context) (map[string]string, error) {
	rows, err := s.settingRepo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}
	values := make(map[string]string, len(rows))
	for _, row := range rows {
		values[row.Key] = row.Value
	}
	return values, nil
}

// Get 读取原始值，返回值 ok 表示表里有这个 key
func (s *SettingService) Get(ctx context.Context, key string) (string, bool, error) {
	setting, err := s.settingRepo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrSettingNotFound) {
			return "", false, nil
		}
		return "", false, err
	}
	return setting.Value, true, nil
}

func (s *SettingService) GetString(ctx context.Context, key, def string) string {
	v, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return def
	}
	return v
}

func (s *SettingService) GetBool(ctx context.Context, key string, def bool) bool {
	return parseBool(key, s.GetString(ctx, key, strconv.FormatBool(def)), strconv.FormatBool(def))
}

func (s *SettingService) GetDecimal(ctx context.Context, key string, def decimal.Decimal) decimal.Decimal {
	return parseDecimal(key, s.GetString(ctx, key, def.String()), def.String())
}

func (s *SettingService) GetInt(ctx context.Context, key string, def int64) int64 {
	d := strconv.FormatInt(def, 10)
	return parseInt(key, s.GetString(ctx, key, d), d)
}

// SettingUpdate 一条待写入的配置
type SettingUpdate struct {
	Key   string
	Value string
	Type  string // 只对未定义的 key 生效
}

// SettingError 某个 key 校验失败
type SettingError struct {
	Key string
	Err error
}

func (e *SettingError) Error() string { return e.Key + ": " + e.Err.Error() }
func (e *SettingError) Unwrap() error { return e.Err }

// Set 写入单个配置
func (s *SettingService) Set(ctx context.Context, key, value, typ string) error {
	err := s.SetMany(ctx, []SettingUpdate{{Key: key, Value: value, Type: typ}})
	var settingErr *SettingError
	if errors.As(err, &settingErr) {
		return settingErr.Err
	}
	return err
}

// SetMany 批量写入配置；已定义的 key 按定义的类型校验，未定义的 key 按传入的 Type 校验
//
// 手续费上下限按“本批新值优先，其次库里的值”成对比较。
// 校验失败的 key 以 *SettingError 汇总在 multierror 里返回，其余 key 照常保存。
func (s *SettingService) SetMany(ctx context.Context, updates []SettingUpdate) error {
	var errs *multierror.Error
	rows := make([]*model.SystemSetting, 0, len(updates))
	batch := make(map[string]string, len(updates))
	for _, u := range updates {
		row, err := prepareSetting(u)
		if err != nil {
			errs = multierror.Append(errs, &SettingError{Key: u.Key, Err: err})
			continue
		}
		rows = append(rows, row)
		batch[row.Key] = row.Value
	}

	saved := 0
	for _, row := range rows {
		if err := s.checkBounds(ctx, row.Key, row.Value, batch); err != nil {
			errs = multierror.Append(errs, &SettingError{Key: row.Key, Err: err})
			continue
		}
		if err := s.settingRepo.Upsert(ctx, row); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("保存配置 %s 失败: %w", row.Key, err))
			continue
		}
		saved++
		log.Printf("[SettingService] 配置已更新: %s=%s", row.Key, row.Value)
	}

	if saved > 0 && s.cache != nil {
		if err := s.cache.Delete(ctx, snapshotCacheKey); err != nil {
			log.Printf("[SettingService] 清除配置缓存失败: %v", err)
		}
	}
	return errs.ErrorOrNil()
}

// prepareSetting 校验 key、可选值、类型和非负
func prepareSetting(u SettingUpdate) (*model.SystemSetting, error) {
	if u.Key == "" {
		return nil, fmt.Errorf("%w: key is required", ErrInvalidSetting)
	}

	typ, description := u.Type, ""
	if def, ok := settingDefinitions[u.Key]; ok {
		typ = def.Type
		description = def.Description
		if err := validateAllowed(def, u.Value); err != nil {
			return nil, err
		}
	} else if typ == "" {
		typ = model.SettingTypeString
	}
	if err := validateType(typ, u.Value); err != nil {
		return nil, err
	}
	if nonNegativeKeys[u.Key] && decimal.RequireFromString(u.Value).IsNegative() {
		return nil, fmt.Errorf("%w: %s must not be negative", ErrInvalidSetting, u.Key)
	}

	return &model.SystemSetting{
		Key:         u.Key,
		Value:       u.Value,
		Type:        typ,
		Description: description,
	}, nil
}

// checkBounds 手续费下限不能高于上限
func (s *SettingService) checkBounds(ctx context.Context, key, value string, batch map[string]string) error {
	bound, ok := feeBounds[key]
	if !ok {
		return nil
	}
	v := decimal.RequireFromString(value)

	var other decimal.Decimal
	if raw, ok := batch[bound.pair]; ok {
		other = decimal.RequireFromString(raw)
	} else {
		def := decimal.RequireFromString(settingDefinitions[bound.pair].Default)
		other = s.GetDecimal(ctx, bound.pair, def)
	}

	if bound.isMinimum && v.GreaterThan(other) {
		return fmt.Errorf("%w: %s must not exceed %s (%s)", ErrInvalidSetting, key, bound.pair, other.String())
	}
	if !bound.isMinimum && v.LessThan(other) {
		return fmt.Errorf("%w: %s must not be below %s (%s)", ErrInvalidSetting, key, bound.pair, other.String())
	}
	return nil
}

// SettingView 后台展示用，包含未写入数据库的默认项
type SettingView struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
}

func (s *SettingService) All(ctx context.Context) ([]SettingView, error) {
	rows, err := s.settingRepo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("读取配置失败: %w", err)
	}

	seen := make(map[string]bool, len(rows))
	views := make([]SettingView, 0, len(rows)+len(settingDefinitions))
	for _, row := range rows {
		seen[row.Key] = true
		views = append(views, SettingView{Key: row.Key, Value: row.Value, Type: row.Type, Description: row.Description})
	}
	for key, def := range settingDefinitions {
		if !seen[key] {
			views = append(views, SettingView{Key: key, Value: def.Default, Type: def.Type, Description: def.Description, IsDefault: true})
		}
	}
	sort.Slice(views, func(i, j int) bool { return views[i].Key < views[j].Key })
	return views, nil
}
