package service

import (
	"context"

	"ewallet/internal/model"

	"github.com/shopspring/decimal"
)

const (
	WalletModeLegacy     = "legacy"
	WalletModeSegregated = "segregated"
)

// Operation 资金操作类型，用来决定动哪个余额桶
type Operation int

const (
	OpDeposit Operation = iota
	OpWithdrawal
	OpTransfer
	OpCommission
)

// Settings 运营参数快照
//
// 由 SettingService 从 system_settings 表构建，各服务在一次操作开始时取一份，
// 整个操作期间使用同一份参数。
type Settings struct {
	TransferFee             FeePolicy       `json:"transfer_fee"`
	WithdrawalFee           FeePolicy       `json:"withdrawal_fee"`
	DepositsEnabled         bool            `json:"deposits_enabled"`
	WithdrawalsEnabled      bool            `json:"withdrawals_enabled"`
	TransfersEnabled        bool            `json:"transfers_enabled"`
	PaymentMethods          map[string]bool `json:"payment_methods"`
	TaxRate                 decimal.Decimal `json:"tax_rate"` // 百分比
	WalletMode              string          `json:"wallet_mode"`
	WithdrawalHoldPrincipal bool            `json:"withdrawal_hold_principal"`
}

// SettingsSource 服务依赖这个接口取参数，测试里可以直接注入固定值
type SettingsSource interface {
	Snapshot(ctx context.Context) (*Settings, error)
}

// StaticSettings 固定参数
type StaticSettings struct {
	Settings *Settings
}

func (s StaticSettings) Snapshot(context.Context) (*Settings, error) {
	return s.Settings, nil
}

// DefaultSettings 与 settingDefinitions 中的默认值一致
func DefaultSettings() *Settings {
	return buildSettings(func(key string) string {
		return settingDefinitions[key].Default
	})
}

// PaymentMethodEnabled 未知的支付方式视为关闭
func (s *Settings) PaymentMethodEnabled(method string) bool {
	return s.PaymentMethods[method]
}

// Segregated 是否使用分桶余额
func (s *Settings) Segregated() bool {
	return s.WalletMode == WalletModeSegregated
}

// BucketFor 操作对应的余额桶
//
//	legacy:     全部走 balance
//	segregated: 充值、转账走 purchase_balance；提现、佣金走 mlm_balance
func (s *Settings) BucketFor(op Operation) model.Bucket {
	if !s.Segregated() {
		return model.BucketBalance
	}
	switch op {
	case OpWithdrawal, OpCommission:
		return model.BucketMLM
	default:
		return model.BucketPurchase
	}
}
