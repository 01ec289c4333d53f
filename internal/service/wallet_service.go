package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"ewallet/internal/infrastructure/lock"
	"ewallet/internal/model"
	"ewallet/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	MinAmount = decimal.NewFromInt(1)
	MaxAmount = decimal.NewFromInt(10000)
)

// 充值、提现可选的渠道
var (
	depositMethods    = []string{model.PaymentMethodBankTransfer, model.PaymentMethodEWallet, model.PaymentMethodCreditCard}
	withdrawalMethods = []string{model.PaymentMethodBankTransfer, model.PaymentMethodEWallet}
)

// 提现渠道要求填写的收款信息
var withdrawalDetailFields = map[string][]string{
	model.PaymentMethodBankTransfer: {"bank_name", "account_number", "account_name"},
	model.PaymentMethodEWallet:      {"wallet_provider", "wallet_number"},
}

func checkAmount(amount decimal.Decimal) error {
	if amount.LessThan(MinAmount) || amount.GreaterThan(MaxAmount) {
		return ErrInvalidAmount
	}
	return checkCents(amount)
}

// checkCents 金额列是 decimal(20,2)，只接受到分
func checkCents(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(2)) {
		return ErrAmountPrecision
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// ClientInfo 请求来源，记入流水 metadata
type ClientInfo struct {
	IP        string
	UserAgent string
}

func (c ClientInfo) metadata() datatypes.JSONMap {
	return datatypes.JSONMap{
		"ip":         c.IP,
		"user_agent": c.UserAgent,
	}
}

type WalletService struct {
	db         *gorm.DB
	walletRepo *repository.WalletRepository
	transRepo  *repository.TransactionRepository
	userRepo   *repository.UserRepository
	settings   SettingsSource
	notifier   *Notifier
	locker     *lock.Locker
}

func NewWalletService(db *gorm.DB, settings SettingsSource, notifier *Notifier, locker *lock.Locker) *WalletService {
	return &WalletService{
		db:         db,
		walletRepo: repository.NewWalletRepository(db),
		transRepo:  repository.NewTransactionRepository(db),
		userRepo:   repository.NewUserRepository(db),
		settings:   settings,
		notifier:   notifier,
		locker:     locker,
	}
}

func (s *WalletService) GetWallet(ctx context.Context, userID int64) (*model.Wallet, error) {
	return s.walletRepo.GetOrCreate(ctx, nil, userID)
}

// ============================================================
// 充值
// ============================================================

type DepositRequest struct {
	UserID        int64
	Amount        decimal.Decimal
	PaymentMethod string
	Note          string
	Client        ClientInfo
}

// Deposit 提交充值申请
//
// 只生成一条 pending 流水，不动余额，管理员审核通过后才入账
func (s *WalletService) Deposit(ctx context.Context, req *DepositRequest) (*model.Transaction, error) {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.DepositsEnabled {
		return nil, ErrDepositsDisabled
	}
	if err := checkAmount(req.Amount); err != nil {
		return nil, err
	}
	if !contains(depositMethods, req.PaymentMethod) || !settings.PaymentMethodEnabled(req.PaymentMethod) {
		return nil, ErrPaymentMethodDisabled
	}

	wallet, err := s.walletRepo.GetOrCreate(ctx, nil, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("获取钱包失败: %w", err)
	}
	if !wallet.IsActive {
		return nil, ErrWalletFrozen
	}

	metadata := req.Client.metadata()
	if req.Note != "" {
		metadata["note"] = req.Note
	}
	deposit := &model.Transaction{
		UserID:        req.UserID,
		Type:          model.TransactionTypeDeposit,
		Amount:        req.Amount,
		Status:        model.TransactionStatusPending,
		Bucket:        settings.BucketFor(OpDeposit),
		PaymentMethod: req.PaymentMethod,
		Description:   fmt.Sprintf("Deposit via %s", req.PaymentMethod),
		Metadata:      metadata,
	}
	if err := s.transRepo.Create(ctx, nil, deposit); err != nil {
		return nil, fmt.Errorf("创建充值流水失败: %w", err)
	}

	log.Printf("[WalletService] 充值申请已提交: ref=%s, userID=%d, amount=%s",
		deposit.ReferenceNumber, req.UserID, req.Amount.StringFixed(2))

	s.notifier.NotifyAdmins(ctx, model.EventDepositRequested, transactionData(deposit))
	return deposit, nil
}

// ============================================================
// 提现
// ============================================================

type WithdrawRequest struct {
	UserID        int64
	Amount        decimal.Decimal
	PaymentMethod string
	Details       map[string]string
	AcceptTerms   bool
	Note          string
	Client        ClientInfo
}

type WithdrawResult struct {
	Withdrawal *model.Transaction `json:"withdrawal"`
	Fee        *model.Transaction `json:"fee,omitempty"`
	FeeAmount  decimal.Decimal    `json:"fee_amount"`
	Total      decimal.Decimal    `json:"total"`
}

// Withdraw 提交提现申请
//
// 【流程】
//  1. 手续费 = ComputeFee(amount, 提现规则)
//  2. 可用余额 = 余额 - 待审核提现合计，必须 >= amount + fee
//  3. 同一个事务里：创建 pending 提现流水；手续费 > 0 时创建 approved 手续费流水并立即扣款
//
// 本金默认留在钱包里等审核；开启 withdrawal_hold_principal 时提交即扣
func (s *WalletService) Withdraw(ctx context.Context, req *WithdrawRequest) (*WithdrawResult, error) {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.WithdrawalsEnabled {
		return nil, ErrWithdrawalsDisabled
	}
	if err := checkAmount(req.Amount); err != nil {
		return nil, err
	}
	if !contains(withdrawalMethods, req.PaymentMethod) || !settings.PaymentMethodEnabled(req.PaymentMethod) {
		return nil, ErrPaymentMethodDisabled
	}
	details := make(map[string]interface{})
	for _, field := range withdrawalDetailFields[req.PaymentMethod] {
		if req.Details[field] == "" {
			return nil, ErrWithdrawalDetails
		}
		details[field] = req.Details[field]
	}
	if !req.AcceptTerms {
		return nil, ErrTermsNotAccepted
	}

	fee := ComputeFee(req.Amount, settings.WithdrawalFee)
	total := req.Amount.Add(fee)
	bucket := settings.BucketFor(OpWithdrawal)
	hold := settings.WithdrawalHoldPrincipal

	result := &WithdrawResult{FeeAmount: fee, Total: total}

	err = s.locker.WithWalletLock(ctx, req.UserID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			// 先锁钱包行再统计待审核提现，并发提交的另一笔要等这笔提交后才能读到
			wallet, err := s.walletRepo.GetOrCreateForUpdate(ctx, tx, req.UserID)
			if err != nil {
				return fmt.Errorf("获取钱包失败: %w", err)
			}
			if !wallet.IsActive {
				return ErrWalletFrozen
			}

			pending, err := s.transRepo.SumPendingWithdrawals(ctx, tx, req.UserID, bucket)
			if err != nil {
				return fmt.Errorf("统计待审核提现失败: %w", err)
			}
			available := wallet.BalanceOf(bucket).Sub(pending)
			if available.LessThan(total) {
				return ErrInsufficientBalance
			}

			metadata := req.Client.metadata()
			metadata["payment_details"] = details
			metadata["fee"] = fee.StringFixed(2)
			metadata["total"] = total.StringFixed(2)
			if req.Note != "" {
				metadata["note"] = req.Note
			}
			withdrawal := &model.Transaction{
				UserID:        req.UserID,
				Type:          model.TransactionTypeWithdrawal,
				Amount:        req.Amount,
				Status:        model.TransactionStatusPending,
				Bucket:        bucket,
				PaymentMethod: req.PaymentMethod,
				Description:   fmt.Sprintf("Withdrawal via %s", req.PaymentMethod),
				Metadata:      metadata,
				PrincipalHeld: hold,
			}
			if err := s.transRepo.Create(ctx, tx, withdrawal); err != nil {
				return fmt.Errorf("创建提现流水失败: %w", err)
			}
			result.Withdrawal = withdrawal

			if hold {
				if err := s.walletRepo.Deduct(ctx, tx, req.UserID, bucket, req.Amount); err != nil {
					return err
				}
			}

			if fee.IsPositive() {
				now := time.Now()
				feeTx := &model.Transaction{
					UserID:               req.UserID,
					Type:                 model.TransactionTypeWithdrawalFee,
					Amount:               fee,
					Status:               model.TransactionStatusApproved,
					Bucket:               bucket,
					PaymentMethod:        req.PaymentMethod,
					Description:          fmt.Sprintf("Withdrawal fee for %s", withdrawal.ReferenceNumber),
					Metadata:             datatypes.JSONMap{"withdrawal_amount": req.Amount.StringFixed(2)},
					RelatedTransactionID: &withdrawal.ID,
					ApprovedAt:           &now,
				}
				if err := s.transRepo.Create(ctx, tx, feeTx); err != nil {
					return fmt.Errorf("创建手续费流水失败: %w", err)
				}
				if err := s.walletRepo.Deduct(ctx, tx, req.UserID, bucket, fee); err != nil {
					return err
				}
				result.Fee = feeTx
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[WalletService] 提现申请已提交: ref=%s, userID=%d, amount=%s, fee=%s",
		result.Withdrawal.ReferenceNumber, req.UserID, req.Amount.StringFixed(2), fee.StringFixed(2))

	s.notifier.NotifyAdmins(ctx, model.EventWithdrawalRequested, transactionData(result.Withdrawal))
	return result, nil
}

// ============================================================
// 转账
// ============================================================

type TransferRequest struct {
	SenderID  int64
	Recipient string // 邮箱或用户名
	Amount    decimal.Decimal
	Note      string
	Client    ClientInfo
}

type TransferResult struct {
	TransferOut  *model.Transaction `json:"transfer_out"`
	TransferIn   *model.Transaction `json:"transfer_in"`
	Charge       *model.Transaction `json:"charge,omitempty"`
	ChargeAmount decimal.Decimal    `json:"charge_amount"`
	Total        decimal.Decimal    `json:"total"`
}

// Transfer 用户间转账，即时到账，不需要审核
//
// 发送方扣 amount + charge，接收方只加 amount
func (s *WalletService) Transfer(ctx context.Context, req *TransferRequest) (*TransferResult, error) {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if !settings.TransfersEnabled {
		return nil, ErrTransfersDisabled
	}
	if err := checkAmount(req.Amount); err != nil {
		return nil, err
	}

	recipient, err := s.userRepo.FindByIdentifier(ctx, req.Recipient)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrRecipientNotFound
		}
		return nil, fmt.Errorf("查询收款人失败: %w", err)
	}
	if recipient.ID == req.SenderID {
		return nil, ErrSelfTransfer
	}

	charge := ComputeFee(req.Amount, settings.TransferFee)
	total := req.Amount.Add(charge)
	bucket := settings.BucketFor(OpTransfer)

	result := &TransferResult{ChargeAmount: charge, Total: total}

	err = s.locker.WithWalletLock(ctx, req.SenderID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			if _, err := s.walletRepo.GetOrCreate(ctx, tx, req.SenderID); err != nil {
				return fmt.Errorf("获取钱包失败: %w", err)
			}
			if _, err := s.walletRepo.GetOrCreate(ctx, tx, recipient.ID); err != nil {
				return fmt.Errorf("获取收款人钱包失败: %w", err)
			}

			// 条件扣款同时完成冻结、余额校验
			if err := s.walletRepo.Deduct(ctx, tx, req.SenderID, bucket, total); err != nil {
				return err
			}
			if err := s.walletRepo.Increase(ctx, tx, recipient.ID, bucket, req.Amount); err != nil {
				return err
			}

			now := time.Now()
			outMeta := req.Client.metadata()
			outMeta["recipient_id"] = recipient.ID
			outMeta["recipient_username"] = recipient.Username
			outMeta["charge"] = charge.StringFixed(2)
			if req.Note != "" {
				outMeta["note"] = req.Note
			}
			out := &model.Transaction{
				UserID:      req.SenderID,
				Type:        model.TransactionTypeTransferOut,
				Amount:      req.Amount,
				Status:      model.TransactionStatusApproved,
				Bucket:      bucket,
				Description: fmt.Sprintf("Transfer to %s", recipient.Username),
				Metadata:    outMeta,
				ApprovedAt:  &now,
			}
			if err := s.transRepo.Create(ctx, tx, out); err != nil {
				return fmt.Errorf("创建转出流水失败: %w", err)
			}

			inMeta := datatypes.JSONMap{"sender_id": req.SenderID}
			if req.Note != "" {
				inMeta["note"] = req.Note
			}
			in := &model.Transaction{
				UserID:               recipient.ID,
				Type:                 model.TransactionTypeTransferIn,
				Amount:               req.Amount,
				Status:               model.TransactionStatusApproved,
				Bucket:               bucket,
				Description:          "Transfer received",
				Metadata:             inMeta,
				RelatedTransactionID: &out.ID,
				ApprovedAt:           &now,
			}
			if err := s.transRepo.Create(ctx, tx, in); err != nil {
				return fmt.Errorf("创建转入流水失败: %w", err)
			}
			if err := s.transRepo.LinkRelated(ctx, tx, out.ID, in.ID); err != nil {
				return fmt.Errorf("关联转账流水失败: %w", err)
			}
			out.RelatedTransactionID = &in.ID

			if charge.IsPositive() {
				chargeTx := &model.Transaction{
					UserID:               req.SenderID,
					Type:                 model.TransactionTypeTransferCharge,
					Amount:               charge,
					Status:               model.TransactionStatusApproved,
					Bucket:               bucket,
					Description:          fmt.Sprintf("Transfer charge for %s", out.ReferenceNumber),
					RelatedTransactionID: &out.ID,
					ApprovedAt:           &now,
				}
				if err := s.transRepo.Create(ctx, tx, chargeTx); err != nil {
					return fmt.Errorf("创建转账手续费流水失败: %w", err)
				}
				result.Charge = chargeTx
			}

			result.TransferOut = out
			result.TransferIn = in
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[WalletService] 转账成功: ref=%s, from=%d, to=%d, amount=%s, charge=%s",
		result.TransferOut.ReferenceNumber, req.SenderID, recipient.ID, req.Amount.StringFixed(2), charge.StringFixed(2))
	return result, nil
}

// ============================================================
// 佣金 / 冻结
// ============================================================

// CreditCommission 管理员发放佣金，直接入账
func (s *WalletService) CreditCommission(ctx context.Context, userID int64, amount decimal.Decimal, description string, adminID int64) (*model.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if err := checkCents(amount); err != nil {
		return nil, err
	}
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	bucket := settings.BucketFor(OpCommission)
	if description == "" {
		description = "Commission credit"
	}

	var commission *model.Transaction
	err = s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := s.walletRepo.GetOrCreate(ctx, tx, userID); err != nil {
			return err
		}
		now := time.Now()
		commission = &model.Transaction{
			UserID:      userID,
			Type:        model.TransactionTypeMLMCommission,
			Amount:      amount,
			Status:      model.TransactionStatusApproved,
			Bucket:      bucket,
			Description: description,
			ApprovedBy:  &adminID,
			ApprovedAt:  &now,
		}
		if err := s.transRepo.Create(ctx, tx, commission); err != nil {
			return err
		}
		return s.walletRepo.Increase(ctx, tx, userID, bucket, amount)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[WalletService] 佣金已入账: ref=%s, userID=%d, amount=%s", commission.ReferenceNumber, userID, amount.StringFixed(2))
	s.notifier.NotifyUser(ctx, userID, model.EventTransactionStatusChanged, transactionData(commission))
	return commission, nil
}

// SetFrozen 冻结 / 解冻钱包
func (s *WalletService) SetFrozen(ctx context.Context, userID int64, frozen bool) (*model.Wallet, error) {
	if _, err := s.walletRepo.GetOrCreate(ctx, nil, userID); err != nil {
		return nil, err
	}
	if err := s.walletRepo.SetActive(ctx, userID, !frozen); err != nil {
		return nil, err
	}
	log.Printf("[WalletService] 钱包状态变更: userID=%d, frozen=%v", userID, frozen)
	return s.walletRepo.GetByUserID(ctx, nil, userID)
}

// ============================================================
// 查询
// ============================================================

var allowedPerPage = []int{10, 20, 50, 100}

// NormalizePerPage 每页条数只允许 10 / 20 / 50 / 100，其他值按 10 处理
func NormalizePerPage(perPage int) int {
	for _, n := range allowedPerPage {
		if n == perPage {
			return perPage
		}
	}
	return 10
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func (s *WalletService) ListTransactions(ctx context.Context, filter repository.TransactionFilter, page, perPage int) ([]*model.Transaction, int64, error) {
	return s.transRepo.List(ctx, filter, normalizePage(page), NormalizePerPage(perPage))
}

const (
	FeeKindTransfer   = "transfer"
	FeeKindWithdrawal = "withdrawal"
)

// PreviewFee 按当前配置计算手续费，页面展示用
func (s *WalletService) PreviewFee(ctx context.Context, kind string, amount decimal.Decimal) (*FeeQuote, error) {
	settings, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var quote FeeQuote
	switch kind {
	case FeeKindTransfer:
		quote = Quote(amount, settings.TransferFee)
	case FeeKindWithdrawal:
		quote = Quote(amount, settings.WithdrawalFee)
	default:
		return nil, ErrInvalidFeeKind
	}
	return &quote, nil
}
