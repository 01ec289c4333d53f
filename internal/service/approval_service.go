package service

import (
	"context"
	"fmt"
	"log"

	"ewallet/internal/infrastructure/lock"
	"ewallet/internal/model"
	"ewallet/internal/repository"

	"github.com/hashicorp/go-multierror"
	"gorm.io/gorm"
)

const (
	BulkActionApprove = "approve"
	BulkActionReject  = "reject"
)

// ApprovalService 后台审核充值 / 提现
type ApprovalService struct {
	db         *gorm.DB
	walletRepo *repository.WalletRepository
	transRepo  *repository.TransactionRepository
	notifier   *Notifier
	locker     *lock.Locker
}

func NewApprovalService(db *gorm.DB, notifier *Notifier, locker *lock.Locker) *ApprovalService {
	return &ApprovalService{
		db:         db,
		walletRepo: repository.NewWalletRepository(db),
		transRepo:  repository.NewTransactionRepository(db),
		notifier:   notifier,
		locker:     locker,
	}
}

// Approve 审核通过
//   - 充值：按流水记录的 bucket 入账
//   - 提现：扣本金（提交时已扣的不再扣）
func (s *ApprovalService) Approve(ctx context.Context, transactionID, adminID int64, notes string) (*model.Transaction, error) {
	return s.resolve(ctx, transactionID, adminID, notes, model.TransactionStatusApproved)
}

// Reject 审核拒绝
//   - 充值：不动余额
//   - 提现：本金退回钱包，手续费不退
func (s *ApprovalService) Reject(ctx context.Context, transactionID, adminID int64, reason string) (*model.Transaction, error) {
	return s.resolve(ctx, transactionID, adminID, reason, model.TransactionStatusRejected)
}

func (s *ApprovalService) resolve(ctx context.Context, transactionID, adminID int64, notes, toStatus string) (*model.Transaction, error) {
	trans, err := s.transRepo.GetByID(ctx, nil, transactionID)
	if err != nil {
		return nil, err
	}
	if !model.IsApprovable(trans.Type) {
		return nil, ErrTransactionNotApprovable
	}
	if !trans.IsPending() {
		return nil, ErrTransactionNotPending
	}

	err = s.locker.WithWalletLock(ctx, trans.UserID, func() error {
		return s.db.Transaction(func(tx *gorm.DB) error {
			// 状态条件更新放在最前面，重复审核在这里就失败，不会产生任何余额变动
			if err := s.transRepo.Resolve(ctx, tx, trans.ID, toStatus, adminID, notes); err != nil {
				return err
			}
			return s.applyWalletEffect(ctx, tx, trans, toStatus)
		})
	})
	if err != nil {
		log.Printf("[ApprovalService] 审核失败: ref=%s, to=%s, err=%v", trans.ReferenceNumber, toStatus, err)
		return nil, err
	}

	updated, err := s.transRepo.GetByID(ctx, nil, trans.ID)
	if err != nil {
		return nil, err
	}

	log.Printf("[ApprovalService] 审核完成: ref=%s, type=%s, status=%s, admin=%d",
		updated.ReferenceNumber, updated.Type, updated.Status, adminID)

	s.notifier.NotifyUser(ctx, updated.UserID, model.EventTransactionStatusChanged, transactionData(updated))
	return updated, nil
}

func (s *ApprovalService) applyWalletEffect(ctx context.Context, tx *gorm.DB, trans *model.Transaction, toStatus string) error {
	switch trans.Type {
	case model.TransactionTypeDeposit:
		if toStatus != model.TransactionStatusApproved {
			return nil
		}
		if _, err := s.walletRepo.GetOrCreate(ctx, tx, trans.UserID); err != nil {
			return err
		}
		return s.walletRepo.Increase(ctx, tx, trans.UserID, trans.Bucket, trans.Amount)

	case model.TransactionTypeWithdrawal:
		if toStatus == model.TransactionStatusApproved {
			if trans.PrincipalHeld {
				return nil
			}
			return s.walletRepo.Deduct(ctx, tx, trans.UserID, trans.Bucket, trans.Amount)
		}
		// 拒绝：本金退回
		return s.walletRepo.Increase(ctx, tx, trans.UserID, trans.Bucket, trans.Amount)
	}
	return ErrTransactionNotApprovable
}

// ============================================================
// 批量审核
// ============================================================

type BulkFailure struct {
	TransactionID int64  `json:"transaction_id"`
	Error         string `json:"error"`
}

type BulkResult struct {
	Action    string        `json:"action"`
	Processed []int64       `json:"processed"`
	Failed    []BulkFailure `json:"failed"`
}

// BulkProcess 批量审核，每一笔单独走 Approve / Reject，各自一个事务
//
// 部分失败时返回聚合错误，result 里列出成功和失败的 id
func (s *ApprovalService) BulkProcess(ctx context.Context, ids []int64, action string, adminID int64, notes string) (*BulkResult, error) {
	var handle func(context.Context, int64, int64, string) (*model.Transaction, error)
	switch action {
	case BulkActionApprove:
		handle = s.Approve
	case BulkActionReject:
		handle = s.Reject
	default:
		return nil, ErrInvalidBulkAction
	}

	result := &BulkResult{Action: action, Processed: []int64{}, Failed: []BulkFailure{}}
	var errs *multierror.Error
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true

		if _, err := handle(ctx, id, adminID, notes); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("transaction %d: %w", id, err))
			result.Failed = append(result.Failed, BulkFailure{TransactionID: id, Error: err.Error()})
			continue
		}
		result.Processed = append(result.Processed, id)
	}

	log.Printf("[ApprovalService] 批量审核: action=%s, processed=%d, failed=%d",
		action, len(result.Processed), len(result.Failed))
	return result, errs.ErrorOrNil()
}

// ============================================================
// 后台总览
// ============================================================

type Overview struct {
	Transactions []*model.Transaction     `json:"transactions"`
	Total        int64                    `json:"total"`
	Page         int                      `json:"page"`
	PerPage      int                      `json:"per_page"`
	Pending      []repository.PendingStat `json:"pending"`
	Wallets      *repository.WalletTotals `json:"wallets"`
}

func (s *ApprovalService) Overview(ctx context.Context, filter repository.TransactionFilter, page, perPage int) (*Overview, error) {
	page = normalizePage(page)
	perPage = NormalizePerPage(perPage)

	list, total, err := s.transRepo.List(ctx, filter, page, perPage)
	if err != nil {
		return nil, err
	}
	pending, err := s.transRepo.PendingStats(ctx)
	if err != nil {
		return nil, err
	}
	totals, err := s.walletRepo.Totals(ctx)
	if err != nil {
		return nil, err
	}

	return &Overview{
		Transactions: list,
		Total:        total,
		Page:         page,
		PerPage:      perPage,
		Pending:      pending,
		Wallets:      totals,
	}, nil
}
