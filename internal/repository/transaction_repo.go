package repository

import (
	"context"
	"errors"
	"time"

	"ewallet/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *TransactionRepository) Create(ctx context.Context, tx *gorm.DB, trans *model.Transaction) error {
	return r.conn(tx).WithContext(ctx).Create(trans).Error
}

// LinkRelated 回填关联流水，用于转出指向转入这种先后创建的双向关联
func (r *TransactionRepository) LinkRelated(ctx context.Context, tx *gorm.DB, id, relatedID int64) error {
	return r.conn(tx).WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ?", id).
		Update("related_transaction_id", relatedID).Error
}

func (r *TransactionRepository) GetByID(ctx context.Context, tx *gorm.DB, id int64) (*model.Transaction, error) {
	var trans model.Transaction
	err := r.conn(tx).WithContext(ctx).First(&trans, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &trans, nil
}

// Resolve 审核：pending -> approved / rejected
//
// 【关键点】WHERE status = 'pending' 保证同一笔交易只会被处理一次，
// 重复审核影响行数为 0，返回 ErrTransactionNotPending，调用方据此回滚。
func (r *TransactionRepository) Resolve(ctx context.Context, tx *gorm.DB, id int64, toStatus string, adminID int64, notes string) error {
	if !model.CanTransactionTransitionTo(model.TransactionStatusPending, toStatus) {
		return ErrTransactionNotPending
	}

	now := time.Now()
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, model.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":      toStatus,
			"admin_notes": notes,
			"approved_by": adminID,
			"approved_at": &now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTransactionNotPending
	}
	return nil
}

// SumPendingWithdrawals 待审核提现合计（只算本金还在钱包里的）
func (r *TransactionRepository) SumPendingWithdrawals(ctx context.Context, tx *gorm.DB, userID int64, bucket model.Bucket) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.conn(tx).WithContext(ctx).
		Model(&model.Transaction{}).
		Select("COALESCE(SUM(amount), 0)").
		Where("user_id = ? AND type = ? AND status = ? AND bucket = ? AND principal_held = ?",
			userID, model.TransactionTypeWithdrawal, model.TransactionStatusPending, bucket, false).
		Row().Scan(&sum)
	return sum, err
}

// TransactionFilter 流水查询条件，零值表示不过滤
type TransactionFilter struct {
	UserID int64
	Type   string
	Status string
	Search string // 按流水号模糊匹配
}

func (r *TransactionRepository) List(ctx context.Context, filter TransactionFilter, page, perPage int) ([]*model.Transaction, int64, error) {
	var transactions []*model.Transaction
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Transaction{})
	if filter.UserID > 0 {
		query = query.Where("user_id = ?", filter.UserID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		query = query.Where("reference_number LIKE ?", "%"+filter.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&transactions).Error

	return transactions, total, err
}

// PendingStat 按类型汇总的待审核数据
type PendingStat struct {
	Type  string          `json:"type"`
	Count int64           `json:"count"`
	Total decimal.Decimal `json:"total"`
}

func (r *TransactionRepository) PendingStats(ctx context.Context) ([]PendingStat, error) {
	var stats []PendingStat
	err := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Select("type, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
		Where("status = ?", model.TransactionStatusPending).
		Group("type").
		Scan(&stats).Error
	return stats, err
}
