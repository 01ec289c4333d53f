package repository

import (
	"context"
	"errors"
	"time"

	"ewallet/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type WalletRepository struct {
	db *gorm.DB
}

func NewWalletRepository(db *gorm.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

func (r *WalletRepository) conn(tx *gorm.DB) *gorm.DB {
	if tx == nil {
		return r.db
	}
	return tx
}

func (r *WalletRepository) GetByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.Wallet, error) {
	var wallet model.Wallet
	err := r.conn(tx).WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

func newWallet(userID int64) *model.Wallet {
	return &model.Wallet{
		UserID:          userID,
		Balance:         decimal.Zero,
		MLMBalance:      decimal.Zero,
		PurchaseBalance: decimal.Zero,
		IsActive:        true,
	}
}

// GetOrCreate 第一次访问时创建钱包，并发创建靠 user_id 唯一索引兜底
func (r *WalletRepository) GetOrCreate(ctx context.Context, tx *gorm.DB, userID int64) (*model.Wallet, error) {
	wallet, err := r.GetByUserID(ctx, tx, userID)
	if err == nil {
		return wallet, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	err = r.conn(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newWallet(userID)).Error
	if err != nil {
		return nil, err
	}

	return r.GetByUserID(ctx, tx, userID)
}

// GetOrCreateForUpdate 在事务内取钱包并加行锁，同一钱包的并发事务在这里排队
//
// 加锁读必须是事务里的第一次读：REPEATABLE READ 下快照在第一次普通读时建立，
// 锁之后的 SUM 等查询才能看到前一个事务已提交的数据。钱包不存在时先插入再加锁读。
func (r *WalletRepository) GetOrCreateForUpdate(ctx context.Context, tx *gorm.DB, userID int64) (*model.Wallet, error) {
	wallet, err := r.lockByUserID(ctx, tx, userID)
	if !errors.Is(err, ErrWalletNotFound) {
		return wallet, err
	}

	err = tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(newWallet(userID)).Error
	if err != nil {
		return nil, err
	}
	return r.lockByUserID(ctx, tx, userID)
}

func (r *WalletRepository) lockByUserID(ctx context.Context, tx *gorm.DB, userID int64) (*model.Wallet, error) {
	var wallet model.Wallet
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&wallet).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return &wallet, nil
}

// Increase 入账，冻结的钱包也可以入账（审核通过的充值、退款不应该因为冻结丢失）
func (r *WalletRepository) Increase(ctx context.Context, tx *gorm.DB, userID int64, bucket model.Bucket, amount decimal.Decimal) error {
	col := bucket.Column()
	result := r.conn(tx).WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			col:                   gorm.Expr(col+" + ?", amount),
			"last_transaction_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

// Deduct 扣款
//
// 【关键点】余额检查和扣减在同一条 SQL 里完成：
//
//	UPDATE wallets SET col = col - ? WHERE user_id = ? AND is_active AND col >= ?
//
// 两个请求同时扣款时，后提交的一方条件不再满足，影响行数为 0，不会扣成负数。
func (r *WalletRepository) Deduct(ctx context.Context, tx *gorm.DB, userID int64, bucket model.Bucket, amount decimal.Decimal) error {
	col := bucket.Column()
	db := r.conn(tx)
	result := db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ? AND is_active = ? AND "+col+" >= ?", userID, true, amount).
		Updates(map[string]interface{}{
			col:                   gorm.Expr(col+" - ?", amount),
			"last_transaction_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.explainDeductFailure(ctx, db, userID)
	}
	return nil
}

// explainDeductFailure 条件更新没命中时，区分钱包不存在 / 冻结 / 余额不足
func (r *WalletRepository) explainDeductFailure(ctx context.Context, db *gorm.DB, userID int64) error {
	wallet, err := r.GetByUserID(ctx, db, userID)
	if err != nil {
		return err
	}
	if !wallet.IsActive {
		return ErrWalletFrozen
	}
	return ErrInsufficientBalance
}

// CombinedDeduction 下单扣款的拆分结果，退款时按原路退回
type CombinedDeduction struct {
	FromPurchase decimal.Decimal `json:"from_purchase"`
	FromMLM      decimal.Decimal `json:"from_mlm"`
}

// DeductCombined 先扣购物余额，不够再扣佣金余额
func (r *WalletRepository) DeductCombined(ctx context.Context, tx *gorm.DB, userID int64, amount decimal.Decimal) (*CombinedDeduction, error) {
	db := r.conn(tx)
	wallet, err := r.GetByUserID(ctx, db, userID)
	if err != nil {
		return nil, err
	}
	if !wallet.IsActive {
		return nil, ErrWalletFrozen
	}
	if wallet.SpendableTotal().LessThan(amount) {
		return nil, ErrInsufficientBalance
	}

	split := &CombinedDeduction{FromPurchase: decimal.Min(wallet.PurchaseBalance, amount)}
	split.FromMLM = amount.Sub(split.FromPurchase)

	result := db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ? AND is_active = ? AND purchase_balance >= ? AND mlm_balance >= ?",
			userID, true, split.FromPurchase, split.FromMLM).
		Updates(map[string]interface{}{
			"purchase_balance":    gorm.Expr("purchase_balance - ?", split.FromPurchase),
			"mlm_balance":         gorm.Expr("mlm_balance - ?", split.FromMLM),
			"last_transaction_at": time.Now(),
		})
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		// 读取之后余额被并发修改
		return nil, r.explainDeductFailure(ctx, db, userID)
	}
	return split, nil
}

// SetActive 冻结 / 解冻
func (r *WalletRepository) SetActive(ctx context.Context, userID int64, active bool) error {
	result := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ?", userID).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrWalletNotFound
	}
	return nil
}

type WalletTotals struct {
	WalletCount     int64           `json:"wallet_count"`
	FrozenCount     int64           `json:"frozen_count"`
	Balance         decimal.Decimal `json:"balance"`
	MLMBalance      decimal.Decimal `json:"mlm_balance"`
	PurchaseBalance decimal.Decimal `json:"purchase_balance"`
}

// Totals 后台统计：所有钱包的余额合计、冻结数量
func (r *WalletRepository) Totals(ctx context.Context) (*WalletTotals, error) {
	var totals WalletTotals
	err := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Select(`COUNT(*) AS wallet_count,
			COALESCE(SUM(CASE WHEN is_active THEN 0 ELSE 1 END), 0) AS frozen_count,
			COALESCE(SUM(balance), 0) AS balance,
			COALESCE(SUM(mlm_balance), 0) AS mlm_balance,
			COALESCE(SUM(purchase_balance), 0) AS purchase_balance`).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}
