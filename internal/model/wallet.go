package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ============================================================================
// 余额桶
// ============================================================================
//
// 钱包有三个余额字段：
//   balance          旧版单一余额（legacy 模式下所有资金都走这里）
//   purchase_balance 充值、转账收到的钱，只能用于消费和转出
//   mlm_balance      佣金收入，可以提现
//
// 每笔流水都会记下自己动的是哪个字段，审批、退款时按原字段回滚，
// 中途切换 wallet_mode 也不会把钱退错地方。
// ============================================================================

type Bucket string

const (
	BucketBalance  Bucket = "balance"
	BucketPurchase Bucket = "purchase_balance"
	BucketMLM      Bucket = "mlm_balance"
)

// Column 返回对应的列名，只允许这三个值拼进 SQL
func (b Bucket) Column() string {
	switch b {
	case BucketPurchase, BucketMLM:
		return string(b)
	default:
		return string(BucketBalance)
	}
}

// Wallet 钱包表，和用户一对一
type Wallet struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID            int64           `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance           decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	MLMBalance        decimal.Decimal `gorm:"column:mlm_balance;type:decimal(20,2);not null;default:0" json:"mlm_balance"`
	PurchaseBalance   decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"purchase_balance"`
	IsActive          bool            `gorm:"not null;default:true" json:"is_active"` // false 表示冻结
	LastTransactionAt *time.Time      `json:"last_transaction_at"`
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Wallet) TableName() string {
	return "wallets"
}

// BalanceOf 读取某个桶的余额
func (w *Wallet) BalanceOf(b Bucket) decimal.Decimal {
	switch b {
	case BucketPurchase:
		return w.PurchaseBalance
	case BucketMLM:
		return w.MLMBalance
	default:
		return w.Balance
	}
}

// SpendableTotal 下单时可用的合计（购物余额 + 佣金余额）
func (w *Wallet) SpendableTotal() decimal.Decimal {
	return w.PurchaseBalance.Add(w.MLMBalance)
}
