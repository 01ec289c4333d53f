package model

import (
	"fmt"
	"time"

	"ewallet/pkg/idgen"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ============================================================================
// 交易类型 / 状态
// ============================================================================

const (
	TransactionTypeDeposit        = "deposit"         // 充值（待审核）
	TransactionTypeWithdrawal     = "withdrawal"      // 提现（待审核）
	TransactionTypeWithdrawalFee  = "withdrawal_fee"  // 提现手续费（提交即扣）
	TransactionTypeTransferOut    = "transfer_out"    // 转出
	TransactionTypeTransferIn     = "transfer_in"     // 转入
	TransactionTypeTransferCharge = "transfer_charge" // 转账手续费
	TransactionTypeMLMCommission  = "mlm_commission"  // 佣金入账
	TransactionTypePayment        = "payment"         // 订单钱包支付
	TransactionTypeRefund         = "refund"          // 订单取消退款
)

const (
	TransactionStatusPending  = "pending"
	TransactionStatusApproved = "approved"
	TransactionStatusRejected = "rejected"
)

// 只有 pending 可以流转，approved / rejected 都是终态
var ValidTransactionTransitions = map[string][]string{
	TransactionStatusPending: {TransactionStatusApproved, TransactionStatusRejected},
}

func CanTransactionTransitionTo(currentStatus, targetStatus string) bool {
	return canTransition(ValidTransactionTransitions, currentStatus, targetStatus)
}

// IsApprovable 需要管理员审核的交易类型
func IsApprovable(txType string) bool {
	return txType == TransactionTypeDeposit || txType == TransactionTypeWithdrawal
}

// ============================================================================
// 流水实体
// ============================================================================

// Transaction 资金流水表
//
// 【原则】
// 1. 只追加不删除，审核只改 status / admin_notes / approved_by / approved_at
// 2. reference_number 创建时生成，之后不再修改
// 3. 关联流水（转账双方、手续费对应的主单）用 related_transaction_id 外键
type Transaction struct {
	ID                   int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	ReferenceNumber      string            `gorm:"type:varchar(40);uniqueIndex;not null" json:"reference_number"`
	UserID               int64             `gorm:"index;not null" json:"user_id"`
	Type                 string            `gorm:"type:varchar(32);index;not null" json:"type"`
	Amount               decimal.Decimal   `gorm:"type:decimal(20,2);not null" json:"amount"`
	Status               string            `gorm:"type:varchar(20);index;not null" json:"status"`
	Bucket               Bucket            `gorm:"type:varchar(32);not null;default:balance" json:"bucket"`
	PaymentMethod        string            `gorm:"type:varchar(32)" json:"payment_method,omitempty"`
	Description          string            `gorm:"type:varchar(255)" json:"description,omitempty"`
	Metadata             datatypes.JSONMap `json:"metadata,omitempty"`
	RelatedTransactionID *int64            `gorm:"index" json:"related_transaction_id,omitempty"`
	RelatedTransaction   *Transaction      `gorm:"foreignKey:RelatedTransactionID" json:"-"`
	OrderID              *int64            `gorm:"index" json:"order_id,omitempty"`
	PrincipalHeld        bool              `gorm:"not null;default:false" json:"principal_held"` // 提现本金是否已在提交时扣除
	AdminNotes           string            `gorm:"type:text" json:"admin_notes,omitempty"`
	ApprovedBy           *int64            `json:"approved_by,omitempty"`
	ApprovedAt           *time.Time        `json:"approved_at,omitempty"`
	CreatedAt            time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// BeforeCreate 生成流水号，已有值（比如导入历史数据）时不覆盖
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ReferenceNumber == "" {
		t.ReferenceNumber = fmt.Sprintf("TXN-%X", idgen.NextID())
	}
	if t.Bucket == "" {
		t.Bucket = BucketBalance
	}
	return nil
}

func (t *Transaction) IsPending() bool {
	return t.Status == TransactionStatusPending
}
