package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	OrderStatusPending    = "pending"
	OrderStatusPaid       = "paid"
	OrderStatusProcessing = "processing"
	OrderStatusCompleted  = "completed"
	OrderStatusCancelled  = "cancelled"
	OrderStatusFailed     = "failed"
)

const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

const (
	PaymentMethodWallet       = "wallet"
	PaymentMethodBankTransfer = "bank_transfer"
	PaymentMethodEWallet      = "e_wallet"
	PaymentMethodCreditCard   = "credit_card"
)

// 订单状态流转表，cancelled / completed / failed 为终态
var ValidStatusTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusPaid, OrderStatusCancelled, OrderStatusFailed},
	OrderStatusPaid:       {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusCompleted},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	return canTransition(ValidStatusTransitions, currentStatus, targetStatus)
}

func canTransition(table map[string][]string, currentStatus, targetStatus string) bool {
	allowedStatuses, exists := table[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowedStatuses {
		if s == targetStatus {
			return true
		}
	}
	return false
}

type Order struct {
	ID                 int64             `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber        string            `gorm:"type:varchar(64);uniqueIndex;not null" json:"order_number"`
	UserID             int64             `gorm:"index;not null" json:"user_id"`
	Status             string            `gorm:"type:varchar(20);index;not null" json:"status"`
	PaymentStatus      string            `gorm:"type:varchar(20);not null" json:"payment_status"`
	PaymentMethod      string            `gorm:"type:varchar(32);not null" json:"payment_method"`
	Subtotal           decimal.Decimal   `gorm:"type:decimal(20,2);not null" json:"subtotal"`
	Tax                decimal.Decimal   `gorm:"type:decimal(20,2);not null" json:"tax"`
	Total              decimal.Decimal   `gorm:"type:decimal(20,2);not null" json:"total"`
	PointsAwarded      int               `gorm:"not null;default:0" json:"points_awarded"`
	Notes              string            `gorm:"type:text" json:"notes,omitempty"`
	Metadata           datatypes.JSONMap `json:"metadata,omitempty"` // 下单时的购物车快照、钱包扣款拆分
	PaidAt             *time.Time        `json:"paid_at"`
	CancelledAt        *time.Time        `json:"cancelled_at"`
	CancellationReason string            `gorm:"type:varchar(255)" json:"cancellation_reason,omitempty"`
	Items              []OrderItem       `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt          time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt          time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

// CanBeCancelled 只有待支付和已支付的订单可以取消
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusPaid
}

func (o *Order) IsPaid() bool {
	return o.PaymentStatus == PaymentStatusPaid
}

// PackageSnapshot 下单时的商品快照，商品后续改价、下架不影响历史订单
type PackageSnapshot struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Points      int             `json:"points"`
}

type OrderItem struct {
	ID              int64                               `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID         int64                               `gorm:"index;not null" json:"order_id"`
	PackageID       int64                               `gorm:"index;not null" json:"package_id"`
	PackageName     string                              `gorm:"type:varchar(191);not null" json:"package_name"`
	Quantity        int                                 `gorm:"not null" json:"quantity"`
	UnitPrice       decimal.Decimal                     `gorm:"type:decimal(20,2);not null" json:"unit_price"`
	TotalPrice      decimal.Decimal                     `gorm:"type:decimal(20,2);not null" json:"total_price"`
	Points          int                                 `gorm:"not null;default:0" json:"points"`
	PackageSnapshot datatypes.JSONType[PackageSnapshot] `json:"package_snapshot"`
	CreatedAt       time.Time                           `gorm:"autoCreateTime" json:"created_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
