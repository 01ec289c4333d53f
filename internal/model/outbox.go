package model

import (
	"time"
)

const (
	OutboxStatusPending = "PENDING"
	OutboxStatusSent    = "SENT"
	OutboxStatusFailed  = "FAILED"
)

// 通知事件类型，下游消费者按事件渲染邮件
const (
	EventDepositRequested         = "deposit.requested"
	EventWithdrawalRequested      = "withdrawal.requested"
	EventTransactionStatusChanged = "transaction.status_changed"
	EventOrderPlaced              = "order.placed"
	EventOrderCancelled           = "order.cancelled"
)

// OutboxMessage 待投递的通知消息
// 业务提交后写入，由 OutboxSender 异步投递到 Kafka
type OutboxMessage struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageKey  string    `gorm:"type:varchar(64);not null" json:"message_key"`
	Topic       string    `gorm:"type:varchar(64);not null" json:"topic"`
	EventType   string    `gorm:"type:varchar(64);index;not null" json:"event_type"`
	RecipientID int64     `gorm:"index;not null" json:"recipient_id"`
	Payload     string    `gorm:"type:text;not null" json:"payload"`
	Status      string    `gorm:"type:varchar(20);index;not null;default:PENDING" json:"status"`
	RetryCount  int       `gorm:"not null;default:0" json:"retry_count"`
	LastError   string    `gorm:"type:varchar(500)" json:"last_error,omitempty"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OutboxMessage) TableName() string {
	return "outbox_messages"
}
