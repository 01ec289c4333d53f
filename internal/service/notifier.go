package service

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"ewallet/internal/config"
	"ewallet/internal/model"
	"ewallet/internal/repository"
	"ewallet/pkg/idgen"

	"gorm.io/gorm"
)

// Notifier 把通知写入 outbox，由 OutboxSender 投递到 Kafka
//
// 只在业务事务提交之后调用，失败只记日志，不影响资金操作的结果
type Notifier struct {
	outboxRepo *repository.OutboxRepository
	userRepo   *repository.UserRepository
	topic      string
}

func NewNotifier(db *gorm.DB, cfg *config.Config) *Notifier {
	return &Notifier{
		outboxRepo: repository.NewOutboxRepository(db),
		userRepo:   repository.NewUserRepository(db),
		topic:      cfg.Kafka.Topic.Notification,
	}
}

type notificationRecipient struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type notificationPayload struct {
	Event      string                 `json:"event"`
	Recipient  notificationRecipient  `json:"recipient"`
	Data       map[string]interface{} `json:"data"`
	OccurredAt time.Time              `json:"occurred_at"`
}

// NotifyAdmins 通知所有管理员
func (n *Notifier) NotifyAdmins(ctx context.Context, event string, data map[string]interface{}) {
	admins, err := n.userRepo.ListAdmins(ctx)
	if err != nil {
		log.Printf("[Notifier] WARN 查询管理员失败: event=%s, err=%v", event, err)
		return
	}
	for _, admin := range admins {
		n.enqueue(ctx, admin, event, data)
	}
}

// NotifyUser 通知单个用户
func (n *Notifier) NotifyUser(ctx context.Context, userID int64, event string, data map[string]interface{}) {
	user, err := n.userRepo.GetByID(ctx, userID)
	if err != nil {
		log.Printf("[Notifier] WARN 查询用户失败: userID=%d, event=%s, err=%v", userID, event, err)
		return
	}
	n.enqueue(ctx, user, event, data)
}

func (n *Notifier) enqueue(ctx context.Context, user *model.User, event string, data map[string]interface{}) {
	payload, err := json.Marshal(notificationPayload{
		Event:      event,
		Recipient:  notificationRecipient{ID: user.ID, Name: user.Name, Email: user.Email},
		Data:       data,
		OccurredAt: time.Now(),
	})
	if err != nil {
		log.Printf("[Notifier] WARN 序列化通知失败: event=%s, err=%v", event, err)
		return
	}

	msg := &model.OutboxMessage{
		MessageKey:  idgen.GenerateMessageKey(),
		Topic:       n.topic,
		EventType:   event,
		RecipientID: user.ID,
		Payload:     string(payload),
		Status:      model.OutboxStatusPending,
	}
	if err := n.outboxRepo.Create(ctx, nil, msg); err != nil {
		log.Printf("[Notifier] WARN 写入通知失败: event=%s, recipient=%d, err=%v", event, user.ID, err)
	}
}

func transactionData(t *model.Transaction) map[string]interface{} {
	data := map[string]interface{}{
		"transaction_id":   t.ID,
		"reference_number": t.ReferenceNumber,
		"type":             t.Type,
		"amount":           t.Amount.StringFixed(2),
		"status":           t.Status,
		"user_id":          t.UserID,
	}
	if t.AdminNotes != "" {
		data["admin_notes"] = t.AdminNotes
	}
	return data
}

func orderData(o *model.Order) map[string]interface{} {
	return map[string]interface{}{
		"order_id":       o.ID,
		"order_number":   o.OrderNumber,
		"status":         o.Status,
		"payment_status": o.PaymentStatus,
		"payment_method": o.PaymentMethod,
		"total":          o.Total.StringFixed(2),
	}
}

// Recent 用户最近收到的通知，含投递状态
func (n *Notifier) Recent(ctx context.Context, userID int64, limit int) ([]*model.OutboxMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return n.outboxRepo.ListByRecipient(ctx, userID, limit)
}
