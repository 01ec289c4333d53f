package job

import (
	"context"
	"log"
	"time"

	"ewallet/internal/config"
	"ewallet/internal/model"
	"ewallet/internal/repository"

	"gorm.io/gorm"
)

// Publisher 消息投递目标，生产环境是 Kafka 生产者
type Publisher interface {
	SendMessage(topic, key, value string) error
}

// LogPublisher 未启用 Kafka 时把通知打到日志里
type LogPublisher struct{}

func (LogPublisher) SendMessage(topic, key, value string) error {
	log.Printf("[Notification] topic=%s, key=%s, payload=%s", topic, key, value)
	return nil
}

// OutboxSender 轮询 outbox 表投递通知
//
// 投递失败累加重试次数，达到 max_retry_count 后标记为 FAILED
type OutboxSender struct {
	outboxRepo *repository.OutboxRepository
	publisher  Publisher
	maxRetry   int
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

func NewOutboxSender(db *gorm.DB, publisher Publisher, cfg *config.Config) *OutboxSender {
	maxRetry := cfg.Business.MaxRetryCount
	if maxRetry <= 0 {
		maxRetry = 1
	}
	return &OutboxSender{
		outboxRepo: repository.NewOutboxRepository(db),
		publisher:  publisher,
		maxRetry:   maxRetry,
		stopCh:     make(chan struct{}),
		interval:   time.Second,
		batchSize:  100,
	}
}

func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("[OutboxSender] 消息发送任务启动")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OutboxSender] 收到停止信号，任务退出")
			return
		case <-s.stopCh:
			log.Println("[OutboxSender] 任务停止")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

// RunOnce 处理一批 PENDING 消息，返回投递成功的条数
func (s *OutboxSender) RunOnce(ctx context.Context) int {
	messages, err := s.outboxRepo.GetPendingMessages(ctx, s.batchSize)
	if err != nil {
		log.Printf("[OutboxSender] 查询消息失败: %v", err)
		return 0
	}

	sent := 0
	for _, msg := range messages {
		if s.sendMessage(ctx, msg) {
			sent++
		}
	}
	return sent
}

func (s *OutboxSender) sendMessage(ctx context.Context, msg *model.OutboxMessage) bool {
	err := s.publisher.SendMessage(msg.Topic, msg.MessageKey, msg.Payload)
	if err == nil {
		if updateErr := s.outboxRepo.MarkAsSent(ctx, msg.ID); updateErr != nil {
			log.Printf("[OutboxSender] 更新消息状态失败: id=%d, err=%v", msg.ID, updateErr)
		}
		return true
	}

	log.Printf("[OutboxSender] 消息发送失败: id=%d, event=%s, err=%v", msg.ID, msg.EventType, err)

	giveUp := msg.RetryCount+1 >= s.maxRetry
	if err := s.outboxRepo.RecordFailure(ctx, msg.ID, err.Error(), giveUp); err != nil {
		log.Printf("[OutboxSender] 记录失败次数失败: id=%d, err=%v", msg.ID, err)
		return false
	}
	if giveUp {
		log.Printf("[OutboxSender] 消息超过最大重试次数，标记为失败: id=%d", msg.ID)
	}
	return false
}
