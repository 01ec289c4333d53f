package job

import (
	"context"
	"log"
	"time"

	"ewallet/internal/config"
	"ewallet/internal/service"
)

// OrderTimeoutJob 定时关闭超时未支付的订单（线下付款一直没确认的）
type OrderTimeoutJob struct {
	orders    *service.OrderService
	timeout   time.Duration
	stopCh    chan struct{}
	interval  time.Duration
	batchSize int
}

func NewOrderTimeoutJob(orders *service.OrderService, cfg *config.Config) *OrderTimeoutJob {
	return &OrderTimeoutJob{
		orders:    orders,
		timeout:   time.Duration(cfg.Business.OrderTimeoutMinutes) * time.Minute,
		stopCh:    make(chan struct{}),
		interval:  time.Minute,
		batchSize: 100,
	}
}

func (j *OrderTimeoutJob) Start(ctx context.Context) {
	log.Println("[OrderTimeoutJob] 订单超时任务启动")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("[OrderTimeoutJob] 收到停止信号，任务退出")
			return
		case <-j.stopCh:
			log.Println("[OrderTimeoutJob] 任务停止")
			return
		case <-ticker.C:
			j.RunOnce(ctx)
		}
	}
}

func (j *OrderTimeoutJob) Stop() {
	close(j.stopCh)
}

// RunOnce 关闭一批超时订单，返回关闭的数量
func (j *OrderTimeoutJob) RunOnce(ctx context.Context) int {
	closed, err := j.orders.FailExpired(ctx, j.timeout, j.batchSize)
	if err != nil {
		log.Printf("[OrderTimeoutJob] 查询超时订单失败: %v", err)
		return 0
	}
	if closed > 0 {
		log.Printf("[OrderTimeoutJob] 本次关闭 %d 个超时订单", closed)
	}
	return closed
}
