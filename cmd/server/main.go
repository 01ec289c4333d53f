package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ewallet/internal/config"
	"ewallet/internal/handler"
	"ewallet/internal/infrastructure/cache"
	"ewallet/internal/infrastructure/database"
	"ewallet/internal/infrastructure/mq"
	"ewallet/internal/job"
	"ewallet/internal/service"
	"ewallet/pkg/idgen"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	flag.Parse()

	// 加载配置
	cfg := config.LoadConfig(*configPath)

	// 初始化 ID 生成器
	idgen.Init(1)

	db := database.InitDB(&cfg.Database)

	// Redis 可选：未启用时购物车放内存，钱包锁只依赖数据库条件更新
	redisClient := cache.InitRedis(&cfg.Redis)

	var publisher job.Publisher = job.LogPublisher{}
	if cfg.Kafka.Enabled {
		producer := mq.InitKafka(&cfg.Kafka)
		defer producer.Close()
		publisher = producer
	}

	services := service.NewServices(db, redisClient, cfg)

	// 创建上下文（用于优雅关闭）
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 启动后台任务
	outboxSender := job.NewOutboxSender(db, publisher, cfg)
	go outboxSender.Start(ctx)

	orderTimeoutJob := job.NewOrderTimeoutJob(services.Orders, cfg)
	go orderTimeoutJob.Start(ctx)

	router := handler.SetupRouter(services, cfg)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("服务启动，监听端口: %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 取消上下文，停止后台任务
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("服务关闭异常: %v", err)
	}

	if redisClient != nil {
		redisClient.Close()
	}

	log.Println("服务已关闭")
}
