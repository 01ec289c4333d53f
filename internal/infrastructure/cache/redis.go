package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"ewallet/internal/config"

	"github.com/go-redis/redis/v8"
)

// InitRedis 连接 Redis，未启用时返回 nil，调用方按 nil 降级
func InitRedis(cfg *config.RedisConfig) *redis.Client {
	if !cfg.Enabled {
		log.Println("Redis 未启用，分布式锁、购物车、配置缓存降级为本地实现")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("连接 Redis 失败: %v", err)
	}

	log.Println("Redis 连接成功")
	return client
}

// JSONCache 以 JSON 形式读写 Redis 中的对象
type JSONCache struct {
	client *redis.Client
	prefix string
}

func NewJSONCache(client *redis.Client, prefix string) *JSONCache {
	return &JSONCache{client: client, prefix: prefix}
}

func (c *JSONCache) key(k string) string {
	return c.prefix + k
}

// Get 读取并反序列化到 dest，key 不存在返回 false
func (c *JSONCache) Get(ctx context.Context, k string, dest interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, c.key(k)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return false, fmt.Errorf("缓存内容解析失败: %w", err)
	}
	return true, nil
}

// Set ttl 为 0 表示不过期
func (c *JSONCache) Set(ctx context.Context, k string, v interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(k), raw, ttl).Err()
}

func (c *JSONCache) Delete(ctx context.Context, k string) error {
	return c.client.Del(ctx, c.key(k)).Err()
}
