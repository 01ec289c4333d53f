package service

import (
	"context"
	"strconv"
	"sync"
	"time"

	"ewallet/internal/infrastructure/cache"

	"github.com/go-redis/redis/v8"
)

// CartItem 购物车只存套餐 id 和数量，价格在结算时重新读取
type CartItem struct {
	PackageID int64 `json:"package_id"`
	Quantity  int   `json:"quantity"`
}

// CartStore 购物车存储
type CartStore interface {
	Load(ctx context.Context, userID int64) ([]CartItem, error)
	Save(ctx context.Context, userID int64, items []CartItem) error
	Clear(ctx context.Context, userID int64) error
}

// RedisCartStore 每个用户一个 JSON key，带过期时间
type RedisCartStore struct {
	cache *cache.JSONCache
	ttl   time.Duration
}

func NewRedisCartStore(client *redis.Client, ttl time.Duration) *RedisCartStore {
	return &RedisCartStore{
		cache: cache.NewJSONCache(client, "cart:user:"),
		ttl:   ttl,
	}
}

func (s *RedisCartStore) Load(ctx context.Context, userID int64) ([]CartItem, error) {
	var items []CartItem
	if _, err := s.cache.Get(ctx, strconv.FormatInt(userID, 10), &items); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *RedisCartStore) Save(ctx context.Context, userID int64, items []CartItem) error {
	return s.cache.Set(ctx, strconv.FormatInt(userID, 10), items, s.ttl)
}

func (s *RedisCartStore) Clear(ctx context.Context, userID int64) error {
	return s.cache.Delete(ctx, strconv.FormatInt(userID, 10))
}

// MemoryCartStore 进程内存储，未启用 Redis 时使用，重启后清空
type MemoryCartStore struct {
	mu    sync.Mutex
	carts map[int64][]CartItem
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[int64][]CartItem)}
}

func (s *MemoryCartStore) Load(_ context.Context, userID int64) ([]CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CartItem(nil), s.carts[userID]...), nil
}

func (s *MemoryCartStore) Save(_ context.Context, userID int64, items []CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.carts[userID] = append([]CartItem(nil), items...)
	return nil
}

func (s *MemoryCartStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, userID)
	return nil
}
