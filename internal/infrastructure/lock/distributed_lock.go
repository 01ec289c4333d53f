package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// ============================================================================
// 分布式锁
// ============================================================================
//
// 钱包余额的正确性由条件更新（UPDATE ... WHERE balance >= ?）保证，
// 这把锁只负责把同一用户的提现、转账、下单串行化，
// 避免"可用余额 = 余额 - 待审核提现"这类跨行计算在并发下被同时通过。
//
// 加锁：SET key value NX EX ttl
// 解锁：Lua 脚本比较 value 后删除，不会误删别人的锁
// ============================================================================

var ErrLockFailed = errors.New("获取分布式锁失败")

const unlockScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

type DistributedLock struct {
	client     *redis.Client
	key        string
	value      string // 锁持有者标识
	expiration time.Duration
}

func NewDistributedLock(client *redis.Client, key, value string, expiration time.Duration) *DistributedLock {
	return &DistributedLock{
		client:     client,
		key:        key,
		value:      value,
		expiration: expiration,
	}
}

// TryLock 非阻塞获取锁
func (l *DistributedLock) TryLock(ctx context.Context) (bool, error) {
	return l.client.SetNX(ctx, l.key, l.value, l.expiration).Result()
}

// Lock 阻塞获取锁，最多重试 maxRetries 次
func (l *DistributedLock) Lock(ctx context.Context, retryInterval time.Duration, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		success, err := l.TryLock(ctx)
		if err != nil {
			return err
		}
		if success {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(retryInterval):
		}
	}
	return ErrLockFailed
}

func (l *DistributedLock) Unlock(ctx context.Context) error {
	_, err := l.client.Eval(ctx, unlockScript, []string{l.key}, l.value).Result()
	return err
}

// NewWalletLock 按用户维度的钱包锁，value 用随机 uuid 标识本次持有
func NewWalletLock(client *redis.Client, userID int64, ttl time.Duration) *DistributedLock {
	key := fmt.Sprintf("wallet:lock:user:%d", userID)
	return NewDistributedLock(client, key, uuid.NewString(), ttl)
}

// Locker 对钱包操作加锁执行；client 为 nil 时直接执行 fn
type Locker struct {
	client        *redis.Client
	ttl           time.Duration
	retryInterval time.Duration
	maxRetries    int
}

func NewLocker(client *redis.Client, ttl time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Locker{
		client:        client,
		ttl:           ttl,
		retryInterval: 100 * time.Millisecond,
		maxRetries:    30,
	}
}

func (l *Locker) WithWalletLock(ctx context.Context, userID int64, fn func() error) error {
	if l == nil || l.client == nil {
		return fn()
	}

	walletLock := NewWalletLock(l.client, userID, l.ttl)
	if err := walletLock.Lock(ctx, l.retryInterval, l.maxRetries); err != nil {
		return err
	}
	// 解锁用独立 context，请求取消后也要释放
	defer walletLock.Unlock(context.Background())

	return fn()
}
