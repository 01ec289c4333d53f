package service

import (
	"time"

	"ewallet/internal/config"
	"ewallet/internal/infrastructure/lock"
	"ewallet/internal/repository"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// Services 所有业务服务，handler 和后台任务共用同一组实例
type Services struct {
	Settings *SettingService
	Wallet   *WalletService
	Approval *ApprovalService
	Cart     *CartService
	Checkout *CheckoutService
	Orders   *OrderService
	Packages *repository.PackageRepository
	Notifier *Notifier
	Users    *repository.UserRepository
}

// NewServices rdb 为 nil 时购物车放在进程内存，钱包锁退化为只靠数据库条件更新
func NewServices(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *Services {
	settings := NewSettingService(db, rdb, cfg)
	notifier := NewNotifier(db, cfg)
	locker := lock.NewLocker(rdb, time.Duration(cfg.Business.LockTTLSeconds)*time.Second)
	payment := NewWalletPaymentService(db)

	var store CartStore
	if rdb != nil {
		store = NewRedisCartStore(rdb, time.Duration(cfg.Business.CartTTLHours)*time.Hour)
	} else {
		store = NewMemoryCartStore()
	}
	cart := NewCartService(db, store, settings)

	return &Services{
		Settings: settings,
		Wallet:   NewWalletService(db, settings, notifier, locker),
		Approval: NewApprovalService(db, notifier, locker),
		Cart:     cart,
		Checkout: NewCheckoutService(db, cart, payment, settings, notifier, locker),
		Orders:   NewOrderService(db, payment, settings, notifier, locker),
		Packages: repository.NewPackageRepository(db),
		Notifier: notifier,
		Users:    repository.NewUserRepository(db),
	}
}
