package service

import (
	"testing"

	"ewallet/internal/model"
	"ewallet/internal/testutil"

	"gorm.io/gorm"
)

// testEnv 服务层测试共用的依赖，不启用 Redis
type testEnv struct {
	db       *gorm.DB
	settings *Settings
	notifier *Notifier
	wallet   *WalletService
	approval *ApprovalService
	cart     *CartService
	checkout *CheckoutService
	orders   *OrderService
	admin    *model.User
}

func newTestEnv(t *testing.T, settings *Settings) *testEnv {
	t.Helper()
	if settings == nil {
		settings = DefaultSettings()
	}
	db := testutil.NewDB(t)
	source := StaticSettings{Settings: settings}
	notifier := NewNotifier(db, testConfig())
	payment := NewWalletPaymentService(db)
	cart := NewCartService(db, NewMemoryCartStore(), source)

	return &testEnv{
		db:       db,
		settings: settings,
		notifier: notifier,
		wallet:   NewWalletService(db, source, notifier, nil),
		approval: NewApprovalService(db, notifier, nil),
		cart:     cart,
		checkout: NewCheckoutService(db, cart, payment, source, notifier, nil),
		orders:   NewOrderService(db, payment, source, notifier, nil),
		admin:    testutil.CreateUser(t, db, "Admin", model.RoleAdmin),
	}
}

func (e *testEnv) outboxEvents(t *testing.T, recipientID int64) []string {
	t.Helper()
	var msgs []model.OutboxMessage
	if err := e.db.Where("recipient_id = ?", recipientID).Order("id ASC").Find(&msgs).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	events := make([]string, 0, len(msgs))
	for _, m := range msgs {
		events = append(events, m.EventType)
	}
	return events
}

func (e *testEnv) transactionsOf(t *testing.T, userID int64) []model.Transaction {
	t.Helper()
	var list []model.Transaction
	if err := e.db.Where("user_id = ?", userID).Order("id ASC").Find(&list).Error; err != nil {
		t.Fatalf("load transactions: %v", err)
	}
	return list
}

// withdrawalFeeSettings 提现手续费 5%，最低 1，最高 50
func withdrawalFeeSettings() *Settings {
	s := DefaultSettings()
	s.WithdrawalFee = FeePolicy{
		Enabled: true,
		Type:    FeeTypePercentage,
		Value:   testutil.Dec("5"),
		Minimum: testutil.Dec("1"),
		Maximum: testutil.Dec("50"),
	}
	return s
}

func bankDetails() map[string]string {
	return map[string]string{
		"bank_name":      "First Bank",
		"account_number": "001122",
		"account_name":   "Alice",
	}
}
