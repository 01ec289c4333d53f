package service

import (
	"context"
	"testing"
	"time"

	"ewallet/internal/model"
	"ewallet/internal/testutil"

	"github.com/stretchr/testify/require"
)

func placeOrder(t *testing.T, env *testEnv, userID int64, pkg *model.Package, qty int, method string) *model.Order {
	t.Helper()
	ctx := context.Background()
	_, err := env.cart.Add(ctx, userID, pkg.ID, qty)
	require.NoError(t, err)
	order, err := env.checkout.Checkout(ctx, &CheckoutRequest{UserID: userID, PaymentMethod: method})
	require.NoError(t, err)
	return order
}

func TestCancelPaidOrderRefunds(t *testing.T) {
	s := DefaultSettings()
	s.WalletMode = WalletModeSegregated
	env := newTestEnv(t, s)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "Alice", "")
	testutil.CreateWallet(t, env.db, alice.ID, "0", "30", "50")
	pkg := testutil.CreatePackage(t, env.db, "Starter", "50", 5, testutil.IntPtr(3))
	order := placeOrder(t, env, alice.ID, pkg, 1, model.PaymentMethodWallet)

	cancelled, err := env.orders.Cancel(ctx, alice.ID, order.ID, "")
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCancelled, cancelled.Status)
	require.Equal(t, model.PaymentStatusRefunded, cancelled.PaymentStatus)
	require.NotNil(t, cancelled.CancelledAt)
	require.Equal(t, "Cancelled by customer", cancelled.CancellationReason)

	// 原路退回
	w := testutil.ReloadWallet(t, env.db, alice.ID)
	testutil.RequireMoney(t, "30", w.PurchaseBalance)
	testutil.RequireMoney(t, "50", w.MLMBalance)

	var stock model.Package
	require.NoError(t, env.db.First(&stock, pkg.ID).Error)
	require.Equal(t, 3, *stock.QuantityAvailable)

	var refunds []model.Transaction
	require.NoError(t, env.db.Where("type = ?", model.TransactionTypeRefund).Find(&refunds).Error)
	require.Len(t, refunds, 2)

	_, err = env.orders.Cancel(ctx, alice.ID, order.ID, "")
	require.ErrorIs(t, err, ErrOrderCannotBeCancelled)

	require.Equal(t, []string{model.EventOrderPlaced, model.EventOrderCancelled}, env.outboxEvents(t, alice.ID))
}

func TestCancelPendingOrderNoRefund(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "Alice", "")
	pkg := testutil.CreatePackage(t, env.db, "Starter", "50", 5, testutil.IntPtr(3))
	order := placeOrder(t, env, alice.ID, pkg, 2, model.PaymentMethodBankTransfer)

	cancelled, err := env.orders.Cancel(ctx, alice.ID, order.ID, "changed my mind")
	require.NoError(t, err)
	require.Equal(t, model.PaymentStatusPending, cancelled.PaymentStatus)
	require.Empty(t, env.transactionsOf(t, alice.ID))

	var stock model.Package
	require.NoError(t, env.db.First(&stock, pkg.ID).Error)
	require.Equal(t, 3, *stock.QuantityAvailable)
}

func TestCancelOtherUsersOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "Alice", "")
	bob := testutil.CreateUser(t, env.db, "Bob", "")
	pkg := testutil.CreatePackage(t, env.db, "Starter", "50", 5, nil)
	order := placeOrder(t, env, alice.ID, pkg, 1, model.PaymentMethodBankTransfer)

	_, err := env.orders.Cancel(ctx, bob.ID, order.ID, "")
	require.ErrorIs(t, err, ErrOrderNotFound)
	_, err = env.orders.Get(ctx, bob.ID, order.ID)
	require.ErrorIs(t, err, ErrOrderNotFound)
}

func TestAdminUpdateStatus(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "Alice", "")
	pkg := testutil.CreatePackage(t, env.db, "Starter", "50", 7, nil)
	order := placeOrder(t, env, alice.ID, pkg, 2, model.PaymentMethodBankTransfer)

	_, err := env.orders.AdminUpdateStatus(ctx, order.ID, model.OrderStatusCompleted)
	require.ErrorIs(t, err, ErrOrderStatusInvalid)

	paid, err := env.orders.AdminUpdateStatus(ctx, order.ID, model.OrderStatusPaid)
	require.NoError(t, err)
	require.Equal(t, model.PaymentStatusPaid, paid.PaymentStatus)
	require.Equal(t, 14, paid.PointsAwarded)

	_, err = env.orders.AdminUpdateStatus(ctx, order.ID, model.OrderStatusProcessing)
	require.NoError(t, err)
	done, err := env.orders.AdminUpdateStatus(ctx, order.ID, model.OrderStatusCompleted)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusCompleted, done.Status)

	_, err = env.orders.AdminUpdateStatus(ctx, order.ID, model.OrderStatusCancelled)
	require.ErrorIs(t, err, ErrInvalidOrderStatus)
}

func TestCancelOfflinePaidOrderRefundsToDepositBucket(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "Alice", "")
	pkg := testutil.CreatePackage(t, env.db, "Starter", "50", 7, nil)
	order := placeOrder(t, env, alice.ID, pkg, 1, model.PaymentMethodBankTransfer)

	_, err := env.orders.AdminUpdateStatus(ctx, order.ID, model.OrderStatusPaid)
	require.NoError(t, err)

	_, err = env.orders.Cancel(ctx, alice.ID, order.ID, "")
	require.NoError(t, err)
	testutil.RequireMoney(t, "50", testutil.ReloadWallet(t, env.db, alice.ID).Balance)
}

func TestFailExpiredOrders(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "Alice", "")
	pkg := testutil.CreatePackage(t, env.db, "Starter", "50", 7, testutil.IntPtr(5))
	stale := placeOrder(t, env, alice.ID, pkg, 2, model.PaymentMethodBankTransfer)
	fresh := placeOrder(t, env, alice.ID, pkg, 1, model.PaymentMethodBankTransfer)

	require.NoError(t, env.db.Model(&model.Order{}).Where("id = ?", stale.ID).
		Update("created_at", time.Now().Add(-2*time.Hour)).Error)

	n, err := env.orders.FailExpired(ctx, 30*time.Minute, 100)
	require.NoError(t, err)
	require.Equal(t, 1, n)

	got, err := env.orders.Get(ctx, alice.ID, stale.ID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusFailed, got.Status)
	require.Equal(t, model.PaymentStatusFailed, got.PaymentStatus)

	got, err = env.orders.Get(ctx, alice.ID, fresh.ID)
	require.NoError(t, err)
	require.Equal(t, model.OrderStatusPending, got.Status)

	var stock model.Package
	require.NoError(t, env.db.First(&stock, pkg.ID).Error)
	require.Equal(t, 4, *stock.QuantityAvailable)
}

func TestListOrders(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	alice := testutil.CreateUser(t, env.db, "Alice", "")
	pkg := testutil.CreatePackage(t, env.db, "Starter", "5", 1, nil)
	for i := 0; i < 3; i++ {
		placeOrder(t, env, alice.ID, pkg, 1, model.PaymentMethodBankTransfer)
	}

	orders, total, err := env.orders.List(ctx, alice.ID, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 3, total)
	require.Len(t, orders, 3)
	require.Len(t, orders[0].Items, 1)
}
