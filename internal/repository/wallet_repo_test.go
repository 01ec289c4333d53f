package repository

import (
	"context"
	"sync"
	"testing"

	"ewallet/internal/model"
	"ewallet/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestWalletGetOrCreate(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()

	w1, err := repo.GetOrCreate(ctx, nil, 7)
	require.NoError(t, err)
	require.True(t, w1.IsActive)
	testutil.RequireMoney(t, "0", w1.Balance)

	w2, err := repo.GetOrCreate(ctx, nil, 7)
	require.NoError(t, err)
	require.Equal(t, w1.ID, w2.ID)
}

func TestWalletGetOrCreateForUpdate(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()
	testutil.CreateWallet(t, db, 1, "25", "0", "0")

	err := db.Transaction(func(tx *gorm.DB) error {
		existing, err := repo.GetOrCreateForUpdate(ctx, tx, 1)
		require.NoError(t, err)
		testutil.RequireMoney(t, "25", existing.Balance)

		created, err := repo.GetOrCreateForUpdate(ctx, tx, 2)
		require.NoError(t, err)
		require.True(t, created.IsActive)
		testutil.RequireMoney(t, "0", created.Balance)
		return nil
	})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&model.Wallet{}).Count(&count).Error)
	require.EqualValues(t, 2, count)
}

func TestWalletDeductIsConditional(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()
	testutil.CreateWallet(t, db, 1, "100", "0", "0")

	require.NoError(t, repo.Deduct(ctx, nil, 1, model.BucketBalance, testutil.Dec("60")))
	err := repo.Deduct(ctx, nil, 1, model.BucketBalance, testutil.Dec("60"))
	require.ErrorIs(t, err, ErrInsufficientBalance)

	w := testutil.ReloadWallet(t, db, 1)
	testutil.RequireMoney(t, "40", w.Balance)
	require.NotNil(t, w.LastTransactionAt)
}

func TestWalletDeductFrozen(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()
	testutil.CreateWallet(t, db, 1, "100", "0", "0")
	require.NoError(t, repo.SetActive(ctx, 1, false))

	err := repo.Deduct(ctx, nil, 1, model.BucketBalance, testutil.Dec("1"))
	require.ErrorIs(t, err, ErrWalletFrozen)

	// 冻结不影响入账
	require.NoError(t, repo.Increase(ctx, nil, 1, model.BucketBalance, testutil.Dec("5")))
	testutil.RequireMoney(t, "105", testutil.ReloadWallet(t, db, 1).Balance)
}

func TestWalletDeductMissing(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWalletRepository(db)

	err := repo.Deduct(context.Background(), nil, 99, model.BucketBalance, testutil.Dec("1"))
	require.ErrorIs(t, err, ErrWalletNotFound)
	err = repo.Increase(context.Background(), nil, 99, model.BucketBalance, testutil.Dec("1"))
	require.ErrorIs(t, err, ErrWalletNotFound)
}

func TestWalletBucketsAreIndependent(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()
	testutil.CreateWallet(t, db, 1, "0", "10", "20")

	err := repo.Deduct(ctx, nil, 1, model.BucketPurchase, testutil.Dec("15"))
	require.ErrorIs(t, err, ErrInsufficientBalance)
	require.NoError(t, repo.Deduct(ctx, nil, 1, model.BucketMLM, testutil.Dec("15")))

	w := testutil.ReloadWallet(t, db, 1)
	testutil.RequireMoney(t, "10", w.PurchaseBalance)
	testutil.RequireMoney(t, "5", w.MLMBalance)
}

func TestWalletDeductCombined(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()
	testutil.CreateWallet(t, db, 1, "0", "30", "50")

	split, err := repo.DeductCombined(ctx, nil, 1, testutil.Dec("45.50"))
	require.NoError(t, err)
	testutil.RequireMoney(t, "30", split.FromPurchase)
	testutil.RequireMoney(t, "15.50", split.FromMLM)

	w := testutil.ReloadWallet(t, db, 1)
	testutil.RequireMoney(t, "0", w.PurchaseBalance)
	testutil.RequireMoney(t, "34.50", w.MLMBalance)

	_, err = repo.DeductCombined(ctx, nil, 1, testutil.Dec("40"))
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestWalletDeductRollsBackWithTransaction(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()
	testutil.CreateWallet(t, db, 1, "100", "0", "0")

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := repo.Deduct(ctx, tx, 1, model.BucketBalance, testutil.Dec("30")); err != nil {
			return err
		}
		return repo.Deduct(ctx, tx, 1, model.BucketBalance, testutil.Dec("80"))
	})
	require.ErrorIs(t, err, ErrInsufficientBalance)
	testutil.RequireMoney(t, "100", testutil.ReloadWallet(t, db, 1).Balance)
}

func TestWalletConcurrentDeductNeverOverdraws(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()
	testutil.CreateWallet(t, db, 1, "100", "0", "0")

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := repo.Deduct(ctx, nil, 1, model.BucketBalance, testutil.Dec("30")); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 3, succeeded)
	testutil.RequireMoney(t, "10", testutil.ReloadWallet(t, db, 1).Balance)
}

func TestWalletTotals(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewWalletRepository(db)
	ctx := context.Background()
	testutil.CreateWallet(t, db, 1, "10", "1", "2")
	testutil.CreateWallet(t, db, 2, "5", "3", "4")
	require.NoError(t, repo.SetActive(ctx, 2, false))

	totals, err := repo.Totals(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, totals.WalletCount)
	require.EqualValues(t, 1, totals.FrozenCount)
	testutil.RequireMoney(t, "15", totals.Balance)
	testutil.RequireMoney(t, "4", totals.PurchaseBalance)
	testutil.RequireMoney(t, "6", totals.MLMBalance)
}
