package repository

import (
	"context"
	"strings"
	"testing"

	"ewallet/internal/model"
	"ewallet/internal/testutil"

	"github.com/stretchr/testify/require"
)

func newTx(userID int64, txType, status, amount string) *model.Transaction {
	return &model.Transaction{
		UserID: userID,
		Type:   txType,
		Status: status,
		Amount: testutil.Dec(amount),
	}
}

func TestTransactionReferenceNumberAssigned(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	a := newTx(1, model.TransactionTypeDeposit, model.TransactionStatusPending, "10")
	b := newTx(1, model.TransactionTypeDeposit, model.TransactionStatusPending, "10")
	require.NoError(t, repo.Create(ctx, nil, a))
	require.NoError(t, repo.Create(ctx, nil, b))

	require.True(t, strings.HasPrefix(a.ReferenceNumber, "TXN-"))
	require.NotEqual(t, a.ReferenceNumber, b.ReferenceNumber)
	require.Equal(t, model.BucketBalance, a.Bucket)

	got, err := repo.GetByID(ctx, nil, a.ID)
	require.NoError(t, err)
	require.Equal(t, a.ReferenceNumber, got.ReferenceNumber)
}

func TestTransactionResolveOnlyOnce(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	trans := newTx(1, model.TransactionTypeDeposit, model.TransactionStatusPending, "10")
	require.NoError(t, repo.Create(ctx, nil, trans))

	require.NoError(t, repo.Resolve(ctx, nil, trans.ID, model.TransactionStatusApproved, 9, "ok"))
	err := repo.Resolve(ctx, nil, trans.ID, model.TransactionStatusRejected, 9, "again")
	require.ErrorIs(t, err, ErrTransactionNotPending)

	got, err := repo.GetByID(ctx, nil, trans.ID)
	require.NoError(t, err)
	require.Equal(t, model.TransactionStatusApproved, got.Status)
	require.Equal(t, "ok", got.AdminNotes)
	require.NotNil(t, got.ApprovedAt)
	require.EqualValues(t, 9, *got.ApprovedBy)
}

func TestTransactionResolveRejectsInvalidTarget(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTransactionRepository(db)

	err := repo.Resolve(context.Background(), nil, 1, model.TransactionStatusPending, 9, "")
	require.ErrorIs(t, err, ErrTransactionNotPending)
}

func TestSumPendingWithdrawals(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, nil, newTx(1, model.TransactionTypeWithdrawal, model.TransactionStatusPending, "40")))
	require.NoError(t, repo.Create(ctx, nil, newTx(1, model.TransactionTypeWithdrawal, model.TransactionStatusPending, "10.50")))
	require.NoError(t, repo.Create(ctx, nil, newTx(1, model.TransactionTypeWithdrawal, model.TransactionStatusApproved, "99")))
	require.NoError(t, repo.Create(ctx, nil, newTx(2, model.TransactionTypeWithdrawal, model.TransactionStatusPending, "77")))
	held := newTx(1, model.TransactionTypeWithdrawal, model.TransactionStatusPending, "5")
	held.PrincipalHeld = true
	require.NoError(t, repo.Create(ctx, nil, held))

	sum, err := repo.SumPendingWithdrawals(ctx, nil, 1, model.BucketBalance)
	require.NoError(t, err)
	testutil.RequireMoney(t, "50.50", sum)

	sum, err = repo.SumPendingWithdrawals(ctx, nil, 3, model.BucketBalance)
	require.NoError(t, err)
	require.True(t, sum.IsZero())
}

func TestTransactionListAndStats(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	for i := 0; i < 15; i++ {
		require.NoError(t, repo.Create(ctx, nil, newTx(1, model.TransactionTypeDeposit, model.TransactionStatusPending, "10")))
	}
	require.NoError(t, repo.Create(ctx, nil, newTx(1, model.TransactionTypeWithdrawal, model.TransactionStatusPending, "5")))
	require.NoError(t, repo.Create(ctx, nil, newTx(2, model.TransactionTypeTransferIn, model.TransactionStatusApproved, "5")))

	list, total, err := repo.List(ctx, TransactionFilter{UserID: 1, Type: model.TransactionTypeDeposit}, 2, 10)
	require.NoError(t, err)
	require.EqualValues(t, 15, total)
	require.Len(t, list, 5)

	_, total, err = repo.List(ctx, TransactionFilter{Status: model.TransactionStatusApproved}, 1, 10)
	require.NoError(t, err)
	require.EqualValues(t, 1, total)

	stats, err := repo.PendingStats(ctx)
	require.NoError(t, err)
	byType := map[string]PendingStat{}
	for _, s := range stats {
		byType[s.Type] = s
	}
	require.EqualValues(t, 15, byType[model.TransactionTypeDeposit].Count)
	testutil.RequireMoney(t, "150", byType[model.TransactionTypeDeposit].Total)
	require.EqualValues(t, 1, byType[model.TransactionTypeWithdrawal].Count)
}

func TestTransactionRelatedLink(t *testing.T) {
	db := testutil.NewDB(t)
	repo := NewTransactionRepository(db)
	ctx := context.Background()

	out := newTx(1, model.TransactionTypeTransferOut, model.TransactionStatusApproved, "10")
	require.NoError(t, repo.Create(ctx, nil, out))
	in := newTx(2, model.TransactionTypeTransferIn, model.TransactionStatusApproved, "10")
	in.RelatedTransactionID = &out.ID
	require.NoError(t, repo.Create(ctx, nil, in))
	require.NoError(t, repo.LinkRelated(ctx, nil, out.ID, in.ID))

	got, err := repo.GetByID(ctx, nil, out.ID)
	require.NoError(t, err)
	require.Equal(t, in.ID, *got.RelatedTransactionID)
}
