package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockAccountReader struct {
	mock.Mock
}

func (m *MockAccountReader) GetForUpdate(ctx context.Context, id int64) (*model.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Account), args.Error(1)
}

type MockBalanceTransactionStore struct {
	mock.Mock
}

func (m *MockBalanceTransactionStore) SumAmounts(ctx context.Context, accountID int64, before time.Time) (int64, int64, error) {
	args := m.Called(ctx, accountID, before)
	return args.Get(0).(int64), args.Get(1).(int64), args.Error(2)
}

func (m *MockBalanceTransactionStore) LinkBalance(ctx context.Context, transactionID, balanceID int64) error {
	return m.Called(ctx, transactionID, balanceID).Error(0)
}

func (m *MockBalanceTransactionStore) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Transaction), args.Error(1)
}

type MockAccountBalanceStore struct {
	mock.Mock
}

func (m *MockAccountBalanceStore) FindForDay(ctx context.Context, accountID int64, dayStart, dayEnd time.Time) (*model.AccountBalance, error) {
	args := m.Called(ctx, accountID, dayStart, dayEnd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccountBalance), args.Error(1)
}

func (m *MockAccountBalanceStore) Create(ctx context.Context, b *model.AccountBalance) (*model.AccountBalance, error) {
	args := m.Called(ctx, b)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AccountBalance), args.Error(1)
}

type reconcilerMocks struct {
	accounts     *MockAccountReader
	transactions *MockBalanceTransactionStore
	balances     *MockAccountBalanceStore
}

func newReconcilerWithMocks() (*BalanceReconciler, *reconcilerMocks) {
	m := &reconcilerMocks{
		accounts:     new(MockAccountReader),
		transactions: new(MockBalanceTransactionStore),
		balances:     new(MockAccountBalanceStore),
	}
	return NewBalanceReconciler(m.accounts, m.transactions, m.balances, time.UTC), m
}

func TestBalanceReconciler_Reconcile(t *testing.T) {
	ctx := context.Background()
	balanceDate := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	dayEnd := balanceDate.AddDate(0, 0, 1)
	anchor := func() *model.Transaction {
		return &model.Transaction{ID: 7, AccountID: 1, Amount: -150, ValueDate: balanceDate.Add(9 * time.Hour)}
	}
	input := func(balance int64, rows ...*model.Transaction) ReconcileInput {
		return ReconcileInput{
			AccountID:   1,
			ModifiedBy:  "alice",
			Assertion:   model.NewBalanceAssertion(balance, "2024-03-10"),
			BalanceDate: balanceDate,
			Inserted:    rows,
			CategoryID:  ptr(int64(99)),
			Now:         fixedNow,
		}
	}

	t.Run("no assertion", func(t *testing.T) {
		r, m := newReconcilerWithMocks()
		res, err := r.Reconcile(ctx, ReconcileInput{AccountID: 1, Inserted: []*model.Transaction{anchor()}})
		require.NoError(t, err)
		assert.Equal(t, ReconcileSkipped, res.Outcome)
		m.balances.AssertNotCalled(t, "FindForDay", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("assertion without amount", func(t *testing.T) {
		r, m := newReconcilerWithMocks()
		in := input(0, anchor())
		in.Assertion.Balance = nil
		_, err := r.Reconcile(ctx, in)
		assert.ErrorIs(t, err, ErrValidation)
		m.balances.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		m.transactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("no transaction on the balance date", func(t *testing.T) {
		r, _ := newReconcilerWithMocks()
		other := anchor()
		other.ValueDate = balanceDate.AddDate(0, 0, -1)
		res, err := r.Reconcile(ctx, input(850, other))
		require.NoError(t, err)
		assert.Equal(t, ReconcileUnanchored, res.Outcome)
	})

	t.Run("anchor already linked", func(t *testing.T) {
		r, _ := newReconcilerWithMocks()
		linked := anchor()
		linked.AccountBalanceID = ptr(int64(3))
		res, err := r.Reconcile(ctx, input(850, linked))
		require.NoError(t, err)
		assert.Equal(t, ReconcileAlreadyRecorded, res.Outcome)
	})

	t.Run("match links the anchor", func(t *testing.T) {
		r, m := newReconcilerWithMocks()
		row := anchor()
		m.balances.On("FindForDay", ctx, int64(1), balanceDate, dayEnd).Return(nil, nil)
		m.accounts.On("GetForUpdate", ctx, int64(1)).Return(&model.Account{ID: 1, StartBalance: 1000}, nil)
		m.transactions.On("SumAmounts", ctx, int64(1), dayEnd).Return(int64(-150), int64(0), nil)
		m.balances.On("Create", ctx, mock.MatchedBy(func(b *model.AccountBalance) bool {
			return b.Balance == 850 && b.AccountID == 1
		})).Return(&model.AccountBalance{ID: 5, AccountID: 1, Balance: 850}, nil)
		m.transactions.On("LinkBalance", ctx, int64(7), int64(5)).Return(nil)

		res, err := r.Reconcile(ctx, input(850, row))
		require.NoError(t, err)
		assert.Equal(t, ReconcileLinked, res.Outcome)
		assert.EqualValues(t, 850, res.Implied)
		require.NotNil(t, row.AccountBalanceID)
		assert.EqualValues(t, 5, *row.AccountBalanceID)
		m.transactions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("linked account amounts are subtracted", func(t *testing.T) {
		r, m := newReconcilerWithMocks()
		m.balances.On("FindForDay", ctx, int64(1), balanceDate, dayEnd).Return(nil, nil)
		m.accounts.On("GetForUpdate", ctx, int64(1)).Return(&model.Account{ID: 1, StartBalance: 1000}, nil)
		m.transactions.On("SumAmounts", ctx, int64(1), dayEnd).Return(int64(-150), int64(200), nil)
		m.balances.On("Create", ctx, mock.Anything).Return(&model.AccountBalance{ID: 5}, nil)
		m.transactions.On("LinkBalance", ctx, int64(7), int64(5)).Return(nil)

		res, err := r.Reconcile(ctx, input(650, anchor()))
		require.NoError(t, err)
		assert.Equal(t, ReconcileLinked, res.Outcome)
		assert.EqualValues(t, 650, res.Implied)
	})

	t.Run("mismatch books a correction", func(t *testing.T) {
		r, m := newReconcilerWithMocks()
		m.balances.On("FindForDay", ctx, int64(1), balanceDate, dayEnd).Return(nil, nil)
		m.accounts.On("GetForUpdate", ctx, int64(1)).Return(&model.Account{ID: 1, StartBalance: 1000}, nil)
		m.transactions.On("SumAmounts", ctx, int64(1), dayEnd).Return(int64(-150), int64(0), nil)
		m.balances.On("Create", ctx, mock.Anything).Return(&model.AccountBalance{ID: 5}, nil)
		m.transactions.On("Create", ctx, mock.Anything).Return(&model.Transaction{ID: 8}, nil)

		res, err := r.Reconcile(ctx, input(800, anchor()))
		require.NoError(t, err)
		assert.Equal(t, ReconcileCorrected, res.Outcome)

		c := res.Correction
		require.NotNil(t, c)
		assert.EqualValues(t, -50, c.Amount)
		assert.Equal(t, CorrectionPurpose, c.PaymentPurpose)
		assert.Equal(t, "alice", c.ModifiedBy)
		assert.True(t, c.ValueDate.Equal(balanceDate))
		assert.EqualValues(t, 5, *c.AccountBalanceID)
		assert.EqualValues(t, 99, *c.CategoryID)
		assert.NotEmpty(t, c.Fingerprint)
		m.transactions.AssertNotCalled(t, "LinkBalance", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("storage errors propagate", func(t *testing.T) {
		r, m := newReconcilerWithMocks()
		boom := errors.New("boom")
		m.balances.On("FindForDay", ctx, int64(1), balanceDate, dayEnd).Return(nil, nil)
		m.accounts.On("GetForUpdate", ctx, int64(1)).Return(nil, boom)

		_, err := r.Reconcile(ctx, input(800, anchor()))
		assert.ErrorIs(t, err, boom)
	})
}

func TestReconcileOutcome_String(t *testing.T) {
	assert.Equal(t, "linked", ReconcileLinked.String())
	assert.Equal(t, "already_recorded", ReconcileAlreadyRecorded.String())
	assert.Equal(t, "unknown", ReconcileOutcome(42).String())
}
