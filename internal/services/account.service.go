package services

import (
	"context"
	"time"

	"github.com/ledgerkraft/bookkeeping/internal/model"
)

type AccountLister interface {
	ListOpen(ctx context.Context, at time.Time) ([]*model.Account, error)
}

type TransactionLister interface {
	List(ctx context.Context, filter model.TransactionFilter) ([]*model.Transaction, error)
}

type AccountService struct {
	accounts     AccountLister
	transactions TransactionLister
	now          func() time.Time
}

func NewAccountService(accounts AccountLister, transactions TransactionLister) *AccountService {
	return &AccountService{
		accounts:     accounts,
		transactions: transactions,
		now:          time.Now,
	}
}

// ListOpenAccounts returns accounts that are neither deleted nor closed.
func (s *AccountService) ListOpenAccounts(ctx context.Context) ([]*model.Account, error) {
	accounts, err := s.accounts.ListOpen(ctx, s.now())
	if err != nil {
		return nil, storageError("list accounts", err)
	}
	return accounts, nil
}

// ListTransactions returns current transactions newest first. Negative
// account ids are rejected.
func (s *AccountService) ListTransactions(ctx context.Context, accountIDs []int64, limit int) ([]*model.Transaction, error) {
	for _, id := range accountIDs {
		if id <= 0 {
			return nil, validationErrorf("account id must be positive, got %d", id)
		}
	}
	if limit < 0 {
		return nil, validationErrorf("limit must not be negative, got %d", limit)
	}
	txns, err := s.transactions.List(ctx, model.TransactionFilter{AccountIDs: accountIDs, Limit: limit})
	if err != nil {
		return nil, storageError("list transactions", err)
	}
	return txns, nil
}
