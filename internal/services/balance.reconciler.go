package services

import (
	"context"
	"time"

	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
)

const CorrectionPurpose = "correction booking"

type ReconcileOutcome int

const (
	// ReconcileSkipped means no balance was asserted.
	ReconcileSkipped ReconcileOutcome = iota
	// ReconcileUnanchored means no inserted transaction falls on the balance date.
	ReconcileUnanchored
	// ReconcileAlreadyRecorded means a balance for that date exists already.
	ReconcileAlreadyRecorded
	// ReconcileLinked means the implied balance matched and the transaction was linked.
	ReconcileLinked
	// ReconcileCorrected means a correction transaction was booked.
	ReconcileCorrected
)

func (o ReconcileOutcome) String() string {
	switch o {
	case ReconcileSkipped:
		return "skipped"
	case ReconcileUnanchored:
		return "unanchored"
	case ReconcileAlreadyRecorded:
		return "already_recorded"
	case ReconcileLinked:
		return "linked"
	case ReconcileCorrected:
		return "corrected"
	}
	return "unknown"
}

type AccountReader interface {
	GetForUpdate(ctx context.Context, id int64) (*model.Account, error)
}

type BalanceTransactionStore interface {
	SumAmounts(ctx context.Context, accountID int64, before time.Time) (own int64, linked int64, err error)
	LinkBalance(ctx context.Context, transactionID, balanceID int64) error
	Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)
}

type AccountBalanceStore interface {
	FindForDay(ctx context.Context, accountID int64, dayStart, dayEnd time.Time) (*model.AccountBalance, error)
	Create(ctx context.Context, b *model.AccountBalance) (*model.AccountBalance, error)
}

type ReconcileInput struct {
	AccountID  int64
	ModifiedBy string
	Assertion  *model.BalanceAssertion

	// BalanceDate is Assertion.BalanceDate parsed.
	BalanceDate time.Time

	// Inserted holds the rows of this import, newest first.
	Inserted   []*model.Transaction
	CategoryID *int64
	Now        time.Time
}

type ReconcileResult struct {
	Outcome    ReconcileOutcome
	Implied    int64
	Balance    *model.AccountBalance
	Correction *model.Transaction
}

// BalanceReconciler checks an asserted balance against the ledger inside
// the import's unit of work.
type BalanceReconciler struct {
	accounts     AccountReader
	transactions BalanceTransactionStore
	balances     AccountBalanceStore
	loc          *time.Location
}

func NewBalanceReconciler(accounts AccountReader, transactions BalanceTransactionStore, balances AccountBalanceStore, loc *time.Location) *BalanceReconciler {
	if loc == nil {
		loc = time.UTC
	}
	return &BalanceReconciler{
		accounts:     accounts,
		transactions: transactions,
		balances:     balances,
		loc:          loc,
	}
}

// ImpliedBalance is the start balance plus the account's current amounts
// minus amounts booked against it as linked account, up to the cut-off.
func (r *BalanceReconciler) ImpliedBalance(ctx context.Context, accountID int64, before time.Time) (int64, error) {
	account, err := r.accounts.GetForUpdate(ctx, accountID)
	if err != nil {
		return 0, err
	}
	own, linked, err := r.transactions.SumAmounts(ctx, accountID, before)
	if err != nil {
		return 0, err
	}
	return account.StartBalance + own - linked, nil
}

func (r *BalanceReconciler) Reconcile(ctx context.Context, in ReconcileInput) (*ReconcileResult, error) {
	if in.Assertion == nil {
		return &ReconcileResult{Outcome: ReconcileSkipped}, nil
	}
	if in.Assertion.Balance == nil {
		return nil, validationErrorf("balance assertion without an amount")
	}
	asserted := *in.Assertion.Balance

	dayStart := startOfDay(in.BalanceDate, r.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var anchor *model.Transaction
	for _, t := range in.Inserted {
		if sameDay(t.ValueDate, in.BalanceDate, r.loc) {
			anchor = t
			break
		}
	}
	if anchor == nil {
		logger.Warn("balance assertion has no transaction on its date, ignoring",
			"account_id", in.AccountID, "balance_date", in.Assertion.BalanceDate)
		return &ReconcileResult{Outcome: ReconcileUnanchored}, nil
	}
	if anchor.AccountBalanceID != nil {
		logger.Info("balance already linked", "account_id", in.AccountID, "transaction_id", anchor.ID)
		return &ReconcileResult{Outcome: ReconcileAlreadyRecorded}, nil
	}

	existing, err := r.balances.FindForDay(ctx, in.AccountID, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		logger.Info("balance already recorded for date", "account_id", in.AccountID,
			"balance_id", existing.ID, "balance_date", in.Assertion.BalanceDate)
		return &ReconcileResult{Outcome: ReconcileAlreadyRecorded, Balance: existing}, nil
	}

	implied, err := r.ImpliedBalance(ctx, in.AccountID, dayEnd)
	if err != nil {
		return nil, err
	}

	balance, err := r.balances.Create(ctx, &model.AccountBalance{
		AccountID:    in.AccountID,
		BalanceDate:  in.BalanceDate,
		Balance:      asserted,
		DownloadedAt: in.Now,
	})
	if err != nil {
		return nil, err
	}

	if implied == asserted {
		if err := r.transactions.LinkBalance(ctx, anchor.ID, balance.ID); err != nil {
			return nil, err
		}
		anchor.AccountBalanceID = &balance.ID
		logger.Debug("balance matches ledger", "account_id", in.AccountID, "balance", implied)
		return &ReconcileResult{Outcome: ReconcileLinked, Implied: implied, Balance: balance}, nil
	}

	diff := asserted - implied
	correction := &model.Transaction{
		AccountID:        in.AccountID,
		Amount:           diff,
		ValueDate:        in.BalanceDate,
		PaymentPurpose:   CorrectionPurpose,
		GVCode:           defaultGVCode,
		CategoryID:       copyID(in.CategoryID),
		AccountBalanceID: &balance.ID,
		Fingerprint: Fingerprint(FingerprintInput{
			ValueDate:      in.Assertion.BalanceDate,
			Amount:         diff,
			PaymentPurpose: CorrectionPurpose,
			AccountID:      in.AccountID,
		}),
		ModifiedAt: in.Now,
		ModifiedBy: in.ModifiedBy,
		ValidStart: in.Now,
	}
	if _, err := r.transactions.Create(ctx, correction); err != nil {
		return nil, err
	}

	logger.Info("balance mismatch, correction booked",
		"account_id", in.AccountID,
		"implied", implied,
		"asserted", asserted,
		"correction", diff,
		"transaction_id", correction.ID)
	return &ReconcileResult{Outcome: ReconcileCorrected, Implied: implied, Balance: balance, Correction: correction}, nil
}
