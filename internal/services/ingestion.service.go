package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/ledgerkraft/bookkeeping/pkg/logger"
	"github.com/ledgerkraft/bookkeeping/pkg/prom"
)

const defaultGVCode = "000"

type TransactionStore interface {
	FindCurrentSince(ctx context.Context, accountID int64, since time.Time) ([]*model.Transaction, error)
	BulkCreate(ctx context.Context, txns []*model.Transaction) error
	FindInserted(ctx context.Context, accountID int64, ids []int64, fingerprints []string) ([]*model.Transaction, error)
}

type CoordinateStore interface {
	BulkCreate(ctx context.Context, coords []*model.Coordinate) error
}

// UnitOfWork runs fn atomically; stores called with the ctx handed to fn join it.
type UnitOfWork interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type CashAccountLookup interface {
	CashAccountFor(ctx context.Context, username string) (*int64, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event *model.ImportEvent) error
}

type IngestionOption func(*IngestionService)

func WithClock(now func() time.Time) IngestionOption {
	return func(s *IngestionService) { s.now = now }
}

// WithLocation sets the zone used to read naive dates and compare calendar days.
func WithLocation(loc *time.Location) IngestionOption {
	return func(s *IngestionService) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func WithPublisher(p EventPublisher) IngestionOption {
	return func(s *IngestionService) { s.publisher = p }
}

func WithCashAccounts(c CashAccountLookup) IngestionOption {
	return func(s *IngestionService) { s.cashAccounts = c }
}

type IngestionService struct {
	uow          UnitOfWork
	transactions TransactionStore
	coordinates  CoordinateStore
	categories   CategoryRepository
	noCategory   *NoCategoryCache
	identities   *IdentityResolver
	reconciler   *BalanceReconciler
	cashAccounts CashAccountLookup
	publisher    EventPublisher
	loc          *time.Location
	now          func() time.Time
}

func NewIngestionService(
	uow UnitOfWork,
	transactions TransactionStore,
	coordinates CoordinateStore,
	categories CategoryRepository,
	noCategory *NoCategoryCache,
	identities *IdentityResolver,
	reconciler *BalanceReconciler,
	opts ...IngestionOption,
) *IngestionService {
	s := &IngestionService{
		uow:          uow,
		transactions: transactions,
		coordinates:  coordinates,
		categories:   categories,
		noCategory:   noCategory,
		identities:   identities,
		reconciler:   reconciler,
		loc:          time.UTC,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.noCategory == nil {
		s.noCategory = NewNoCategoryCache()
	}
	return s
}

type pendingTransaction struct {
	raw *model.RawTransaction
	txn *model.Transaction
}

type normalizedBatch struct {
	pending     []pendingTransaction
	coordinates map[string]*model.Coordinate
	oldest      time.Time
	duplicates  int
}

// AddTransactions imports a batch into an account and returns the rows it
// inserted, newest first. Rows whose fingerprint is already current in the
// account are skipped. When balance is set, it is reconciled against the
// ledger in the same unit of work.
func (s *IngestionService) AddTransactions(ctx context.Context, modifiedBy string, accountID int64, raws []model.RawTransaction, balance *model.BalanceAssertion) ([]*model.Transaction, error) {
	started := time.Now()
	result, err := s.addTransactions(ctx, modifiedBy, accountID, raws, balance)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		prom.AddIngestionFailure(failureKind(err), elapsed)
		return nil, err
	}
	prom.AddIngestionResult(len(result.inserted), result.duplicates, result.corrected, elapsed)
	return result.inserted, nil
}

type ingestionResult struct {
	inserted   []*model.Transaction
	duplicates int
	corrected  bool
}

func (s *IngestionService) addTransactions(ctx context.Context, modifiedBy string, accountID int64, raws []model.RawTransaction, balance *model.BalanceAssertion) (*ingestionResult, error) {
	if accountID <= 0 {
		return nil, validationErrorf("account id must be positive, got %d", accountID)
	}
	if len(raws) == 0 {
		return &ingestionResult{inserted: []*model.Transaction{}}, nil
	}

	var balanceDate time.Time
	if balance != nil {
		if !balance.Complete() {
			return nil, validationErrorf("balance assertion needs both balance and balanceDate")
		}
		d, err := ParseValueDate(balance.BalanceDate, s.loc)
		if err != nil {
			return nil, fmt.Errorf("balance date: %w", err)
		}
		balanceDate = d
	}

	now := s.now()
	batch, err := s.normalize(modifiedBy, accountID, raws, now)
	if err != nil {
		return nil, err
	}

	sentinel, err := s.noCategory.Get(ctx, s.categories.NoCategoryID)
	if err != nil {
		return nil, storageError("load no-category sentinel", err)
	}
	index, err := LoadCategoryIndex(ctx, s.categories)
	if err != nil {
		return nil, storageError("load categories", err)
	}
	for _, p := range batch.pending {
		p.txn.CategoryID = index.Resolve(p.raw.Category, sentinel)
	}

	since := batch.oldest.In(s.loc).AddDate(0, 0, -1)
	stored, err := s.transactions.FindCurrentSince(ctx, accountID, since)
	if err != nil {
		return nil, storageError("load current transactions", err)
	}
	known := make(map[string]struct{}, len(stored))
	for _, t := range stored {
		known[strings.TrimSpace(t.Fingerprint)] = struct{}{}
	}

	var fresh []pendingTransaction
	for _, p := range batch.pending {
		if _, ok := known[p.txn.Fingerprint]; ok {
			batch.duplicates++
			continue
		}
		fresh = append(fresh, p)
	}

	logger.Debug("import batch deduplicated",
		"account_id", accountID,
		"received", len(raws),
		"new", len(fresh),
		"duplicates", batch.duplicates,
		"window_start", since)

	if len(fresh) == 0 {
		return &ingestionResult{inserted: []*model.Transaction{}, duplicates: batch.duplicates}, nil
	}

	seen := make(map[string]int64)
	txns := make([]*model.Transaction, len(fresh))
	watch := make([]string, len(fresh))
	for i, p := range fresh {
		id, err := s.identities.resolve(ctx, seen, p.raw.PayeePayerName, p.raw.PayeePayerAcctNo, p.raw.PayeePayerBankCode)
		if err != nil {
			return nil, storageError("resolve identity", err)
		}
		p.txn.IdentityID = id
		txns[i] = p.txn
		watch[i] = p.txn.Fingerprint
	}

	var (
		inserted  []*model.Transaction
		reconcile *ReconcileResult
	)
	err = s.uow.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.transactions.BulkCreate(ctx, txns); err != nil {
			return storageError("insert transactions", err)
		}

		ids := make([]int64, len(txns))
		for i, t := range txns {
			ids[i] = t.ID
		}
		rows, err := s.transactions.FindInserted(ctx, accountID, ids, watch)
		if err != nil {
			return storageError("reselect transactions", err)
		}
		inserted = rows

		if err := s.attachCoordinates(ctx, accountID, rows, batch.coordinates); err != nil {
			return storageError("insert coordinates", err)
		}

		reconcile, err = s.reconciler.Reconcile(ctx, ReconcileInput{
			AccountID:   accountID,
			ModifiedBy:  modifiedBy,
			Assertion:   balance,
			BalanceDate: balanceDate,
			Inserted:    rows,
			CategoryID:  sentinel,
			Now:         now,
		})
		if err != nil {
			return storageError("reconcile balance", err)
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrStorage) {
			err = storageError("unit of work", err)
		}
		logger.Error("import rolled back", "account_id", accountID, "error", err)
		return nil, err
	}

	corrected := reconcile != nil && reconcile.Outcome == ReconcileCorrected
	logger.Info("transactions imported",
		"account_id", accountID,
		"modified_by", modifiedBy,
		"inserted", len(inserted),
		"duplicates", batch.duplicates,
		"reconcile", reconcile.Outcome.String())

	s.publish(ctx, &model.ImportEvent{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		TransactionIDs: transactionIDs(inserted),
		Duplicates:     batch.duplicates,
		Corrected:      corrected,
		ModifiedBy:     modifiedBy,
		OccurredAt:     now.UTC(),
	})

	return &ingestionResult{inserted: inserted, duplicates: batch.duplicates, corrected: corrected}, nil
}

// normalize validates every record and derives fingerprints without I/O.
func (s *IngestionService) normalize(modifiedBy string, accountID int64, raws []model.RawTransaction, now time.Time) (*normalizedBatch, error) {
	batch := &normalizedBatch{
		coordinates: make(map[string]*model.Coordinate),
		oldest:      now,
	}
	seen := make(map[string]struct{}, len(raws))

	for i := range raws {
		raw := &raws[i]
		valueDate, err := ParseValueDate(raw.ValueDate, s.loc)
		if err != nil {
			return nil, fmt.Errorf("transaction %d: %w", i, err)
		}
		if valueDate.Before(batch.oldest) {
			batch.oldest = valueDate
		}

		fp := strings.TrimSpace(Fingerprint(FingerprintInput{
			ValueDate:          raw.ValueDate,
			Amount:             raw.Amount,
			PaymentPurpose:     deref(raw.PaymentPurpose),
			PayeePayerName:     deref(raw.PayeePayerName),
			PayeePayerAcctNo:   deref(raw.PayeePayerAcctNo),
			PayeePayerBankCode: deref(raw.PayeePayerBankCode),
			EntryText:          deref(raw.EntryText),
			AccountID:          accountID,
			PrimaNotaNo:        deref(raw.PrimaNotaNo),
			GVCode:             deref(raw.GVCode),
			BankTransactionID:  trimmed(raw.BankTransactionID),
		}))

		if raw.Coordinates != nil {
			if prev, ok := batch.coordinates[fp]; ok && !sameCoordinate(prev, raw.Coordinates) {
				return nil, fmt.Errorf("%w: fingerprint %s carries conflicting coordinates", ErrDuplicateData, fp)
			}
			c := *raw.Coordinates
			batch.coordinates[fp] = &c
		}

		if _, dup := seen[fp]; dup {
			logger.Warn("fingerprint repeated within batch, keeping first", "account_id", accountID, "fingerprint", fp, "index", i)
			batch.duplicates++
			continue
		}
		seen[fp] = struct{}{}

		gvCode := trimmed(raw.GVCode)
		if gvCode == "" {
			gvCode = defaultGVCode
		}
		batch.pending = append(batch.pending, pendingTransaction{
			raw: raw,
			txn: &model.Transaction{
				AccountID:         accountID,
				Amount:            raw.Amount,
				ValueDate:         valueDate,
				PaymentPurpose:    deref(raw.PaymentPurpose),
				EntryText:         deref(raw.EntryText),
				Type:              deref(raw.Type),
				GVCode:            gvCode,
				PrimaNotaNo:       deref(raw.PrimaNotaNo),
				Fingerprint:       fp,
				BankTransactionID: optional(trimmed(raw.BankTransactionID)),
				ModifiedAt:        now,
				ModifiedBy:        modifiedBy,
				ValidStart:        now,
			},
		})
	}
	return batch, nil
}

func (s *IngestionService) attachCoordinates(ctx context.Context, accountID int64, rows []*model.Transaction, coords map[string]*model.Coordinate) error {
	if len(coords) == 0 {
		return nil
	}
	matched := make(map[string]struct{}, len(coords))
	var out []*model.Coordinate
	for _, row := range rows {
		c, ok := coords[row.Fingerprint]
		if !ok {
			continue
		}
		if _, done := matched[row.Fingerprint]; done {
			continue
		}
		matched[row.Fingerprint] = struct{}{}
		out = append(out, &model.Coordinate{TransactionID: row.ID, Latitude: c.Latitude, Longitude: c.Longitude})
	}
	for fp := range coords {
		if _, ok := matched[fp]; !ok {
			logger.Warn("coordinates dropped, no inserted transaction matches", "account_id", accountID, "fingerprint", fp)
		}
	}
	return s.coordinates.BulkCreate(ctx, out)
}

func (s *IngestionService) publish(ctx context.Context, event *model.ImportEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(context.WithoutCancel(ctx), event); err != nil {
		logger.Warn("import event not published", "event_id", event.ID, "account_id", event.AccountID, "error", err)
	}
}

// AddCashTransactions books a batch to the user's configured cash account.
func (s *IngestionService) AddCashTransactions(ctx context.Context, username string, raws []model.RawTransaction) ([]*model.Transaction, error) {
	if s.cashAccounts == nil {
		return nil, ErrNoCashAccount
	}
	accountID, err := s.cashAccounts.CashAccountFor(ctx, username)
	if err != nil {
		return nil, storageError("load cash account", err)
	}
	if accountID == nil {
		return nil, ErrNoCashAccount
	}
	return s.AddTransactions(ctx, username, *accountID, raws, nil)
}

func sameCoordinate(a, b *model.Coordinate) bool {
	return a.Latitude == b.Latitude && a.Longitude == b.Longitude
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func transactionIDs(txns []*model.Transaction) []int64 {
	ids := make([]int64, len(txns))
	for i, t := range txns {
		ids[i] = t.ID
	}
	return ids
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrDuplicateData):
		return "duplicate"
	default:
		return "storage"
	}
}
