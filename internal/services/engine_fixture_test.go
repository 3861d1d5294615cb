package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/ledgerkraft/bookkeeping/internal/repository"
	"github.com/ledgerkraft/bookkeeping/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var fixedNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

type recordingPublisher struct {
	mu     sync.Mutex
	events []*model.ImportEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event *model.ImportEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *recordingPublisher) Events() []*model.ImportEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*model.ImportEvent(nil), p.events...)
}

type failingCoordinates struct{}

func (failingCoordinates) BulkCreate(context.Context, []*model.Coordinate) error {
	return errors.New("disk full")
}

type engineEnv struct {
	raw        *gorm.DB
	db         *pg.DB
	svc        *IngestionService
	reconciler *BalanceReconciler
	publisher  *recordingPublisher

	accountID  int64
	noCategory int64
	food       int64
	groceries  int64
}

type engineOption func(*engineSetup)

type engineSetup struct {
	coordinates CoordinateStore
}

func withCoordinateStore(c CoordinateStore) engineOption {
	return func(s *engineSetup) { s.coordinates = c }
}

func newEngineEnv(t *testing.T, opts ...engineOption) *engineEnv {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, gdb.AutoMigrate(repository.Entities()...))

	env := &engineEnv{raw: gdb, db: pg.Wrap(gdb), publisher: &recordingPublisher{}}

	account := &repository.AccountEntity{Name: "Giro", Currency: "EUR", StartBalance: 1000}
	require.NoError(t, gdb.Create(account).Error)
	env.accountID = account.ID

	none := &repository.CategoryEntity{Name: "None", Level: model.CategoryLevelParent}
	food := &repository.CategoryEntity{Name: "Food", Level: model.CategoryLevelParent}
	require.NoError(t, gdb.Create(none).Error)
	require.NoError(t, gdb.Create(food).Error)
	groceries := &repository.CategoryEntity{Name: "Groceries", Level: model.CategoryLevelChild, ParentID: &food.ID}
	require.NoError(t, gdb.Create(groceries).Error)
	require.NoError(t, gdb.Create(&repository.CategoryUsageEntity{Usage: 0, CategoryID: &none.ID}).Error)
	env.noCategory, env.food, env.groceries = none.ID, food.ID, groceries.ID

	setup := &engineSetup{coordinates: repository.NewCoordinateRepository(env.db)}
	for _, opt := range opts {
		opt(setup)
	}

	transactions := repository.NewTransactionRepository(env.db)
	env.reconciler = NewBalanceReconciler(
		repository.NewAccountRepository(env.db),
		transactions,
		repository.NewAccountBalanceRepository(env.db),
		time.UTC,
	)
	env.svc = NewIngestionService(
		env.db,
		transactions,
		setup.coordinates,
		repository.NewCategoryRepository(env.db),
		NewNoCategoryCache(),
		NewIdentityResolver(repository.NewIdentityRepository(env.db)),
		env.reconciler,
		WithClock(func() time.Time { return fixedNow }),
		WithLocation(time.UTC),
		WithPublisher(env.publisher),
		WithCashAccounts(repository.NewUserPreferenceRepository(env.db)),
	)
	return env
}

func (e *engineEnv) count(t *testing.T, entity any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.raw.Model(entity).Count(&n).Error)
	return n
}

func (e *engineEnv) storedTransactions(t *testing.T) []*repository.TransactionEntity {
	t.Helper()
	var rows []*repository.TransactionEntity
	require.NoError(t, e.raw.Order("id ASC").Find(&rows).Error)
	return rows
}

func rawTxn(amount int64, date, purpose string) model.RawTransaction {
	return model.RawTransaction{
		Amount:         amount,
		ValueDate:      date,
		PaymentPurpose: ptr(purpose),
	}
}
