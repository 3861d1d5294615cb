package helpers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/ledgerkraft/bookkeeping/internal/repository"
	"github.com/ledgerkraft/bookkeeping/pkg/pg"
	"github.com/ledgerkraft/bookkeeping/pkg/redis"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// TestDB is an in-memory sqlite schema behind the pg read/write wrapper.
type TestDB struct {
	*pg.DB
	Raw *gorm.DB
}

func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// one connection, or each one would see its own empty memory database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(repository.Entities()...))
	return &TestDB{DB: pg.Wrap(db), Raw: db}
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)

	// the adapter registry is process wide
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &redis.Options{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = adapter.Close() })
	return mr, adapter
}

func CreateTestAccount(t *testing.T, db *TestDB, name string, startBalance int64) *repository.AccountEntity {
	t.Helper()
	acct := &repository.AccountEntity{Name: name, Currency: "EUR", StartBalance: startBalance}
	require.NoError(t, db.Raw.Create(acct).Error)
	return acct
}

// CreateNoCategory seeds the "None" category and points usage 0 at it.
func CreateNoCategory(t *testing.T, db *TestDB) int64 {
	t.Helper()
	none := CreateTestCategory(t, db, "None", nil)
	require.NoError(t, db.Raw.Create(&repository.CategoryUsageEntity{Usage: 0, CategoryID: &none.ID}).Error)
	return none.ID
}

// CreateTestCategory creates a top level category, or a child of parent.
func CreateTestCategory(t *testing.T, db *TestDB, name string, parent *int64) *repository.CategoryEntity {
	t.Helper()
	c := &repository.CategoryEntity{Name: name, Level: model.CategoryLevelParent, ParentID: parent}
	if parent != nil {
		c.Level = model.CategoryLevelChild
	}
	require.NoError(t, db.Raw.Create(c).Error)
	return c
}

func SetCashAccount(t *testing.T, db *TestDB, username string, accountID int64) {
	t.Helper()
	require.NoError(t, db.Raw.Create(&repository.UserPreferenceEntity{Username: username, CashAccountID: &accountID}).Error)
}

// CurrentTransactions returns the live rows of an account, oldest id first.
func CurrentTransactions(t *testing.T, db *TestDB, accountID int64) []*repository.TransactionEntity {
	t.Helper()
	var rows []*repository.TransactionEntity
	require.NoError(t, db.Raw.
		Where("account_id = ? AND valid_end IS NULL AND deleted = ?", accountID, false).
		Order("id").
		Find(&rows).Error)
	return rows
}

func GetAccount(t *testing.T, db *TestDB, id int64) *repository.AccountEntity {
	t.Helper()
	var acct repository.AccountEntity
	require.NoError(t, db.Raw.First(&acct, id).Error)
	return &acct
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
