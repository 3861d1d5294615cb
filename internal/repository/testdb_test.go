package repository

import (
	"context"
	"testing"
	"time"

	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/ledgerkraft/bookkeeping/pkg/pg"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type testDB struct {
	*pg.DB
	rawDB *gorm.DB
}

func setupTestDB(t *testing.T) *testDB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Entities()...))

	return &testDB{
		DB:    pg.Wrap(db),
		rawDB: db,
	}
}

func (db *testDB) seedAccount(t *testing.T, startBalance int64) int64 {
	t.Helper()
	e := &AccountEntity{Name: "Giro", Currency: "EUR", StartBalance: startBalance}
	require.NoError(t, db.rawDB.Create(e).Error)
	return e.ID
}

func ptr[T any](v T) *T {
	return &v
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func newTxn(accountID int64, amount int64, date time.Time, fp string) *model.Transaction {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &model.Transaction{
		AccountID:   accountID,
		Amount:      amount,
		ValueDate:   date,
		GVCode:      "000",
		Fingerprint: fp,
		ModifiedAt:  now,
		ModifiedBy:  "tester",
		ValidStart:  now,
	}
}

var bg = context.Background()
