package repository

import (
	"testing"
	"time"

	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccountRepository_ListOpen(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db.DB)
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, db.rawDB.Create([]*AccountEntity{
		{Name: "b-open", Currency: "EUR"},
		{Name: "a-closing-later", Currency: "EUR", ClosedSince: ptr(now.AddDate(0, 1, 0))},
		{Name: "closed", Currency: "EUR", ClosedSince: ptr(now.AddDate(0, -1, 0))},
		{Name: "deleted", Currency: "EUR", Deleted: true},
	}).Error)

	accounts, err := repo.ListOpen(bg, now)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "a-closing-later", accounts[0].Name)
	assert.Equal(t, "b-open", accounts[1].Name)
}

func TestAccountRepository_Get(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db.DB)
	id := db.seedAccount(t, 1000)

	acct, err := repo.Get(bg, id)
	require.NoError(t, err)
	assert.EqualValues(t, 1000, acct.StartBalance)

	acct, err = repo.GetForUpdate(bg, id)
	require.NoError(t, err)
	assert.Equal(t, id, acct.ID)

	_, err = repo.Get(bg, 404)
	assert.ErrorIs(t, err, ErrAccountNotFound)
	_, err = repo.GetForUpdate(bg, 404)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountRepository_TouchLastDownload(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountRepository(db.DB)
	id := db.seedAccount(t, 0)
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	moved, err := repo.TouchLastDownload(bg, id, at)
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = repo.TouchLastDownload(bg, id, at.Add(-time.Hour))
	require.NoError(t, err)
	assert.False(t, moved)

	acct, err := repo.Get(bg, id)
	require.NoError(t, err)
	require.NotNil(t, acct.LastDownload)
	assert.True(t, acct.LastDownload.Equal(at))

	_, err = repo.TouchLastDownload(bg, 404, at)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestAccountBalanceRepository_FindForDay(t *testing.T) {
	db := setupTestDB(t)
	repo := NewAccountBalanceRepository(db.DB)
	acct := db.seedAccount(t, 0)

	created, err := repo.Create(bg, &model.AccountBalance{
		AccountID:    acct,
		BalanceDate:  day("2024-04-05").Add(9 * time.Hour),
		Balance:      850,
		DownloadedAt: day("2024-04-06"),
	})
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	found, err := repo.FindForDay(bg, acct, day("2024-04-05"), day("2024-04-06"))
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, created.ID, found.ID)
	assert.EqualValues(t, 850, found.Balance)

	found, err = repo.FindForDay(bg, acct, day("2024-04-06"), day("2024-04-07"))
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestUserPreferenceRepository_CashAccountFor(t *testing.T) {
	db := setupTestDB(t)
	repo := NewUserPreferenceRepository(db.DB)
	acct := db.seedAccount(t, 0)
	require.NoError(t, db.rawDB.Create(&UserPreferenceEntity{Username: "alice", CashAccountID: &acct}).Error)
	require.NoError(t, db.rawDB.Create(&UserPreferenceEntity{Username: "bob"}).Error)

	id, err := repo.CashAccountFor(bg, "alice")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, acct, *id)

	id, err = repo.CashAccountFor(bg, "bob")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = repo.CashAccountFor(bg, "carol")
	require.NoError(t, err)
	assert.Nil(t, id)
}
