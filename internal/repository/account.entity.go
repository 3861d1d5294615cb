package repository

import (
	"time"

	"github.com/ledgerkraft/bookkeeping/internal/model"
)

type AccountEntity struct {
	ID            int64      `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	Name          string     `db:"name"           gorm:"column:name;not null"`
	Currency      string     `db:"currency"       gorm:"column:currency;not null"`
	StartBalance  int64      `db:"start_balance"  gorm:"column:start_balance;not null"`
	IBAN          string     `db:"iban"           gorm:"column:iban"`
	BankCode      string     `db:"bank_code"      gorm:"column:bank_code"`
	AccountNumber string     `db:"account_number" gorm:"column:account_number"`
	Owner         string     `db:"owner"          gorm:"column:owner;index"`
	ClosedSince   *time.Time `db:"closed_since"   gorm:"column:closed_since"`
	LastDownload  *time.Time `db:"last_download"  gorm:"column:last_download"`
	Deleted       bool       `db:"deleted"        gorm:"column:deleted;not null"`
}

func (AccountEntity) TableName() string {
	return "accounts"
}

type AccountBalanceEntity struct {
	ID           int64     `db:"id"            gorm:"primaryKey;autoIncrement;column:id"`
	AccountID    int64     `db:"account_id"    gorm:"column:account_id;not null;index:idx_account_balances_account_date,priority:1"`
	BalanceDate  time.Time `db:"balance_date"  gorm:"column:balance_date;not null;index:idx_account_balances_account_date,priority:2"`
	Balance      int64     `db:"balance"       gorm:"column:balance;not null"`
	DownloadedAt time.Time `db:"downloaded_at" gorm:"column:downloaded_at;not null"`
}

func (AccountBalanceEntity) TableName() string {
	return "account_balances"
}

type UserPreferenceEntity struct {
	Username      string `db:"username"        gorm:"primaryKey;column:username"`
	CashAccountID *int64 `db:"cash_account_id" gorm:"column:cash_account_id"`
}

func (UserPreferenceEntity) TableName() string {
	return "user_preferences"
}

func toAccountModel(e *AccountEntity) *model.Account {
	if e == nil {
		return nil
	}
	return &model.Account{
		ID:            e.ID,
		Name:          e.Name,
		Currency:      e.Currency,
		StartBalance:  e.StartBalance,
		IBAN:          e.IBAN,
		BankCode:      e.BankCode,
		AccountNumber: e.AccountNumber,
		Owner:         e.Owner,
		ClosedSince:   e.ClosedSince,
		LastDownload:  e.LastDownload,
		Deleted:       e.Deleted,
	}
}

func toAccountBalanceEntity(m *model.AccountBalance) *AccountBalanceEntity {
	return &AccountBalanceEntity{
		ID:           m.ID,
		AccountID:    m.AccountID,
		BalanceDate:  m.BalanceDate.UTC(),
		Balance:      m.Balance,
		DownloadedAt: m.DownloadedAt.UTC(),
	}
}

func toAccountBalanceModel(e *AccountBalanceEntity) *model.AccountBalance {
	return &model.AccountBalance{
		ID:           e.ID,
		AccountID:    e.AccountID,
		BalanceDate:  e.BalanceDate.UTC(),
		Balance:      e.Balance,
		DownloadedAt: e.DownloadedAt.UTC(),
	}
}
