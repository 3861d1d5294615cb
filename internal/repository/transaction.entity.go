package repository

import (
	"time"

	"github.com/ledgerkraft/bookkeeping/internal/model"
)

type TransactionEntity struct {
	ID                    int64      `db:"id"                      gorm:"primaryKey;autoIncrement;column:id"`
	AccountID             int64      `db:"account_id"              gorm:"column:account_id;not null;index:idx_transactions_account_date,priority:1"`
	LinkedAccountID       *int64     `db:"linked_account_id"       gorm:"column:linked_account_id;index"`
	Amount                int64      `db:"amount"                  gorm:"column:amount;not null"`
	ValueDate             time.Time  `db:"value_date"              gorm:"column:value_date;not null;index:idx_transactions_account_date,priority:2"`
	PaymentPurpose        string     `db:"payment_purpose"         gorm:"column:payment_purpose;not null"`
	EntryText             string     `db:"entry_text"              gorm:"column:entry_text;not null"`
	Type                  string     `db:"type"                    gorm:"column:type;not null"`
	GVCode                string     `db:"gv_code"                 gorm:"column:gv_code;not null"`
	PrimaNotaNo           string     `db:"prima_nota_no"           gorm:"column:prima_nota_no;not null"`
	CategoryID            *int64     `db:"category_id"             gorm:"column:category_id"`
	IdentityID            *int64     `db:"identity_id"             gorm:"column:identity_id"`
	Fingerprint           *string    `db:"fingerprint"             gorm:"column:fingerprint;index"`
	BankTransactionID     *string    `db:"bank_transaction_id"     gorm:"column:bank_transaction_id"`
	AccountBalanceID      *int64     `db:"account_balance_id"      gorm:"column:account_balance_id"`
	OriginalTransactionID *int64     `db:"original_transaction_id" gorm:"column:original_transaction_id"`
	ModifiedAt            time.Time  `db:"modified_at"             gorm:"column:modified_at;not null"`
	ModifiedBy            string     `db:"modified_by"             gorm:"column:modified_by;not null"`
	ValidStart            time.Time  `db:"valid_start"             gorm:"column:valid_start;not null"`
	ValidEnd              *time.Time `db:"valid_end"               gorm:"column:valid_end"`
	Deleted               bool       `db:"deleted"                 gorm:"column:deleted;not null"`
}

func (TransactionEntity) TableName() string {
	return "transactions"
}

// transactionRow is a transaction joined with its payee/payer identity.
type transactionRow struct {
	TransactionEntity  `gorm:"embedded"`
	PayeePayerName     *string `gorm:"column:payee_payer_name"`
	PayeePayerBankCode *string `gorm:"column:payee_payer_bank_code"`
	PayeePayerAcctNo   *string `gorm:"column:payee_payer_acct_no"`
}

func toTransactionEntity(m *model.Transaction) *TransactionEntity {
	if m == nil {
		return nil
	}
	var fp *string
	if m.Fingerprint != "" {
		v := m.Fingerprint
		fp = &v
	}
	return &TransactionEntity{
		ID:                    m.ID,
		AccountID:             m.AccountID,
		LinkedAccountID:       m.LinkedAccountID,
		Amount:                m.Amount,
		ValueDate:             m.ValueDate.UTC(),
		PaymentPurpose:        m.PaymentPurpose,
		EntryText:             m.EntryText,
		Type:                  m.Type,
		GVCode:                m.GVCode,
		PrimaNotaNo:           m.PrimaNotaNo,
		CategoryID:            m.CategoryID,
		IdentityID:            m.IdentityID,
		Fingerprint:           fp,
		BankTransactionID:     m.BankTransactionID,
		AccountBalanceID:      m.AccountBalanceID,
		OriginalTransactionID: m.OriginalTransactionID,
		ModifiedAt:            m.ModifiedAt.UTC(),
		ModifiedBy:            m.ModifiedBy,
		ValidStart:            m.ValidStart.UTC(),
		ValidEnd:              m.ValidEnd,
		Deleted:               m.Deleted,
	}
}

func toTransactionModel(e *TransactionEntity) *model.Transaction {
	if e == nil {
		return nil
	}
	m := &model.Transaction{
		ID:                    e.ID,
		AccountID:             e.AccountID,
		LinkedAccountID:       e.LinkedAccountID,
		Amount:                e.Amount,
		ValueDate:             e.ValueDate.UTC(),
		PaymentPurpose:        e.PaymentPurpose,
		EntryText:             e.EntryText,
		Type:                  e.Type,
		GVCode:                e.GVCode,
		PrimaNotaNo:           e.PrimaNotaNo,
		CategoryID:            e.CategoryID,
		IdentityID:            e.IdentityID,
		BankTransactionID:     e.BankTransactionID,
		AccountBalanceID:      e.AccountBalanceID,
		OriginalTransactionID: e.OriginalTransactionID,
		ModifiedAt:            e.ModifiedAt.UTC(),
		ModifiedBy:            e.ModifiedBy,
		ValidStart:            e.ValidStart.UTC(),
		ValidEnd:              e.ValidEnd,
		Deleted:               e.Deleted,
	}
	if e.Fingerprint != nil {
		m.Fingerprint = *e.Fingerprint
	}
	return m
}

func toTransactionModels(entities []*TransactionEntity) []*model.Transaction {
	if entities == nil {
		return nil
	}
	models := make([]*model.Transaction, len(entities))
	for i, e := range entities {
		models[i] = toTransactionModel(e)
	}
	return models
}

func rowToTransactionModel(r *transactionRow) *model.Transaction {
	m := toTransactionModel(&r.TransactionEntity)
	m.PayeePayerName = r.PayeePayerName
	m.PayeePayerBankCode = r.PayeePayerBankCode
	m.PayeePayerAcctNo = r.PayeePayerAcctNo
	return m
}
