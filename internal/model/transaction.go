package model

import (
	"strings"
	"time"
)

// Transaction is a stored ledger row. Amounts are signed minor units.
// A row is current while ValidEnd is nil and Deleted is false.
type Transaction struct {
	ID                    int64      `json:"id"`
	AccountID             int64      `json:"idAccount"`
	LinkedAccountID       *int64     `json:"idLinkedAccount,omitempty"`
	Amount                int64      `json:"amount"`
	ValueDate             time.Time  `json:"valueDate"`
	PaymentPurpose        string     `json:"paymentPurpose"`
	EntryText             string     `json:"entryText"`
	Type                  string     `json:"type"`
	GVCode                string     `json:"gvCode"`
	PrimaNotaNo           string     `json:"primaNotaNo"`
	CategoryID            *int64     `json:"idCategory"`
	IdentityID            *int64     `json:"idPayeePayer"`
	PayeePayerName        *string    `json:"payeePayerName"`
	PayeePayerAcctNo      *string    `json:"payeePayerAcctNo"`
	PayeePayerBankCode    *string    `json:"payeePayerBankCode"`
	Fingerprint           string     `json:"fingerprint"`
	BankTransactionID     *string    `json:"bankTransactionId,omitempty"`
	AccountBalanceID      *int64     `json:"idAccountBalance"`
	OriginalTransactionID *int64     `json:"idOriginalTransaction"`
	ModifiedAt            time.Time  `json:"modified"`
	ModifiedBy            string     `json:"modifiedBy"`
	ValidStart            time.Time  `json:"valid_start"`
	ValidEnd              *time.Time `json:"valid_end"`
	Deleted               bool       `json:"deleted"`
}

// RawTransaction is one incoming record of an import batch, before
// normalization. Optional text fields are nil when the caller omitted them.
type RawTransaction struct {
	Amount             int64
	ValueDate          string
	PaymentPurpose     *string
	EntryText          *string
	Type               *string
	GVCode             *string
	PrimaNotaNo        *string
	PayeePayerName     *string
	PayeePayerAcctNo   *string
	PayeePayerBankCode *string
	BankTransactionID  *string
	Category           *string
	Coordinates        *Coordinate
}

// BalanceAssertion is the externally reported balance of an account at a date.
// Balance is nil when the caller left it out, which is not the same as zero.
type BalanceAssertion struct {
	Balance     *int64 `json:"balance"`
	BalanceDate string `json:"balanceDate"`
}

func NewBalanceAssertion(balance int64, date string) *BalanceAssertion {
	return &BalanceAssertion{Balance: &balance, BalanceDate: date}
}

// Complete reports whether both the amount and the date were supplied.
func (a *BalanceAssertion) Complete() bool {
	return a.Balance != nil && strings.TrimSpace(a.BalanceDate) != ""
}

// TransactionFilter controls listing of current transactions.
type TransactionFilter struct {
	AccountIDs []int64
	Limit      int
}
