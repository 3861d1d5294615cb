package model

import "time"

type Account struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Currency      string     `json:"currency"`
	StartBalance  int64      `json:"startBalance"`
	IBAN          string     `json:"iban,omitempty"`
	BankCode      string     `json:"bankCode,omitempty"`
	AccountNumber string     `json:"accountNumber,omitempty"`
	Owner         string     `json:"owner,omitempty"`
	ClosedSince   *time.Time `json:"closedSince"`
	LastDownload  *time.Time `json:"lastDownload"`
	Deleted       bool       `json:"deleted"`
}

// IsOpen reports whether the account is listed at the given instant.
func (a *Account) IsOpen(at time.Time) bool {
	if a.Deleted {
		return false
	}
	return a.ClosedSince == nil || a.ClosedSince.After(at)
}

type AccountBalance struct {
	ID           int64     `json:"id"`
	AccountID    int64     `json:"idAccount"`
	BalanceDate  time.Time `json:"balanceDate"`
	Balance      int64     `json:"balance"`
	DownloadedAt time.Time `json:"downloaded"`
}
