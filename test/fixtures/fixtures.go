package fixtures

import (
	"encoding/json"
	"time"
)

const DateLayout = "2006-01-02"

// Statement is the JSON body of an account import.
type Statement struct {
	Transactions []StatementLine `json:"transactions"`
	Balance      *Balance        `json:"balance,omitempty"`
}

type StatementLine struct {
	Amount            int64        `json:"amount"`
	ValueDate         string       `json:"valueDate"`
	PaymentPurpose    string       `json:"paymentPurpose,omitempty"`
	EntryText         string       `json:"entryText,omitempty"`
	GVCode            string       `json:"gvCode,omitempty"`
	PayeePayerName    string       `json:"payeePayerName,omitempty"`
	PayeePayerAcctNo  string       `json:"payeePayerAcctNo,omitempty"`
	PayeePayerBank    string       `json:"payeePayerBankCode,omitempty"`
	BankTransactionID string       `json:"bankTransactionId,omitempty"`
	Category          any          `json:"category,omitempty"`
	Coordinates       *Coordinates `json:"coordinates,omitempty"`
}

type Balance struct {
	Balance     int64  `json:"balance"`
	BalanceDate string `json:"balanceDate"`
}

type Coordinates struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// CashLine is one entry of a cash import; Amount is in major units.
type CashLine struct {
	Amount          string `json:"Amount"`
	Payee           string `json:"Payee"`
	Text            string `json:"Text"`
	TransactionDate string `json:"TransactionDate"`
	Category        any    `json:"Category,omitempty"`
}

// DaysAgo formats the calendar day n days before now.
func DaysAgo(n int) string {
	return time.Now().UTC().AddDate(0, 0, -n).Format(DateLayout)
}

// MonthlyStatement is a small statement with a salary, rent and groceries.
func MonthlyStatement() Statement {
	return Statement{Transactions: []StatementLine{
		{Amount: 250000, ValueDate: DaysAgo(3), PaymentPurpose: "Salary", EntryText: "GUTSCHRIFT", PayeePayerName: "ACME GmbH", PayeePayerAcctNo: "99887766", PayeePayerBank: "10020030"},
		{Amount: -95000, ValueDate: DaysAgo(2), PaymentPurpose: "Rent", EntryText: "DAUERAUFTRAG", PayeePayerName: "Landlord", PayeePayerAcctNo: "12345", PayeePayerBank: "10010010"},
		{Amount: -4250, ValueDate: DaysAgo(1), PaymentPurpose: "Groceries", EntryText: "KARTENZAHLUNG", Category: "Food:Groceries", Coordinates: &Coordinates{Lat: 52.52, Lon: 13.405}},
	}}
}

func (s Statement) WithBalance(balance int64, date string) Statement {
	s.Balance = &Balance{Balance: balance, BalanceDate: date}
	return s
}

func (s Statement) Sum() int64 {
	var total int64
	for _, l := range s.Transactions {
		total += l.Amount
	}
	return total
}

func JSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
