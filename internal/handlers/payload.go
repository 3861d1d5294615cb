package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/shopspring/decimal"
)

// oneOrMany accepts a JSON array or a single object.
type oneOrMany[T any] []T

func (o *oneOrMany[T]) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*o = nil
		return nil
	case b[0] == '[':
		var many []T
		if err := json.Unmarshal(b, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*o = oneOrMany[T]{one}
	return nil
}

// categoryToken is a category given as JSON string or number.
type categoryToken struct {
	value *string
}

func (c *categoryToken) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		c.value = nil
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		c.value = &s
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.New("category must be a string or a number")
	}
	s := n.String()
	c.value = &s
	return nil
}

func (c *categoryToken) ptr() *string {
	if c == nil {
		return nil
	}
	return c.value
}

type transactionPayload struct {
	Amount             *int64            `json:"amount"`
	ValueDate          string            `json:"valueDate"`
	PaymentPurpose     *string           `json:"paymentPurpose"`
	EntryText          *string           `json:"entryText"`
	Type               *string           `json:"type"`
	GVCode             *string           `json:"gvCode"`
	PrimaNotaNo        *string           `json:"primaNotaNo"`
	PayeePayerName     *string           `json:"payeePayerName"`
	PayeePayerAcctNo   *string           `json:"payeePayerAcctNo"`
	PayeePayerBankCode *string           `json:"payeePayerBankCode"`
	BankTransactionID  *string           `json:"bankTransactionId"`
	Category           *categoryToken    `json:"category"`
	Coordinates        *model.Coordinate `json:"coordinates"`
}

type addTransactionsRequest struct {
	Transactions oneOrMany[transactionPayload] `json:"transactions"`
	Balance      *model.BalanceAssertion       `json:"balance"`
}

func (p transactionPayload) toRaw(i int) (model.RawTransaction, error) {
	if p.Amount == nil {
		return model.RawTransaction{}, fmt.Errorf("transaction %d: amount is required", i)
	}
	return model.RawTransaction{
		Amount:             *p.Amount,
		ValueDate:          p.ValueDate,
		PaymentPurpose:     p.PaymentPurpose,
		EntryText:          p.EntryText,
		Type:               p.Type,
		GVCode:             p.GVCode,
		PrimaNotaNo:        p.PrimaNotaNo,
		PayeePayerName:     p.PayeePayerName,
		PayeePayerAcctNo:   p.PayeePayerAcctNo,
		PayeePayerBankCode: p.PayeePayerBankCode,
		BankTransactionID:  p.BankTransactionID,
		Category:           p.Category.ptr(),
		Coordinates:        p.Coordinates,
	}, nil
}

// cashPayload is the shape sent by the cash book client. Amount is in major units.
type cashPayload struct {
	Amount          *decimal.Decimal  `json:"Amount"`
	Payee           *string           `json:"Payee"`
	Text            *string           `json:"Text"`
	TransactionDate string            `json:"TransactionDate"`
	Category        *categoryToken    `json:"Category"`
	Coordinates     *model.Coordinate `json:"Coordinates"`
}

const minorUnitExponent = 2

func (p cashPayload) toRaw(i int) (model.RawTransaction, error) {
	if p.Amount == nil {
		return model.RawTransaction{}, fmt.Errorf("transaction %d: Amount is required", i)
	}
	if p.Payee == nil || p.Text == nil {
		return model.RawTransaction{}, fmt.Errorf("transaction %d: Payee and Text are required", i)
	}
	minor := p.Amount.Shift(minorUnitExponent)
	if !minor.IsInteger() {
		return model.RawTransaction{}, fmt.Errorf("transaction %d: Amount %s has more than %d decimals", i, p.Amount.String(), minorUnitExponent)
	}
	return model.RawTransaction{
		Amount:         minor.IntPart(),
		ValueDate:      p.TransactionDate,
		PaymentPurpose: p.Text,
		PayeePayerName: p.Payee,
		Category:       p.Category.ptr(),
		Coordinates:    p.Coordinates,
	}, nil
}
