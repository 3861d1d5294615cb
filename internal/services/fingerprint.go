package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// FingerprintInput carries the fields a fingerprint is derived from.
// Missing optional fields are empty strings.
type FingerprintInput struct {
	ValueDate          string
	Amount             int64
	PaymentPurpose     string
	PayeePayerName     string
	PayeePayerAcctNo   string
	PayeePayerBankCode string
	EntryText          string
	AccountID          int64
	PrimaNotaNo        string
	GVCode             string
	BankTransactionID  string
}

// Fingerprint returns the bank transaction id when present, otherwise the
// hex SHA-256 over the normalized fields in fixed order.
func Fingerprint(in FingerprintInput) string {
	if in.BankTransactionID != "" {
		return in.BankTransactionID
	}

	h := sha256.New()
	for _, part := range []string{
		in.ValueDate,
		strconv.FormatInt(in.Amount, 10),
		strings.ToLower(in.PaymentPurpose),
		strings.ToLower(in.PayeePayerName),
		in.PayeePayerAcctNo,
		in.PayeePayerBankCode,
		strings.ToLower(in.EntryText),
		strconv.FormatInt(in.AccountID, 10),
		in.PrimaNotaNo,
		in.GVCode,
	} {
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

var zonedLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05-0700",
}

var naiveLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseValueDate parses a value date. Layouts without a zone are read in loc.
func ParseValueDate(raw string, loc *time.Location) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, validationErrorf("value date is required")
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, validationErrorf("unparseable value date %q", raw)
}

// startOfDay returns midnight of t's calendar day in loc.
func startOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	return a.In(loc).Format(time.DateOnly) == b.In(loc).Format(time.DateOnly)
}
