package model

import "time"

// ImportEvent is emitted after an import committed at least one row.
type ImportEvent struct {
	ID             string    `json:"id"`
	AccountID      int64     `json:"accountId"`
	TransactionIDs []int64   `json:"transactionIds"`
	Duplicates     int       `json:"duplicates"`
	Corrected      bool      `json:"corrected"`
	ModifiedBy     string    `json:"modifiedBy"`
	OccurredAt     time.Time `json:"occurredAt"`
}
