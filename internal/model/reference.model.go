package model

// Identity is a resolved payee or payer.
type Identity struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	BankCode      *string `json:"bankCode"`
	AccountNumber *string `json:"accountNumber"`
}

const (
	CategoryLevelParent = 1
	CategoryLevelChild  = 2
)

type Category struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Level    int    `json:"level"`
	ParentID *int64 `json:"idParent"`
}

// Coordinate is the optional geo position attached to a transaction.
type Coordinate struct {
	TransactionID int64   `json:"-"`
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
}
