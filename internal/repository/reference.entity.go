package repository

import "github.com/ledgerkraft/bookkeeping/internal/model"

type IdentityEntity struct {
	ID            int64   `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	Name          string  `db:"name"           gorm:"column:name;not null;index"`
	BankCode      *string `db:"bank_code"      gorm:"column:bank_code"`
	AccountNumber *string `db:"account_number" gorm:"column:account_number"`
}

func (IdentityEntity) TableName() string {
	return "identities"
}

type CategoryEntity struct {
	ID       int64  `db:"id"        gorm:"primaryKey;autoIncrement;column:id"`
	Name     string `db:"name"      gorm:"column:name;not null"`
	Level    int    `db:"level"     gorm:"column:level;not null;index"`
	ParentID *int64 `db:"parent_id" gorm:"column:parent_id"`
}

func (CategoryEntity) TableName() string {
	return "categories"
}

// CategoryUsageEntity maps well-known usage keys to categories; usage 0 is
// the "no category" sentinel.
type CategoryUsageEntity struct {
	ID         int64  `db:"id"          gorm:"primaryKey;autoIncrement;column:id"`
	Usage      int    `db:"usage"       gorm:"column:usage;not null;uniqueIndex"`
	CategoryID *int64 `db:"category_id" gorm:"column:category_id"`
}

func (CategoryUsageEntity) TableName() string {
	return "category_usages"
}

type TransactionLocationEntity struct {
	ID            int64   `db:"id"             gorm:"primaryKey;autoIncrement;column:id"`
	TransactionID int64   `db:"transaction_id" gorm:"column:transaction_id;not null;uniqueIndex"`
	Latitude      float64 `db:"latitude"       gorm:"column:latitude;not null"`
	Longitude     float64 `db:"longitude"      gorm:"column:longitude;not null"`
}

func (TransactionLocationEntity) TableName() string {
	return "transaction_locations"
}

func toIdentityModel(e *IdentityEntity) *model.Identity {
	return &model.Identity{
		ID:            e.ID,
		Name:          e.Name,
		BankCode:      e.BankCode,
		AccountNumber: e.AccountNumber,
	}
}

func toCategoryModels(entities []*CategoryEntity) []*model.Category {
	out := make([]*model.Category, len(entities))
	for i, e := range entities {
		out[i] = &model.Category{ID: e.ID, Name: e.Name, Level: e.Level, ParentID: e.ParentID}
	}
	return out
}

// Entities lists every table of the schema, in dependency order.
func Entities() []any {
	return []any{
		&AccountEntity{},
		&UserPreferenceEntity{},
		&IdentityEntity{},
		&CategoryEntity{},
		&CategoryUsageEntity{},
		&AccountBalanceEntity{},
		&TransactionEntity{},
		&TransactionLocationEntity{},
	}
}
