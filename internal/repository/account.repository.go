package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/ledgerkraft/bookkeeping/pkg/pg"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AccountRepository struct {
	*pg.DB
}

func NewAccountRepository(db *pg.DB) *AccountRepository {
	return &AccountRepository{
		db,
	}
}

func (r *AccountRepository) Get(ctx context.Context, id int64) (*model.Account, error) {
	var entity AccountEntity
	err := r.Read(ctx).WithContext(ctx).Where("id = ?", id).First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return toAccountModel(&entity), nil
}

// GetForUpdate reads the account inside the open transaction and, on
// postgres, holds a row lock until it ends. Reconciliations of the same
// account are serialized by it.
func (r *AccountRepository) GetForUpdate(ctx context.Context, id int64) (*model.Account, error) {
	db := r.Write(ctx).WithContext(ctx)
	if pg.InTransaction(ctx) && db.Dialector.Name() == "postgres" {
		db = db.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var entity AccountEntity
	if err := db.Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return toAccountModel(&entity), nil
}

// ListOpen returns accounts that are not deleted and not closed at the given instant.
func (r *AccountRepository) ListOpen(ctx context.Context, at time.Time) ([]*model.Account, error) {
	var entities []*AccountEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("deleted = ?", false).
		Where("(closed_since IS NULL OR closed_since > ?)", at.UTC()).
		Order("name ASC").
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}

	out := make([]*model.Account, len(entities))
	for i, e := range entities {
		out[i] = toAccountModel(e)
	}
	return out, nil
}

// TouchLastDownload moves last_download forward to at. It reports false when
// the stored value is already at or after at.
func (r *AccountRepository) TouchLastDownload(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := r.Write(ctx).WithContext(ctx).
		Model(&AccountEntity{}).
		Where("id = ?", id).
		Where("(last_download IS NULL OR last_download < ?)", at.UTC()).
		Update("last_download", at.UTC())
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	if _, err := r.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

type AccountBalanceRepository struct {
	*pg.DB
}

func NewAccountBalanceRepository(db *pg.DB) *AccountBalanceRepository {
	return &AccountBalanceRepository{
		db,
	}
}

// FindForDay returns the balance row recorded for the account in [dayStart, dayEnd), or nil.
func (r *AccountBalanceRepository) FindForDay(ctx context.Context, accountID int64, dayStart, dayEnd time.Time) (*model.AccountBalance, error) {
	var entities []*AccountBalanceEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("account_id = ?", accountID).
		Where("balance_date >= ? AND balance_date < ?", dayStart.UTC(), dayEnd.UTC()).
		Order("id ASC").
		Limit(1).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return toAccountBalanceModel(entities[0]), nil
}

func (r *AccountBalanceRepository) Create(ctx context.Context, b *model.AccountBalance) (*model.AccountBalance, error) {
	entity := toAccountBalanceEntity(b)
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toAccountBalanceModel(entity), nil
}

type UserPreferenceRepository struct {
	*pg.DB
}

func NewUserPreferenceRepository(db *pg.DB) *UserPreferenceRepository {
	return &UserPreferenceRepository{
		db,
	}
}

// CashAccountFor returns the account a user books cash transactions to, or nil.
func (r *UserPreferenceRepository) CashAccountFor(ctx context.Context, username string) (*int64, error) {
	var entities []*UserPreferenceEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("username = ?", username).
		Limit(1).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0].CashAccountID, nil
}
