package repository

import (
	"context"
	"errors"

	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/ledgerkraft/bookkeeping/pkg/pg"
	"gorm.io/gorm"
)

// noCategoryUsage is the usage key of the "no category" sentinel.
const noCategoryUsage = 0

type IdentityRepository struct {
	*pg.DB
}

func NewIdentityRepository(db *pg.DB) *IdentityRepository {
	return &IdentityRepository{
		db,
	}
}

// FindByName matches the display name exactly.
func (r *IdentityRepository) FindByName(ctx context.Context, name string) (*model.Identity, error) {
	var entity IdentityEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("name = ?", name).
		Order("id ASC").
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, err
	}
	return toIdentityModel(&entity), nil
}

func (r *IdentityRepository) Create(ctx context.Context, identity *model.Identity) (*model.Identity, error) {
	entity := &IdentityEntity{
		Name:          identity.Name,
		BankCode:      identity.BankCode,
		AccountNumber: identity.AccountNumber,
	}
	if err := r.Write(ctx).WithContext(ctx).Create(entity).Error; err != nil {
		return nil, err
	}
	return toIdentityModel(entity), nil
}

type CategoryRepository struct {
	*pg.DB
}

func NewCategoryRepository(db *pg.DB) *CategoryRepository {
	return &CategoryRepository{
		db,
	}
}

func (r *CategoryRepository) ListByLevel(ctx context.Context, level int) ([]*model.Category, error) {
	var entities []*CategoryEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("level = ?", level).
		Order("id ASC").
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	return toCategoryModels(entities), nil
}

// NoCategoryID returns the sentinel category id, or nil if none is configured.
func (r *CategoryRepository) NoCategoryID(ctx context.Context) (*int64, error) {
	var entities []*CategoryUsageEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("usage = ? AND category_id IS NOT NULL", noCategoryUsage).
		Limit(1).
		Find(&entities).Error
	if err != nil {
		return nil, err
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return entities[0].CategoryID, nil
}

type CoordinateRepository struct {
	*pg.DB
}

func NewCoordinateRepository(db *pg.DB) *CoordinateRepository {
	return &CoordinateRepository{
		db,
	}
}

func (r *CoordinateRepository) BulkCreate(ctx context.Context, coords []*model.Coordinate) error {
	if len(coords) == 0 {
		return nil
	}
	entities := make([]*TransactionLocationEntity, len(coords))
	for i, c := range coords {
		entities[i] = &TransactionLocationEntity{
			TransactionID: c.TransactionID,
			Latitude:      c.Latitude,
			Longitude:     c.Longitude,
		}
	}
	return r.Write(ctx).WithContext(ctx).CreateInBatches(entities, insertBatchSize).Error
}

func (r *CoordinateRepository) FindByTransaction(ctx context.Context, transactionID int64) (*model.Coordinate, error) {
	var entities []*TransactionLocationEntity
	err := r.Read(ctx).WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Limit(1).
		Find(&entities).Error
	if err != nil || len(entities) == 0 {
		return nil, err
	}
	e := entities[0]
	return &model.Coordinate{TransactionID: e.TransactionID, Latitude: e.Latitude, Longitude: e.Longitude}, nil
}
