package repository

import (
	"context"
	"time"

	"github.com/ledgerkraft/bookkeeping/internal/model"
	"github.com/ledgerkraft/bookkeeping/pkg/pg"
	"gorm.io/gorm"
)

const (
	defaultListLimit = 20
	maxListLimit     = 500
	insertBatchSize  = 200
)

type TransactionRepository struct {
	*pg.DB
}

func NewTransactionRepository(db *pg.DB) *TransactionRepository {
	return &TransactionRepository{
		db,
	}
}

// current restricts q to rows that are neither retired nor deleted.
func current(q *gorm.DB, table string) *gorm.DB {
	return q.Where(table+".valid_end IS NULL AND "+table+".deleted = ?", false)
}

// FindCurrentSince returns the account's current fingerprinted rows dated at or after since.
func (r *TransactionRepository) FindCurrentSince(ctx context.Context, accountID int64, since time.Time) ([]*model.Transaction, error) {
	var entities []*TransactionEntity
	q := current(r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{}), "transactions").
		Where("account_id = ?", accountID).
		Where("fingerprint IS NOT NULL").
		Where("value_date >= ?", since.UTC())

	if err := q.Find(&entities).Error; err != nil {
		return nil, err
	}
	return toTransactionModels(entities), nil
}

// BulkCreate inserts the rows, assigns their ids, and makes every row the root
// of its own correction chain.
func (r *TransactionRepository) BulkCreate(ctx context.Context, txns []*model.Transaction) error {
	if len(txns) == 0 {
		return nil
	}
	entities := make([]*TransactionEntity, len(txns))
	for i, t := range txns {
		entities[i] = toTransactionEntity(t)
	}
	db := r.Write(ctx).WithContext(ctx)
	if err := db.CreateInBatches(entities, insertBatchSize).Error; err != nil {
		return err
	}

	ids := make([]int64, len(entities))
	for i, e := range entities {
		ids[i] = e.ID
		txns[i].ID = e.ID
		id := e.ID
		txns[i].OriginalTransactionID = &id
	}
	return db.Model(&TransactionEntity{}).
		Where("id IN ?", ids).
		Update("original_transaction_id", gorm.Expr("id")).Error
}

// Create inserts a single row rooted at itself.
func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	if err := r.BulkCreate(ctx, []*model.Transaction{txn}); err != nil {
		return nil, err
	}
	return txn, nil
}

// FindInserted re-reads rows of this import, joined with identity display
// data, newest first.
func (r *TransactionRepository) FindInserted(ctx context.Context, accountID int64, ids []int64, fingerprints []string) ([]*model.Transaction, error) {
	if len(ids) == 0 || len(fingerprints) == 0 {
		return nil, nil
	}
	var rows []*transactionRow
	q := current(r.joinedQuery(ctx), "transactions").
		Where("transactions.account_id = ?", accountID).
		Where("transactions.id IN ?", ids).
		Where("transactions.fingerprint IN ?", fingerprints).
		Order("transactions.value_date DESC").
		Order("transactions.id DESC")

	if err := q.Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rowsToModels(rows), nil
}

func (r *TransactionRepository) LinkBalance(ctx context.Context, transactionID, balanceID int64) error {
	res := r.Write(ctx).WithContext(ctx).
		Model(&TransactionEntity{}).
		Where("id = ?", transactionID).
		Update("account_balance_id", balanceID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTransactionNotFound
	}
	return nil
}

// SumAmounts returns the sums of current amounts dated before the cut-off,
// booked on the account and booked against it as linked account.
func (r *TransactionRepository) SumAmounts(ctx context.Context, accountID int64, before time.Time) (own int64, linked int64, err error) {
	var res struct {
		Total int64
	}
	sum := func(column string) (int64, error) {
		q := current(r.Read(ctx).WithContext(ctx).Model(&TransactionEntity{}), "transactions").
			Select("CAST(COALESCE(SUM(amount), 0) AS BIGINT) AS total").
			Where(column+" = ?", accountID).
			Where("value_date < ?", before.UTC())
		if err := q.Scan(&res).Error; err != nil {
			return 0, err
		}
		return res.Total, nil
	}

	if own, err = sum("account_id"); err != nil {
		return 0, 0, err
	}
	if linked, err = sum("linked_account_id"); err != nil {
		return 0, 0, err
	}
	return own, linked, nil
}

// List returns current rows newest first.
func (r *TransactionRepository) List(ctx context.Context, f model.TransactionFilter) ([]*model.Transaction, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	q := current(r.joinedQuery(ctx), "transactions")
	if len(f.AccountIDs) > 0 {
		q = q.Where("transactions.account_id IN ?", f.AccountIDs)
	}

	var rows []*transactionRow
	err := q.Order("transactions.value_date DESC").
		Order("transactions.id DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToModels(rows), nil
}

func (r *TransactionRepository) joinedQuery(ctx context.Context) *gorm.DB {
	return r.Read(ctx).WithContext(ctx).
		Table("transactions").
		Select(`transactions.*,
			identities.name           AS payee_payer_name,
			identities.bank_code      AS payee_payer_bank_code,
			identities.account_number AS payee_payer_acct_no`).
		Joins("LEFT JOIN identities ON identities.id = transactions.identity_id")
}

func rowsToModels(rows []*transactionRow) []*model.Transaction {
	out := make([]*model.Transaction, len(rows))
	for i, row := range rows {
		out[i] = rowToTransactionModel(row)
	}
	return out
}
