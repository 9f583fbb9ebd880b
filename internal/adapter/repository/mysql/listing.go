package mysql

import (
	"context"
	"errors"

	marketDomain "receivables-engine/internal/domain/market"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ListingRepository struct{ db *gorm.DB }

func NewListingRepository(db *gorm.DB) *ListingRepository { return &ListingRepository{db: db} }

func (r *ListingRepository) Upsert(ctx context.Context, l *marketDomain.Listing) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(l).Error
}

func (r *ListingRepository) Save(ctx context.Context, l *marketDomain.Listing) error {
	return r.db.WithContext(ctx).Save(l).Error
}

func (r *ListingRepository) Get(ctx context.Context, m marketDomain.Market, receivableID uint64) (*marketDomain.Listing, error) {
	var out marketDomain.Listing
	res := r.db.WithContext(ctx).
		Where("market = ? AND receivable_id = ?", m, receivableID).
		First(&out)
	return &out, res.Error
}

func (r *ListingRepository) GetForUpdate(ctx context.Context, m marketDomain.Market, receivableID uint64) (*marketDomain.Listing, error) {
	var out marketDomain.Listing
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("market = ? AND receivable_id = ?", m, receivableID).
		First(&out)
	return &out, res.Error
}

type ProceedsRepository struct{ db *gorm.DB }

func NewProceedsRepository(db *gorm.DB) *ProceedsRepository { return &ProceedsRepository{db: db} }

func (r *ProceedsRepository) Get(ctx context.Context, m marketDomain.Market, account string) (*marketDomain.Proceeds, error) {
	return r.get(r.db.WithContext(ctx), m, account)
}

func (r *ProceedsRepository) GetForUpdate(ctx context.Context, m marketDomain.Market, account string) (*marketDomain.Proceeds, error) {
	return r.get(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), m, account)
}

func (r *ProceedsRepository) get(q *gorm.DB, m marketDomain.Market, account string) (*marketDomain.Proceeds, error) {
	var out marketDomain.Proceeds
	res := q.Where("market = ? AND account = ?", m, account).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return &marketDomain.Proceeds{Market: m, Account: account, Balance: decimal.Zero}, nil
	}
	return &out, res.Error
}

// Credit adds amount to the account in a single upsert.
func (r *ProceedsRepository) Credit(ctx context.Context, m marketDomain.Market, account string, amount decimal.Decimal) error {
	row := &marketDomain.Proceeds{Market: m, Account: account, Balance: amount}
	return addBalance(r.db.WithContext(ctx), row, []string{"market", "account"}, amount)
}

func (r *ProceedsRepository) Save(ctx context.Context, p *marketDomain.Proceeds) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(p).Error
}
