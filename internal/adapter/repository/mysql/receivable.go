package mysql

import (
	"context"
	"errors"

	receivableDomain "receivables-engine/internal/domain/receivable"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReceivableRepository struct{ db *gorm.DB }

func NewReceivableRepository(db *gorm.DB) *ReceivableRepository {
	return &ReceivableRepository{db: db}
}

func (r *ReceivableRepository) Create(ctx context.Context, rec *receivableDomain.Receivable) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

func (r *ReceivableRepository) Save(ctx context.Context, rec *receivableDomain.Receivable) error {
	return r.db.WithContext(ctx).Save(rec).Error
}

func (r *ReceivableRepository) GetByID(ctx context.Context, id uint64) (*receivableDomain.Receivable, error) {
	var out receivableDomain.Receivable
	res := r.db.WithContext(ctx).Where("id = ?", id).First(&out)
	return &out, res.Error
}

func (r *ReceivableRepository) GetByIDForUpdate(ctx context.Context, id uint64) (*receivableDomain.Receivable, error) {
	var out receivableDomain.Receivable
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&out)
	return &out, res.Error
}

func (r *ReceivableRepository) Destroy(ctx context.Context, id uint64) error {
	res := r.db.WithContext(ctx).Delete(&receivableDomain.Receivable{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ReceivableRepository) Restore(ctx context.Context, id uint64) (*receivableDomain.Receivable, error) {
	res := r.db.WithContext(ctx).Unscoped().
		Model(&receivableDomain.Receivable{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Update("deleted_at", nil)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, gorm.ErrRecordNotFound
	}
	return r.GetByID(ctx, id)
}

func (r *ReceivableRepository) ListByIssuer(ctx context.Context, issuer string) ([]receivableDomain.Receivable, error) {
	var out []receivableDomain.Receivable
	res := r.db.WithContext(ctx).Where("issuer = ?", issuer).Order("id").Find(&out)
	return out, res.Error
}

func (r *ReceivableRepository) ListByHolder(ctx context.Context, holder string) ([]receivableDomain.Receivable, error) {
	var out []receivableDomain.Receivable
	res := r.db.WithContext(ctx).Where("holder = ?", holder).Order("id").Find(&out)
	return out, res.Error
}

func (r *ReceivableRepository) SetApproval(ctx context.Context, a *receivableDomain.OperatorApproval) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(a).Error
}

func (r *ReceivableRepository) IsApproved(ctx context.Context, holder, operator string) (bool, error) {
	var out receivableDomain.OperatorApproval
	res := r.db.WithContext(ctx).Where("holder = ? AND operator = ?", holder, operator).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if res.Error != nil {
		return false, res.Error
	}
	return out.Approved, nil
}
