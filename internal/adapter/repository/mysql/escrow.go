package mysql

import (
	"context"

	escrowDomain "receivables-engine/internal/domain/escrow"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type EscrowRepository struct{ db *gorm.DB }

func NewEscrowRepository(db *gorm.DB) *EscrowRepository { return &EscrowRepository{db: db} }

// Create fails on a duplicate key, so a receivable's escrow can only ever be
// created once.
func (r *EscrowRepository) Create(ctx context.Context, b *escrowDomain.Balance) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *EscrowRepository) Save(ctx context.Context, b *escrowDomain.Balance) error {
	return r.db.WithContext(ctx).Save(b).Error
}

func (r *EscrowRepository) Get(ctx context.Context, receivableID uint64) (*escrowDomain.Balance, error) {
	var out escrowDomain.Balance
	res := r.db.WithContext(ctx).Where("receivable_id = ?", receivableID).First(&out)
	return &out, res.Error
}

func (r *EscrowRepository) GetForUpdate(ctx context.Context, receivableID uint64) (*escrowDomain.Balance, error) {
	var out escrowDomain.Balance
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("receivable_id = ?", receivableID).
		First(&out)
	return &out, res.Error
}
