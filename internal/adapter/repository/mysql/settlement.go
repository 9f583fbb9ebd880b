package mysql

import (
	"context"
	"errors"

	settlementDomain "receivables-engine/internal/domain/settlement"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type SettlementRepository struct{ db *gorm.DB }

func NewSettlementRepository(db *gorm.DB) *SettlementRepository {
	return &SettlementRepository{db: db}
}

func (r *SettlementRepository) CreatePayout(ctx context.Context, p *settlementDomain.Payout) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *SettlementRepository) GetPayout(ctx context.Context, receivableID uint64) (*settlementDomain.Payout, error) {
	var out settlementDomain.Payout
	res := r.db.WithContext(ctx).Where("receivable_id = ?", receivableID).First(&out)
	return &out, res.Error
}

func (r *SettlementRepository) DeletePayout(ctx context.Context, receivableID uint64) error {
	return r.db.WithContext(ctx).
		Where("receivable_id = ?", receivableID).
		Delete(&settlementDomain.Payout{}).Error
}

func (r *SettlementRepository) GetCollateral(ctx context.Context, issuer string) (*settlementDomain.Collateral, error) {
	return r.getCollateral(r.db.WithContext(ctx), issuer)
}

func (r *SettlementRepository) GetCollateralForUpdate(ctx context.Context, issuer string) (*settlementDomain.Collateral, error) {
	return r.getCollateral(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), issuer)
}

func (r *SettlementRepository) getCollateral(q *gorm.DB, issuer string) (*settlementDomain.Collateral, error) {
	var out settlementDomain.Collateral
	res := q.Where("issuer = ?", issuer).First(&out)
	if errors.Is(res.Error, gorm.ErrRecordNotFound) {
		return &settlementDomain.Collateral{Issuer: issuer, Balance: decimal.Zero}, nil
	}
	return &out, res.Error
}

func (r *SettlementRepository) SaveCollateral(ctx context.Context, c *settlementDomain.Collateral) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(c).Error
}
