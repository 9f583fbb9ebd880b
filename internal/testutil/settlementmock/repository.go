package settlementmock

import (
	"context"

	domain "receivables-engine/internal/domain/settlement"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset payout reads report not found; unset collateral reads return zero.
type Repo struct {
	CreatePayoutFn           func(ctx context.Context, p *domain.Payout) error
	GetPayoutFn              func(ctx context.Context, receivableID uint64) (*domain.Payout, error)
	DeletePayoutFn           func(ctx context.Context, receivableID uint64) error
	GetCollateralFn          func(ctx context.Context, issuer string) (*domain.Collateral, error)
	GetCollateralForUpdateFn func(ctx context.Context, issuer string) (*domain.Collateral, error)
	SaveCollateralFn         func(ctx context.Context, c *domain.Collateral) error
}

func (m *Repo) CreatePayout(ctx context.Context, p *domain.Payout) error {
	if m.CreatePayoutFn != nil {
		return m.CreatePayoutFn(ctx, p)
	}
	return nil
}

func (m *Repo) GetPayout(ctx context.Context, receivableID uint64) (*domain.Payout, error) {
	if m.GetPayoutFn != nil {
		return m.GetPayoutFn(ctx, receivableID)
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *Repo) DeletePayout(ctx context.Context, receivableID uint64) error {
	if m.DeletePayoutFn != nil {
		return m.DeletePayoutFn(ctx, receivableID)
	}
	return nil
}

func (m *Repo) GetCollateral(ctx context.Context, issuer string) (*domain.Collateral, error) {
	if m.GetCollateralFn != nil {
		return m.GetCollateralFn(ctx, issuer)
	}
	return &domain.Collateral{Issuer: issuer, Balance: decimal.Zero}, nil
}

func (m *Repo) GetCollateralForUpdate(ctx context.Context, issuer string) (*domain.Collateral, error) {
	if m.GetCollateralForUpdateFn != nil {
		return m.GetCollateralForUpdateFn(ctx, issuer)
	}
	return m.GetCollateral(ctx, issuer)
}

func (m *Repo) SaveCollateral(ctx context.Context, c *domain.Collateral) error {
	if m.SaveCollateralFn != nil {
		return m.SaveCollateralFn(ctx, c)
	}
	return nil
}
