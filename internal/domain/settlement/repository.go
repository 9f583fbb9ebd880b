package settlement

import "context"

type Repository interface {
	CreatePayout(ctx context.Context, p *Payout) error
	GetPayout(ctx context.Context, receivableID uint64) (*Payout, error)
	DeletePayout(ctx context.Context, receivableID uint64) error

	// Collateral reads return a zero balance for unknown issuers.
	GetCollateral(ctx context.Context, issuer string) (*Collateral, error)
	GetCollateralForUpdate(ctx context.Context, issuer string) (*Collateral, error)
	SaveCollateral(ctx context.Context, c *Collateral) error
}
