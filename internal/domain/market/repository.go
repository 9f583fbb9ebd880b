package market

import (
	"context"

	"github.com/shopspring/decimal"
)

type Repository interface {
	// Upsert replaces any previous listing for the same (market, receivable).
	Upsert(ctx context.Context, l *Listing) error
	Get(ctx context.Context, m Market, receivableID uint64) (*Listing, error)
	GetForUpdate(ctx context.Context, m Market, receivableID uint64) (*Listing, error)
	Save(ctx context.Context, l *Listing) error
}

type ProceedsRepository interface {
	// Get returns a zero balance (not an error) for unknown accounts.
	Get(ctx context.Context, m Market, account string) (*Proceeds, error)
	GetForUpdate(ctx context.Context, m Market, account string) (*Proceeds, error)
	Credit(ctx context.Context, m Market, account string, amount decimal.Decimal) error
	Save(ctx context.Context, p *Proceeds) error
}
