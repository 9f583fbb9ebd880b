package escrow

import "context"

type Repository interface {
	Create(ctx context.Context, b *Balance) error
	Get(ctx context.Context, receivableID uint64) (*Balance, error)
	GetForUpdate(ctx context.Context, receivableID uint64) (*Balance, error)
	Save(ctx context.Context, b *Balance) error
}
