package receivable

import "context"

type Repository interface {
	Create(ctx context.Context, r *Receivable) error
	GetByID(ctx context.Context, id uint64) (*Receivable, error)
	// Lock the row for the rest of the surrounding transaction.
	GetByIDForUpdate(ctx context.Context, id uint64) (*Receivable, error)
	Save(ctx context.Context, r *Receivable) error

	// Destroy soft-deletes the record; reads then fail with not found.
	Destroy(ctx context.Context, id uint64) error
	// Restore undoes Destroy. Only used to unwind a failed payout.
	Restore(ctx context.Context, id uint64) (*Receivable, error)

	ListByIssuer(ctx context.Context, issuer string) ([]Receivable, error)
	ListByHolder(ctx context.Context, holder string) ([]Receivable, error)

	SetApproval(ctx context.Context, a *OperatorApproval) error
	IsApproved(ctx context.Context, holder, operator string) (bool, error)
}
