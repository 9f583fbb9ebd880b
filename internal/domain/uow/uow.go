package uow

import (
	"context"

	"receivables-engine/internal/domain/audit"
	"receivables-engine/internal/domain/escrow"
	"receivables-engine/internal/domain/market"
	"receivables-engine/internal/domain/receivable"
	"receivables-engine/internal/domain/settlement"
)

// Repos is the set of repositories bound to one connection or transaction.
type Repos struct {
	Receivables receivable.Repository
	Listings    market.Repository
	Proceeds    market.ProceedsRepository
	Escrows     escrow.Repository
	Settlements settlement.Repository
	Events      audit.Repository
}

type UnitOfWork interface {
	// Repos bound to the transaction carried by ctx, or to the root
	// connection when ctx carries none.
	Repos(ctx context.Context) Repos
	// WithinTx runs fn in a transaction. The ctx handed to fn carries the
	// transaction so nested calls from other usecases join it.
	WithinTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	// convenience: lock the receivable row first, then pass it in
	WithinReceivableTx(ctx context.Context, id uint64, fn func(ctx context.Context, r Repos, rec *receivable.Receivable) error) error
}
