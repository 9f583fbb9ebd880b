package uowmock

import (
	"context"
	"errors"

	"receivables-engine/internal/domain/receivable"
	"receivables-engine/internal/domain/uow"
)

// Ensure compile-time compliance
var _ uow.UnitOfWork = (*UoW)(nil)

var errUnimplemented = errors.New("uowmock: method not implemented")

// UoW is a function-backed mock that satisfies uow.UnitOfWork.
// Fill in the function fields you need in a test; unfilled ones return errUnimplemented.
type UoW struct {
	ReposFn              func(ctx context.Context) uow.Repos
	WithinTxFn           func(ctx context.Context, fn func(ctx context.Context, r uow.Repos) error) error
	WithinReceivableTxFn func(ctx context.Context, id uint64, fn func(ctx context.Context, r uow.Repos, rec *receivable.Receivable) error) error
}

// Passthrough runs every callback directly against repos, with no
// transaction. WithinReceivableTx loads the row through repos first.
func Passthrough(repos uow.Repos) *UoW {
	return &UoW{
		ReposFn: func(context.Context) uow.Repos { return repos },
		WithinTxFn: func(ctx context.Context, fn func(context.Context, uow.Repos) error) error {
			return fn(ctx, repos)
		},
		WithinReceivableTxFn: func(ctx context.Context, id uint64, fn func(context.Context, uow.Repos, *receivable.Receivable) error) error {
			rec, err := repos.Receivables.GetByIDForUpdate(ctx, id)
			if err != nil {
				return err
			}
			return fn(ctx, repos, rec)
		},
	}
}

func New() *UoW { return &UoW{} }

func (m *UoW) Reset() { *m = UoW{} }

// Methods implementing UnitOfWork
func (m *UoW) Repos(ctx context.Context) uow.Repos {
	if m.ReposFn != nil {
		return m.ReposFn(ctx)
	}
	return uow.Repos{}
}

func (m *UoW) WithinTx(ctx context.Context, fn func(ctx context.Context, r uow.Repos) error) error {
	if m.WithinTxFn != nil {
		return m.WithinTxFn(ctx, fn)
	}
	return errUnimplemented
}

func (m *UoW) WithinReceivableTx(ctx context.Context, id uint64, fn func(ctx context.Context, r uow.Repos, rec *receivable.Receivable) error) error {
	if m.WithinReceivableTxFn != nil {
		return m.WithinReceivableTxFn(ctx, id, fn)
	}
	return errUnimplemented
}
