package receivablemock

import (
	"context"

	domain "receivables-engine/internal/domain/receivable"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Unset reads return context.Canceled; unset writes succeed.
type Repo struct {
	CreateFn           func(ctx context.Context, r *domain.Receivable) error
	GetByIDFn          func(ctx context.Context, id uint64) (*domain.Receivable, error)
	GetByIDForUpdateFn func(ctx context.Context, id uint64) (*domain.Receivable, error)
	SaveFn             func(ctx context.Context, r *domain.Receivable) error
	DestroyFn          func(ctx context.Context, id uint64) error
	RestoreFn          func(ctx context.Context, id uint64) (*domain.Receivable, error)
	ListByIssuerFn     func(ctx context.Context, issuer string) ([]domain.Receivable, error)
	ListByHolderFn     func(ctx context.Context, holder string) ([]domain.Receivable, error)
	SetApprovalFn      func(ctx context.Context, a *domain.OperatorApproval) error
	IsApprovedFn       func(ctx context.Context, holder, operator string) (bool, error)
}

func (m *Repo) Create(ctx context.Context, r *domain.Receivable) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, r)
	}
	return nil
}

func (m *Repo) GetByID(ctx context.Context, id uint64) (*domain.Receivable, error) {
	if m.GetByIDFn != nil {
		return m.GetByIDFn(ctx, id)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByIDForUpdate(ctx context.Context, id uint64) (*domain.Receivable, error) {
	if m.GetByIDForUpdateFn != nil {
		return m.GetByIDForUpdateFn(ctx, id)
	}
	return nil, context.Canceled
}

func (m *Repo) Save(ctx context.Context, r *domain.Receivable) error {
	if m.SaveFn != nil {
		return m.SaveFn(ctx, r)
	}
	return nil
}

func (m *Repo) Destroy(ctx context.Context, id uint64) error {
	if m.DestroyFn != nil {
		return m.DestroyFn(ctx, id)
	}
	return nil
}

func (m *Repo) Restore(ctx context.Context, id uint64) (*domain.Receivable, error) {
	if m.RestoreFn != nil {
		return m.RestoreFn(ctx, id)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByIssuer(ctx context.Context, issuer string) ([]domain.Receivable, error) {
	if m.ListByIssuerFn != nil {
		return m.ListByIssuerFn(ctx, issuer)
	}
	return nil, nil
}

func (m *Repo) ListByHolder(ctx context.Context, holder string) ([]domain.Receivable, error) {
	if m.ListByHolderFn != nil {
		return m.ListByHolderFn(ctx, holder)
	}
	return nil, nil
}

func (m *Repo) SetApproval(ctx context.Context, a *domain.OperatorApproval) error {
	if m.SetApprovalFn != nil {
		return m.SetApprovalFn(ctx, a)
	}
	return nil
}

func (m *Repo) IsApproved(ctx context.Context, holder, operator string) (bool, error) {
	if m.IsApprovedFn != nil {
		return m.IsApprovedFn(ctx, holder, operator)
	}
	return false, nil
}
