package mysql

import (
	"context"

	"receivables-engine/internal/domain/receivable"
	"receivables-engine/internal/domain/uow"

	"gorm.io/gorm"
)

type txKey struct{}

// GormUoW binds repositories to a gorm transaction. The active transaction
// travels in the context, so a usecase called from inside another usecase's
// transaction joins it through a savepoint instead of opening a second one.
type GormUoW struct{ db *gorm.DB }

var _ uow.UnitOfWork = (*GormUoW)(nil)

func NewGormUoW(db *gorm.DB) *GormUoW { return &GormUoW{db: db} }

func (u *GormUoW) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return u.db
}

func reposFor(db *gorm.DB) uow.Repos {
	return uow.Repos{
		Receivables: &ReceivableRepository{db: db},
		Listings:    &ListingRepository{db: db},
		Proceeds:    &ProceedsRepository{db: db},
		Escrows:     &EscrowRepository{db: db},
		Settlements: &SettlementRepository{db: db},
		Events:      &AuditRepository{db: db},
	}
}

func (u *GormUoW) Repos(ctx context.Context) uow.Repos { return reposFor(u.conn(ctx)) }

func (u *GormUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, r uow.Repos) error) error {
	return u.conn(ctx).WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx), reposFor(tx))
	})
}

func (u *GormUoW) WithinReceivableTx(ctx context.Context, id uint64, fn func(ctx context.Context, r uow.Repos, rec *receivable.Receivable) error) error {
	return u.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		// lock the receivable row up-front to serialize writers
		rec, err := r.Receivables.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		return fn(ctx, r, rec)
	})
}
