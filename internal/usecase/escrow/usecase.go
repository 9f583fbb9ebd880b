package escrow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"receivables-engine/internal/domain/access"
	"receivables-engine/internal/domain/audit"
	domain "receivables-engine/internal/domain/escrow"
	"receivables-engine/internal/domain/funds"
	"receivables-engine/internal/domain/lock"
	"receivables-engine/internal/domain/receivable"
	"receivables-engine/internal/domain/uow"
	"receivables-engine/internal/infrastructure/metrics"
	"receivables-engine/pkg/clock"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Usecase struct {
	uow        uow.UnitOfWork
	locker     lock.Locker
	rail       funds.Transferer
	lockPeriod time.Duration

	clock   clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Usecase)

func WithClock(c clock.Clock) Option        { return func(u *Usecase) { u.clock = c } }
func WithLogger(l *slog.Logger) Option      { return func(u *Usecase) { u.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(u *Usecase) { u.metrics = m } }

func NewUsecase(tx uow.UnitOfWork, locker lock.Locker, rail funds.Transferer, lockPeriod time.Duration, opts ...Option) *Usecase {
	u := &Usecase{uow: tx, locker: locker, rail: rail, lockPeriod: lockPeriod, clock: clock.Real{}, log: slog.Default()}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func key(id uint64) string { return fmt.Sprintf("escrow:%d", id) }

// Deposit takes custody of the face value for receivable id. Only the issuer
// deposits, only once, and only the exact face value.
func (u *Usecase) Deposit(ctx context.Context, caller access.Caller, id uint64, payment decimal.Decimal) (*BalanceDTO, error) {
	release, err := u.locker.Acquire(ctx, key(id))
	if err != nil {
		return nil, err
	}
	defer release()

	now := u.clock.Now()
	var b *domain.Balance
	err = u.uow.WithinReceivableTx(ctx, id, func(ctx context.Context, r uow.Repos, rec *receivable.Receivable) error {
		if rec.Issuer != caller.Account {
			return domain.ErrNotIssuer
		}
		if rec.IsPaid {
			return receivable.ErrAlreadyPaid
		}
		if !payment.Equal(rec.FaceValue) {
			return fmt.Errorf("%w: got %s, face value %s", domain.ErrAmountMismatch, payment, rec.FaceValue)
		}
		_, err := r.Escrows.Get(ctx, id)
		switch {
		case err == nil:
			return domain.ErrAlreadyDeposited
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}
		b = &domain.Balance{
			ReceivableID:    id,
			Depositor:       caller.Account,
			Amount:          payment,
			DepositedAmount: payment,
			ReleasedAmount:  decimal.Zero,
			LockTimestamp:   now,
			IsLocked:        true,
		}
		if err := r.Escrows.Create(ctx, b); err != nil {
			return err
		}
		return r.Events.Append(ctx, audit.New(audit.EscrowDeposited, id, caller.Account, payment, now))
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, receivable.ErrNotFound
		}
		return nil, err
	}
	if u.metrics != nil {
		u.metrics.EscrowDeposits.Inc()
	}
	u.log.InfoContext(ctx, "escrow deposited", "id", id, "issuer", caller.Account, "amount", payment.String())
	return toDTO(b, u.lockPeriod), nil
}

// CheckRelease runs the release preconditions against the current balance
// without changing anything.
func (u *Usecase) CheckRelease(ctx context.Context, id uint64, amount decimal.Decimal) error {
	b, err := u.uow.Repos(ctx).Escrows.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrNotFound
		}
		return err
	}
	return u.releasable(b, amount, u.clock.Now())
}

func (u *Usecase) releasable(b *domain.Balance, amount decimal.Decimal, now time.Time) error {
	switch {
	case !funds.ValidAmount(amount):
		return fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount)
	case !b.IsLocked:
		return domain.ErrNotLocked
	case amount.GreaterThan(b.Amount):
		return fmt.Errorf("%w: %s requested, %s held", domain.ErrInsufficientEscrow, amount, b.Amount)
	case now.Before(b.Unlocks(u.lockPeriod)):
		return fmt.Errorf("%w: unlocks at %s", domain.ErrLockActive, b.Unlocks(u.lockPeriod).Format(time.RFC3339))
	}
	return nil
}

// Release pays amount out of the escrow for id to recipient. The balance is
// debited and committed first; if the transfer then fails the debit is
// reversed and funds.ErrTransferFailed returned.
func (u *Usecase) Release(ctx context.Context, caller access.Caller, id uint64, recipient string, amount decimal.Decimal) (bool, error) {
	if err := caller.Require(ctx, access.RoleSettlement); err != nil {
		return false, err
	}
	if recipient == "" {
		return false, domain.ErrInvalidRecipient
	}
	if !funds.ValidAmount(amount) {
		return false, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount)
	}
	release, err := u.locker.Acquire(ctx, key(id))
	if err != nil {
		return false, err
	}
	defer release()

	now := u.clock.Now()
	err = u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		b, err := r.Escrows.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := u.releasable(b, amount, now); err != nil {
			return err
		}
		b.Debit(amount)
		if err := r.Escrows.Save(ctx, b); err != nil {
			return err
		}
		ev := audit.New(audit.EscrowReleased, id, caller.Account, amount, now).
			With("recipient", recipient).
			With("remaining", b.Amount.String())
		return r.Events.Append(ctx, ev)
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, domain.ErrNotFound
		}
		return false, err
	}

	if err := u.rail.Transfer(ctx, recipient, amount); err != nil {
		u.log.ErrorContext(ctx, "escrow transfer failed", "id", id, "recipient", recipient, "amount", amount.String(), "err", err)
		if rerr := u.restore(ctx, caller, id, amount); rerr != nil {
			return false, errors.Join(transferFailed(err), rerr)
		}
		return false, transferFailed(err)
	}
	u.log.InfoContext(ctx, "escrow released", "id", id, "recipient", recipient, "amount", amount.String())
	return true, nil
}

func (u *Usecase) restore(ctx context.Context, caller access.Caller, id uint64, amount decimal.Decimal) error {
	now := u.clock.Now()
	return u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		b, err := r.Escrows.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		b.Credit(amount)
		if err := r.Escrows.Save(ctx, b); err != nil {
			return err
		}
		return r.Events.Append(ctx, audit.New(audit.EscrowRestored, id, caller.Account, amount, now))
	})
}

func (u *Usecase) GetBalance(ctx context.Context, id uint64) (*BalanceDTO, error) {
	b, err := u.uow.Repos(ctx).Escrows.Get(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return toDTO(b, u.lockPeriod), nil
}

func transferFailed(err error) error {
	if errors.Is(err, funds.ErrTransferFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", funds.ErrTransferFailed, err)
}
