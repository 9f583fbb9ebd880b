package settlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"receivables-engine/internal/domain/access"
	"receivables-engine/internal/domain/audit"
	"receivables-engine/internal/domain/funds"
	"receivables-engine/internal/domain/lock"
	"receivables-engine/internal/domain/receivable"
	domain "receivables-engine/internal/domain/settlement"
	"receivables-engine/internal/domain/uow"
	"receivables-engine/internal/infrastructure/metrics"
	"receivables-engine/internal/pricing"
	"receivables-engine/pkg/clock"
	"receivables-engine/pkg/id"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Registry is the set of receivable mutations settlement commands.
type Registry interface {
	MarkPaidAndDestroy(ctx context.Context, caller access.Caller, id uint64) error
	Restore(ctx context.Context, caller access.Caller, id uint64, status receivable.Status) error
	SetStatus(ctx context.Context, caller access.Caller, id uint64, status receivable.Status) error
}

// Vault is the escrow surface settlement draws the face value from.
type Vault interface {
	CheckRelease(ctx context.Context, id uint64, amount decimal.Decimal) error
	Release(ctx context.Context, caller access.Caller, id uint64, recipient string, amount decimal.Decimal) (bool, error)
}

type Config struct {
	GracePeriod      time.Duration
	CollateralRateBP uint32
}

// Usecase orchestrates settlement. It holds no funds: the face value comes
// out of escrow and the collateral pool is only a ledger.
type Usecase struct {
	uow      uow.UnitOfWork
	registry Registry
	vault    Vault
	locker   lock.Locker
	rail     funds.Transferer
	cfg      Config
	// self is the settlement authority identity used towards the registry
	// and the vault.
	self access.Caller

	clock   clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Usecase)

func WithClock(c clock.Clock) Option        { return func(u *Usecase) { u.clock = c } }
func WithLogger(l *slog.Logger) Option      { return func(u *Usecase) { u.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(u *Usecase) { u.metrics = m } }

func NewUsecase(tx uow.UnitOfWork, reg Registry, vault Vault, locker lock.Locker, rail funds.Transferer, self access.Caller, cfg Config, opts ...Option) *Usecase {
	u := &Usecase{
		uow:      tx,
		registry: reg,
		vault:    vault,
		locker:   locker,
		rail:     rail,
		self:     self,
		cfg:      cfg,
		clock:    clock.Real{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func settlementKey(id uint64) string     { return fmt.Sprintf("settlement:%d", id) }
func collateralKey(issuer string) string { return "collateral:" + issuer }

// slice is the collateral a single receivable of face value ties up.
func (u *Usecase) slice(face decimal.Decimal) decimal.Decimal {
	return pricing.ApplyBP(face, u.cfg.CollateralRateBP)
}

func (u *Usecase) fail(reason string) {
	if u.metrics != nil {
		u.metrics.PayoutFailures.WithLabelValues(reason).Inc()
	}
}

// ProcessPayout settles a matured receivable: the current holder receives
// the face value from escrow and the issuer's collateral pool is charged its
// slice. Repeated calls fail with ErrAlreadyPaid.
func (u *Usecase) ProcessPayout(ctx context.Context, caller access.Caller, rid uint64) (*PayoutDTO, error) {
	if caller.Account == "" {
		return nil, access.ErrUnauthorized
	}
	release, err := u.locker.Acquire(ctx, settlementKey(rid))
	if err != nil {
		return nil, err
	}
	defer release()

	repos := u.uow.Repos(ctx)
	_, err = repos.Settlements.GetPayout(ctx, rid)
	switch {
	case err == nil:
		u.fail("already_paid")
		return nil, domain.ErrAlreadyPaid
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, err
	}

	rec, err := repos.Receivables.GetByID(ctx, rid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, receivable.ErrNotFound
		}
		return nil, err
	}
	now := u.clock.Now()
	required := u.slice(rec.FaceValue)
	switch {
	case !rec.IsMatured(now):
		u.fail("not_matured")
		return nil, domain.ErrNotMatured
	case now.After(rec.MaturityTimestamp.Add(u.cfg.GracePeriod)):
		u.fail("grace_expired")
		return nil, domain.ErrGracePeriodExpired
	case rec.Status == receivable.StatusDefaulted:
		u.fail("defaulted")
		return nil, fmt.Errorf("%w: receivable %d is defaulted", receivable.ErrInvalidTransition, rid)
	}
	pool, err := repos.Settlements.GetCollateral(ctx, rec.Issuer)
	if err != nil {
		return nil, err
	}
	if pool.Balance.LessThan(required) {
		u.fail("collateral")
		return nil, fmt.Errorf("%w: have %s, need %s", domain.ErrInsufficientCollateral, pool.Balance, required)
	}
	if err := u.vault.CheckRelease(ctx, rid, rec.FaceValue); err != nil {
		u.fail("escrow")
		return nil, fmt.Errorf("%w: %w", domain.ErrEscrowNotReady, err)
	}

	prevStatus := rec.Status
	holder := rec.Holder
	p := &domain.Payout{
		ReceivableID:   rid,
		PayoutID:       id.NewID32(),
		Issuer:         rec.Issuer,
		Receiver:       holder,
		Amount:         rec.FaceValue,
		CollateralUsed: required,
		Paid:           true,
		PaidAt:         now,
	}
	err = u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		if err := r.Settlements.CreatePayout(ctx, p); err != nil {
			return err
		}
		c, err := r.Settlements.GetCollateralForUpdate(ctx, rec.Issuer)
		if err != nil {
			return err
		}
		if c.Balance.LessThan(required) {
			return domain.ErrInsufficientCollateral
		}
		c.Balance = c.Balance.Sub(required)
		if err := r.Settlements.SaveCollateral(ctx, c); err != nil {
			return err
		}
		if err := u.registry.MarkPaidAndDestroy(ctx, u.self, rid); err != nil {
			return err
		}
		ev := audit.New(audit.PayoutProcessed, rid, caller.Account, p.Amount, now).
			With("payout_id", p.PayoutID).
			With("receiver", holder).
			With("collateral_used", required.String())
		return r.Events.Append(ctx, ev)
	})
	if err != nil {
		return nil, err
	}

	if _, err := u.vault.Release(ctx, u.self, rid, holder, p.Amount); err != nil {
		u.fail("release")
		u.log.ErrorContext(ctx, "payout release failed, reverting", "id", rid, "receiver", holder, "err", err)
		if rerr := u.revert(ctx, caller, p, prevStatus); rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		return nil, err
	}
	if u.metrics != nil {
		u.metrics.Payouts.Inc()
	}
	u.log.InfoContext(ctx, "payout processed",
		"id", rid, "payout_id", p.PayoutID, "receiver", holder, "amount", p.Amount.String(), "collateral_used", required.String())
	return toPayoutDTO(p), nil
}

// revert undoes every effect of a payout whose escrow release failed.
func (u *Usecase) revert(ctx context.Context, caller access.Caller, p *domain.Payout, status receivable.Status) error {
	now := u.clock.Now()
	return u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		if err := r.Settlements.DeletePayout(ctx, p.ReceivableID); err != nil {
			return err
		}
		c, err := r.Settlements.GetCollateralForUpdate(ctx, p.Issuer)
		if err != nil {
			return err
		}
		c.Balance = c.Balance.Add(p.CollateralUsed)
		if err := r.Settlements.SaveCollateral(ctx, c); err != nil {
			return err
		}
		if err := u.registry.Restore(ctx, u.self, p.ReceivableID, status); err != nil {
			return err
		}
		ev := audit.New(audit.PayoutReverted, p.ReceivableID, caller.Account, p.Amount, now).
			With("payout_id", p.PayoutID)
		return r.Events.Append(ctx, ev)
	})
}

// DeclareDefault marks an unpaid receivable DEFAULTED once its grace period
// is over.
func (u *Usecase) DeclareDefault(ctx context.Context, caller access.Caller, rid uint64) error {
	if caller.Account == "" {
		return access.ErrUnauthorized
	}
	release, err := u.locker.Acquire(ctx, settlementKey(rid))
	if err != nil {
		return err
	}
	defer release()

	repos := u.uow.Repos(ctx)
	if _, err := repos.Settlements.GetPayout(ctx, rid); err == nil {
		return domain.ErrAlreadyPaid
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	rec, err := repos.Receivables.GetByID(ctx, rid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return receivable.ErrNotFound
		}
		return err
	}
	if !u.clock.Now().After(rec.MaturityTimestamp.Add(u.cfg.GracePeriod)) {
		return domain.ErrGracePeriodActive
	}
	if err := u.registry.SetStatus(ctx, u.self, rid, receivable.StatusDefaulted); err != nil {
		return err
	}
	u.log.WarnContext(ctx, "receivable defaulted", "id", rid, "issuer", rec.Issuer, "declared_by", caller.Account)
	return nil
}

func (u *Usecase) DepositCollateral(ctx context.Context, caller access.Caller, payment decimal.Decimal) (*CollateralDTO, error) {
	if caller.Account == "" {
		return nil, access.ErrUnauthorized
	}
	if !funds.ValidAmount(payment) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, payment)
	}
	release, err := u.locker.Acquire(ctx, collateralKey(caller.Account))
	if err != nil {
		return nil, err
	}
	defer release()

	now := u.clock.Now()
	var balance decimal.Decimal
	err = u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		c, err := r.Settlements.GetCollateralForUpdate(ctx, caller.Account)
		if err != nil {
			return err
		}
		c.Balance = c.Balance.Add(payment)
		if err := r.Settlements.SaveCollateral(ctx, c); err != nil {
			return err
		}
		balance = c.Balance
		return r.Events.Append(ctx, audit.New(audit.CollateralDeposited, 0, caller.Account, payment, now))
	})
	if err != nil {
		return nil, err
	}
	u.log.InfoContext(ctx, "collateral deposited", "issuer", caller.Account, "amount", payment.String())
	required, err := u.RequiredCollateral(ctx, caller.Account)
	if err != nil {
		return nil, err
	}
	return &CollateralDTO{Issuer: caller.Account, Balance: balance, Required: required}, nil
}

// WithdrawCollateral pays amount back to the issuer as long as what remains
// still covers every receivable the pool backs.
func (u *Usecase) WithdrawCollateral(ctx context.Context, caller access.Caller, amount decimal.Decimal) (*CollateralDTO, error) {
	if caller.Account == "" {
		return nil, access.ErrUnauthorized
	}
	if !funds.ValidAmount(amount) {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidAmount, amount)
	}
	issuer := caller.Account
	release, err := u.locker.Acquire(ctx, collateralKey(issuer))
	if err != nil {
		return nil, err
	}
	defer release()

	now := u.clock.Now()
	var out CollateralDTO
	err = u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		c, err := r.Settlements.GetCollateralForUpdate(ctx, issuer)
		if err != nil {
			return err
		}
		required, err := u.required(ctx, r, issuer)
		if err != nil {
			return err
		}
		remaining := c.Balance.Sub(amount)
		if remaining.IsNegative() || remaining.LessThan(required) {
			return fmt.Errorf("%w: balance %s, withdrawing %s, required %s",
				domain.ErrInsufficientRemainingCollateral, c.Balance, amount, required)
		}
		c.Balance = remaining
		if err := r.Settlements.SaveCollateral(ctx, c); err != nil {
			return err
		}
		out = CollateralDTO{Issuer: issuer, Balance: remaining, Required: required}
		return r.Events.Append(ctx, audit.New(audit.CollateralWithdrawn, 0, issuer, amount, now))
	})
	if err != nil {
		return nil, err
	}

	if err := u.rail.Transfer(ctx, issuer, amount); err != nil {
		u.log.ErrorContext(ctx, "collateral transfer failed", "issuer", issuer, "amount", amount.String(), "err", err)
		rerr := u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
			c, err := r.Settlements.GetCollateralForUpdate(ctx, issuer)
			if err != nil {
				return err
			}
			c.Balance = c.Balance.Add(amount)
			if err := r.Settlements.SaveCollateral(ctx, c); err != nil {
				return err
			}
			ev := audit.New(audit.CollateralDeposited, 0, issuer, amount, u.clock.Now()).
				With("reason", "withdrawal_reverted")
			return r.Events.Append(ctx, ev)
		})
		if rerr != nil {
			return nil, errors.Join(transferFailed(err), rerr)
		}
		return nil, transferFailed(err)
	}
	u.log.InfoContext(ctx, "collateral withdrawn", "issuer", issuer, "amount", amount.String())
	return &out, nil
}

// RequiredCollateral is the sum of collateral slices over the issuer's
// receivables that are still unpaid and ACTIVE or MATURED.
func (u *Usecase) RequiredCollateral(ctx context.Context, issuer string) (decimal.Decimal, error) {
	return u.required(ctx, u.uow.Repos(ctx), issuer)
}

func (u *Usecase) required(ctx context.Context, r uow.Repos, issuer string) (decimal.Decimal, error) {
	recs, err := r.Receivables.ListByIssuer(ctx, issuer)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for i := range recs {
		rec := &recs[i]
		if rec.IsPaid {
			continue
		}
		if rec.Status == receivable.StatusActive || rec.Status == receivable.StatusMatured {
			total = total.Add(u.slice(rec.FaceValue))
		}
	}
	return total, nil
}

func (u *Usecase) Collateral(ctx context.Context, issuer string) (*CollateralDTO, error) {
	c, err := u.uow.Repos(ctx).Settlements.GetCollateral(ctx, issuer)
	if err != nil {
		return nil, err
	}
	required, err := u.RequiredCollateral(ctx, issuer)
	if err != nil {
		return nil, err
	}
	return &CollateralDTO{Issuer: issuer, Balance: c.Balance, Required: required}, nil
}

func (u *Usecase) GetPayout(ctx context.Context, rid uint64) (*PayoutDTO, error) {
	p, err := u.uow.Repos(ctx).Settlements.GetPayout(ctx, rid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return toPayoutDTO(p), nil
}

func transferFailed(err error) error {
	if errors.Is(err, funds.ErrTransferFailed) {
		return err
	}
	return fmt.Errorf("%w: %v", funds.ErrTransferFailed, err)
}
