package receivable

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"receivables-engine/internal/domain/access"
	"receivables-engine/internal/domain/audit"
	"receivables-engine/internal/domain/funds"
	domain "receivables-engine/internal/domain/receivable"
	"receivables-engine/internal/domain/uow"
	"receivables-engine/internal/infrastructure/metrics"
	"receivables-engine/internal/pricing"
	"receivables-engine/pkg/clock"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Config bounds what issuers may mint.
type Config struct {
	MinVesting time.Duration
	MaxVesting time.Duration
	// RestrictIssuers requires the issuer role on Create.
	RestrictIssuers bool
}

type Usecase struct {
	uow     uow.UnitOfWork
	pricing *pricing.Engine
	cfg     Config

	clock   clock.Clock
	sw      access.Switch
	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Usecase)

func WithClock(c clock.Clock) Option        { return func(u *Usecase) { u.clock = c } }
func WithSwitch(s access.Switch) Option     { return func(u *Usecase) { u.sw = s } }
func WithLogger(l *slog.Logger) Option      { return func(u *Usecase) { u.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(u *Usecase) { u.metrics = m } }

func NewUsecase(tx uow.UnitOfWork, pe *pricing.Engine, cfg Config, opts ...Option) *Usecase {
	u := &Usecase{uow: tx, pricing: pe, cfg: cfg, clock: clock.Real{}, log: slog.Default()}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}

func (u *Usecase) Create(ctx context.Context, caller access.Caller, in CreateInput) (*ReceivableDTO, error) {
	if err := access.EnsureActive(ctx, u.sw); err != nil {
		return nil, err
	}
	if caller.Account == "" {
		return nil, access.ErrUnauthorized
	}
	if u.cfg.RestrictIssuers {
		if err := caller.Require(ctx, access.RoleIssuer); err != nil {
			return nil, err
		}
	}
	tier := domain.RiskTier(in.RiskTier)
	switch {
	case !funds.ValidAmount(in.FaceValue):
		return nil, fmt.Errorf("%w: face value must be a positive whole amount", domain.ErrInvalidInput)
	case in.VestingPeriod <= 0:
		return nil, fmt.Errorf("%w: vesting period must be positive", domain.ErrInvalidInput)
	case u.cfg.MinVesting > 0 && in.VestingPeriod < u.cfg.MinVesting,
		u.cfg.MaxVesting > 0 && in.VestingPeriod > u.cfg.MaxVesting:
		return nil, fmt.Errorf("%w: vesting period %s outside [%s, %s]",
			domain.ErrInvalidInput, in.VestingPeriod, u.cfg.MinVesting, u.cfg.MaxVesting)
	case !tier.Valid():
		return nil, fmt.Errorf("%w: risk tier %d", domain.ErrInvalidInput, in.RiskTier)
	}

	now := u.clock.Now()
	rec := &domain.Receivable{
		Issuer:            caller.Account,
		Holder:            caller.Account,
		FaceValue:         in.FaceValue,
		RiskTier:          tier,
		Status:            domain.StatusActive,
		IssuanceDate:      now,
		MaturityTimestamp: now.Add(in.VestingPeriod),
		StatusUpdatedAt:   now,
	}
	err := u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		if err := r.Receivables.Create(ctx, rec); err != nil {
			return err
		}
		ev := audit.New(audit.ReceivableCreated, rec.ID, caller.Account, rec.FaceValue, now).
			With("risk_tier", tier.String()).
			With("maturity", rec.MaturityTimestamp.Unix())
		return r.Events.Append(ctx, ev)
	})
	if err != nil {
		return nil, err
	}
	if u.metrics != nil {
		u.metrics.ReceivablesCreated.Inc()
	}
	u.log.InfoContext(ctx, "receivable created",
		"id", rec.ID, "issuer", rec.Issuer, "face_value", rec.FaceValue.String(), "tier", tier.String())
	return toDTO(rec), nil
}

func (u *Usecase) Get(ctx context.Context, id uint64) (*ReceivableDTO, error) {
	rec, err := u.uow.Repos(ctx).Receivables.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return toDTO(rec), nil
}

func (u *Usecase) ListByIssuer(ctx context.Context, issuer string) ([]ReceivableDTO, error) {
	recs, err := u.uow.Repos(ctx).Receivables.ListByIssuer(ctx, issuer)
	if err != nil {
		return nil, err
	}
	return toDTOs(recs), nil
}

func (u *Usecase) ListByHolder(ctx context.Context, holder string) ([]ReceivableDTO, error) {
	recs, err := u.uow.Repos(ctx).Receivables.ListByHolder(ctx, holder)
	if err != nil {
		return nil, err
	}
	return toDTOs(recs), nil
}

func toDTOs(recs []domain.Receivable) []ReceivableDTO {
	out := make([]ReceivableDTO, 0, len(recs))
	for i := range recs {
		out = append(out, *toDTO(&recs[i]))
	}
	return out
}

// IsMatured compares the clock against the maturity timestamp. Status does
// not matter.
func (u *Usecase) IsMatured(ctx context.Context, id uint64) (bool, error) {
	rec, err := u.uow.Repos(ctx).Receivables.GetByID(ctx, id)
	if err != nil {
		return false, notFound(err)
	}
	return rec.IsMatured(u.clock.Now()), nil
}

// TransferHolder moves the receivable from one holder to another. The caller
// is either the current holder or an operator that holder approved.
func (u *Usecase) TransferHolder(ctx context.Context, caller access.Caller, id uint64, from, to string) error {
	if err := access.EnsureActive(ctx, u.sw); err != nil {
		return err
	}
	if to == "" || to == from {
		return fmt.Errorf("%w: invalid recipient %q", domain.ErrInvalidInput, to)
	}
	now := u.clock.Now()
	err := u.uow.WithinReceivableTx(ctx, id, func(ctx context.Context, r uow.Repos, rec *domain.Receivable) error {
		if rec.Holder != from {
			return domain.ErrNotHolder
		}
		if caller.Account != from {
			ok, err := r.Receivables.IsApproved(ctx, from, caller.Account)
			if err != nil {
				return err
			}
			if !ok {
				return domain.ErrNotApproved
			}
		}
		rec.Holder = to
		if err := r.Receivables.Save(ctx, rec); err != nil {
			return err
		}
		ev := audit.New(audit.ReceivableTransferred, id, caller.Account, rec.FaceValue, now).
			With("from", from).
			With("to", to)
		return r.Events.Append(ctx, ev)
	})
	if err != nil {
		return notFound(err)
	}
	u.log.InfoContext(ctx, "receivable transferred", "id", id, "from", from, "to", to, "by", caller.Account)
	return nil
}

// SetOperatorApproval lets the caller pre-authorize (or revoke) an operator
// to move every receivable the caller holds.
func (u *Usecase) SetOperatorApproval(ctx context.Context, caller access.Caller, operator string, approved bool) error {
	if caller.Account == "" {
		return access.ErrUnauthorized
	}
	if operator == "" || operator == caller.Account {
		return fmt.Errorf("%w: invalid operator %q", domain.ErrInvalidInput, operator)
	}
	now := u.clock.Now()
	return u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		a := &domain.OperatorApproval{Holder: caller.Account, Operator: operator, Approved: approved}
		if err := r.Receivables.SetApproval(ctx, a); err != nil {
			return err
		}
		ev := audit.New(audit.OperatorApproval, 0, caller.Account, decimal.Zero, now).
			With("operator", operator).
			With("approved", approved)
		return r.Events.Append(ctx, ev)
	})
}

func (u *Usecase) IsApproved(ctx context.Context, holder, operator string) (bool, error) {
	return u.uow.Repos(ctx).Receivables.IsApproved(ctx, holder, operator)
}

// SetStatus applies an administrative status change. Forward moves (towards
// MATURED or DEFAULTED) are open to admin and settlement; moving back is an
// admin override.
func (u *Usecase) SetStatus(ctx context.Context, caller access.Caller, id uint64, status domain.Status) error {
	if err := caller.Require(ctx, access.RoleAdmin, access.RoleSettlement); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, status)
	}
	now := u.clock.Now()
	var prev domain.Status
	err := u.uow.WithinReceivableTx(ctx, id, func(ctx context.Context, r uow.Repos, rec *domain.Receivable) error {
		if rec.IsPaid {
			return domain.ErrAlreadyPaid
		}
		if rec.Status == status {
			return domain.ErrInvalidTransition
		}
		if !forward(rec.Status, status) && !caller.Has(ctx, access.RoleAdmin) {
			return access.ErrUnauthorized
		}
		prev = rec.Status
		rec.Status = status
		rec.StatusUpdatedAt = now
		if err := r.Receivables.Save(ctx, rec); err != nil {
			return err
		}
		t := audit.ReceivableStatus
		if status == domain.StatusDefaulted {
			t = audit.ReceivableDefaulted
		}
		ev := audit.New(t, id, caller.Account, rec.FaceValue, now).
			With("from", string(prev)).
			With("to", string(status))
		return r.Events.Append(ctx, ev)
	})
	if err != nil {
		return notFound(err)
	}
	u.log.InfoContext(ctx, "receivable status changed", "id", id, "from", prev, "to", status, "by", caller.Account)
	return nil
}

func forward(from, to domain.Status) bool {
	rank := map[domain.Status]int{domain.StatusActive: 0, domain.StatusMatured: 1, domain.StatusDefaulted: 2}
	return rank[to] > rank[from]
}

// MarkPaidAndDestroy is the terminal step of settlement: the record is
// flagged paid and then removed from every read path.
func (u *Usecase) MarkPaidAndDestroy(ctx context.Context, caller access.Caller, id uint64) error {
	if err := caller.Require(ctx, access.RoleSettlement); err != nil {
		return err
	}
	now := u.clock.Now()
	err := u.uow.WithinReceivableTx(ctx, id, func(ctx context.Context, r uow.Repos, rec *domain.Receivable) error {
		if rec.IsPaid {
			return domain.ErrAlreadyPaid
		}
		rec.IsPaid = true
		rec.Status = domain.StatusMatured
		rec.StatusUpdatedAt = now
		if err := r.Receivables.Save(ctx, rec); err != nil {
			return err
		}
		if err := r.Receivables.Destroy(ctx, id); err != nil {
			return err
		}
		return r.Events.Append(ctx, audit.New(audit.ReceivableDestroyed, id, caller.Account, rec.FaceValue, now))
	})
	return notFound(err)
}

// Restore reverses MarkPaidAndDestroy after a payout could not be delivered.
// The receivable comes back unpaid with the status it had before.
func (u *Usecase) Restore(ctx context.Context, caller access.Caller, id uint64, status domain.Status) error {
	if err := caller.Require(ctx, access.RoleSettlement); err != nil {
		return err
	}
	if !status.Valid() {
		return fmt.Errorf("%w: status %q", domain.ErrInvalidInput, status)
	}
	now := u.clock.Now()
	err := u.uow.WithinTx(ctx, func(ctx context.Context, r uow.Repos) error {
		rec, err := r.Receivables.Restore(ctx, id)
		if err != nil {
			return err
		}
		rec.IsPaid = false
		rec.Status = status
		rec.StatusUpdatedAt = now
		if err := r.Receivables.Save(ctx, rec); err != nil {
			return err
		}
		return r.Events.Append(ctx, audit.New(audit.ReceivableRestored, id, caller.Account, rec.FaceValue, now))
	})
	if err != nil {
		return notFound(err)
	}
	u.log.WarnContext(ctx, "receivable restored", "id", id, "status", status)
	return nil
}

// Quote prices the receivable at the current time. It is a reference value
// only; listings carry caller-chosen prices.
func (u *Usecase) Quote(ctx context.Context, id uint64) (*QuoteDTO, error) {
	rec, err := u.uow.Repos(ctx).Receivables.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	now := u.clock.Now()
	remaining := rec.TimeRemaining(now)
	price, err := u.pricing.Price(rec.FaceValue, remaining, uint8(rec.RiskTier))
	if err != nil {
		return nil, err
	}
	rate, err := u.pricing.RateBP(uint8(rec.RiskTier))
	if err != nil {
		return nil, err
	}
	return &QuoteDTO{
		ID:            rec.ID,
		FaceValue:     rec.FaceValue,
		Price:         price,
		RateBP:        rate,
		TimeRemaining: int64(remaining / time.Second),
		QuotedAt:      now,
	}, nil
}
