package receivable

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	accessadapter "receivables-engine/internal/adapter/access"
	"receivables-engine/internal/domain/access"
	"receivables-engine/internal/domain/audit"
	domain "receivables-engine/internal/domain/receivable"
	"receivables-engine/internal/domain/uow"
	"receivables-engine/internal/pricing"
	"receivables-engine/internal/testutil/auditmock"
	"receivables-engine/internal/testutil/receivablemock"
	"receivables-engine/internal/testutil/uowmock"
	"receivables-engine/pkg/clock"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	issuer   = strings.Repeat("a", 32)
	holder   = strings.Repeat("b", 32)
	buyer    = strings.Repeat("c", 32)
	admin    = strings.Repeat("d", 32)
	settler  = strings.Repeat("e", 32)
	operator = "market:secondary"

	now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	day = 24 * time.Hour
)

var roles = accessadapter.NewStaticRoles(map[access.Role][]string{
	access.RoleAdmin:      {admin},
	access.RoleSettlement: {settler},
	access.RoleIssuer:     {issuer},
})

func as(account string) access.Caller { return access.NewCaller(account, roles) }

func newTestUsecase(t *testing.T, recs *receivablemock.Repo, events *auditmock.Recorder, cfg Config, opts ...Option) *Usecase {
	t.Helper()
	pe, err := pricing.NewEngine(pricing.DefaultBaseRateBP, [pricing.Tiers]uint32{100, 200, 500})
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	tx := uowmock.Passthrough(uow.Repos{Receivables: recs, Events: events})
	base := []Option{
		WithClock(clock.NewFake(now)),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	return NewUsecase(tx, pe, cfg, append(base, opts...)...)
}

func stored(id uint64) *domain.Receivable {
	return &domain.Receivable{
		ID:                id,
		Issuer:            issuer,
		Holder:            holder,
		FaceValue:         decimal.NewFromInt(1000),
		RiskTier:          domain.TierMedium,
		Status:            domain.StatusActive,
		IssuanceDate:      now.Add(-10 * day),
		MaturityTimestamp: now.Add(90 * day),
	}
}

func TestUsecase_Create(t *testing.T) {
	cfg := Config{MinVesting: day, MaxVesting: 730 * day}
	valid := CreateInput{FaceValue: decimal.NewFromInt(1000), VestingPeriod: 180 * day, RiskTier: 0}

	tests := []struct {
		name    string
		caller  access.Caller
		in      CreateInput
		cfg     Config
		paused  bool
		wantErr error
	}{
		{name: "happy path", caller: as(issuer), in: valid, cfg: cfg},
		{name: "zero face value", caller: as(issuer), in: CreateInput{FaceValue: decimal.Zero, VestingPeriod: day}, cfg: cfg, wantErr: domain.ErrInvalidInput},
		{name: "fractional face value", caller: as(issuer), in: CreateInput{FaceValue: decimal.RequireFromString("10.5"), VestingPeriod: day}, cfg: cfg, wantErr: domain.ErrInvalidInput},
		{name: "zero vesting", caller: as(issuer), in: CreateInput{FaceValue: decimal.NewFromInt(1)}, cfg: cfg, wantErr: domain.ErrInvalidInput},
		{name: "vesting above max", caller: as(issuer), in: CreateInput{FaceValue: decimal.NewFromInt(1), VestingPeriod: 731 * day}, cfg: cfg, wantErr: domain.ErrInvalidInput},
		{name: "vesting below min", caller: as(issuer), in: CreateInput{FaceValue: decimal.NewFromInt(1), VestingPeriod: time.Hour}, cfg: cfg, wantErr: domain.ErrInvalidInput},
		{name: "tier out of range", caller: as(issuer), in: CreateInput{FaceValue: decimal.NewFromInt(1), VestingPeriod: day, RiskTier: 3}, cfg: cfg, wantErr: domain.ErrInvalidInput},
		{name: "paused", caller: as(issuer), in: valid, cfg: cfg, paused: true, wantErr: access.ErrPaused},
		{name: "anonymous", caller: access.Caller{}, in: valid, cfg: cfg, wantErr: access.ErrUnauthorized},
		{name: "issuer allow-list rejects", caller: as(holder), in: valid, cfg: Config{RestrictIssuers: true}, wantErr: access.ErrUnauthorized},
		{name: "issuer allow-list accepts", caller: as(issuer), in: valid, cfg: Config{RestrictIssuers: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &auditmock.Recorder{}
			var created *domain.Receivable
			recs := &receivablemock.Repo{
				CreateFn: func(_ context.Context, r *domain.Receivable) error {
					r.ID = 42
					created = r
					return nil
				},
			}
			sw := &accessadapter.StaticSwitch{}
			sw.Set(tt.paused)
			uc := newTestUsecase(t, recs, events, tt.cfg, WithSwitch(sw))

			dto, err := uc.Create(context.Background(), tt.caller, tt.in)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				if created != nil {
					t.Fatalf("nothing may be written on failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("Create err: %v", err)
			}
			if dto.ID != 42 || dto.Holder != tt.caller.Account || dto.Issuer != tt.caller.Account {
				t.Fatalf("unexpected dto: %+v", dto)
			}
			if dto.Status != string(domain.StatusActive) || dto.IsPaid {
				t.Fatalf("new receivable must be ACTIVE and unpaid: %+v", dto)
			}
			if !dto.MaturityTimestamp.Equal(now.Add(tt.in.VestingPeriod)) || !dto.MaturityTimestamp.After(dto.IssuanceDate) {
				t.Fatalf("maturity = %s", dto.MaturityTimestamp)
			}
			if got := events.Types(); len(got) != 1 || got[0] != audit.ReceivableCreated {
				t.Fatalf("events = %v", got)
			}
		})
	}
}

func TestUsecase_TransferHolder(t *testing.T) {
	tests := []struct {
		name     string
		caller   string
		from, to string
		approved bool
		wantErr  error
	}{
		{name: "holder moves own receivable", caller: holder, from: holder, to: buyer},
		{name: "approved operator", caller: operator, from: holder, to: buyer, approved: true},
		{name: "operator without approval", caller: operator, from: holder, to: buyer, wantErr: domain.ErrNotApproved},
		{name: "stranger", caller: buyer, from: holder, to: buyer, wantErr: domain.ErrNotApproved},
		{name: "from is not the holder", caller: issuer, from: issuer, to: buyer, wantErr: domain.ErrNotHolder},
		{name: "to equals from", caller: holder, from: holder, to: holder, wantErr: domain.ErrInvalidInput},
		{name: "empty recipient", caller: holder, from: holder, to: "", wantErr: domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var saved *domain.Receivable
			recs := &receivablemock.Repo{
				GetByIDForUpdateFn: func(_ context.Context, id uint64) (*domain.Receivable, error) { return stored(id), nil },
				IsApprovedFn: func(_ context.Context, h, op string) (bool, error) {
					return tt.approved && h == holder && op == operator, nil
				},
				SaveFn: func(_ context.Context, r *domain.Receivable) error {
					saved = r
					return nil
				},
			}
			uc := newTestUsecase(t, recs, &auditmock.Recorder{}, Config{})

			err := uc.TransferHolder(context.Background(), as(tt.caller), 1, tt.from, tt.to)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				if saved != nil {
					t.Fatalf("Save must not be called on failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("TransferHolder err: %v", err)
			}
			if saved == nil || saved.Holder != tt.to || saved.Issuer != issuer {
				t.Fatalf("saved = %+v", saved)
			}
		})
	}
}

func TestUsecase_TransferHolder_NotFound(t *testing.T) {
	recs := &receivablemock.Repo{
		GetByIDForUpdateFn: func(context.Context, uint64) (*domain.Receivable, error) { return nil, gorm.ErrRecordNotFound },
	}
	uc := newTestUsecase(t, recs, &auditmock.Recorder{}, Config{})
	if err := uc.TransferHolder(context.Background(), as(holder), 9, holder, buyer); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUsecase_SetStatus(t *testing.T) {
	tests := []struct {
		name    string
		caller  string
		from    domain.Status
		paid    bool
		to      domain.Status
		wantErr error
	}{
		{name: "settlement matures", caller: settler, from: domain.StatusActive, to: domain.StatusMatured},
		{name: "settlement defaults", caller: settler, from: domain.StatusMatured, to: domain.StatusDefaulted},
		{name: "same status rejected", caller: admin, from: domain.StatusActive, to: domain.StatusActive, wantErr: domain.ErrInvalidTransition},
		{name: "settlement cannot move back", caller: settler, from: domain.StatusDefaulted, to: domain.StatusActive, wantErr: access.ErrUnauthorized},
		{name: "admin override back", caller: admin, from: domain.StatusDefaulted, to: domain.StatusActive},
		{name: "paid receivable frozen", caller: admin, from: domain.StatusMatured, paid: true, to: domain.StatusDefaulted, wantErr: domain.ErrAlreadyPaid},
		{name: "holder has no authority", caller: holder, from: domain.StatusActive, to: domain.StatusMatured, wantErr: access.ErrUnauthorized},
		{name: "unknown status", caller: admin, from: domain.StatusActive, to: "CLOSED", wantErr: domain.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := &auditmock.Recorder{}
			var saved *domain.Receivable
			recs := &receivablemock.Repo{
				GetByIDForUpdateFn: func(_ context.Context, id uint64) (*domain.Receivable, error) {
					r := stored(id)
					r.Status = tt.from
					r.IsPaid = tt.paid
					return r, nil
				},
				SaveFn: func(_ context.Context, r *domain.Receivable) error {
					saved = r
					return nil
				},
			}
			uc := newTestUsecase(t, recs, events, Config{})

			err := uc.SetStatus(context.Background(), as(tt.caller), 1, tt.to)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("want %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SetStatus err: %v", err)
			}
			if saved.Status != tt.to || !saved.StatusUpdatedAt.Equal(now) {
				t.Fatalf("saved = %+v", saved)
			}
			want := audit.ReceivableStatus
			if tt.to == domain.StatusDefaulted {
				want = audit.ReceivableDefaulted
			}
			if got := events.Types(); len(got) != 1 || got[0] != want {
				t.Fatalf("events = %v, want [%s]", got, want)
			}
		})
	}
}

func TestUsecase_MarkPaidAndDestroy(t *testing.T) {
	destroyed := false
	var saved *domain.Receivable
	recs := &receivablemock.Repo{
		GetByIDForUpdateFn: func(_ context.Context, id uint64) (*domain.Receivable, error) { return stored(id), nil },
		SaveFn: func(_ context.Context, r *domain.Receivable) error {
			saved = r
			return nil
		},
		DestroyFn: func(context.Context, uint64) error {
			destroyed = true
			return nil
		},
	}
	uc := newTestUsecase(t, recs, &auditmock.Recorder{}, Config{})
	ctx := context.Background()

	if err := uc.MarkPaidAndDestroy(ctx, as(admin), 1); !errors.Is(err, access.ErrUnauthorized) {
		t.Fatalf("admin is not the settlement authority: %v", err)
	}
	if destroyed {
		t.Fatal("destroyed without authority")
	}
	if err := uc.MarkPaidAndDestroy(ctx, as(settler), 1); err != nil {
		t.Fatalf("MarkPaidAndDestroy: %v", err)
	}
	if !destroyed || !saved.IsPaid || saved.Status != domain.StatusMatured {
		t.Fatalf("destroyed=%v saved=%+v", destroyed, saved)
	}
}

func TestUsecase_IsMatured_IgnoresStatus(t *testing.T) {
	fake := clock.NewFake(now)
	recs := &receivablemock.Repo{
		GetByIDFn: func(_ context.Context, id uint64) (*domain.Receivable, error) {
			r := stored(id)
			r.Status = domain.StatusDefaulted
			return r, nil
		},
	}
	uc := newTestUsecase(t, recs, &auditmock.Recorder{}, Config{}, WithClock(fake))
	ctx := context.Background()

	if ok, err := uc.IsMatured(ctx, 1); err != nil || ok {
		t.Fatalf("before maturity: ok=%v err=%v", ok, err)
	}
	fake.Advance(90 * day)
	if ok, err := uc.IsMatured(ctx, 1); err != nil || !ok {
		t.Fatalf("at maturity: ok=%v err=%v", ok, err)
	}
}

func TestUsecase_Quote(t *testing.T) {
	recs := &receivablemock.Repo{
		GetByIDFn: func(_ context.Context, id uint64) (*domain.Receivable, error) { return stored(id), nil },
	}
	uc := newTestUsecase(t, recs, &auditmock.Recorder{}, Config{})

	q, err := uc.Quote(context.Background(), 1)
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if q.RateBP != 700 || q.TimeRemaining != int64(90*day/time.Second) {
		t.Fatalf("quote inputs: %+v", q)
	}
	if q.Price.IntPart() != 982 {
		t.Fatalf("price = %s, want 982", q.Price)
	}
}

func TestUsecase_Get_NotFound(t *testing.T) {
	recs := &receivablemock.Repo{
		GetByIDFn: func(context.Context, uint64) (*domain.Receivable, error) { return nil, gorm.ErrRecordNotFound },
	}
	uc := newTestUsecase(t, recs, &auditmock.Recorder{}, Config{})
	if _, err := uc.Get(context.Background(), 5); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestUsecase_SetOperatorApproval(t *testing.T) {
	var got *domain.OperatorApproval
	recs := &receivablemock.Repo{
		SetApprovalFn: func(_ context.Context, a *domain.OperatorApproval) error {
			got = a
			return nil
		},
	}
	uc := newTestUsecase(t, recs, &auditmock.Recorder{}, Config{})
	ctx := context.Background()

	if err := uc.SetOperatorApproval(ctx, as(holder), holder, true); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("self-approval: %v", err)
	}
	if err := uc.SetOperatorApproval(ctx, as(holder), operator, true); err != nil {
		t.Fatalf("SetOperatorApproval: %v", err)
	}
	if got == nil || got.Holder != holder || got.Operator != operator || !got.Approved {
		t.Fatalf("approval = %+v", got)
	}
}
