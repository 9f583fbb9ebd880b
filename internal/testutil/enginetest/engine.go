// Package enginetest assembles the whole engine on in-memory sqlite for
// flow tests.
package enginetest

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	accessadapter "receivables-engine/internal/adapter/access"
	"receivables-engine/internal/adapter/repository/mysql"
	"receivables-engine/internal/domain/access"
	"receivables-engine/internal/domain/market"
	infradb "receivables-engine/internal/infrastructure/db"
	"receivables-engine/internal/pricing"
	"receivables-engine/internal/testutil/fundsmock"
	"receivables-engine/internal/testutil/lockmock"
	escrowUC "receivables-engine/internal/usecase/escrow"
	marketUC "receivables-engine/internal/usecase/market"
	receivableUC "receivables-engine/internal/usecase/receivable"
	settlementUC "receivables-engine/internal/usecase/settlement"
	"receivables-engine/pkg/clock"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	Day = 24 * time.Hour

	LockPeriod      = 7 * Day
	GracePeriod     = 30 * Day
	ListingDuration = 7 * Day
	CollateralBP    = 1000
	ProtocolFeeBP   = 250
)

var (
	Issuer   = strings.Repeat("a", 32)
	Alice    = strings.Repeat("b", 32)
	Bob      = strings.Repeat("c", 32)
	AdminAcc = strings.Repeat("d", 32)
	Settler  = strings.Repeat("e", 32)

	Start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

type Engine struct {
	DB     *gorm.DB
	UoW    *mysql.GormUoW
	Clock  *clock.Fake
	Roles  *accessadapter.StaticRoles
	Switch *accessadapter.StaticSwitch
	Locker *lockmock.Locker
	Wallet *mysql.WalletLedger
	// Rail records outbound transfers and forwards them to Wallet unless a
	// test replaces Rail.TransferFn.
	Rail *fundsmock.Transferer

	Receivables *receivableUC.Usecase
	Primary     *marketUC.Usecase
	Secondary   *marketUC.Usecase
	Escrow      *escrowUC.Usecase
	Settlement  *settlementUC.Usecase
}

func New(t testing.TB) *Engine {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := infradb.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	e := &Engine{
		DB:     db,
		UoW:    mysql.NewGormUoW(db),
		Clock:  clock.NewFake(Start),
		Roles:  accessadapter.NewStaticRoles(map[access.Role][]string{access.RoleAdmin: {AdminAcc}, access.RoleSettlement: {Settler}}),
		Switch: &accessadapter.StaticSwitch{},
		Locker: lockmock.New(),
		Wallet: mysql.NewWalletLedger(db),
	}
	e.Rail = &fundsmock.Transferer{TransferFn: e.Wallet.Transfer}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	pe, err := pricing.NewEngine(pricing.DefaultBaseRateBP, [pricing.Tiers]uint32{100, 200, 500})
	if err != nil {
		t.Fatalf("pricing: %v", err)
	}
	e.Receivables = receivableUC.NewUsecase(e.UoW, pe,
		receivableUC.Config{MinVesting: Day, MaxVesting: 2 * 365 * Day},
		receivableUC.WithClock(e.Clock), receivableUC.WithSwitch(e.Switch), receivableUC.WithLogger(log))

	e.Primary, err = marketUC.NewUsecase(market.MarketPrimary, e.UoW, e.Receivables, e.Locker, e.Rail,
		marketUC.Config{},
		marketUC.WithClock(e.Clock), marketUC.WithSwitch(e.Switch), marketUC.WithLogger(log))
	if err != nil {
		t.Fatalf("primary market: %v", err)
	}
	e.Secondary, err = marketUC.NewUsecase(market.MarketSecondary, e.UoW, e.Receivables, e.Locker, e.Rail,
		marketUC.Config{ListingDuration: ListingDuration, ProtocolFeeBP: ProtocolFeeBP},
		marketUC.WithClock(e.Clock), marketUC.WithSwitch(e.Switch), marketUC.WithLogger(log))
	if err != nil {
		t.Fatalf("secondary market: %v", err)
	}
	e.Escrow = escrowUC.NewUsecase(e.UoW, e.Locker, e.Rail, LockPeriod,
		escrowUC.WithClock(e.Clock), escrowUC.WithLogger(log))
	e.Settlement = settlementUC.NewUsecase(e.UoW, e.Receivables, e.Escrow, e.Locker, e.Rail,
		e.Caller(Settler),
		settlementUC.Config{GracePeriod: GracePeriod, CollateralRateBP: CollateralBP},
		settlementUC.WithClock(e.Clock), settlementUC.WithLogger(log))
	return e
}

func (e *Engine) Caller(account string) access.Caller { return access.NewCaller(account, e.Roles) }

// Mint creates a receivable for Issuer and approves both markets as its
// operators.
func (e *Engine) Mint(t testing.TB, face int64, vesting time.Duration, tier uint8) uint64 {
	t.Helper()
	ctx := context.Background()
	dto, err := e.Receivables.Create(ctx, e.Caller(Issuer), receivableUC.CreateInput{
		FaceValue:     decimal.NewFromInt(face),
		VestingPeriod: vesting,
		RiskTier:      tier,
	})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	e.Approve(t, Issuer)
	return dto.ID
}

// Approve lets both markets move account's receivables.
func (e *Engine) Approve(t testing.TB, account string) {
	t.Helper()
	ctx := context.Background()
	for _, m := range []market.Market{market.MarketPrimary, market.MarketSecondary} {
		if err := e.Receivables.SetOperatorApproval(ctx, e.Caller(account), m.Operator(), true); err != nil {
			t.Fatalf("approve %s: %v", m, err)
		}
	}
}

func (e *Engine) WalletBalance(t testing.TB, account string) decimal.Decimal {
	t.Helper()
	b, err := e.Wallet.Balance(context.Background(), account)
	if err != nil {
		t.Fatalf("wallet balance: %v", err)
	}
	return b
}
