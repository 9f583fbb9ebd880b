package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	accessadp "receivables-engine/internal/adapter/access"
	"receivables-engine/internal/adapter/events"
	httpadp "receivables-engine/internal/adapter/http"
	appmw "receivables-engine/internal/adapter/middleware"
	"receivables-engine/internal/adapter/repository/mysql"
	"receivables-engine/internal/config"
	"receivables-engine/internal/domain/access"
	"receivables-engine/internal/domain/market"
	"receivables-engine/internal/infrastructure/cache"
	"receivables-engine/internal/infrastructure/db"
	"receivables-engine/internal/infrastructure/lock"
	"receivables-engine/internal/infrastructure/metrics"
	"receivables-engine/internal/pricing"
	escrowUC "receivables-engine/internal/usecase/escrow"
	marketUC "receivables-engine/internal/usecase/market"
	receivableUC "receivables-engine/internal/usecase/receivable"
	settlementUC "receivables-engine/internal/usecase/settlement"
)

func logLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	gdb, err := db.Open(cfg.DBDriver, cfg.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer sqlDB.Close()

	rdb, err := cache.OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	m := metrics.New()
	roles := accessadp.NewStaticRoles(map[access.Role][]string{
		access.RoleAdmin:      cfg.AdminAccounts,
		access.RoleIssuer:     cfg.IssuerAccounts,
		access.RoleSettlement: {cfg.SettlementAccount},
	})
	sw := accessadp.NewRedisSwitch(rdb, logger)
	locker := lock.NewRedisLocker(rdb, cfg.LockTTL(), logger)
	tx := mysql.NewGormUoW(gdb)
	wallet := mysql.NewWalletLedger(gdb)

	pe, err := pricing.NewEngine(cfg.BaseRateBP, cfg.RiskPremiumBP)
	if err != nil {
		log.Fatalf("pricing: %v", err)
	}

	// usecases
	receivables := receivableUC.NewUsecase(tx, pe,
		receivableUC.Config{
			MinVesting:      cfg.MinVesting(),
			MaxVesting:      cfg.MaxVesting(),
			RestrictIssuers: len(cfg.IssuerAccounts) > 0,
		},
		receivableUC.WithSwitch(sw), receivableUC.WithLogger(logger), receivableUC.WithMetrics(m))

	primary, err := marketUC.NewUsecase(market.MarketPrimary, tx, receivables, locker, wallet,
		marketUC.Config{},
		marketUC.WithSwitch(sw), marketUC.WithLogger(logger), marketUC.WithMetrics(m))
	if err != nil {
		log.Fatalf("primary market: %v", err)
	}
	secondary, err := marketUC.NewUsecase(market.MarketSecondary, tx, receivables, locker, wallet,
		marketUC.Config{ListingDuration: cfg.ListingDuration(), ProtocolFeeBP: cfg.ProtocolFeeBP},
		marketUC.WithSwitch(sw), marketUC.WithLogger(logger), marketUC.WithMetrics(m))
	if err != nil {
		log.Fatalf("secondary market: %v", err)
	}

	vault := escrowUC.NewUsecase(tx, locker, wallet, cfg.LockPeriod(),
		escrowUC.WithLogger(logger), escrowUC.WithMetrics(m))
	settlement := settlementUC.NewUsecase(tx, receivables, vault, locker, wallet,
		access.NewCaller(cfg.SettlementAccount, roles),
		settlementUC.Config{GracePeriod: cfg.GracePeriod(), CollateralRateBP: cfg.CollateralRateBP},
		settlementUC.WithLogger(logger), settlementUC.WithMetrics(m))

	relay := events.NewRelay(tx.Repos(context.Background()).Events,
		events.NewRedisStream(rdb, cfg.EventStream, cfg.EventStreamMaxLen),
		events.WithInterval(cfg.RelayInterval()), events.WithLogger(logger), events.WithMetrics(m))

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(middleware.Logger(), middleware.Recover(), m.Middleware())

	// routes
	e.GET("/metrics", m.Handler())
	httpadp.Handlers{
		Health: httpadp.NewHandler(map[string]httpadp.Check{
			"db":    sqlDB.PingContext,
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		}),
		Receivables: httpadp.NewReceivableHandler(receivables),
		Markets:     httpadp.NewMarketHandler(primary, secondary),
		Escrow:      httpadp.NewEscrowHandler(vault),
		Settlement:  httpadp.NewSettlementHandler(settlement),
		Wallets:     httpadp.NewWalletHandler(wallet),
	}.Register(e,
		appmw.Auth([]byte(cfg.JWTSecret), roles),
		appmw.IdempotencyMiddleware(rdb, cfg.IdempTTL()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	addr := ":" + cfg.AppPort
	g.Go(func() error {
		log.Printf("listening on %s", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return relay.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Printf("shutting down")
		return e.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
