package mysql

import (
	"testing"
	"time"

	receivableDomain "receivables-engine/internal/domain/receivable"
	infradb "receivables-engine/internal/infrastructure/db"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB creates an in-memory sqlite DB with every engine table. One
// connection only: each new sqlite :memory: connection is a fresh database.
func openTestDB(t *testing.T) *gorm.DB {
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
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func makeReceivable(issuer string, face int64) *receivableDomain.Receivable {
	return &receivableDomain.Receivable{
		Issuer:            issuer,
		Holder:            issuer,
		FaceValue:         decimal.NewFromInt(face),
		RiskTier:          receivableDomain.TierLow,
		Status:            receivableDomain.StatusActive,
		IssuanceDate:      t0,
		MaturityTimestamp: t0.Add(180 * 24 * time.Hour),
		StatusUpdatedAt:   t0,
	}
}
