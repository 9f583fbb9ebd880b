package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"receivables-engine/internal/domain/audit"
	"receivables-engine/internal/domain/escrow"
	"receivables-engine/internal/domain/funds"
	"receivables-engine/internal/domain/market"
	"receivables-engine/internal/domain/receivable"
	"receivables-engine/internal/domain/settlement"
)

const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Open picks the dialector for driver. sqlite is meant for local runs and
// single-process deployments; production uses MySQL.
func Open(driver, dsn string) (*gorm.DB, error) {
	switch driver {
	case DriverMySQL, "":
		return OpenGormWithDialector(mysql.Open(dsn))
	case DriverSQLite:
		gdb, err := OpenGormWithDialector(sqlite.Open(dsn))
		if err != nil {
			return nil, err
		}
		// a single writer keeps sqlite from returning SQLITE_BUSY
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return gdb, nil
	default:
		return nil, fmt.Errorf("unsupported DB driver %q", driver)
	}
}

func OpenGormWithDialector(dial gorm.Dialector) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// the ping below is the only connectivity check
		DisableAutomaticPing: true,
	}
	db, err := gorm.Open(dial, cfg)
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(30)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("ping: %w", err)
	}
	log.Println("gorm: connected")
	return db, nil
}

// Models lists every table the engine owns, in dependency order.
func Models() []any {
	return []any{
		&receivable.Receivable{},
		&receivable.OperatorApproval{},
		&market.Listing{},
		&market.Proceeds{},
		&escrow.Balance{},
		&settlement.Payout{},
		&settlement.Collateral{},
		&audit.Event{},
		&funds.Balance{},
	}
}

func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
