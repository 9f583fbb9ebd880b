package mysql

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// addBalance inserts row or, when a row with the same key exists, adds
// amount to its balance in the same statement. Two first credits to one
// account both land without a read-modify-write window.
func addBalance(db *gorm.DB, row any, keys []string, amount decimal.Decimal) error {
	cols := make([]clause.Column, len(keys))
	for i, k := range keys {
		cols[i] = clause.Column{Name: k}
	}
	return db.Clauses(clause.OnConflict{
		Columns: cols,
		DoUpdates: clause.Assignments(map[string]any{
			"balance":    gorm.Expr("balance + CAST(? AS DECIMAL(38,0))", amount),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(row).Error
}
