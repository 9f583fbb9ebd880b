package funds

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var ErrTransferFailed = errors.New("fund transfer failed")

// Transferer moves funds out of the engine to an external account. The
// receiving side may call back into the engine before Transfer returns.
type Transferer interface {
	Transfer(ctx context.Context, to string, amount decimal.Decimal) error
}

// Table: wallet_balances. Balances of the built-in settlement rail; every
// outbound transfer lands here.
type Balance struct {
	Account   string          `gorm:"column:account;size:32;primaryKey" json:"account"`
	Balance   decimal.Decimal `gorm:"column:balance;type:decimal(38,0);not null" json:"balance"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Balance) TableName() string { return "wallet_balances" }

// ValidAmount reports whether d is a positive whole amount. The engine moves
// only integral units.
func ValidAmount(d decimal.Decimal) bool {
	return d.IsPositive() && d.IsInteger()
}
