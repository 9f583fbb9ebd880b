package escrow

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound           = errors.New("escrow not found")
	ErrNotIssuer          = errors.New("only the issuer may deposit escrow")
	ErrAmountMismatch     = errors.New("deposit must equal face value exactly")
	ErrAlreadyDeposited   = errors.New("escrow already deposited")
	ErrNotLocked          = errors.New("escrow is not locked")
	ErrInvalidAmount      = errors.New("invalid release amount")
	ErrInvalidRecipient   = errors.New("invalid release recipient")
	ErrInsufficientEscrow = errors.New("release exceeds escrow balance")
	ErrLockActive         = errors.New("escrow lock period has not elapsed")
)

// Table: escrow_balances. One row per receivable, never recreated.
type Balance struct {
	ReceivableID    uint64          `gorm:"column:receivable_id;primaryKey;autoIncrement:false" json:"receivable_id"`
	Depositor       string          `gorm:"column:depositor;size:32;not null" json:"depositor"`
	Amount          decimal.Decimal `gorm:"column:amount;type:decimal(38,0);not null" json:"amount"`
	DepositedAmount decimal.Decimal `gorm:"column:deposited_amount;type:decimal(38,0);not null" json:"deposited_amount"`
	ReleasedAmount  decimal.Decimal `gorm:"column:released_amount;type:decimal(38,0);not null" json:"released_amount"`
	LockTimestamp   time.Time       `gorm:"column:lock_timestamp;not null" json:"lock_timestamp"`
	IsLocked        bool            `gorm:"column:is_locked;not null" json:"is_locked"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (Balance) TableName() string { return "escrow_balances" }

// Unlocks returns the earliest time a release is allowed.
func (b *Balance) Unlocks(lockPeriod time.Duration) time.Time {
	return b.LockTimestamp.Add(lockPeriod)
}

// Debit applies a release of amount. Callers validate first; Debit keeps the
// conservation invariant amount + released == deposited.
func (b *Balance) Debit(amount decimal.Decimal) {
	b.Amount = b.Amount.Sub(amount)
	b.ReleasedAmount = b.ReleasedAmount.Add(amount)
	if b.Amount.IsZero() {
		b.IsLocked = false
	}
}

// Credit reverses a Debit.
func (b *Balance) Credit(amount decimal.Decimal) {
	b.Amount = b.Amount.Add(amount)
	b.ReleasedAmount = b.ReleasedAmount.Sub(amount)
	b.IsLocked = b.Amount.IsPositive()
}
