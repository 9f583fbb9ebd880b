package settlement

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound                        = errors.New("payout not found")
	ErrNotMatured                      = errors.New("receivable has not matured")
	ErrAlreadyPaid                     = errors.New("payout already processed")
	ErrGracePeriodExpired              = errors.New("settlement grace period expired")
	ErrGracePeriodActive               = errors.New("settlement grace period still running")
	ErrInsufficientCollateral          = errors.New("insufficient issuer collateral")
	ErrInsufficientRemainingCollateral = errors.New("withdrawal would leave collateral below requirement")
	ErrInvalidAmount                   = errors.New("invalid collateral amount")
	ErrEscrowNotReady                  = errors.New("escrow not ready for release")
)

// Table: payouts. Written exactly once per receivable.
type Payout struct {
	ReceivableID   uint64          `gorm:"column:receivable_id;primaryKey;autoIncrement:false" json:"receivable_id"`
	PayoutID       string          `gorm:"column:payout_id;type:char(32);not null;uniqueIndex" json:"payout_id"`
	Issuer         string          `gorm:"column:issuer;size:32;not null" json:"issuer"`
	Receiver       string          `gorm:"column:receiver;size:32;not null" json:"receiver"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(38,0);not null" json:"amount"`
	CollateralUsed decimal.Decimal `gorm:"column:collateral_used;type:decimal(38,0);not null" json:"collateral_used"`
	Paid           bool            `gorm:"column:paid;not null" json:"paid"`
	PaidAt         time.Time       `gorm:"column:paid_at;not null" json:"paid_at"`
}

func (Payout) TableName() string { return "payouts" }

// Table: collateral. Per-issuer pool.
type Collateral struct {
	Issuer    string          `gorm:"column:issuer;size:32;primaryKey" json:"issuer"`
	Balance   decimal.Decimal `gorm:"column:balance;type:decimal(38,0);not null" json:"balance"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Collateral) TableName() string { return "collateral" }
