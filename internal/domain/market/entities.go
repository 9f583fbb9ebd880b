package market

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound            = errors.New("listing not found")
	ErrInvalidMarket       = errors.New("unknown market")
	ErrInvalidPrice        = errors.New("invalid listing price")
	ErrNotOwner            = errors.New("caller is not eligible to list this receivable")
	ErrNotSeller           = errors.New("caller is not the listing seller")
	ErrNotTradable         = errors.New("receivable is not tradable")
	ErrListingInactive     = errors.New("listing is not active")
	ErrListingExpired      = errors.New("listing has expired")
	ErrSelfPurchase        = errors.New("seller cannot buy own listing")
	ErrInsufficientPayment = errors.New("insufficient payment")
	ErrNoProceeds          = errors.New("no proceeds to withdraw")
	ErrInvalidRecipient    = errors.New("invalid withdrawal recipient")
)

type Market string

const (
	MarketPrimary   Market = "primary"
	MarketSecondary Market = "secondary"
)

func (m Market) Valid() bool { return m == MarketPrimary || m == MarketSecondary }

// Operator is the account a holder approves so the market can move their
// receivables on a sale.
func (m Market) Operator() string { return "market:" + string(m) }

// ProtocolAccount accumulates protocol fees on the secondary market.
const ProtocolAccount = "protocol"

// Table: listings. The composite key keeps at most one listing (and so at most
// one active listing) per receivable per market.
type Listing struct {
	Market       Market          `gorm:"column:market;size:16;primaryKey" json:"market"`
	ReceivableID uint64          `gorm:"column:receivable_id;primaryKey;autoIncrement:false" json:"receivable_id"`
	Seller       string          `gorm:"column:seller;size:32;not null" json:"seller"`
	Price        decimal.Decimal `gorm:"column:price;type:decimal(38,0);not null" json:"price"`
	Active       bool            `gorm:"column:active;not null;index" json:"active"`
	ListedAt     time.Time       `gorm:"column:listed_at;not null" json:"listed_at"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"-"`
}

func (Listing) TableName() string { return "listings" }

// Expired reports whether a listing with a validity window has lapsed. A zero
// window never expires.
func (l *Listing) Expired(now time.Time, window time.Duration) bool {
	if window <= 0 {
		return false
	}
	return now.After(l.ListedAt.Add(window))
}

// Table: proceeds. Pull-based balances owed to sellers, buyers (overpayment)
// and the protocol.
type Proceeds struct {
	Market    Market          `gorm:"column:market;size:16;primaryKey" json:"market"`
	Account   string          `gorm:"column:account;size:32;primaryKey" json:"account"`
	Balance   decimal.Decimal `gorm:"column:balance;type:decimal(38,0);not null" json:"balance"`
	UpdatedAt time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Proceeds) TableName() string { return "proceeds" }
