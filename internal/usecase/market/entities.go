package market

import (
	"time"

	"github.com/shopspring/decimal"
)

type ListingDTO struct {
	Market       string          `json:"market"`
	ReceivableID uint64          `json:"receivable_id"`
	Seller       string          `json:"seller"`
	Price        decimal.Decimal `json:"price"`
	Active       bool            `json:"active"`
	ListedAt     time.Time       `json:"listed_at"`
	// nil on markets without a listing window
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// TradeDTO describes how a purchase payment was split.
type TradeDTO struct {
	Market         string          `json:"market"`
	ReceivableID   uint64          `json:"receivable_id"`
	Seller         string          `json:"seller"`
	Buyer          string          `json:"buyer"`
	Price          decimal.Decimal `json:"price"`
	Fee            decimal.Decimal `json:"fee"`
	SellerProceeds decimal.Decimal `json:"seller_proceeds"`
	Refund         decimal.Decimal `json:"refund"`
}

type ProceedsDTO struct {
	Market  string          `json:"market"`
	Account string          `json:"account"`
	Balance decimal.Decimal `json:"balance"`
}

type WithdrawalDTO struct {
	Market  string          `json:"market"`
	Account string          `json:"account"`
	To      string          `json:"to"`
	Amount  decimal.Decimal `json:"amount"`
}
