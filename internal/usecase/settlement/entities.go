package settlement

import (
	"time"

	domain "receivables-engine/internal/domain/settlement"

	"github.com/shopspring/decimal"
)

type PayoutDTO struct {
	ReceivableID   uint64          `json:"receivable_id"`
	PayoutID       string          `json:"payout_id"`
	Issuer         string          `json:"issuer"`
	Receiver       string          `json:"receiver"`
	Amount         decimal.Decimal `json:"amount"`
	CollateralUsed decimal.Decimal `json:"collateral_used"`
	Paid           bool            `json:"paid"`
	PaidAt         time.Time       `json:"paid_at"`
}

type CollateralDTO struct {
	Issuer   string          `json:"issuer"`
	Balance  decimal.Decimal `json:"balance"`
	Required decimal.Decimal `json:"required"`
}

func toPayoutDTO(p *domain.Payout) *PayoutDTO {
	return &PayoutDTO{
		ReceivableID:   p.ReceivableID,
		PayoutID:       p.PayoutID,
		Issuer:         p.Issuer,
		Receiver:       p.Receiver,
		Amount:         p.Amount,
		CollateralUsed: p.CollateralUsed,
		Paid:           p.Paid,
		PaidAt:         p.PaidAt,
	}
}
