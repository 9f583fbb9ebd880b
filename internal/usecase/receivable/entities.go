package receivable

import (
	"time"

	domain "receivables-engine/internal/domain/receivable"

	"github.com/shopspring/decimal"
)

type CreateInput struct {
	FaceValue     decimal.Decimal
	VestingPeriod time.Duration
	RiskTier      uint8
}

type ReceivableDTO struct {
	ID                uint64          `json:"id"`
	Issuer            string          `json:"issuer"`
	Holder            string          `json:"holder"`
	FaceValue         decimal.Decimal `json:"face_value"`
	RiskTier          string          `json:"risk_tier"`
	Status            string          `json:"status"`
	IsPaid            bool            `json:"is_paid"`
	IssuanceDate      time.Time       `json:"issuance_date"`
	MaturityTimestamp time.Time       `json:"maturity_timestamp"`
}

// QuoteDTO is the reference (not binding) present value of a receivable.
type QuoteDTO struct {
	ID            uint64          `json:"id"`
	FaceValue     decimal.Decimal `json:"face_value"`
	Price         decimal.Decimal `json:"price"`
	RateBP        uint32          `json:"rate_bp"`
	TimeRemaining int64           `json:"time_remaining_seconds"`
	QuotedAt      time.Time       `json:"quoted_at"`
}

func toDTO(r *domain.Receivable) *ReceivableDTO {
	return &ReceivableDTO{
		ID:                r.ID,
		Issuer:            r.Issuer,
		Holder:            r.Holder,
		FaceValue:         r.FaceValue,
		RiskTier:          r.RiskTier.String(),
		Status:            string(r.Status),
		IsPaid:            r.IsPaid,
		IssuanceDate:      r.IssuanceDate,
		MaturityTimestamp: r.MaturityTimestamp,
	}
}
