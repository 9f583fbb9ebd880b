package receivable

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNotFound          = errors.New("receivable not found")
	ErrInvalidInput      = errors.New("invalid receivable input")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotHolder         = errors.New("caller is not the current holder")
	ErrNotApproved       = errors.New("operator not approved by holder")
	ErrAlreadyPaid       = errors.New("receivable already paid")
)

type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusMatured   Status = "MATURED"
	StatusDefaulted Status = "DEFAULTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusMatured, StatusDefaulted:
		return true
	}
	return false
}

type RiskTier uint8

const (
	TierLow RiskTier = iota
	TierMedium
	TierHigh
)

func (t RiskTier) Valid() bool { return t <= TierHigh }

func (t RiskTier) String() string {
	switch t {
	case TierLow:
		return "LOW"
	case TierMedium:
		return "MEDIUM"
	case TierHigh:
		return "HIGH"
	}
	return "UNKNOWN"
}

// Table: receivables
type Receivable struct {
	ID                uint64          `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Issuer            string          `gorm:"column:issuer;size:32;not null;index:idx_receivables_issuer" json:"issuer"`
	Holder            string          `gorm:"column:holder;size:32;not null;index:idx_receivables_holder" json:"holder"`
	FaceValue         decimal.Decimal `gorm:"column:face_value;type:decimal(38,0);not null" json:"face_value"`
	RiskTier          RiskTier        `gorm:"column:risk_tier;not null" json:"risk_tier"`
	Status            Status          `gorm:"column:status;size:16;not null;default:ACTIVE" json:"status"`
	IsPaid            bool            `gorm:"column:is_paid;not null;default:false" json:"is_paid"`
	IssuanceDate      time.Time       `gorm:"column:issuance_date;not null" json:"issuance_date"`
	MaturityTimestamp time.Time       `gorm:"column:maturity_timestamp;not null" json:"maturity_timestamp"`
	StatusUpdatedAt   time.Time       `gorm:"column:status_updated_at" json:"status_updated_at"`
	CreatedAt         time.Time       `gorm:"column:created_at;autoCreateTime" json:"-"`
	UpdatedAt         time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"-"`
	DeletedAt         gorm.DeletedAt  `gorm:"column:deleted_at;index" json:"-"`
}

func (Receivable) TableName() string { return "receivables" }

// IsMatured compares now against the maturity timestamp only; Status is an
// administrative overlay and plays no part.
func (r *Receivable) IsMatured(now time.Time) bool {
	return !now.Before(r.MaturityTimestamp)
}

func (r *Receivable) TimeRemaining(now time.Time) time.Duration {
	if r.IsMatured(now) {
		return 0
	}
	return r.MaturityTimestamp.Sub(now)
}

// Tradable reports whether the receivable may be listed or bought.
func (r *Receivable) Tradable(now time.Time) bool {
	return r.Status == StatusActive && !r.IsPaid && !r.IsMatured(now)
}

// OperatorApproval pre-authorizes an operator (a marketplace) to move every
// receivable held by Holder.
type OperatorApproval struct {
	Holder    string    `gorm:"column:holder;size:32;primaryKey" json:"holder"`
	Operator  string    `gorm:"column:operator;size:32;primaryKey" json:"operator"`
	Approved  bool      `gorm:"column:approved;not null" json:"approved"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (OperatorApproval) TableName() string { return "operator_approvals" }
