// Package audit defines the append-only event trail every component writes
// on each state transition. Events are stored in the same transaction as the
// change they describe and relayed to external observers afterwards.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Type string

const (
	ReceivableCreated     Type = "receivable.created"
	ReceivableTransferred Type = "receivable.transferred"
	ReceivableStatus      Type = "receivable.status_changed"
	ReceivableDefaulted   Type = "receivable.defaulted"
	ReceivableDestroyed   Type = "receivable.destroyed"
	ReceivableRestored    Type = "receivable.restored"
	OperatorApproval      Type = "operator.approval"

	ListingCreated   Type = "listing.created"
	ListingCancelled Type = "listing.cancelled"
	ListingSold      Type = "listing.sold"
	ProceedsWithdraw Type = "proceeds.withdrawn"
	ProceedsRestored Type = "proceeds.restored"

	EscrowDeposited Type = "escrow.deposited"
	EscrowReleased  Type = "escrow.released"
	EscrowRestored  Type = "escrow.restored"

	CollateralDeposited Type = "collateral.deposited"
	CollateralWithdrawn Type = "collateral.withdrawn"
	PayoutProcessed     Type = "payout.processed"
	PayoutReverted      Type = "payout.reverted"
)

// Table: audit_events
type Event struct {
	ID           string            `gorm:"column:id;size:36;primaryKey" json:"id"`
	Type         Type              `gorm:"column:type;size:64;not null;index" json:"type"`
	ReceivableID uint64            `gorm:"column:receivable_id;index" json:"receivable_id,omitempty"`
	Actor        string            `gorm:"column:actor;size:32" json:"actor,omitempty"`
	Amount       decimal.Decimal   `gorm:"column:amount;type:decimal(38,0)" json:"amount"`
	Attributes   datatypes.JSONMap `gorm:"column:attributes" json:"attributes,omitempty"`
	OccurredAt   time.Time         `gorm:"column:occurred_at;not null" json:"occurred_at"`
	PublishedAt  *time.Time        `gorm:"column:published_at;index" json:"-"`
}

func (Event) TableName() string { return "audit_events" }

func New(t Type, receivableID uint64, actor string, amount decimal.Decimal, at time.Time) *Event {
	return &Event{
		ID:           uuid.NewString(),
		Type:         t,
		ReceivableID: receivableID,
		Actor:        actor,
		Amount:       amount,
		Attributes:   datatypes.JSONMap{},
		OccurredAt:   at,
	}
}

// With adds an attribute and returns the event for chaining.
func (e *Event) With(key string, v any) *Event {
	if e.Attributes == nil {
		e.Attributes = datatypes.JSONMap{}
	}
	e.Attributes[key] = v
	return e
}

type Repository interface {
	Append(ctx context.Context, e *Event) error
	ListByReceivable(ctx context.Context, receivableID uint64) ([]Event, error)
	ListUnpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []string, at time.Time) error
}

// Sink receives relayed events (stream, bus, webhook).
type Sink interface {
	Publish(ctx context.Context, e Event) error
}
