package mysql

import (
	"context"
	"time"

	"receivables-engine/internal/domain/audit"

	"gorm.io/gorm"
)

// AuditRepository is append-only: there is no update or delete of event
// content, only the publication marker.
type AuditRepository struct{ db *gorm.DB }

func NewAuditRepository(db *gorm.DB) *AuditRepository { return &AuditRepository{db: db} }

func (r *AuditRepository) Append(ctx context.Context, e *audit.Event) error {
	return r.db.WithContext(ctx).Create(e).Error
}

func (r *AuditRepository) ListByReceivable(ctx context.Context, receivableID uint64) ([]audit.Event, error) {
	var out []audit.Event
	res := r.db.WithContext(ctx).
		Where("receivable_id = ?", receivableID).
		Order("occurred_at, id").
		Find(&out)
	return out, res.Error
}

func (r *AuditRepository) ListUnpublished(ctx context.Context, limit int) ([]audit.Event, error) {
	var out []audit.Event
	res := r.db.WithContext(ctx).
		Where("published_at IS NULL").
		Order("occurred_at, id").
		Limit(limit).
		Find(&out)
	return out, res.Error
}

func (r *AuditRepository) MarkPublished(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&audit.Event{}).
		Where("id IN ? AND published_at IS NULL", ids).
		Update("published_at", at).Error
}
