package auditmock

import (
	"context"
	"sync"
	"time"

	"receivables-engine/internal/domain/audit"
)

var _ audit.Repository = (*Recorder)(nil)

// Recorder keeps appended events in memory.
type Recorder struct {
	AppendErr error

	mu     sync.Mutex
	events []audit.Event
}

func (r *Recorder) Append(_ context.Context, e *audit.Event) error {
	if r.AppendErr != nil {
		return r.AppendErr
	}
	r.mu.Lock()
	r.events = append(r.events, *e)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) ListByReceivable(_ context.Context, id uint64) ([]audit.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.ReceivableID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *Recorder) ListUnpublished(_ context.Context, limit int) ([]audit.Event, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Event
	for _, e := range r.events {
		if e.PublishedAt == nil && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *Recorder) MarkPublished(_ context.Context, ids []string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	for i := range r.events {
		if set[r.events[i].ID] && r.events[i].PublishedAt == nil {
			ts := at
			r.events[i].PublishedAt = &ts
		}
	}
	return nil
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []audit.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Type, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
