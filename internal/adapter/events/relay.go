package events

import (
	"context"
	"log/slog"
	"time"

	"receivables-engine/internal/domain/audit"
	"receivables-engine/internal/infrastructure/metrics"
	"receivables-engine/pkg/clock"
)

const (
	DefaultInterval  = 2 * time.Second
	DefaultBatchSize = 100
)

// Relay drains unpublished audit events to a sink in insertion order and
// stamps them published. Delivery is at-least-once: an event whose stamp
// fails to commit is sent again on the next pass.
type Relay struct {
	events   audit.Repository
	sink     audit.Sink
	interval time.Duration
	batch    int

	clock   clock.Clock
	log     *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Relay)

func WithInterval(d time.Duration) Option   { return func(r *Relay) { r.interval = d } }
func WithBatchSize(n int) Option            { return func(r *Relay) { r.batch = n } }
func WithClock(c clock.Clock) Option        { return func(r *Relay) { r.clock = c } }
func WithLogger(l *slog.Logger) Option      { return func(r *Relay) { r.log = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(r *Relay) { r.metrics = m } }

func NewRelay(events audit.Repository, sink audit.Sink, opts ...Option) *Relay {
	r := &Relay{
		events:   events,
		sink:     sink,
		interval: DefaultInterval,
		batch:    DefaultBatchSize,
		clock:    clock.Real{},
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.interval <= 0 {
		r.interval = DefaultInterval
	}
	if r.batch <= 0 {
		r.batch = DefaultBatchSize
	}
	return r
}

// Flush publishes one batch. It stops at the first sink failure so ordering
// is kept, marks what went out, and returns how many events were published.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	pending, err := r.events.ListUnpublished(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	sent := make([]string, 0, len(pending))
	var pubErr error
	for _, e := range pending {
		if pubErr = r.sink.Publish(ctx, e); pubErr != nil {
			break
		}
		sent = append(sent, e.ID)
	}
	if len(sent) > 0 {
		if err := r.events.MarkPublished(ctx, sent, r.clock.Now()); err != nil {
			return 0, err
		}
		if r.metrics != nil {
			r.metrics.EventsPublished.Add(float64(len(sent)))
		}
	}
	return len(sent), pubErr
}

// Run flushes every interval until ctx is cancelled. A full batch is
// followed by another flush straight away.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.interval)
	defer t.Stop()
	r.log.InfoContext(ctx, "audit relay started", "interval", r.interval, "batch", r.batch)
	for {
		select {
		case <-ctx.Done():
			r.log.InfoContext(ctx, "audit relay stopped")
			return nil
		case <-t.C:
			for {
				n, err := r.Flush(ctx)
				if err != nil {
					if ctx.Err() == nil {
						r.log.ErrorContext(ctx, "audit relay flush failed", "published", n, "err", err)
					}
					break
				}
				if n < r.batch {
					break
				}
			}
		}
	}
}
