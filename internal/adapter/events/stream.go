// Package events relays the audit trail out of the database to external
// observers.
package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"receivables-engine/internal/domain/audit"

	"github.com/redis/go-redis/v9"
)

const DefaultStream = "receivables:events"

// RedisStream publishes events to a Redis stream with XADD. The stream is
// trimmed approximately to maxLen entries; zero disables trimming.
type RedisStream struct {
	rdb    *redis.Client
	stream string
	maxLen int64
}

var _ audit.Sink = (*RedisStream)(nil)

func NewRedisStream(rdb *redis.Client, stream string, maxLen int64) *RedisStream {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisStream{rdb: rdb, stream: stream, maxLen: maxLen}
}

func (s *RedisStream) Publish(ctx context.Context, e audit.Event) error {
	attrs, err := json.Marshal(e.Attributes)
	if err != nil {
		return err
	}
	args := &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]any{
			"id":            e.ID,
			"type":          string(e.Type),
			"receivable_id": strconv.FormatUint(e.ReceivableID, 10),
			"actor":         e.Actor,
			"amount":        e.Amount.String(),
			"occurred_at":   e.OccurredAt.UTC().Format(time.RFC3339),
			"attributes":    string(attrs),
		},
	}
	if s.maxLen > 0 {
		args.MaxLen = s.maxLen
		args.Approx = true
	}
	return s.rdb.XAdd(ctx, args).Err()
}
