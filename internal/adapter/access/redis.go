package access

import (
	"context"
	"errors"
	"log/slog"

	domain "receivables-engine/internal/domain/access"

	"github.com/redis/go-redis/v9"
)

const PauseKey = "receivables:paused"

// RedisSwitch reads the pause flag shared by every engine instance. Any
// value other than "0" or a missing key means paused; a Redis failure also
// reads as paused.
type RedisSwitch struct {
	rdb *redis.Client
	log *slog.Logger
}

var _ domain.Switch = (*RedisSwitch)(nil)

func NewRedisSwitch(rdb *redis.Client, logger *slog.Logger) *RedisSwitch {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisSwitch{rdb: rdb, log: logger}
}

func (s *RedisSwitch) Paused(ctx context.Context) bool {
	v, err := s.rdb.Get(ctx, PauseKey).Result()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		s.log.ErrorContext(ctx, "pause flag unreadable, treating engine as paused", "err", err)
		return true
	}
	return v != "0"
}

// Set writes the flag. Operators normally flip it from outside the engine.
func (s *RedisSwitch) Set(ctx context.Context, paused bool) error {
	v := "0"
	if paused {
		v = "1"
	}
	return s.rdb.Set(ctx, PauseKey, v, 0).Err()
}
