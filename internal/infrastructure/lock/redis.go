package lock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	domainlock "receivables-engine/internal/domain/lock"
)

const keyPrefix = "receivables:lock:"

// unlock deletes the key only if it still holds our token, so an expired
// lock re-acquired by someone else is never released by us.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a non-blocking per-entity mutex. A second Acquire on a held
// key fails with ErrBusy instead of waiting.
type RedisLocker struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

var _ domainlock.Locker = (*RedisLocker)(nil)

func NewRedisLocker(rdb *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisLocker{rdb: rdb, ttl: ttl, log: logger}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := newToken()
	ok, err := l.rdb.SetNX(ctx, keyPrefix+key, token, l.ttl).Result()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domainlock.ErrBusy
	}
	return func() {
		// release must outlive a cancelled request context
		rctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(rctx, l.rdb, []string{keyPrefix + key}, token).Err(); err != nil {
			l.log.Warn("lock release failed", "key", key, "err", err)
		}
	}, nil
}

func newToken() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
