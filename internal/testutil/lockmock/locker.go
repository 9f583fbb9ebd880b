package lockmock

import (
	"context"
	"sync"

	"receivables-engine/internal/domain/lock"
)

var _ lock.Locker = (*Locker)(nil)

// Locker is an in-process lock table with the same fail-fast semantics as
// the Redis locker.
type Locker struct {
	mu   sync.Mutex
	held map[string]bool
}

func New() *Locker { return &Locker{held: map[string]bool{}} }

func (l *Locker) Acquire(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held == nil {
		l.held = map[string]bool{}
	}
	if l.held[key] {
		return nil, lock.ErrBusy
	}
	l.held[key] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.held, key)
			l.mu.Unlock()
		})
	}, nil
}

func (l *Locker) Held(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held[key]
}
