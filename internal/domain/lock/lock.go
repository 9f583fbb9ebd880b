package lock

import (
	"context"
	"errors"
)

// ErrBusy is returned when the entity is already locked, including by a
// re-entrant call issued while an outbound transfer is in flight.
var ErrBusy = errors.New("resource is busy")

type Locker interface {
	// Acquire takes an exclusive lock on key. The returned func releases it.
	Acquire(ctx context.Context, key string) (release func(), err error)
}
