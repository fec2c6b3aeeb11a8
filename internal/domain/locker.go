// internal/domain/locker.go
package domain

import (
	"context"
	"errors"
)

// ErrLockNotAcquired is returned when another replica is already running the
// same pipeline.
var ErrLockNotAcquired = errors.New("lock not acquired")

// Lock is a held run lock.
type Lock interface {
	Unlock(ctx context.Context) error
}

// Locker guards a pipeline against overlapping runs. Lock must not block: if
// the lock is held elsewhere it returns ErrLockNotAcquired.
type Locker interface {
	Lock(ctx context.Context, name string) (Lock, error)
}
