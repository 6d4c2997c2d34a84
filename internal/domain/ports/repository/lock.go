package repository

import (
	"context"
	"time"
)

// Locker serializes writers on a key. The workflow engine takes a per-job
// lock around every read-modify-write so two concurrent transitions on the
// same job cannot silently lose each other's fields.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
