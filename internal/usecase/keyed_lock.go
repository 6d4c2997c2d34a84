package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"thewell-curation/internal/domain"
	"thewell-curation/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.Locker = (*KeyedLocker)(nil)

// KeyedLocker is a process-local Locker for single-instance deployments and
// tests. Multi-instance deployments should use the Redis locker so writers on
// different nodes still serialize.
type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]keyedLockEntry
}

type keyedLockEntry struct {
	token   string
	expires time.Time
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]keyedLockEntry)}
}

func (l *KeyedLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < 5; i++ {
		if l.acquire(key, token, ttl) {
			return token, nil
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return "", domain.ErrConflict
}

func (l *KeyedLocker) acquire(key, token string, ttl time.Duration) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, held := l.locks[key]; held && time.Now().Before(entry.expires) {
		return false
	}
	l.locks[key] = keyedLockEntry{token: token, expires: time.Now().Add(ttl)}
	return true
}

func (l *KeyedLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, held := l.locks[key]; held && entry.token == token {
		delete(l.locks, key)
	}
	return nil
}
