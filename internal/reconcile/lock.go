package reconcile

import (
	"context"
	"slices"
	"sync"
)

// Locker grants exclusive access to a scope key without waiting.
// TryLock returns ErrConflict when the key is already held.
type Locker interface {
	TryLock(ctx context.Context, key string) (unlock func(), err error)
}

// LocalLocker is an in-process Locker. It is sufficient when a single server
// process owns the database.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewLocalLocker creates an empty LocalLocker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]struct{})}
}

// TryLock implements Locker.
func (l *LocalLocker) TryLock(_ context.Context, key string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, ErrConflict
	}
	l.held[key] = struct{}{}

	return sync.OnceFunc(func() {
		l.mu.Lock()
		delete(l.held, key)
		l.mu.Unlock()
	}), nil
}

// lockSet is a set of held keys released together.
type lockSet struct {
	locker  Locker
	unlocks map[string]func()
}

func newLockSet(locker Locker) *lockSet {
	return &lockSet{locker: locker, unlocks: make(map[string]func())}
}

// acquire try-locks every key not already held, in sorted order. On failure
// the keys taken by this call stay held; release drops them with the rest.
func (s *lockSet) acquire(ctx context.Context, keys ...string) error {
	keys = slices.Clone(keys)
	slices.Sort(keys)
	for _, key := range slices.Compact(keys) {
		if s.holds(key) {
			continue
		}
		unlock, err := s.locker.TryLock(ctx, key)
		if err != nil {
			return err
		}
		s.unlocks[key] = unlock
	}
	return nil
}

func (s *lockSet) holds(key string) bool {
	_, ok := s.unlocks[key]
	return ok
}

func (s *lockSet) release() {
	for key, unlock := range s.unlocks {
		unlock()
		delete(s.unlocks, key)
	}
}
