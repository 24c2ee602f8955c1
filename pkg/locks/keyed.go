// Package locks provides the identifier-scoped mutual exclusion used around
// check-then-create sequences
package locks

import (
	"context"
	"hash/fnv"
	"sync"
)

// Guard serializes work keyed by a normalized identifier. Callers block until
// the key is free; every find-or-create path runs its re-check inside fn.
type Guard interface {
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

const stripeCount = 128

// KeyedMutex is the in-process Guard. Keys hash onto a fixed set of stripes;
// two distinct keys on the same stripe serialize against each other, which is
// harmless, while the same key always serializes.
type KeyedMutex struct {
	stripes [stripeCount]sync.Mutex
}

// NewKeyedMutex creates a new in-process keyed mutex
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{}
}

// WithLock acquires the stripe for key, runs fn, and releases. Acquisition
// blocks until available; ctx cancellation is checked before fn runs but an
// acquired stripe is always released.
func (m *KeyedMutex) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	stripe := &m.stripes[KeyHash(key)%stripeCount]
	stripe.Lock()
	defer stripe.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx)
}

// KeyHash maps a key onto a lock number deterministically. The same hash
// feeds the advisory-lock variant so both guards agree on lock identity.
func KeyHash(key string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	return h.Sum64()
}
