// Package resolver implements a TTL-caching ed25519 key resolver,
// adapted from the teacher's internal/resolver/caching_resolver.go.
package resolver

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"
)

// KeySource fetches the current public key for a kid, e.g. from an
// internal/keys.Store.
type KeySource func(kid string) (ed25519.PublicKey, error)

// CachingKeyResolver caches KeySource lookups for cacheTTL.
type CachingKeyResolver struct {
	mu        sync.RWMutex
	keySource KeySource
	cache     map[string]ed25519.PublicKey
	expiresAt map[string]time.Time
	cacheTTL  time.Duration
}

// New builds a CachingKeyResolver over keySource.
func New(keySource KeySource, cacheTTL time.Duration) *CachingKeyResolver {
	return &CachingKeyResolver{
		keySource: keySource,
		cache:     make(map[string]ed25519.PublicKey),
		expiresAt: make(map[string]time.Time),
		cacheTTL:  cacheTTL,
	}
}

// Resolve returns the cached key for kid if fresh, otherwise refreshes
// it from the underlying KeySource.
func (r *CachingKeyResolver) Resolve(_ context.Context, kid string) (ed25519.PublicKey, error) {
	if key, ok := r.fresh(kid); ok {
		return key, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Double-checked: another goroutine may have refreshed while we
	// waited for the write lock.
	if key, ok := r.freshLocked(kid); ok {
		return key, nil
	}

	key, err := r.keySource(kid)
	if err != nil {
		return nil, fmt.Errorf("resolver: fetch kid %s: %w", kid, err)
	}

	r.cache[kid] = key
	r.expiresAt[kid] = time.Now().Add(r.cacheTTL)
	return key, nil
}

func (r *CachingKeyResolver) fresh(kid string) (ed25519.PublicKey, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.freshLocked(kid)
}

func (r *CachingKeyResolver) freshLocked(kid string) (ed25519.PublicKey, bool) {
	key, ok := r.cache[kid]
	exp, expOk := r.expiresAt[kid]
	if ok && expOk && time.Now().Before(exp) {
		return key, true
	}
	return nil, false
}
