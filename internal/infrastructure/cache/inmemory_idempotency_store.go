package cache

import (
	"context"
	"time"

	"github.com/clinicerp/backend/internal/domain/shared"
	gocache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval is how often expired claims are swept
const DefaultCleanupInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps payment idempotency claims in process memory.
// Claims are not shared between instances; the ledger's unique index on
// (tenant_id, idempotency_key) still rejects duplicates across processes.
type InMemoryIdempotencyStore struct {
	claims *gocache.Cache
}

// NewInMemoryIdempotencyStore creates a store sweeping expired claims every cleanupInterval
func NewInMemoryIdempotencyStore(cleanupInterval time.Duration) *InMemoryIdempotencyStore {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &InMemoryIdempotencyStore{
		claims: gocache.New(gocache.NoExpiration, cleanupInterval),
	}
}

// Claim takes key for ttl. It returns false while an unexpired claim exists.
func (s *InMemoryIdempotencyStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	// Add fails when the key is present and unexpired, under the cache's own lock
	if err := s.claims.Add(key, time.Now(), ttl); err != nil {
		return false, nil
	}
	return true, nil
}

// Release drops the claim on key
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.claims.Delete(key)
	return nil
}

// Close drops every claim
func (s *InMemoryIdempotencyStore) Close() error {
	s.claims.Flush()
	return nil
}

// Size returns the number of live claims
func (s *InMemoryIdempotencyStore) Size() int {
	return s.claims.ItemCount()
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
