package shared

import (
	"context"
	"time"
)

// IdempotencyStore claims client-supplied request keys so that a retried
// command is detected while the first attempt is still in flight.
type IdempotencyStore interface {
	// Claim marks key as taken for ttl.
	// Returns true if the key was newly claimed, false if someone already holds it.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Release drops a claim so a failed attempt can be retried immediately.
	Release(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}
