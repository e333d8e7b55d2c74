package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers keys for a TTL so repeated deliveries of the
// same webhook event or batch commit are detected
type IdempotencyStore interface {
	// MarkProcessed records key. It returns true if the key was newly
	// recorded and false if it was already present within its TTL.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether key is present
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Release forgets key so the same request can be processed again.
	// Releasing an absent key is not an error.
	Release(ctx context.Context, key string) error

	// Close releases resources
	Close() error
}

// IdempotencyConfig holds the dedupe window settings
type IdempotencyConfig struct {
	// TTL is how long a key is remembered. Default: 24 hours
	TTL time.Duration
	// Enabled turns dedupe on. Default: true
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
