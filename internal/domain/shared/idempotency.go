package shared

import (
	"context"
	"time"
)

// IdempotencyStore holds short-lived reservations on client-supplied keys.
// A reservation is taken before a side effect runs and released if the
// side effect fails, so a retry with the same key can proceed.
type IdempotencyStore interface {
	// Reserve takes key for ttl; false means another caller holds it
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	IsReserved(ctx context.Context, key string) (bool, error)
	Release(ctx context.Context, key string) error
	Close() error
}

// IdempotencyConfig controls whether keys are honoured and for how long a
// reservation lives. A zero TTL means DefaultIdempotencyTTL.
type IdempotencyConfig struct {
	Enabled bool
	TTL     time.Duration
}

const DefaultIdempotencyTTL = 24 * time.Hour
