package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/shared"
)

// Repository persists orders
type Repository interface {
	// Create writes the order. A write that does not complete returns
	// shared.ErrUnavailable; a duplicate (user, idempotency key) returns
	// shared.ErrAlreadyExists.
	Create(ctx context.Context, o *Order) error

	// FindByID returns the order if it belongs to userID
	FindByID(ctx context.Context, userID, id uuid.UUID) (*Order, error)

	// FindByIdempotencyKey returns the order previously stored under key
	FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*Order, error)

	// FindByUser lists a user's orders, newest first
	FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]*Order, int64, error)
}
