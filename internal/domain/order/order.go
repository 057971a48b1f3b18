// Package order holds the order aggregate written at checkout.
package order

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/cart"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// AggregateTypeOrder is the aggregate type of Order events
const AggregateTypeOrder = "Order"

const maxIdempotencyKeyLength = 128

// Order is an immutable record of a checkout
type Order struct {
	shared.BaseAggregateRoot
	UserID         uuid.UUID
	Items          []cart.Item
	Total          decimal.Decimal
	IdempotencyKey string
}

// New validates the submission and builds an order.
// Empty items or a non-positive total fail with shared.ErrInvalidInput.
func New(userID uuid.UUID, items []cart.Item, total decimal.Decimal, idempotencyKey string, now time.Time) (*Order, error) {
	if userID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithMessage("User ID cannot be empty")
	}
	if len(items) == 0 {
		return nil, shared.ErrInvalidInput.WithMessage("Order must contain at least one item")
	}
	if !total.IsPositive() {
		return nil, shared.ErrInvalidInput.WithMessage("Order total must be greater than zero")
	}
	for _, it := range items {
		if err := it.Validate(); err != nil {
			return nil, err
		}
	}
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if len(idempotencyKey) > maxIdempotencyKeyLength {
		return nil, shared.ErrInvalidInput.WithMessage("Idempotency key cannot exceed 128 characters")
	}

	o := &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		UserID:            userID,
		Items:             append([]cart.Item(nil), items...),
		Total:             total.Round(2),
		IdempotencyKey:    idempotencyKey,
	}
	o.AddDomainEvent(NewPlacedEvent(o))
	return o, nil
}

// Units returns the total quantity ordered
func (o *Order) Units() int {
	return cart.Cart(o.Items).Units()
}

// SameSubmission reports whether items and total describe this order, so a
// retried checkout can be told apart from a new one reusing its key.
func (o *Order) SameSubmission(items []cart.Item, total decimal.Decimal) bool {
	return o.Total.Equal(total.Round(2)) && slices.Equal(o.Items, items)
}
