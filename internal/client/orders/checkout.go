// Package orders turns the persisted cart into an order.
package orders

import (
	"context"

	"github.com/google/uuid"
	clientcart "github.com/medistore/backend/internal/client/cart"
	"github.com/medistore/backend/internal/client/provider"
	"github.com/medistore/backend/internal/domain/cart"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Submitter places orders
type Submitter interface {
	SubmitOrder(ctx context.Context, items []cart.Item, total decimal.Decimal, idempotencyKey string) (*provider.Order, error)
}

// Checkout submits the cart and empties it once the order is stored
type Checkout struct {
	cart      *clientcart.State
	submitter Submitter
	newKey    func() string
	logger    *zap.Logger
}

// NewCheckout creates a checkout over the cart state
func NewCheckout(state *clientcart.State, submitter Submitter, logger *zap.Logger) *Checkout {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checkout{
		cart:      state,
		submitter: submitter,
		newKey:    uuid.NewString,
		logger:    logger,
	}
}

// Checkout submits the current cart lines for total. Each call is a new
// attempt with its own idempotency key; transport retries inside the
// submitter reuse it. The cart is cleared only after the order is stored.
// Submission errors are returned unchanged.
func (c *Checkout) Checkout(ctx context.Context, total decimal.Decimal) (*provider.Order, error) {
	items, err := c.cart.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, shared.ErrInvalidInput.WithMessage("Cart is empty")
	}
	if !total.IsPositive() {
		return nil, shared.ErrInvalidInput.WithMessage("Order total must be greater than zero")
	}

	key := c.newKey()
	order, err := c.submitter.SubmitOrder(ctx, items, total, key)
	if err != nil {
		c.logger.Warn("Checkout failed",
			zap.String("idempotency_key", key),
			zap.Int("items", len(items)),
			zap.Error(err))
		return nil, err
	}

	if err := c.cart.Clear(ctx); err != nil {
		// the order is stored either way
		c.logger.Error("Failed to clear cart after checkout",
			zap.String("order_id", order.ID.String()),
			zap.Error(err))
	}
	return order, nil
}
