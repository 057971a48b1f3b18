package provider

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
	profileapp "github.com/medistore/backend/internal/application/profile"
	"github.com/medistore/backend/internal/domain/cart"
	"github.com/medistore/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// IdempotencyKeyHeader carries the checkout retry key
const IdempotencyKeyHeader = "Idempotency-Key"

// Order is a stored order as returned by the API
type Order struct {
	ID             uuid.UUID       `json:"id"`
	Items          []cart.Item     `json:"items"`
	Total          decimal.Decimal `json:"total"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	Replayed       bool            `json:"-"`
}

// OrderPage is one page of order history
type OrderPage struct {
	Orders     []Order
	Total      int64
	Page       int
	TotalPages int
}

// Profile loads the signed-in viewer's profile record
func (c *Client) Profile(ctx context.Context) (*profileapp.View, error) {
	var view profileapp.View
	err := c.authed(ctx, func(token string) error {
		_, err := c.do(ctx, request{method: "GET", path: "/profile", token: token}, &view)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// UpdateUsername sets the viewer's username
func (c *Client) UpdateUsername(ctx context.Context, username string) (*profileapp.View, error) {
	var view profileapp.View
	err := c.authed(ctx, func(token string) error {
		_, err := c.do(ctx, request{
			method: "PUT",
			path:   "/profile",
			body:   map[string]string{"username": username},
			token:  token,
		}, &view)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// SubmitOrder places an order. Unavailable failures are retried with the
// same idempotency key, so a retry of a write that did land returns the
// original order instead of a second one.
func (c *Client) SubmitOrder(ctx context.Context, items []cart.Item, total decimal.Decimal, idempotencyKey string) (*Order, error) {
	var order Order
	header := map[string]string{}
	if idempotencyKey != "" {
		header[IdempotencyKeyHeader] = idempotencyKey
	}
	err := c.retry(ctx, "submit_order", func() error {
		return c.authed(ctx, func(token string) error {
			resp, err := c.do(ctx, request{
				method: "POST",
				path:   "/orders",
				body: map[string]any{
					"items": items,
					"total": total,
				},
				token:  token,
				header: header,
			}, &order)
			if err != nil {
				return err
			}
			order.Replayed = resp.header.Get("Idempotent-Replayed") == "true"
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	c.logger.Info("Order submitted",
		zap.String("order_id", order.ID.String()),
		zap.Bool("replayed", order.Replayed))
	return &order, nil
}

// Orders lists the viewer's orders, newest first
func (c *Client) Orders(ctx context.Context, page, pageSize int) (*OrderPage, error) {
	q := url.Values{}
	q.Set("page", fmt.Sprint(max(page, 1)))
	if pageSize > 0 {
		q.Set("page_size", fmt.Sprint(pageSize))
	}
	q.Set("order_dir", "desc")

	var orders []Order
	var meta *dto.Meta
	err := c.authed(ctx, func(token string) error {
		resp, err := c.do(ctx, request{method: "GET", path: "/orders?" + q.Encode(), token: token}, &orders)
		if err != nil {
			return err
		}
		meta = resp.meta
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := &OrderPage{Orders: orders}
	if meta != nil {
		out.Total, out.Page, out.TotalPages = meta.Total, meta.Page, meta.TotalPages
	}
	return out, nil
}
