package models

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/cart"
	"github.com/medistore/backend/internal/domain/order"
	"github.com/shopspring/decimal"
)

// OrderModel is the persistence model for order.Order.
// (user_id, idempotency_key) is unique; NULL keys do not collide.
type OrderModel struct {
	AggregateModel
	UserID         uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_orders_user_idempotency,priority:1"`
	Items          string          `gorm:"type:jsonb;not null"`
	Total          decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	IdempotencyKey *string         `gorm:"type:varchar(128);uniqueIndex:idx_orders_user_idempotency,priority:2"`
}

// TableName returns the table name for GORM
func (OrderModel) TableName() string {
	return "orders"
}

// ToDomain converts the model to a domain Order
func (m *OrderModel) ToDomain() (*order.Order, error) {
	var items []cart.Item
	if err := json.Unmarshal([]byte(m.Items), &items); err != nil {
		return nil, fmt.Errorf("failed to decode order items: %w", err)
	}
	return &order.Order{
		BaseAggregateRoot: m.root(),
		UserID:            m.UserID,
		Items:             items,
		Total:             m.Total,
		IdempotencyKey:    deref(m.IdempotencyKey),
	}, nil
}

// OrderModelFromDomain creates a new persistence model from a domain Order
func OrderModelFromDomain(o *order.Order) (*OrderModel, error) {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode order items: %w", err)
	}
	m := &OrderModel{
		UserID:         o.UserID,
		Items:          string(items),
		Total:          o.Total,
		IdempotencyKey: nullable(o.IdempotencyKey),
	}
	m.setRoot(o.BaseAggregateRoot)
	return m, nil
}
