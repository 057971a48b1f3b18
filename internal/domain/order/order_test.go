package order

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/cart"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func TestNew_Validation(t *testing.T) {
	user := uuid.New()
	item := cart.Item{ProductID: "bp-monitor", Quantity: 1}

	tests := []struct {
		name  string
		user  uuid.UUID
		items []cart.Item
		total decimal.Decimal
	}{
		{"empty items", user, nil, decimal.NewFromInt(100)},
		{"zero total", user, []cart.Item{item}, decimal.Zero},
		{"negative total", user, []cart.Item{item}, decimal.NewFromInt(-5)},
		{"nil user", uuid.Nil, []cart.Item{item}, decimal.NewFromInt(100)},
		{"bad quantity", user, []cart.Item{{ProductID: "x", Quantity: 0}}, decimal.NewFromInt(100)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.user, tt.items, tt.total, "", now)
			assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		})
	}
}

func TestNew_Success(t *testing.T) {
	user := uuid.New()
	items := []cart.Item{{ProductID: "a", Quantity: 2}, {ProductID: "a", Quantity: 1}}

	o, err := New(user, items, decimal.RequireFromString("100.005"), " key-1 ", now)
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, o.ID)
	assert.Equal(t, "key-1", o.IdempotencyKey)
	assert.Equal(t, "100.01", o.Total.StringFixed(2))
	assert.Equal(t, 3, o.Units())

	items[0].Quantity = 99
	assert.Equal(t, 2, o.Items[0].Quantity)

	events := o.GetDomainEvents()
	require.Len(t, events, 1)
	placed := events[0].(*PlacedEvent)
	assert.Equal(t, user, placed.UserID)
	assert.Equal(t, 2, placed.Lines)
}

func TestOrder_SameSubmission(t *testing.T) {
	items := []cart.Item{{ProductID: "bp-monitor", Quantity: 1}, {ProductID: "cuff", Quantity: 2}}
	o, err := New(uuid.New(), items, decimal.RequireFromString("49.99"), "k", now)
	require.NoError(t, err)

	assert.True(t, o.SameSubmission(items, decimal.RequireFromString("49.990")))
	assert.False(t, o.SameSubmission(items, decimal.RequireFromString("50")))
	assert.False(t, o.SameSubmission(items[:1], decimal.RequireFromString("49.99")))
	assert.False(t, o.SameSubmission([]cart.Item{items[1], items[0]}, decimal.RequireFromString("49.99")))
}
