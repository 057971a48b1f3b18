package order

import (
	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// EventTypeOrderPlaced is published once per stored order
const EventTypeOrderPlaced = "OrderPlaced"

// PlacedEvent is published after an order is written
type PlacedEvent struct {
	shared.BaseDomainEvent
	UserID uuid.UUID       `json:"user_id"`
	Total  decimal.Decimal `json:"total"`
	Lines  int             `json:"lines"`
}

// NewPlacedEvent creates a new PlacedEvent
func NewPlacedEvent(o *Order) *PlacedEvent {
	return &PlacedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderPlaced, AggregateTypeOrder, o.ID, o.CreatedAt),
		UserID:          o.UserID,
		Total:           o.Total,
		Lines:           len(o.Items),
	}
}
