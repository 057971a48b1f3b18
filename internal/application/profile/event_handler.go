package profile

import (
	"context"
	"errors"

	"github.com/medistore/backend/internal/domain/identity"
	"github.com/medistore/backend/internal/domain/order"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// EventHandler keeps profile records in step with account and order events:
// AccountRegistered creates the record, SignedIn updates lastLogin and
// OrderPlaced bumps the order counter.
type EventHandler struct {
	service *Service
	logger  *zap.Logger
}

// NewEventHandler creates the handler
func NewEventHandler(service *Service, logger *zap.Logger) *EventHandler {
	return &EventHandler{service: service, logger: logger}
}

// EventTypes implements shared.EventHandler
func (h *EventHandler) EventTypes() []string {
	return []string{
		identity.EventTypeAccountRegistered,
		identity.EventTypeSignedIn,
		order.EventTypeOrderPlaced,
	}
}

// Handle implements shared.EventHandler
func (h *EventHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	log := logger.Or(ctx, h.logger).With(
		zap.String("event_type", event.EventType()),
		zap.String("aggregate_id", event.AggregateID().String()),
	)

	switch e := event.(type) {
	case *identity.AccountRegisteredEvent:
		err := h.service.Create(ctx, e.AggregateID(), e.Email, e.OccurredAt())
		if errors.Is(err, shared.ErrAlreadyExists) {
			log.Debug("Profile already exists")
			return nil
		}
		return err

	case *identity.SignedInEvent:
		return h.service.Touch(ctx, e.AggregateID(), e.OccurredAt())

	case *order.PlacedEvent:
		return h.service.IncrementOrders(ctx, e.UserID)
	}

	log.Warn("Unexpected event type")
	return nil
}

var _ shared.EventHandler = (*EventHandler)(nil)
