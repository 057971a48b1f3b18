// Package order implements checkout submission and order history.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/cart"
	"github.com/medistore/backend/internal/domain/order"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/logger"
	"github.com/medistore/backend/internal/infrastructure/telemetry"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Submission outcomes reported to SubmitRecorder
const (
	ResultAccepted    = "accepted"
	ResultReplayed    = "replayed"
	ResultInvalid     = "invalid"
	ResultUnavailable = "unavailable"
)

var (
	errSubmissionInFlight = shared.ErrAlreadyExists.WithMessage("An order with this idempotency key is already being submitted")
	errKeyReused          = shared.ErrInvalidInput.WithMessage("Idempotency key was already used for a different order")
)

// SubmitRecorder counts submissions by outcome
type SubmitRecorder interface {
	OrderSubmitted(result string, amount float64)
}

// SubmitInput is one checkout attempt
type SubmitInput struct {
	UserID         uuid.UUID
	Items          []cart.Item
	Total          decimal.Decimal
	IdempotencyKey string
}

// SubmitResult carries the stored order. Replayed is true when an earlier
// submission with the same idempotency key is returned instead of a new one.
type SubmitResult struct {
	Order    *order.Order
	Replayed bool
}

// Service submits and reads orders
type Service struct {
	repo    order.Repository
	idem    shared.IdempotencyStore
	events  shared.EventPublisher
	metrics SubmitRecorder
	config  shared.IdempotencyConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates an order service. idem, events and metrics may be nil.
func NewService(repo order.Repository, idem shared.IdempotencyStore, events shared.EventPublisher, metrics SubmitRecorder, cfg shared.IdempotencyConfig, logger *zap.Logger) *Service {
	if cfg.TTL <= 0 {
		cfg.TTL = shared.DefaultIdempotencyTTL
	}
	return &Service{
		repo:    repo,
		idem:    idem,
		events:  events,
		metrics: metrics,
		config:  cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the service clock
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit validates and writes an order. Empty items or a non-positive total
// fail with InvalidInput; a write that does not complete fails with
// Unavailable. With an idempotency key a retried submission returns the
// original order and writes nothing; reusing the key for other items or
// another total fails with InvalidInput.
func (s *Service) Submit(ctx context.Context, input SubmitInput) (result *SubmitResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "order", "submit",
		attribute.String("user.id", input.UserID.String()),
		attribute.Int("order.lines", len(input.Items)),
		attribute.Bool("order.idempotent", input.IdempotencyKey != ""),
	)
	defer func() { telemetry.EndSpan(span, err) }()
	log := logger.Or(ctx, s.logger).With(zap.String("user_id", input.UserID.String()))

	key := input.IdempotencyKey
	if !s.config.Enabled {
		key = ""
	}
	o, err := order.New(input.UserID, input.Items, input.Total, key, s.now())
	if err != nil {
		s.record(ResultInvalid, decimal.Zero)
		return nil, err
	}
	key = o.IdempotencyKey

	if key != "" {
		if prior, err := s.findPrior(ctx, input.UserID, key); err != nil || prior != nil {
			return s.replay(o, prior, err)
		}
		reservation := reservationKey(input.UserID, key)
		if s.idem != nil {
			reserved, err := s.idem.Reserve(ctx, reservation, s.config.TTL)
			switch {
			case err != nil:
				// the unique index still rejects a duplicate write
				log.Warn("Idempotency store unavailable", zap.Error(err))
			case !reserved:
				prior, err := s.findPrior(ctx, input.UserID, key)
				if err != nil || prior != nil {
					return s.replay(o, prior, err)
				}
				return nil, errSubmissionInFlight
			}
		}
		defer func() {
			if err != nil && s.idem != nil {
				if rerr := s.idem.Release(context.WithoutCancel(ctx), reservation); rerr != nil {
					log.Warn("Failed to release idempotency key", zap.Error(rerr))
				}
			}
		}()
	}

	if err := s.repo.Create(ctx, o); err != nil {
		if key != "" && errors.Is(err, shared.ErrAlreadyExists) {
			prior, ferr := s.findPrior(ctx, input.UserID, key)
			if ferr != nil || prior != nil {
				return s.replay(o, prior, ferr)
			}
		}
		s.record(ResultUnavailable, decimal.Zero)
		log.Error("Failed to store order", zap.Error(err))
		if errors.Is(err, shared.ErrInvalidInput) {
			return nil, err
		}
		if !errors.Is(err, shared.ErrUnavailable) {
			err = fmt.Errorf("%w: %v", shared.ErrUnavailable, err)
		}
		return nil, err
	}

	s.publish(ctx, o)
	s.record(ResultAccepted, o.Total)
	log.Info("Order submitted",
		zap.String("order_id", o.ID.String()),
		zap.String("total", o.Total.StringFixed(2)),
		zap.Int("lines", len(o.Items)))
	return &SubmitResult{Order: o}, nil
}

// Get returns one of the user's orders
func (s *Service) Get(ctx context.Context, userID, orderID uuid.UUID) (*order.Order, error) {
	return s.repo.FindByID(ctx, userID, orderID)
}

// List returns a page of the user's orders, newest first by default
func (s *Service) List(ctx context.Context, userID uuid.UUID, filter shared.Filter) (*shared.Paginated[*order.Order], error) {
	filter = filter.Normalize()
	orders, total, err := s.repo.FindByUser(ctx, userID, filter)
	if err != nil {
		return nil, err
	}
	page := shared.NewPaginated(orders, total, filter.Page, filter.PageSize)
	return &page, nil
}

func (s *Service) findPrior(ctx context.Context, userID uuid.UUID, key string) (*order.Order, error) {
	prior, err := s.repo.FindByIdempotencyKey(ctx, userID, key)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, nil
	}
	return prior, err
}

// replay answers a submission whose key already has an order
func (s *Service) replay(want, prior *order.Order, err error) (*SubmitResult, error) {
	if err != nil {
		s.record(ResultUnavailable, decimal.Zero)
		return nil, err
	}
	if !prior.SameSubmission(want.Items, want.Total) {
		s.record(ResultInvalid, decimal.Zero)
		s.logger.Warn("Idempotency key reused with a different payload",
			zap.String("order_id", prior.ID.String()),
			zap.String("user_id", prior.UserID.String()))
		return nil, errKeyReused
	}
	s.record(ResultReplayed, decimal.Zero)
	s.logger.Info("Order submission replayed", zap.String("order_id", prior.ID.String()))
	return &SubmitResult{Order: prior, Replayed: true}, nil
}

func (s *Service) publish(ctx context.Context, o *order.Order) {
	events := o.GetDomainEvents()
	o.ClearDomainEvents()
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, events...); err != nil {
		logger.Or(ctx, s.logger).Error("Failed to publish order events",
			zap.String("order_id", o.ID.String()), zap.Error(err))
	}
}

func (s *Service) record(result string, amount decimal.Decimal) {
	if s.metrics != nil {
		s.metrics.OrderSubmitted(result, amount.InexactFloat64())
	}
}

func reservationKey(userID uuid.UUID, key string) string {
	return "order:" + userID.String() + ":" + key
}
