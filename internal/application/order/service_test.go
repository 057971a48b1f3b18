package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/cart"
	"github.com/medistore/backend/internal/domain/order"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/cache"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockOrderRepository is a mock implementation of order.Repository
type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	return m.Called(ctx, o).Error(0)
}

func (m *MockOrderRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*order.Order, error) {
	args := m.Called(ctx, userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]*order.Order, int64, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).([]*order.Order), args.Get(1).(int64), args.Error(2)
}

type recordingPublisher struct {
	events []shared.DomainEvent
}

func (p *recordingPublisher) Publish(_ context.Context, events ...shared.DomainEvent) error {
	p.events = append(p.events, events...)
	return nil
}

type countingRecorder map[string]int

func (r countingRecorder) OrderSubmitted(result string, _ float64) { r[result]++ }

type fixture struct {
	svc     *Service
	repo    *MockOrderRepository
	idem    *cache.InMemoryIdempotencyStore
	events  *recordingPublisher
	results countingRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:    new(MockOrderRepository),
		idem:    cache.NewInMemoryIdempotencyStore(),
		events:  &recordingPublisher{},
		results: countingRecorder{},
	}
	t.Cleanup(func() { _ = f.idem.Close() })
	f.svc = NewService(f.repo, f.idem, f.events, f.results, shared.IdempotencyConfig{Enabled: true}, zap.NewNop())
	return f
}

var item = cart.Item{ProductID: "glucose-strips", Quantity: 2}

func TestService_Submit_InvalidInput(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()

	_, err := f.svc.Submit(context.Background(), SubmitInput{UserID: user, Items: nil, Total: decimal.NewFromInt(100)})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = f.svc.Submit(context.Background(), SubmitInput{UserID: user, Items: []cart.Item{item}, Total: decimal.Zero})
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Equal(t, 2, f.results[ResultInvalid])
}

func TestService_Submit_Success(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*order.Order")).Return(nil).Once()

	res, err := f.svc.Submit(context.Background(), SubmitInput{UserID: user, Items: []cart.Item{item}, Total: decimal.NewFromInt(100)})
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, res.Order.ID)
	assert.NotEmpty(t, res.Order.ID.String())
	assert.False(t, res.Replayed)
	require.Len(t, f.events.events, 1)
	assert.Equal(t, order.EventTypeOrderPlaced, f.events.events[0].EventType())
	assert.Empty(t, res.Order.GetDomainEvents())
	assert.Equal(t, 1, f.results[ResultAccepted])
}

func TestService_Submit_WriteFailureIsUnavailable(t *testing.T) {
	f := newFixture(t)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	_, err := f.svc.Submit(context.Background(), SubmitInput{UserID: uuid.New(), Items: []cart.Item{item}, Total: decimal.NewFromInt(100)})
	assert.ErrorIs(t, err, shared.ErrUnavailable)
	assert.Empty(t, f.events.events)
	assert.Equal(t, 1, f.results[ResultUnavailable])
}

func TestService_Submit_IdempotentRetryWritesOnce(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	ctx := context.Background()

	var stored *order.Order
	f.repo.On("FindByIdempotencyKey", mock.Anything, user, "checkout-1").
		Return(nil, shared.ErrNotFound).Once()
	f.repo.On("Create", mock.Anything, mock.AnythingOfType("*order.Order")).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*order.Order) }).
		Return(nil).Once()

	first, err := f.svc.Submit(ctx, SubmitInput{UserID: user, Items: []cart.Item{item}, Total: decimal.NewFromInt(100), IdempotencyKey: "checkout-1"})
	require.NoError(t, err)
	assert.Equal(t, "checkout-1", stored.IdempotencyKey)

	f.repo.On("FindByIdempotencyKey", mock.Anything, user, "checkout-1").Return(stored, nil)
	second, err := f.svc.Submit(ctx, SubmitInput{UserID: user, Items: []cart.Item{item}, Total: decimal.NewFromInt(100), IdempotencyKey: "checkout-1"})
	require.NoError(t, err)

	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.True(t, second.Replayed)
	f.repo.AssertNumberOfCalls(t, "Create", 1)
	assert.Len(t, f.events.events, 1)
}

func TestService_Submit_FailedWriteReleasesKey(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	ctx := context.Background()
	f.repo.On("FindByIdempotencyKey", mock.Anything, user, "k").Return(nil, shared.ErrNotFound)
	f.repo.On("Create", mock.Anything, mock.Anything).Return(shared.ErrUnavailable).Once()
	f.repo.On("Create", mock.Anything, mock.Anything).Return(nil).Once()

	_, err := f.svc.Submit(ctx, SubmitInput{UserID: user, Items: []cart.Item{item}, Total: decimal.NewFromInt(5), IdempotencyKey: "k"})
	require.ErrorIs(t, err, shared.ErrUnavailable)

	taken, err := f.idem.IsReserved(ctx, reservationKey(user, "k"))
	require.NoError(t, err)
	assert.False(t, taken)

	res, err := f.svc.Submit(ctx, SubmitInput{UserID: user, Items: []cart.Item{item}, Total: decimal.NewFromInt(5), IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.False(t, res.Replayed)
}

func TestService_Submit_ConcurrentDuplicateInFlight(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	ctx := context.Background()
	f.repo.On("FindByIdempotencyKey", mock.Anything, user, "k").Return(nil, shared.ErrNotFound)

	reserved, err := f.idem.Reserve(ctx, reservationKey(user, "k"), time.Minute)
	require.NoError(t, err)
	require.True(t, reserved)

	_, err = f.svc.Submit(ctx, SubmitInput{UserID: user, Items: []cart.Item{item}, Total: decimal.NewFromInt(5), IdempotencyKey: "k"})
	assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestService_Submit_UniqueIndexRaceReplays(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	winner, err := order.New(user, []cart.Item{item}, decimal.NewFromInt(5), "k", time.Now())
	require.NoError(t, err)

	f.repo.On("FindByIdempotencyKey", mock.Anything, user, "k").Return(nil, shared.ErrNotFound).Once()
	f.repo.On("Create", mock.Anything, mock.Anything).Return(shared.ErrAlreadyExists)
	f.repo.On("FindByIdempotencyKey", mock.Anything, user, "k").Return(winner, nil)

	res, err := f.svc.Submit(context.Background(), SubmitInput{UserID: user, Items: []cart.Item{item}, Total: decimal.NewFromInt(5), IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.Equal(t, winner.ID, res.Order.ID)
	assert.True(t, res.Replayed)
}

func TestService_Submit_KeyReusedForDifferentOrder(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	prior, err := order.New(user, []cart.Item{item}, decimal.NewFromInt(5), "k", time.Now())
	require.NoError(t, err)
	f.repo.On("FindByIdempotencyKey", mock.Anything, user, "k").Return(prior, nil)

	tests := []struct {
		name  string
		items []cart.Item
		total decimal.Decimal
	}{
		{"other total", []cart.Item{item}, decimal.NewFromInt(7)},
		{"other quantity", []cart.Item{{ProductID: item.ProductID, Quantity: 3}}, decimal.NewFromInt(5)},
		{"extra line", []cart.Item{item, {ProductID: "lancets", Quantity: 1}}, decimal.NewFromInt(5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Submit(context.Background(), SubmitInput{UserID: user, Items: tt.items, Total: tt.total, IdempotencyKey: "k"})
			assert.ErrorIs(t, err, shared.ErrInvalidInput)
		})
	}

	res, err := f.svc.Submit(context.Background(), SubmitInput{UserID: user, Items: []cart.Item{item}, Total: decimal.RequireFromString("5.00"), IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	assert.Equal(t, 3, f.results[ResultInvalid])
}

func TestService_Submit_IdempotencyDisabledIgnoresKey(t *testing.T) {
	f := newFixture(t)
	f.svc = NewService(f.repo, f.idem, nil, nil, shared.IdempotencyConfig{Enabled: false}, zap.NewNop())
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(o *order.Order) bool { return o.IdempotencyKey == "" })).Return(nil)

	_, err := f.svc.Submit(context.Background(), SubmitInput{UserID: uuid.New(), Items: []cart.Item{item}, Total: decimal.NewFromInt(5), IdempotencyKey: "k"})
	require.NoError(t, err)
	f.repo.AssertNotCalled(t, "FindByIdempotencyKey", mock.Anything, mock.Anything, mock.Anything)
}

func TestService_List(t *testing.T) {
	f := newFixture(t)
	user := uuid.New()
	o, err := order.New(user, []cart.Item{item}, decimal.NewFromInt(5), "", time.Now())
	require.NoError(t, err)

	want := shared.Filter{Page: 2, PageSize: 1, OrderBy: "created_at", OrderDir: "desc"}
	f.repo.On("FindByUser", mock.Anything, user, want).Return([]*order.Order{o}, int64(3), nil)

	page, err := f.svc.List(context.Background(), user, shared.Filter{Page: 2, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, page.TotalPages)
	assert.Len(t, page.Items, 1)
}

func TestService_Get(t *testing.T) {
	f := newFixture(t)
	user, id := uuid.New(), uuid.New()
	f.repo.On("FindByID", mock.Anything, user, id).Return(nil, shared.ErrNotFound)

	_, err := f.svc.Get(context.Background(), user, id)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
