package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	clientcart "github.com/medistore/backend/internal/client/cart"
	"github.com/medistore/backend/internal/client/localstore"
	"github.com/medistore/backend/internal/client/provider"
	"github.com/medistore/backend/internal/domain/cart"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSubmitter struct {
	mock.Mock
}

func (m *MockSubmitter) SubmitOrder(ctx context.Context, items []cart.Item, total decimal.Decimal, key string) (*provider.Order, error) {
	args := m.Called(ctx, items, total, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.Order), args.Error(1)
}

func filledCart(t *testing.T) *clientcart.State {
	t.Helper()
	state := clientcart.New(localstore.NewMemoryStore(), cart.MergeAppend, nil)
	_, err := state.Add(context.Background(), cart.Item{ProductID: "A", Quantity: 1})
	require.NoError(t, err)
	_, err = state.Add(context.Background(), cart.Item{ProductID: "B", Quantity: 2})
	require.NoError(t, err)
	return state
}

func TestCheckout_ClearsCartOnSuccess(t *testing.T) {
	ctx := context.Background()
	state := filledCart(t)
	sub := new(MockSubmitter)
	id := uuid.New()
	items := []cart.Item{{ProductID: "A", Quantity: 1}, {ProductID: "B", Quantity: 2}}
	total := decimal.RequireFromString("42.50")
	sub.On("SubmitOrder", mock.Anything, items, total, mock.AnythingOfType("string")).
		Return(&provider.Order{ID: id}, nil)

	order, err := NewCheckout(state, sub, nil).Checkout(ctx, total)
	require.NoError(t, err)
	assert.Equal(t, id, order.ID)

	n, _ := state.GetCount(ctx)
	assert.Zero(t, n)
}

func TestCheckout_KeepsCartOnFailure(t *testing.T) {
	ctx := context.Background()
	state := filledCart(t)
	sub := new(MockSubmitter)
	sub.On("SubmitOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, shared.ErrUnavailable)

	_, err := NewCheckout(state, sub, nil).Checkout(ctx, decimal.NewFromInt(10))
	assert.ErrorIs(t, err, shared.ErrUnavailable)

	n, _ := state.GetCount(ctx)
	assert.Equal(t, 2, n)
}

func TestCheckout_FreshKeyPerAttempt(t *testing.T) {
	state := filledCart(t)
	sub := new(MockSubmitter)
	var keys []string
	sub.On("SubmitOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { keys = append(keys, args.String(3)) }).
		Return(nil, shared.ErrUnavailable)

	c := NewCheckout(state, sub, nil)
	_, _ = c.Checkout(context.Background(), decimal.NewFromInt(10))
	_, _ = c.Checkout(context.Background(), decimal.NewFromInt(10))

	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.NotEqual(t, keys[0], keys[1])
}

func TestCheckout_InvalidInput(t *testing.T) {
	ctx := context.Background()
	sub := new(MockSubmitter)

	empty := clientcart.New(localstore.NewMemoryStore(), "", nil)
	_, err := NewCheckout(empty, sub, nil).Checkout(ctx, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	_, err = NewCheckout(filledCart(t), sub, nil).Checkout(ctx, decimal.Zero)
	assert.ErrorIs(t, err, shared.ErrInvalidInput)

	sub.AssertNotCalled(t, "SubmitOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
