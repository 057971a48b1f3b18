package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/medistore/backend/internal/domain/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type collector struct {
	mu      sync.Mutex
	changes []session.Change
}

func (c *collector) add(ch session.Change) {
	c.mu.Lock()
	c.changes = append(c.changes, ch)
	c.mu.Unlock()
}

func (c *collector) snapshot() []session.Change {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]session.Change(nil), c.changes...)
}

func TestInMemoryChangeBroker_DeliversInOrder(t *testing.T) {
	b := NewInMemoryChangeBroker(zap.NewNop())
	ctx := context.Background()

	c := &collector{}
	unsubscribe, err := b.Subscribe(ctx, c.add)
	require.NoError(t, err)
	defer unsubscribe()

	reasons := []session.ChangeReason{session.ReasonSignedIn, session.ReasonProfileUpdated, session.ReasonSignedOut}
	for _, r := range reasons {
		require.NoError(t, b.Publish(ctx, session.Change{UserID: "u1", Reason: r}))
	}

	require.Eventually(t, func() bool { return len(c.snapshot()) == 3 }, time.Second, 5*time.Millisecond)
	got := c.snapshot()
	for i, r := range reasons {
		assert.Equal(t, r, got[i].Reason)
	}
}

func TestInMemoryChangeBroker_Unsubscribe(t *testing.T) {
	b := NewInMemoryChangeBroker(nil)
	ctx := context.Background()

	c := &collector{}
	unsubscribe, err := b.Subscribe(ctx, c.add)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Subscribers())

	unsubscribe()
	unsubscribe()
	assert.Zero(t, b.Subscribers())

	require.NoError(t, b.Publish(ctx, session.Change{UserID: "u1"}))
	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, c.snapshot())
}

func TestInMemoryChangeBroker_HandlerPanicDoesNotStopDelivery(t *testing.T) {
	b := NewInMemoryChangeBroker(nil)
	ctx := context.Background()

	c := &collector{}
	first := true
	unsubscribe, err := b.Subscribe(ctx, func(ch session.Change) {
		if first {
			first = false
			panic("boom")
		}
		c.add(ch)
	})
	require.NoError(t, err)
	defer unsubscribe()

	require.NoError(t, b.Publish(ctx, session.Change{UserID: "a"}))
	require.NoError(t, b.Publish(ctx, session.Change{UserID: "b"}))

	require.Eventually(t, func() bool { return len(c.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "b", c.snapshot()[0].UserID)
}

func TestInMemoryChangeBroker_ContextCancelStopsSubscriber(t *testing.T) {
	b := NewInMemoryChangeBroker(nil)
	ctx, cancel := context.WithCancel(context.Background())

	unsubscribe, err := b.Subscribe(ctx, func(session.Change) {})
	require.NoError(t, err)
	cancel()
	unsubscribe()
	assert.Zero(t, b.Subscribers())
}
