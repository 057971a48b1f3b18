package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct {
	shared.BaseDomainEvent
}

func newTestEvent(eventType string) *testEvent {
	return &testEvent{BaseDomainEvent: shared.NewBaseDomainEvent(eventType, "TestAggregate", uuid.New(), time.Now())}
}

type recorder struct {
	mu   sync.Mutex
	seen []string
}

func (r *recorder) handler(name string, err error, types ...string) *HandlerFunc {
	return &HandlerFunc{
		Name:  name,
		Types: types,
		Fn: func(_ context.Context, e shared.DomainEvent) error {
			r.mu.Lock()
			r.seen = append(r.seen, name+":"+e.EventType())
			r.mu.Unlock()
			return err
		},
	}
}

func (r *recorder) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func TestInMemoryEventBus_DeliversInOrder(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	rec := &recorder{}
	bus.Subscribe(rec.handler("a", nil, "Placed"))
	bus.Subscribe(rec.handler("b", nil, "Placed", "Registered"))
	bus.Subscribe(rec.handler("all", nil))

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("Registered"), newTestEvent("Placed")))

	assert.Equal(t, []string{"b:Registered", "all:Registered", "a:Placed", "b:Placed", "all:Placed"}, rec.events())
}

func TestInMemoryEventBus_HandlerFailureDoesNotStopOthers(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	bus := NewInMemoryEventBus(zap.New(core))
	rec := &recorder{}
	bus.Subscribe(rec.handler("failing", errors.New("boom"), "Placed"))
	bus.Subscribe(&HandlerFunc{Types: []string{"Placed"}, Fn: func(context.Context, shared.DomainEvent) error {
		panic("kaboom")
	}})
	bus.Subscribe(rec.handler("ok", nil, "Placed"))

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("Placed")))

	assert.Equal(t, []string{"failing:Placed", "ok:Placed"}, rec.events())
	assert.Equal(t, int64(2), bus.Failures())
	assert.Equal(t, 2, logs.FilterMessage("handler failed to process event").Len())
}

func TestInMemoryEventBus_Unsubscribe(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	rec := &recorder{}
	h := rec.handler("a", nil, "Placed")
	bus.Subscribe(h)
	bus.Unsubscribe(h)

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("Placed")))

	assert.Empty(t, rec.events())
	assert.Empty(t, bus.registry.GetHandlers("Placed"))
}

func TestInMemoryEventBus_StopRejectsPublish(t *testing.T) {
	bus := NewInMemoryEventBus(zap.NewNop())
	require.NoError(t, bus.Stop(context.Background()))

	assert.Error(t, bus.Publish(context.Background(), newTestEvent("Placed")))

	require.NoError(t, bus.Start(context.Background()))
	assert.NoError(t, bus.Publish(context.Background(), newTestEvent("Placed")))
}

func TestHandlerRegistry_RegistrationOrderAndDedup(t *testing.T) {
	rec := &recorder{}
	all := rec.handler("all", nil)
	placed := rec.handler("placed", nil, "Placed")

	r := NewHandlerRegistry()
	r.Register(all)
	r.Register(placed, "Placed")
	r.Register(all, "Placed")

	assert.Equal(t, []shared.EventHandler{all, placed}, r.GetHandlers("Placed"))
	assert.Equal(t, []shared.EventHandler{all}, r.GetHandlers("Registered"))

	r.Unregister(all)
	assert.Equal(t, 1, r.Len())
	assert.Empty(t, r.GetHandlers("Registered"))
}
