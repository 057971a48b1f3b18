package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/medistore/backend/internal/domain/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultChangeChannel = "medistore:auth-events"
	subscriberBuffer     = 64
)

// RedisChangeBroker distributes auth-state changes over Redis Pub/Sub so
// every server instance sees sign-ins and sign-outs made on the others
type RedisChangeBroker struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// RedisChangeBrokerOption configures a RedisChangeBroker
type RedisChangeBrokerOption func(*RedisChangeBroker)

// WithChangeChannel sets the Pub/Sub channel name
func WithChangeChannel(channel string) RedisChangeBrokerOption {
	return func(b *RedisChangeBroker) {
		if channel != "" {
			b.channel = channel
		}
	}
}

// WithBrokerLogger sets the logger
func WithBrokerLogger(logger *zap.Logger) RedisChangeBrokerOption {
	return func(b *RedisChangeBroker) {
		b.logger = logger
	}
}

// NewRedisChangeBroker creates a broker on a shared client. The caller keeps
// ownership of the client.
func NewRedisChangeBroker(client *redis.Client, opts ...RedisChangeBrokerOption) *RedisChangeBroker {
	b := &RedisChangeBroker{
		client:  client,
		channel: defaultChangeChannel,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish sends a change to all subscribers on all instances
func (b *RedisChangeBroker) Publish(ctx context.Context, change session.Change) error {
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal auth change: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		b.logger.Error("Failed to publish auth change",
			zap.String("channel", b.channel),
			zap.String("user_id", change.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to publish auth change: %w", err)
	}
	b.logger.Debug("Published auth change",
		zap.String("user_id", change.UserID),
		zap.String("reason", string(change.Reason)))
	return nil
}

// Subscribe opens a Pub/Sub subscription and calls handler for every change
// in arrival order on a single goroutine
func (b *RedisChangeBroker) Subscribe(ctx context.Context, handler func(session.Change)) (func(), error) {
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := b.client.Subscribe(subCtx, b.channel)

	// wait for the subscription to be confirmed so no publish is missed
	if _, err := pubsub.Receive(subCtx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer pubsub.Close()
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					b.logger.Warn("Auth change channel closed")
					return
				}
				var change session.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					b.logger.Error("Failed to unmarshal auth change",
						zap.String("payload", msg.Payload),
						zap.Error(err))
					continue
				}
				deliver(b.logger, handler, change)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

var _ session.ChangeBroker = (*RedisChangeBroker)(nil)

// InMemoryChangeBroker is a single-process ChangeBroker. Each subscriber has
// its own buffered queue and goroutine; a subscriber whose queue is full
// misses the change rather than blocking the publisher.
type InMemoryChangeBroker struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan session.Change
	logger *zap.Logger
}

// NewInMemoryChangeBroker creates an in-process broker
func NewInMemoryChangeBroker(logger *zap.Logger) *InMemoryChangeBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryChangeBroker{
		subs:   make(map[int]chan session.Change),
		logger: logger,
	}
}

// Publish enqueues the change for every subscriber
func (b *InMemoryChangeBroker) Publish(_ context.Context, change session.Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- change:
		default:
			b.logger.Warn("Dropping auth change for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("user_id", change.UserID))
		}
	}
	return nil
}

// Subscribe registers handler until unsubscribe is called or ctx ends
func (b *InMemoryChangeBroker) Subscribe(ctx context.Context, handler func(session.Change)) (func(), error) {
	ch := make(chan session.Change, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-subCtx.Done():
				return
			case change := <-ch:
				deliver(b.logger, handler, change)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			cancel()
			<-done
		})
	}, nil
}

// Subscribers returns the number of active subscriptions
func (b *InMemoryChangeBroker) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

var _ session.ChangeBroker = (*InMemoryChangeBroker)(nil)

func deliver(logger *zap.Logger, handler func(session.Change), change session.Change) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in auth change handler", zap.Any("panic", r))
		}
	}()
	handler(change)
}
