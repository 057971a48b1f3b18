// Package cart is the client's cart state over local storage.
//
// Every write rewrites the whole serialized cart under cart.StorageKey.
// Reads are one-shot: nothing here notifies observers of later changes.
package cart

import (
	"context"
	"fmt"
	"sync"

	"github.com/medistore/backend/internal/domain/cart"
	"github.com/medistore/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// State reads and rewrites the persisted cart
type State struct {
	mu     sync.Mutex
	store  cart.Store
	policy cart.MergePolicy
	logger *zap.Logger
}

// New creates cart state over store. An empty policy means cart.MergeAppend.
func New(store cart.Store, policy cart.MergePolicy, logger *zap.Logger) *State {
	if policy == "" {
		policy = cart.MergeAppend
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &State{store: store, policy: policy, logger: logger}
}

// GetCount reads the persisted cart once and returns its number of lines
func (s *State) GetCount(ctx context.Context) (int, error) {
	c, err := s.load(ctx)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

// List returns the persisted cart lines
func (s *State) List(ctx context.Context) (cart.Cart, error) {
	return s.load(ctx)
}

// Add appends item, or merges it under the configured policy
func (s *State) Add(ctx context.Context, item cart.Item) (cart.Cart, error) {
	return s.update(ctx, func(c cart.Cart) (cart.Cart, error) {
		return c.Add(item, s.policy)
	})
}

// Remove drops every line for productID
func (s *State) Remove(ctx context.Context, productID string) (cart.Cart, error) {
	return s.update(ctx, func(c cart.Cart) (cart.Cart, error) {
		return c.Remove(productID), nil
	})
}

// Clear empties the cart
func (s *State) Clear(ctx context.Context) error {
	_, err := s.update(ctx, func(cart.Cart) (cart.Cart, error) {
		return cart.Cart{}, nil
	})
	return err
}

func (s *State) load(ctx context.Context) (cart.Cart, error) {
	raw, err := s.store.Get(ctx, cart.StorageKey)
	if err != nil {
		return nil, fmt.Errorf("read cart: %w", err)
	}
	c, err := cart.Decode(raw)
	if err != nil {
		// a corrupt value is treated as an empty cart; the next write replaces it
		logger.Or(ctx, s.logger).Warn("Discarding unreadable cart", zap.Error(err))
		return cart.Cart{}, nil
	}
	return c, nil
}

// update serializes read-modify-write cycles from this process
func (s *State) update(ctx context.Context, fn func(cart.Cart) (cart.Cart, error)) (cart.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	next, err := fn(current)
	if err != nil {
		return current, err
	}
	encoded, err := next.Encode()
	if err != nil {
		return current, err
	}
	if err := s.store.Set(ctx, cart.StorageKey, encoded); err != nil {
		return current, fmt.Errorf("write cart: %w", err)
	}
	return next, nil
}
