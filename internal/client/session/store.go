// Package session holds the client's view of who is signed in.
package session

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"

	"github.com/medistore/backend/internal/domain/session"
	"go.uber.org/zap"
)

// AuthProvider is the identity provider the store listens to
type AuthProvider interface {
	// Subscribe reports the signed-in user, or nil, to fn in order until
	// unsubscribe is called
	Subscribe(ctx context.Context, fn func(*session.User)) (unsubscribe func(), err error)
	SignOut(ctx context.Context) error
}

// ErrClosed is returned by Start after Close
var ErrClosed = errors.New("session store closed")

// Store tracks the current viewer. It is loading until the provider's first
// notification; after that Current is the last reported user, nil when
// signed out. Notifications are applied in the order the provider emits
// them and each one reaches every observer.
type Store struct {
	provider AuthProvider
	logger   *zap.Logger

	mu          sync.Mutex
	current     *session.User
	loading     bool
	observers   map[int]func(*session.User)
	nextID      int
	unsubscribe func()
	started     bool
	closed      bool
	ready       chan struct{}
}

// New creates a store in the loading state. Call Start to begin listening.
func New(provider AuthProvider, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		provider:  provider,
		logger:    logger,
		loading:   true,
		observers: make(map[int]func(*session.User)),
		ready:     make(chan struct{}),
	}
}

// Start subscribes to the provider. Calling it again is a no-op.
func (s *Store) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	// the provider may deliver before Subscribe returns
	unsubscribe, err := s.provider.Subscribe(ctx, s.apply)

	s.mu.Lock()
	if err != nil {
		s.started = false
		s.mu.Unlock()
		return err
	}
	if s.closed {
		s.mu.Unlock()
		unsubscribe()
		return ErrClosed
	}
	s.unsubscribe = unsubscribe
	s.mu.Unlock()
	return nil
}

func (s *Store) apply(user *session.User) {
	s.mu.Lock()
	if user != nil {
		u := *user
		user = &u
	}
	s.current = user
	if s.loading {
		s.loading = false
		close(s.ready)
	}
	observers := make([]func(*session.User), 0, len(s.observers))
	for _, id := range slices.Sorted(maps.Keys(s.observers)) {
		observers = append(observers, s.observers[id])
	}
	s.mu.Unlock()

	if user != nil {
		s.logger.Debug("Session resolved", zap.String("user_id", user.ID))
	} else {
		s.logger.Debug("Session resolved signed out")
	}
	for _, fn := range observers {
		fn(user)
	}
}

// Current returns the signed-in user, or nil while loading or signed out
func (s *Store) Current() *session.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	u := *s.current
	return &u
}

// IsLoading reports whether the first notification is still outstanding
func (s *Store) IsLoading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Wait blocks until the session has resolved and returns the current user
func (s *Store) Wait(ctx context.Context) (*session.User, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.ready:
		return s.Current(), nil
	}
}

// Subscribe registers fn for every later notification. Observers run in
// registration order. The returned func removes fn and may be called more
// than once.
func (s *Store) Subscribe(fn func(*session.User)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.observers, id)
			s.mu.Unlock()
		})
	}
}

// SignOut asks the provider to sign the viewer out. Failures are logged,
// never returned; the state changes when the provider reports it.
func (s *Store) SignOut(ctx context.Context) {
	if err := s.provider.SignOut(ctx); err != nil {
		s.logger.Error("Sign-out failed", zap.Error(err))
	}
}

// Close stops listening to the provider and waits for its delivery to end
func (s *Store) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsubscribe := s.unsubscribe
	s.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}
