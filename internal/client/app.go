// Package client wires the storefront client core: local storage, the API
// provider, the session store, cart state, profile access and checkout.
package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/medistore/backend/internal/client/cart"
	"github.com/medistore/backend/internal/client/localstore"
	"github.com/medistore/backend/internal/client/orders"
	"github.com/medistore/backend/internal/client/profile"
	"github.com/medistore/backend/internal/client/provider"
	"github.com/medistore/backend/internal/client/session"
	cartdomain "github.com/medistore/backend/internal/domain/cart"
	sessiondomain "github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App owns one client's state. Create it with New and release it with Close.
type App struct {
	Provider *provider.Client
	Session  *session.Store
	Cart     *cart.State
	Profiles *profile.Accessor
	Orders   *orders.Checkout

	store  *localstore.BoltStore
	logger *zap.Logger
}

// New opens local storage at cfg.StorePath and builds the client core. The
// session store is not started.
func New(cfg config.ClientConfig, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	policy, err := cartdomain.ParseMergePolicy(cfg.CartMergePolicy)
	if err != nil {
		return nil, err
	}
	store, err := localstore.OpenBolt(cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}
	return assemble(store, store, cfg, policy, logger), nil
}

func assemble(bolt *localstore.BoltStore, kv cartdomain.Store, cfg config.ClientConfig, policy cartdomain.MergePolicy, logger *zap.Logger) *App {
	api := provider.New(provider.Config{
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, kv, logger.Named("provider"))
	state := cart.New(kv, policy, logger.Named("cart"))

	return &App{
		Provider: api,
		Session:  session.New(api, logger.Named("session")),
		Cart:     state,
		Profiles: profile.NewAccessor(api, logger.Named("profile")),
		Orders:   orders.NewCheckout(state, api, logger.Named("orders")),
		store:    bolt,
		logger:   logger,
	}
}

// Close stops the session store and closes local storage
func (a *App) Close() error {
	a.Session.Close()
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// Dashboard is the data behind the signed-in landing page
type Dashboard struct {
	User      *sessiondomain.User
	Profile   profile.View
	CartCount int
	// ProfileErr is set when Profile holds fallback values
	ProfileErr error
}

// Dashboard loads the profile and the cart count concurrently. A profile
// failure degrades to fallback values; a cart read failure is returned.
func (a *App) Dashboard(ctx context.Context, user *sessiondomain.User) (*Dashboard, error) {
	if user == nil {
		return nil, shared.ErrAuth.WithMessage("Not signed in")
	}
	d := &Dashboard{User: user}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d.Profile, d.ProfileErr = a.Profiles.Load(gctx, user)
		if errors.Is(d.ProfileErr, shared.ErrAuth) {
			return d.ProfileErr
		}
		return nil
	})
	g.Go(func() error {
		n, err := a.Cart.GetCount(gctx)
		if err != nil {
			return err
		}
		d.CartCount = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}
