//go:build integration

package integration

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medistore/backend/internal/client"
	"github.com/medistore/backend/internal/domain/cart"
	"github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/auth"
	"github.com/medistore/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newApp(t *testing.T, env *Env) *client.App {
	t.Helper()
	app, err := client.New(config.ClientConfig{
		BaseURL:         env.Server.URL,
		Timeout:         10 * time.Second,
		StorePath:       filepath.Join(t.TempDir(), "client.db"),
		CartMergePolicy: "append",
		MaxRetries:      1,
		RetryBackoff:    50 * time.Millisecond,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return app
}

func TestStorefront(t *testing.T) {
	env := NewEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	app := newApp(t, env)
	user, err := app.Provider.SignUp(ctx, "jane.doe@example.com", "correct-horse-battery")
	require.NoError(t, err)

	t.Run("session resolves to the signed-up user", func(t *testing.T) {
		require.NoError(t, app.Session.Start(ctx))
		got, err := app.Session.Wait(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, user.ID, got.ID)
		assert.False(t, app.Session.IsLoading())
	})

	t.Run("new profile greets a new user", func(t *testing.T) {
		// the profile row is written by the sign-up event handler
		require.Eventually(t, func() bool {
			view, err := app.Profiles.Load(ctx, user)
			return err == nil && view.Loaded
		}, 10*time.Second, 100*time.Millisecond)

		view, err := app.Profiles.Load(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, "jane.doe", view.Username)
		assert.Equal(t, "Jane Doe", view.Greeting)
		assert.True(t, view.IsNewUser)
	})

	t.Run("checkout submits the cart once", func(t *testing.T) {
		_, err := app.Cart.Add(ctx, cart.Item{ProductID: "vitamin-d", Quantity: 2})
		require.NoError(t, err)
		_, err = app.Cart.Add(ctx, cart.Item{ProductID: "bandages", Quantity: 1})
		require.NoError(t, err)

		order, err := app.Orders.Checkout(ctx, decimal.RequireFromString("24.50"))
		require.NoError(t, err)
		assert.NotEmpty(t, order.ID)
		assert.Len(t, order.Items, 2)
		assert.True(t, decimal.RequireFromString("24.50").Equal(order.Total))

		n, err := app.Cart.GetCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		page, err := app.Provider.Orders(ctx, 1, 10)
		require.NoError(t, err)
		require.Len(t, page.Orders, 1)
		assert.Equal(t, order.ID, page.Orders[0].ID)

		require.Eventually(t, func() bool {
			view, err := app.Profiles.Load(ctx, user)
			return err == nil && view.Counters.Orders == 1
		}, 10*time.Second, 100*time.Millisecond)
	})

	t.Run("retried submit with the same key is replayed", func(t *testing.T) {
		items := []cart.Item{{ProductID: "thermometer", Quantity: 1}}
		first, err := app.Provider.SubmitOrder(ctx, items, decimal.NewFromInt(15), "retry-key-1")
		require.NoError(t, err)
		assert.False(t, first.Replayed)

		second, err := app.Provider.SubmitOrder(ctx, items, decimal.NewFromInt(15), "retry-key-1")
		require.NoError(t, err)
		assert.True(t, second.Replayed)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("invalid orders are rejected", func(t *testing.T) {
		_, err := app.Provider.SubmitOrder(ctx, nil, decimal.NewFromInt(10), "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)

		_, err = app.Provider.SubmitOrder(ctx, []cart.Item{{ProductID: "x", Quantity: 1}}, decimal.Zero, "")
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("sign-out reaches subscribers and is idempotent", func(t *testing.T) {
		signedOut := make(chan struct{})
		unsubscribe := app.Session.Subscribe(func(u *session.User) {
			if u == nil {
				select {
				case <-signedOut:
				default:
					close(signedOut)
				}
			}
		})
		defer unsubscribe()

		app.Session.SignOut(ctx)
		select {
		case <-signedOut:
		case <-ctx.Done():
			t.Fatal("sign-out was not delivered")
		}
		assert.Nil(t, app.Session.Current())

		app.Session.SignOut(ctx)
		assert.Nil(t, app.Session.Current())

		_, err := app.Provider.CurrentUser(ctx)
		assert.ErrorIs(t, err, shared.ErrAuth)
	})
}

func TestSignIn_WrongPassword(t *testing.T) {
	env := NewEnv(t)
	ctx := context.Background()
	app := newApp(t, env)

	_, err := app.Provider.SignUp(ctx, "sam@example.com", "a-strong-password")
	require.NoError(t, err)
	require.NoError(t, app.Provider.SignOut(ctx))

	_, err = app.Provider.SignIn(ctx, "sam@example.com", "not-the-password")
	assert.ErrorIs(t, err, shared.ErrAuth)

	_, err = app.Provider.SignIn(ctx, "sam@example.com", "a-strong-password")
	assert.NoError(t, err)
}

func TestPhoneSignIn_VerifierAndCooldown(t *testing.T) {
	env := NewEnv(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	app := newApp(t, env)

	token, err := app.Provider.PhoneVerifier(ctx, "+15550100", "")
	require.NoError(t, err)
	_, err = app.Provider.StartPhoneSignIn(ctx, "+15550100", token)
	require.NoError(t, err)

	_, err = app.Provider.StartPhoneSignIn(ctx, "+15550100", token)
	assert.ErrorIs(t, err, shared.ErrAuth, "verifier is single-use")

	fresh, err := app.Provider.PhoneVerifier(ctx, "+15550100", "")
	require.NoError(t, err)
	_, err = app.Provider.StartPhoneSignIn(ctx, "+15550100", fresh)
	assert.ErrorIs(t, err, shared.ErrRateLimited, "one code per phone per cooldown")
}

func TestRedisOTPStore_ConcurrentConsume(t *testing.T) {
	env := NewEnv(t)
	ctx := context.Background()
	store := auth.NewRedisOTPStore(env.Redis)
	require.NoError(t, store.Save(ctx, "c1", auth.OTPEntry{Phone: "+15550100", CodeHash: auth.HashOTP("111111")}, time.Minute))

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if entry, err := store.Consume(ctx, "c1", "111111", 5); err == nil && entry.Phone == "+15550100" {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins.Load())

	require.NoError(t, store.Save(ctx, "c2", auth.OTPEntry{Phone: "+15550100", CodeHash: auth.HashOTP("111111")}, time.Minute))
	_, err := store.Consume(ctx, "c2", "000000", 2)
	assert.ErrorIs(t, err, auth.ErrOTPMismatch)
	_, err = store.Consume(ctx, "c2", "000000", 2)
	assert.ErrorIs(t, err, auth.ErrOTPExhausted)
	_, err = store.Consume(ctx, "c2", "111111", 2)
	assert.ErrorIs(t, err, auth.ErrOTPNotFound)
}
