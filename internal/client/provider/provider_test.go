package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/medistore/backend/internal/client/localstore"
	"github.com/medistore/backend/internal/domain/cart"
	"github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/interfaces/http/dto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUser = session.User{ID: "6f1c1f8e-3a51-4b43-9d52-0d7b8c1f2e11", Email: "jane@example.com"}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func authBody(access string) dto.Response {
	return dto.NewSuccessResponse(map[string]any{
		"token": map[string]string{"access_token": access, "refresh_token": "refresh-" + access},
		"user":  testUser,
	})
}

func newTestClient(t *testing.T, mux *http.ServeMux) (*Client, *localstore.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	store := localstore.NewMemoryStore()
	c := New(Config{BaseURL: srv.URL, Timeout: 2 * time.Second, MaxRetries: 2, RetryBackoff: time.Millisecond}, store, nil)
	return c, store
}

func signedIn(t *testing.T, c *Client, access string) {
	t.Helper()
	require.NoError(t, c.saveSession(context.Background(), &storedSession{
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		User:         testUser,
	}))
}

func TestClient_SignInPersistsSession(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "correct-horse" {
			writeJSON(w, http.StatusUnauthorized, dto.NewErrorResponse(dto.ErrCodeUnauthorized, "Invalid email or password", ""))
			return
		}
		writeJSON(w, http.StatusOK, authBody("a1"))
	})
	mux.HandleFunc("GET /api/v1/auth/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer a1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, dto.NewSuccessResponse(testUser))
	})
	c, store := newTestClient(t, mux)
	ctx := context.Background()

	_, err := c.SignIn(ctx, "jane@example.com", "wrong")
	assert.ErrorIs(t, err, shared.ErrAuth)
	assert.EqualError(t, err, "Invalid email or password")

	user, err := c.SignIn(ctx, "jane@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, testUser, *user)

	raw, _ := store.Get(ctx, SessionKey)
	assert.Contains(t, raw, `"access_token":"a1"`)

	me, err := c.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, testUser.Email, me.Email)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   any
		want   error
	}{
		{"not found", http.StatusNotFound, dto.NewErrorResponse(dto.ErrCodeNotFound, "Profile not found", ""), shared.ErrNotFound},
		{"validation", http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeValidation, "bad", ""), shared.ErrInvalidInput},
		{"unavailable", http.StatusServiceUnavailable, dto.NewErrorResponse(dto.ErrCodeUnavailable, "down", ""), shared.ErrUnavailable},
		{"bare 502", http.StatusBadGateway, "<html>", shared.ErrUnavailable},
		{"revoked", http.StatusUnauthorized, dto.NewErrorResponse(dto.ErrCodeTokenRevoked, "revoked", ""), shared.ErrAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("GET /api/v1/profile", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, tt.status, tt.body)
			})
			mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusUnauthorized, dto.NewErrorResponse(dto.ErrCodeUnauthorized, "expired", ""))
			})
			c, _ := newTestClient(t, mux)
			signedIn(t, c, "a1")

			_, err := c.Profile(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestClient_UnreachableServerIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	c := New(Config{BaseURL: srv.URL, Timeout: time.Second}, localstore.NewMemoryStore(), nil)

	_, err := c.SignIn(context.Background(), "jane@example.com", "pw")
	assert.ErrorIs(t, err, shared.ErrUnavailable)
}

func TestClient_RefreshesRejectedAccessToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer a2" {
			writeJSON(w, http.StatusUnauthorized, dto.NewErrorResponse(dto.ErrCodeTokenExpired, "expired", ""))
			return
		}
		writeJSON(w, http.StatusOK, dto.NewSuccessResponse(map[string]any{"username": "jane", "email": testUser.Email}))
	})
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, dto.NewSuccessResponse(map[string]any{
			"token": map[string]string{"access_token": "a2", "refresh_token": "r2"},
		}))
	})
	c, store := newTestClient(t, mux)
	signedIn(t, c, "a1")

	view, err := c.Profile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "jane", view.Username)

	raw, _ := store.Get(context.Background(), SessionKey)
	assert.Contains(t, raw, `"access_token":"a2"`)
	assert.Contains(t, raw, testUser.ID)
}

func TestClient_RejectedRefreshSignsOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/profile", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, dto.NewErrorResponse(dto.ErrCodeTokenExpired, "expired", ""))
	})
	mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusUnauthorized, dto.NewErrorResponse(dto.ErrCodeTokenRevoked, "revoked", ""))
	})
	c, store := newTestClient(t, mux)
	signedIn(t, c, "a1")

	_, err := c.Profile(context.Background())
	assert.ErrorIs(t, err, shared.ErrAuth)
	raw, _ := store.Get(context.Background(), SessionKey)
	assert.Empty(t, raw)
}

func TestClient_SubmitOrderRetriesWithSameKey(t *testing.T) {
	var attempts atomic.Int32
	var mu sync.Mutex
	var keys []string
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/orders", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get(IdempotencyKeyHeader))
		mu.Unlock()
		if attempts.Add(1) == 1 {
			writeJSON(w, http.StatusServiceUnavailable, dto.NewErrorResponse(dto.ErrCodeUnavailable, "down", ""))
			return
		}
		w.Header().Set("Idempotent-Replayed", "true")
		writeJSON(w, http.StatusOK, dto.NewSuccessResponse(map[string]any{
			"id":    "0b5a4c6e-0f0e-4d7a-9a43-5d0f1d3c2b10",
			"items": []cart.Item{{ProductID: "A", Quantity: 1}},
			"total": "19.90",
		}))
	})
	c, _ := newTestClient(t, mux)
	signedIn(t, c, "a1")

	order, err := c.SubmitOrder(context.Background(),
		[]cart.Item{{ProductID: "A", Quantity: 1}}, decimal.RequireFromString("19.90"), "key-1")
	require.NoError(t, err)
	assert.Equal(t, "0b5a4c6e-0f0e-4d7a-9a43-5d0f1d3c2b10", order.ID.String())
	assert.True(t, order.Total.Equal(decimal.RequireFromString("19.9")))
	assert.True(t, order.Replayed)
	assert.Equal(t, []string{"key-1", "key-1"}, keys)
}

func TestClient_SubmitOrderDoesNotRetryInvalidInput(t *testing.T) {
	var attempts atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/orders", func(w http.ResponseWriter, _ *http.Request) {
		attempts.Add(1)
		writeJSON(w, http.StatusBadRequest, dto.NewErrorResponse(dto.ErrCodeInvalidInput, "Order must contain at least one item", ""))
	})
	c, _ := newTestClient(t, mux)
	signedIn(t, c, "a1")

	_, err := c.SubmitOrder(context.Background(), nil, decimal.NewFromInt(100), "")
	assert.ErrorIs(t, err, shared.ErrInvalidInput)
	assert.EqualValues(t, 1, attempts.Load())
}

func TestClient_SignOut(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusServiceUnavailable, dto.NewErrorResponse(dto.ErrCodeUnavailable, "down", ""))
	})
	c, store := newTestClient(t, mux)
	ctx := context.Background()

	require.NoError(t, c.SignOut(ctx), "signed out already")

	signedIn(t, c, "a1")
	err := c.SignOut(ctx)
	assert.ErrorIs(t, err, shared.ErrUnavailable)
	raw, _ := store.Get(ctx, SessionKey)
	assert.Empty(t, raw, "local session cleared despite the server error")

	assert.NoError(t, c.SignOut(ctx))
}

func TestClient_SignOutEverywhere(t *testing.T) {
	var auth atomic.Value
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/logout-all", func(w http.ResponseWriter, r *http.Request) {
		auth.Store(r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, dto.NewSuccessResponse(nil))
	})
	c, store := newTestClient(t, mux)
	ctx := context.Background()

	signedIn(t, c, "a1")
	require.NoError(t, c.SignOutEverywhere(ctx))
	assert.Equal(t, "Bearer a1", auth.Load())
	raw, _ := store.Get(ctx, SessionKey)
	assert.Empty(t, raw)
}

func TestClient_PhoneVerifierSendsChallenge(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/auth/phone/verifier", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["challenge_response"] != "solved" {
			writeJSON(w, http.StatusUnauthorized, dto.NewErrorResponse(dto.ErrCodeUnauthorized, "Verification failed", ""))
			return
		}
		writeJSON(w, http.StatusOK, dto.NewSuccessResponse(map[string]string{"verifier_token": "vt-" + body["phone"]}))
	})
	c, _ := newTestClient(t, mux)
	ctx := context.Background()

	token, err := c.PhoneVerifier(ctx, "+15550100", "solved")
	require.NoError(t, err)
	assert.Equal(t, "vt-+15550100", token)

	_, err = c.PhoneVerifier(ctx, "+15550100", "")
	assert.ErrorIs(t, err, shared.ErrAuth)
}

// sseServer streams auth_state events pushed on events for as long as the
// request lives
type sseServer struct {
	events chan session.Change
	opened chan string
}

func (s *sseServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher := w.(http.Flusher)
	flusher.Flush()
	s.opened <- r.Header.Get("Authorization")
	for {
		select {
		case <-r.Context().Done():
			return
		case change := <-s.events:
			data, _ := json.Marshal(change)
			fmt.Fprintf(w, "event:%s\ndata:%s\n\n", eventAuthState, data)
			flusher.Flush()
			if !change.SignedIn() {
				return
			}
		}
	}
}

func TestClient_Subscribe(t *testing.T) {
	sse := &sseServer{events: make(chan session.Change), opened: make(chan string, 4)}
	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/auth/events", sse)
	mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, authBody("a1"))
	})
	c, store := newTestClient(t, mux)
	ctx := context.Background()

	got := make(chan *session.User, 8)
	unsubscribe, err := c.Subscribe(ctx, func(u *session.User) { got <- u })
	require.NoError(t, err)
	defer unsubscribe()

	next := func() *session.User {
		select {
		case u := <-got:
			return u
		case <-time.After(2 * time.Second):
			t.Fatal("no auth-state notification")
			return nil
		}
	}

	assert.Nil(t, next(), "signed out at start")

	_, err = c.SignIn(ctx, "jane@example.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "Bearer a1", <-sse.opened)

	sse.events <- session.Change{UserID: testUser.ID, User: &testUser, Reason: session.ReasonRestored}
	u := next()
	require.NotNil(t, u)
	assert.Equal(t, testUser.ID, u.ID)

	sse.events <- session.Change{UserID: testUser.ID, Reason: session.ReasonSignedOut}
	assert.Nil(t, next())

	require.Eventually(t, func() bool {
		raw, _ := store.Get(ctx, SessionKey)
		return raw == ""
	}, time.Second, 10*time.Millisecond)

	select {
	case u := <-got:
		t.Fatalf("unexpected duplicate notification %+v", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClient_UnsubscribeIsIdempotent(t *testing.T) {
	c, _ := newTestClient(t, http.NewServeMux())
	unsubscribe, err := c.Subscribe(context.Background(), func(*session.User) {})
	require.NoError(t, err)
	unsubscribe()
	unsubscribe()
}
