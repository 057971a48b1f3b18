package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/medistore/backend/internal/infrastructure/auth"
	"github.com/medistore/backend/internal/infrastructure/config"
	"github.com/medistore/backend/internal/infrastructure/telemetry"
	"github.com/medistore/backend/internal/interfaces/http/dto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-key-that-is-long-enough-32",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "medistore-test",
	})
}

func issue(t *testing.T, svc *auth.JWTService) (*auth.TokenPair, string) {
	t.Helper()
	uid := uuid.New()
	pair, err := svc.GenerateTokenPair(auth.TokenSubject{UserID: uid, Email: "ada@example.com"})
	require.NoError(t, err)
	return pair, uid.String()
}

func decode(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

type failingBlacklist struct{ auth.TokenBlacklist }

func (failingBlacklist) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func (failingBlacklist) IsUserRevoked(context.Context, string, time.Time) (bool, error) {
	return false, errors.New("redis down")
}

func TestJWTAuthMiddleware(t *testing.T) {
	svc := newJWTService()
	pair, uid := issue(t, svc)

	revoked := auth.NewInMemoryTokenBlacklist()
	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)

	tests := []struct {
		name      string
		header    string
		blacklist auth.TokenBlacklist
		revoke    bool
		status    int
		code      string
	}{
		{name: "missing header", status: http.StatusUnauthorized, code: dto.ErrCodeUnauthorized},
		{name: "wrong scheme", header: "Basic abc", status: http.StatusUnauthorized, code: dto.ErrCodeUnauthorized},
		{name: "garbage token", header: "Bearer abc", status: http.StatusUnauthorized, code: dto.ErrCodeUnauthorized},
		{name: "refresh token rejected", header: "Bearer " + pair.RefreshToken, status: http.StatusUnauthorized, code: dto.ErrCodeUnauthorized},
		{name: "valid", header: "Bearer " + pair.AccessToken, status: http.StatusOK},
		{name: "revoked", header: "Bearer " + pair.AccessToken, blacklist: revoked, revoke: true, status: http.StatusUnauthorized, code: dto.ErrCodeTokenRevoked},
		{name: "blacklist down fails open", header: "Bearer " + pair.AccessToken, blacklist: failingBlacklist{}, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.revoke {
				require.NoError(t, revoked.Revoke(context.Background(), claims.ID, time.Minute))
			}
			r := gin.New()
			r.Use(JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{JWTService: svc, TokenBlacklist: tt.blacklist}))
			r.GET("/me", func(c *gin.Context) {
				c.String(http.StatusOK, GetUserID(c))
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decode(t, w).Error.Code)
			} else {
				assert.Equal(t, uid, w.Body.String())
			}
		})
	}
}

func TestJWTAuthMiddleware_SkipPaths(t *testing.T) {
	r := gin.New()
	r.Use(JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{JWTService: newJWTService(), SkipPaths: []string{"/health"}}))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPageGuard(t *testing.T) {
	svc := newJWTService()
	pair, _ := issue(t, svc)

	r := gin.New()
	r.GET("/dashboard", PageGuard(JWTMiddlewareConfig{JWTService: svc}), func(c *gin.Context) {
		c.String(http.StatusOK, "protected")
	})

	t.Run("anonymous is redirected once", func(t *testing.T) {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard?tab=orders", nil))
		assert.Equal(t, http.StatusFound, w.Code)
		assert.Equal(t, "/login?next=%2Fdashboard%3Ftab%3Dorders", w.Header().Get("Location"))
		assert.NotContains(t, w.Body.String(), "protected")
	})

	t.Run("cookie session renders", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: pair.AccessToken})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "protected", w.Body.String())
	})

	t.Run("bearer session renders", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
		req.Header.Set(AuthHeaderKey, "Bearer "+pair.AccessToken)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	ok, wait := rl.Reserve("a")
	assert.False(t, ok)
	assert.Greater(t, wait, time.Duration(0))
	assert.True(t, rl.Allow("b"))

	now = now.Add(31 * time.Second)
	assert.True(t, rl.Allow("a"))

	now = now.Add(3 * time.Minute)
	assert.Equal(t, 2, rl.Cleanup())
}

func TestRateLimit_Middleware(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), RateLimit(NewRateLimiter(1, time.Hour, 1)))
	r.POST("/login", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/login", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	resp := decode(t, w)
	assert.Equal(t, dto.ErrCodeRateLimited, resp.Error.Code)
	assert.NotEmpty(t, resp.Error.RequestID)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(RequestIDKey)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "given-id")
	r.ServeHTTP(w, req)
	assert.Equal(t, "given-id", w.Body.String())
	assert.Equal(t, "given-id", w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	_, err := uuid.Parse(w.Body.String())
	assert.NoError(t, err)
}

func TestCORSWithConfig(t *testing.T) {
	cfg := DefaultCORSConfig()
	cfg.AllowOrigins = []string{"https://shop.example.com"}
	r := gin.New()
	r.Use(CORSWithConfig(cfg))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://shop.example.com")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestBodyLimit(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(8))
	r.POST("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/bind", func(c *gin.Context) {
		var body map[string]string
		if err := c.ShouldBindJSON(&body); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("0123456789")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Equal(t, dto.ErrCodeTooLarge, decode(t, w).Error.Code)

	// no Content-Length, so the limit trips while the body is decoded
	req := httptest.NewRequest(http.MethodPost, "/bind", strings.NewReader(`{"name":"a long value"}`))
	req.ContentLength = -1
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("ok")))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetrics(t *testing.T) {
	m := telemetry.NewMetrics()
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for range 2 {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/42", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	series, err := testutil.GatherAndCount(m.Registry(), "medistore_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, series)
}

type bindTarget struct {
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone" binding:"omitempty,phone"`
}

func TestValidation(t *testing.T) {
	SetupValidator()
	r := gin.New()
	r.POST("/", func(c *gin.Context) {
		var in bindTarget
		if err := c.ShouldBindJSON(&in); err != nil {
			HandleValidationError(c, err)
			return
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"nope","phone":"555"}`)))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	fields := map[string]string{}
	for _, d := range resp.Error.Details {
		fields[d.Field] = d.Message
	}
	assert.Equal(t, "Invalid email format", fields["email"])
	assert.Equal(t, "Must be an E.164 phone number", fields["phone"])

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{`)))
	assert.Equal(t, dto.ErrCodeBadRequest, decode(t, w).Error.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","phone":"+15551234567"}`)))
	assert.Equal(t, http.StatusOK, w.Code)
}
