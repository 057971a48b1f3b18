package router

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/medistore/backend/internal/infrastructure/auth"
	"github.com/medistore/backend/internal/infrastructure/config"
	"github.com/medistore/backend/internal/infrastructure/telemetry"
	"github.com/medistore/backend/internal/interfaces/http/middleware"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestEngine() *gin.Engine {
	cfg := &config.Config{App: config.AppConfig{Name: "medistore"}}
	cfg.HTTP.MaxBodySize = 1 << 20
	return New(Options{
		Config:  cfg,
		Version: "test",
		JWT: auth.NewJWTService(config.JWTConfig{
			Secret:                 "test-secret-key-that-is-long-enough-32",
			AccessTokenExpiration:  time.Minute,
			RefreshTokenExpiration: time.Hour,
			Issuer:                 "medistore-test",
		}),
		Metrics:     telemetry.NewMetrics(),
		AuthLimiter: middleware.NewRateLimiter(1, time.Hour, 1),
	})
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNew_PublicRoutes(t *testing.T) {
	r := newTestEngine()

	w := serve(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))

	w = serve(r, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "medistore_http_requests_total")

	w = serve(r, http.MethodGet, "/nowhere", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNew_ProtectedRoutesRequireToken(t *testing.T) {
	r := newTestEngine()
	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/auth/me"},
		{http.MethodPost, "/api/v1/auth/logout"},
		{http.MethodGet, "/api/v1/auth/events"},
		{http.MethodGet, "/api/v1/profile"},
		{http.MethodPost, "/api/v1/profile/avatar"},
		{http.MethodPost, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/orders"},
		{http.MethodGet, "/api/v1/orders/6f1c2a9e-0000-4000-8000-000000000000"},
	} {
		w := serve(r, route.method, route.path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
	}
}

func TestNew_DashboardRedirectsAnonymous(t *testing.T) {
	r := newTestEngine()
	w := serve(r, http.MethodGet, "/dashboard", "")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?next=%2Fdashboard", w.Header().Get("Location"))
}

func TestNew_AuthRoutesAreRateLimited(t *testing.T) {
	r := newTestEngine()

	w := serve(r, http.MethodPost, "/api/v1/auth/login", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = serve(r, http.MethodPost, "/api/v1/auth/login", `{}`)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// protected routes do not share the auth limiter
	w = serve(r, http.MethodGet, "/api/v1/profile", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMount(t *testing.T) {
	engine := gin.New()
	tagged := func(c *gin.Context) { c.Header("X-Group", "things") }
	Mount(engine, "v2", Group{
		Prefix:     "/things",
		Middleware: []gin.HandlerFunc{tagged},
		Routes: []Route{
			GET("", func(c *gin.Context) { c.Status(http.StatusOK) }),
			PUT("/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) }),
		},
	})

	w := serve(engine, http.MethodGet, "/api/v2/things", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "things", w.Header().Get("X-Group"))
	w = serve(engine, http.MethodPut, "/api/v2/things/7", "")
	assert.Equal(t, "7", w.Body.String())
}
