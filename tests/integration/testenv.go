//go:build integration

// Package integration runs the server against real PostgreSQL and Redis
// containers and drives it through the client core.
package integration

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	identityapp "github.com/medistore/backend/internal/application/identity"
	orderapp "github.com/medistore/backend/internal/application/order"
	profileapp "github.com/medistore/backend/internal/application/profile"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/auth"
	"github.com/medistore/backend/internal/infrastructure/cache"
	"github.com/medistore/backend/internal/infrastructure/config"
	"github.com/medistore/backend/internal/infrastructure/event"
	"github.com/medistore/backend/internal/infrastructure/migration"
	"github.com/medistore/backend/internal/infrastructure/persistence"
	"github.com/medistore/backend/internal/infrastructure/storage"
	"github.com/medistore/backend/internal/infrastructure/telemetry"
	"github.com/medistore/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	gormpostgres "gorm.io/driver/postgres"
)

// Env is a running server with its backing stores
type Env struct {
	Server *httptest.Server
	DB     *persistence.Database
	Redis  *redis.Client
}

// NewEnv starts PostgreSQL and Redis containers, migrates the schema and
// serves the full API on an httptest server. Everything is torn down with t.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	ctx := context.Background()
	log := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))

	db := startPostgres(ctx, t)
	rdb := startRedis(ctx, t)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	migrator, err := migration.New(sqlDB, log)
	require.NoError(t, err)
	require.NoError(t, migrator.Up())

	metrics := telemetry.NewMetrics()
	bus := event.NewInMemoryEventBus(log)
	blacklist := auth.NewRedisTokenBlacklist(rdb)
	broker := cache.NewRedisChangeBroker(rdb, cache.WithChangeChannel("medistore:test-auth-events"))
	jwtService := auth.NewJWTService(config.JWTConfig{
		Secret:                 "integration-secret-key-that-is-long-enough",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		Issuer:                 "medistore-test",
	})

	authCfg := identityapp.DefaultAuthServiceConfig()
	authCfg.BcryptCost = 4
	reservations := cache.NewRedisIdempotencyStore(rdb, "medistore:test-idempotency:")
	authService := identityapp.NewAuthService(identityapp.AuthDeps{
		Accounts:  persistence.NewGormAccountRepository(db.DB),
		Tokens:    jwtService,
		Blacklist: blacklist,
		OTP:       auth.NewRedisOTPStore(rdb),
		Verifier:  auth.NewHMACVerifier("integration-verifier-secret", 10*time.Minute, auth.SkipChallenge{}, reservations),
		Cooldowns: reservations,
		SMS:       auth.NewLogSMSSender(log),
		Providers: map[string]auth.IDTokenVerifier{},
		Events:    bus,
		Broker:    broker,
		Metrics:   metrics,
	}, authCfg, log)
	profiles := profileapp.NewService(
		persistence.NewGormProfileRepository(db.DB),
		storage.NewStubObjectStorage("https://cdn.example.test"),
		profileapp.ServiceConfig{AvatarURLExpiry: time.Hour},
		log,
	)
	orders := orderapp.NewService(
		persistence.NewGormOrderRepository(db.DB),
		reservations,
		bus,
		metrics,
		shared.IdempotencyConfig{Enabled: true, TTL: time.Hour},
		log,
	)
	bus.Subscribe(profileapp.NewEventHandler(profiles, log))
	require.NoError(t, bus.Start(ctx))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })

	appCfg := &config.Config{App: config.AppConfig{Name: "medistore"}}
	appCfg.HTTP.MaxBodySize = 1 << 20
	engine := router.New(router.Options{
		Config:    appCfg,
		Logger:    log,
		Version:   "integration",
		JWT:       jwtService,
		Blacklist: blacklist,
		Auth:      authService,
		Profiles:  profiles,
		Orders:    orders,
	})
	srv := httptest.NewServer(engine)
	// event streams stay open until their clients go away
	t.Cleanup(func() {
		srv.CloseClientConnections()
		srv.Close()
	})

	return &Env{Server: srv, DB: db, Redis: rdb}
}

func startPostgres(ctx context.Context, t *testing.T) *persistence.Database {
	t.Helper()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("medistore_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate PostgreSQL container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	db, err := persistence.Open(gormpostgres.Open(dsn), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func startRedis(ctx context.Context, t *testing.T) *redis.Client {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)
	client, err := cache.NewRedisClient(ctx, config.RedisConfig{Host: host, Port: port.Int()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}
