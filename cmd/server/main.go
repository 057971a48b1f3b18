package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	identityapp "github.com/medistore/backend/internal/application/identity"
	orderapp "github.com/medistore/backend/internal/application/order"
	profileapp "github.com/medistore/backend/internal/application/profile"
	"github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/auth"
	"github.com/medistore/backend/internal/infrastructure/cache"
	"github.com/medistore/backend/internal/infrastructure/config"
	"github.com/medistore/backend/internal/infrastructure/event"
	"github.com/medistore/backend/internal/infrastructure/logger"
	"github.com/medistore/backend/internal/infrastructure/persistence"
	"github.com/medistore/backend/internal/infrastructure/storage"
	"github.com/medistore/backend/internal/infrastructure/telemetry"
	"github.com/medistore/backend/internal/interfaces/http/handler"
	"github.com/medistore/backend/internal/interfaces/http/middleware"
	"github.com/medistore/backend/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

//	@title			MediStore API
//	@version		1.0
//	@description	Storefront backend: identity provider, profiles and orders.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("Server stopped with error", zap.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Server exited gracefully")
}

// stores are the Redis-backed stores, or in-memory ones without Redis
type stores struct {
	blacklist   auth.TokenBlacklist
	otp         auth.OTPStore
	idempotency shared.IdempotencyStore
	broker      session.ChangeBroker
	client      *redis.Client
}

func openStores(ctx context.Context, cfg *config.Config, log *zap.Logger) (*stores, error) {
	if !cfg.Redis.Enabled() {
		log.Warn("Redis not configured, using in-memory stores; run a single instance only")
		return &stores{
			blacklist:   auth.NewInMemoryTokenBlacklist(),
			otp:         auth.NewInMemoryOTPStore(),
			idempotency: cache.NewInMemoryIdempotencyStore(),
			broker:      cache.NewInMemoryChangeBroker(log.Named("auth_events")),
		}, nil
	}
	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	return &stores{
		blacklist:   auth.NewRedisTokenBlacklist(client),
		otp:         auth.NewRedisOTPStore(client),
		idempotency: cache.NewRedisIdempotencyStore(client, "medistore:idempotency:"),
		broker: cache.NewRedisChangeBroker(client,
			cache.WithChangeChannel(cfg.Auth.AuthEventsChannel),
			cache.WithBrokerLogger(log.Named("auth_events"))),
		client: client,
	}, nil
}

func openObjectStorage(ctx context.Context, cfg *config.Config, log *zap.Logger) (profileapp.ObjectStorage, error) {
	if cfg.Storage.Bucket == "" {
		log.Warn("No storage bucket configured, avatar URLs are unsigned stubs")
		return storage.NewStubObjectStorage(cfg.Storage.PublicBaseURL), nil
	}
	s3, err := storage.NewS3ObjectStorage(ctx, cfg.Storage, log.Named("storage"))
	if err != nil {
		return nil, err
	}
	if err := s3.EnsureBucket(ctx); err != nil {
		log.Warn("Storage bucket check failed, uploads may fail", zap.Error(err))
	}
	return s3, nil
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	log.Info("Starting MediStore backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry, version, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			log.Error("Error shutting down tracer", zap.Error(err))
		}
	}()

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), 200*time.Millisecond)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: 200 * time.Millisecond,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		return fmt.Errorf("init database tracing: %w", err)
	}
	log.Info("Database connected successfully")

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		_ = st.idempotency.Close()
		if st.client != nil {
			_ = st.client.Close()
		}
	}()

	objects, err := openObjectStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("init object storage: %w", err)
	}

	metrics := telemetry.NewMetrics()
	if pool, err := db.SQL(); err == nil {
		metrics.WatchDB(pool, cfg.Database.DBName)
	}
	eventBus := event.NewInMemoryEventBus(log.Named("events"))

	// Services
	jwtService := auth.NewJWTService(cfg.JWT)
	providers := map[string]auth.IDTokenVerifier{}
	if cfg.Auth.GoogleClientID != "" {
		google, err := auth.NewGoogleVerifier(ctx, cfg.Auth.GoogleClientID, cfg.Auth.GoogleJWKSURL)
		if err != nil {
			return err
		}
		providers["google"] = google
	}
	var challenge auth.ChallengeVerifier = auth.SkipChallenge{}
	if cfg.Auth.Challenge.Secret != "" {
		challenge = auth.NewSiteVerifyChallenge(cfg.Auth.Challenge, nil)
	} else {
		log.Warn("No challenge secret configured, phone sign-in skips the human check")
	}
	authService := identityapp.NewAuthService(identityapp.AuthDeps{
		Accounts:  persistence.NewGormAccountRepository(db.DB),
		Tokens:    jwtService,
		Blacklist: st.blacklist,
		OTP:       st.otp,
		Verifier:  auth.NewHMACVerifier(cfg.Auth.VerifierSecret, 10*time.Minute, challenge, st.idempotency),
		Cooldowns: st.idempotency,
		SMS:       auth.NewLogSMSSender(log.Named("sms")),
		Providers: providers,
		Events:    eventBus,
		Broker:    st.broker,
		Metrics:   metrics,
	}, identityapp.AuthServiceConfig{
		BcryptCost:       cfg.Auth.BcryptCost,
		MaxLoginAttempts: cfg.Auth.MaxFailedAttempts,
		LockDuration:     cfg.Auth.LockDuration,
		OTPLength:        cfg.Auth.OTPLength,
		OTPTTL:           cfg.Auth.OTPTTL,
		OTPMaxAttempts:   cfg.Auth.OTPMaxAttempts,
		SMSCooldown:      cfg.Auth.SMSCooldown,
	}, log.Named("auth"))

	profileService := profileapp.NewService(
		persistence.NewGormProfileRepository(db.DB),
		objects,
		profileapp.ServiceConfig{AvatarURLExpiry: cfg.Storage.PresignExpiry},
		log.Named("profile"),
	)
	orderService := orderapp.NewService(
		persistence.NewGormOrderRepository(db.DB),
		st.idempotency,
		eventBus,
		metrics,
		shared.IdempotencyConfig{Enabled: cfg.Orders.IdempotencyEnabled, TTL: cfg.Orders.IdempotencyTTL},
		log.Named("orders"),
	)

	// Sign-ups create profiles, sign-ins touch lastLogin, orders bump the counter
	profileEvents := profileapp.NewEventHandler(profileService, log.Named("profile_events"))
	eventBus.Subscribe(profileEvents)
	log.Info("Event handlers registered", zap.Strings("profile_events", profileEvents.EventTypes()))

	if err := eventBus.Start(ctx); err != nil {
		return fmt.Errorf("start event bus: %w", err)
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	var authLimiter *middleware.RateLimiter
	if cfg.HTTP.AuthRateLimitEnabled {
		authLimiter = middleware.NewRateLimiter(cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow, cfg.HTTP.AuthRateLimitBurst)
	}
	var exposed *telemetry.Metrics
	if cfg.Telemetry.MetricsEnabled {
		exposed = metrics
	}

	checks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}
	if st.client != nil {
		checks["redis"] = func(ctx context.Context) error {
			return st.client.Ping(ctx).Err()
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := router.New(router.Options{
		Config:       cfg,
		Logger:       log,
		Version:      version,
		JWT:          jwtService,
		Blacklist:    st.blacklist,
		Metrics:      exposed,
		AuthLimiter:  authLimiter,
		Auth:         authService,
		Profiles:     profileService,
		Orders:       orderService,
		HealthChecks: checks,
	})

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	if authLimiter != nil {
		g.Go(func() error {
			authLimiter.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
