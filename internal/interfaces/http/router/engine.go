package router

import (
	"github.com/gin-gonic/gin"
	"github.com/medistore/backend/internal/infrastructure/auth"
	"github.com/medistore/backend/internal/infrastructure/config"
	"github.com/medistore/backend/internal/infrastructure/logger"
	"github.com/medistore/backend/internal/infrastructure/telemetry"
	"github.com/medistore/backend/internal/interfaces/http/handler"
	"github.com/medistore/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// Options are the dependencies of the storefront engine
type Options struct {
	Config    *config.Config
	Logger    *zap.Logger
	Version   string
	JWT       *auth.JWTService
	Blacklist auth.TokenBlacklist
	// Metrics is nil when /metrics is disabled
	Metrics *telemetry.Metrics
	// AuthLimiter is nil when auth rate limiting is disabled
	AuthLimiter  *middleware.RateLimiter
	Auth         handler.AuthService
	Profiles     handler.ProfileService
	Orders       handler.OrderService
	HealthChecks map[string]handler.HealthCheck
}

// New builds the gin engine with the full middleware chain and every route.
//
// Chain order: request id, recovery, tracing, request log, metrics,
// security headers, CORS, body limit.
func New(opts Options) *gin.Engine {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.Tracing(cfg.Telemetry.ServiceName, cfg.Telemetry.Enabled)...)
	engine.Use(logger.GinMiddleware(log, "/health", "/metrics"))
	engine.Use(middleware.Metrics(opts.Metrics))
	engine.Use(middleware.Secure())

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(cors))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	system := handler.NewSystemHandler(cfg.App.Name, opts.Version, opts.HealthChecks, log)
	engine.GET("/health", system.Health)
	if opts.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(opts.Metrics.Handler()))
	}

	jwtConfig := middleware.JWTMiddlewareConfig{
		JWTService:     opts.JWT,
		TokenBlacklist: opts.Blacklist,
		Logger:         log,
	}
	requireAuth := middleware.JWTAuthMiddlewareWithConfig(jwtConfig)

	pages := handler.NewPageHandler(opts.Profiles)
	engine.GET("/dashboard", middleware.PageGuard(jwtConfig), pages.Dashboard)

	authHandler := handler.NewAuthHandler(opts.Auth)
	var streams handler.StreamRecorder
	if opts.Metrics != nil {
		streams = opts.Metrics
	}
	events := handler.NewAuthEventsHandler(opts.Auth, streams, cfg.HTTP.SSEHeartbeat)
	profiles := handler.NewProfileHandler(opts.Profiles)
	orders := handler.NewOrderHandler(opts.Orders)

	var authLimit []gin.HandlerFunc
	if opts.AuthLimiter != nil {
		authLimit = append(authLimit, middleware.RateLimit(opts.AuthLimiter))
	}
	protected := []gin.HandlerFunc{requireAuth}

	Mount(engine, "v1",
		Group{Prefix: "/auth", Middleware: authLimit, Routes: []Route{
			POST("/signup", authHandler.SignUp),
			POST("/login", authHandler.Login),
			POST("/oauth/:provider", authHandler.OAuth),
			POST("/phone/verifier", authHandler.PhoneVerifier),
			POST("/phone/start", authHandler.PhoneStart),
			POST("/phone/confirm", authHandler.PhoneConfirm),
			POST("/refresh", authHandler.Refresh),
		}},
		Group{Prefix: "/auth", Middleware: protected, Routes: []Route{
			POST("/logout", authHandler.Logout),
			POST("/logout-all", authHandler.LogoutAll),
			GET("/me", authHandler.Me),
			PUT("/profile", authHandler.UpdateProfile),
			GET("/events", events.Stream),
		}},
		Group{Prefix: "/profile", Middleware: protected, Routes: []Route{
			GET("", profiles.Get),
			PUT("", profiles.UpdateUsername),
			POST("/avatar", profiles.AvatarUpload),
		}},
		Group{Prefix: "/orders", Middleware: protected, Routes: []Route{
			POST("", orders.Submit),
			GET("", orders.List),
			GET("/:id", orders.Get),
		}},
	)

	return engine
}
