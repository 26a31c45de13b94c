package routes

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/config"
	"github.com/arklim/storefront-iam/internal/transport/http/handlers"
	"github.com/arklim/storefront-iam/internal/transport/http/middleware"
	"github.com/arklim/storefront-iam/internal/usecase"
)

// ServiceSet groups the services the HTTP layer depends on.
type ServiceSet struct {
	Auth          *usecase.AuthService
	Users         *usecase.UserService
	Roles         *usecase.RoleService
	PasswordReset *usecase.PasswordResetService
	Confirmations *usecase.AccountConfirmationService
}

// Dependencies encapsulates the objects required to register routes.
type Dependencies struct {
	Config      *config.AppConfig
	Logger      *zap.Logger
	RateLimiter *middleware.RateLimiter
	Services    ServiceSet
	Issuer      port.AccessTokenIssuer
	Metrics     *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	Database    DatabaseChecker
	Cache       CacheChecker
}

// CatalogDependencies are the objects required by the catalog consumer's HTTP surface.
type CatalogDependencies struct {
	Config   *config.AppConfig
	Logger   *zap.Logger
	Catalog  *usecase.CatalogService
	Metrics  *middleware.HTTPMetrics
	Gatherer prometheus.Gatherer
	Database DatabaseChecker
}

// DatabaseChecker exposes readiness behaviour for database connections.
type DatabaseChecker interface {
	Ping(ctx context.Context) error
}

// CacheChecker exposes readiness behaviour for cache backends.
type CacheChecker interface {
	HealthCheck(ctx context.Context) error
}

// Register configures the identity service engine with routes and middleware.
func Register(deps Dependencies) *gin.Engine {
	r := newEngine(deps.Config, deps.Logger, deps.Metrics)

	checks := map[string]handlers.ReadinessCheck{}
	if deps.Database != nil {
		checks["database"] = deps.Database.Ping
	}
	if deps.Cache != nil {
		checks["redis"] = deps.Cache.HealthCheck
	}
	registerOps(r, handlers.NewHealthHandler(checks), deps.Gatherer)

	cookies := handlers.NewSessionCookies(deps.Config.Cookies)
	adminGuards := []gin.HandlerFunc{
		middleware.RequireAuth(),
		middleware.RequireAnyRole(deps.Config.Authorization.AdminRoles),
	}

	api := r.Group("/api/v1")
	api.Use(middleware.Authenticate(deps.Issuer, cookies.AccessName(), deps.Logger))
	{
		userGroup := api.Group("/users")

		authHandler := handlers.NewAuthHandler(deps.Services.Auth, cookies)
		authHandler.RegisterRoutes(userGroup,
			rateLimit(deps, "auth_login_ip", deps.Config.RateLimit.LoginMaxAttempts),
			rateLimit(deps, "auth_register_ip", deps.Config.RateLimit.RegisterMaxAttempts),
			rateLimit(deps, "auth_refresh_ip", deps.Config.RateLimit.RefreshMaxAttempts),
		)

		passwordHandler := handlers.NewPasswordHandler(deps.Services.PasswordReset)
		passwordHandler.RegisterRoutes(userGroup,
			rateLimit(deps, "password_reset_ip", deps.Config.RateLimit.PasswordResetMaxAttempts))

		if deps.Services.Confirmations != nil {
			handlers.NewConfirmationHandler(deps.Services.Confirmations).RegisterRoutes(userGroup)
		}

		handlers.NewUserHandler(deps.Services.Users).RegisterRoutes(userGroup, adminGuards...)

		rolesGroup := api.Group("/roles")
		handlers.NewRoleHandler(deps.Services.Roles).RegisterRoutes(rolesGroup,
			[]gin.HandlerFunc{middleware.RequireAuth()}, adminGuards)
	}

	return r
}

// RegisterCatalog configures the catalog consumer engine: the public product
// listing plus health and metrics.
func RegisterCatalog(deps CatalogDependencies) *gin.Engine {
	r := newEngine(deps.Config, deps.Logger, deps.Metrics)

	checks := map[string]handlers.ReadinessCheck{}
	if deps.Database != nil {
		checks["database"] = deps.Database.Ping
	}
	registerOps(r, handlers.NewHealthHandler(checks), deps.Gatherer)

	handlers.NewProductHandler(deps.Catalog).RegisterRoutes(r.Group("/api/v1/products"))

	return r
}

// RegisterOps builds an engine serving only health and metrics, for workers
// without a public API.
func RegisterOps(cfg *config.AppConfig, logger *zap.Logger, gatherer prometheus.Gatherer) *gin.Engine {
	r := newEngine(cfg, logger, nil)
	registerOps(r, handlers.NewHealthHandler(nil), gatherer)
	return r
}

func newEngine(cfg *config.AppConfig, logger *zap.Logger, metrics *middleware.HTTPMetrics) *gin.Engine {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Tracing(middleware.TracingOptions{}))
	r.Use(middleware.EnrichContext())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(cfg.App.AllowedOrigins))
	r.Use(metrics.Handler())

	return r
}

func registerOps(r *gin.Engine, health *handlers.HealthHandler, gatherer prometheus.Gatherer) {
	r.GET("/healthz", health.Status)
	r.GET("/readyz", health.Readiness)

	if gatherer == nil {
		r.GET("/metrics", gin.WrapH(promhttp.Handler()))
		return
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// rateLimit builds a per-IP limiter for one endpoint, or nil when limiting is disabled.
func rateLimit(deps Dependencies, name string, limit int) gin.HandlerFunc {
	if deps.RateLimiter == nil || limit <= 0 {
		return nil
	}

	window := deps.Config.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}

	return deps.RateLimiter.RateLimit(middleware.RateLimitRule{
		Name:       name,
		Limit:      limit,
		Window:     window,
		Identifier: middleware.ClientIPIdentifier(),
	})
}
