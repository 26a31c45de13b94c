package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/config"
	"github.com/arklim/storefront-iam/internal/infra/database"
	kafkainfra "github.com/arklim/storefront-iam/internal/infra/kafka"
	"github.com/arklim/storefront-iam/internal/infra/logger"
	redisinfra "github.com/arklim/storefront-iam/internal/infra/redis"
	"github.com/arklim/storefront-iam/internal/infra/security"
	"github.com/arklim/storefront-iam/internal/infra/telemetry"
	postgresrepo "github.com/arklim/storefront-iam/internal/repository/postgres"
	redisrepo "github.com/arklim/storefront-iam/internal/repository/redis"
	transportgrpc "github.com/arklim/storefront-iam/internal/transport/grpc"
	grpcinterceptors "github.com/arklim/storefront-iam/internal/transport/grpc/interceptors"
	"github.com/arklim/storefront-iam/internal/transport/http/middleware"
	"github.com/arklim/storefront-iam/internal/transport/http/routes"
	"github.com/arklim/storefront-iam/internal/usecase"
)

// Application is the identity service: HTTP API, gRPC health and the outbox dispatcher.
type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	dispatcher *usecase.OutboxDispatcher
	grpcServer *grpc.Server
	grpcHealth *health.Server
	grpcAddr   string
	tracing    telemetry.ShutdownFunc
}

func New(ctx context.Context, cfg *config.AppConfig) (*Application, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	a := &Application{
		cfg:      cfg,
		logger:   log,
		tracing:  shutdownTracing,
		grpcAddr: net.JoinHostPort(cfg.GRPC.Host, fmt.Sprint(cfg.GRPC.Port)),
	}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *Application) init(ctx context.Context) error {
	cfg, log := a.cfg, a.logger

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	a.pool = pool

	if cfg.Postgres.ApplySchema {
		if err := database.ApplySchema(ctx, pool, database.SchemaIAM, log); err != nil {
			return err
		}
	}

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("init redis: %w", err)
	}
	a.redis = redisClient

	repos, err := postgresrepo.NewRepositories(pool)
	if err != nil {
		return fmt.Errorf("init repositories: %w", err)
	}

	stores, err := tokenStores(cfg.Tokens, repos, redisClient)
	if err != nil {
		return err
	}

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      cfg.Argon2.Memory,
		Iterations:  cfg.Argon2.Iterations,
		Parallelism: cfg.Argon2.Parallelism,
		SaltLength:  cfg.Argon2.SaltLength,
		KeyLength:   cfg.Argon2.KeyLength,
	})
	if err != nil {
		return fmt.Errorf("configure argon2: %w", err)
	}

	policy := security.NewPasswordPolicy(security.PasswordPolicyConfig{
		MinLength:           cfg.Password.MinLength,
		MaxLength:           cfg.Password.MaxLength,
		MinCharacterClasses: cfg.Password.MinCharacterClasses,
		MinStrengthScore:    cfg.Password.MinStrengthScore,
	})

	issuer, err := security.NewJWTIssuer(security.JWTConfig{
		Secret:   cfg.JWT.Secret,
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		TTL:      cfg.JWT.AccessTokenTTL,
	})
	if err != nil {
		return fmt.Errorf("init jwt issuer: %w", err)
	}

	generator := security.NewSecureTokenGenerator(cfg.Tokens.ByteLength)

	registry := prometheus.DefaultRegisterer
	metrics := telemetry.NewMetrics(registry)

	refreshTokens := usecase.NewTokenLifecycleService(stores[domain.TokenKindRefresh], generator, cfg.Tokens.RefreshTTL).WithMetrics(metrics)
	resetTokens := usecase.NewTokenLifecycleService(stores[domain.TokenKindReset], generator, cfg.Tokens.ResetTTL).WithMetrics(metrics)
	confirmationTokens := usecase.NewTokenLifecycleService(stores[domain.TokenKindAccountConfirmation], generator, cfg.Tokens.ConfirmationTTL).WithMetrics(metrics)

	publisher, relay := a.eventPublisher()

	var tx port.Transactor
	if cfg.Outbox.Enabled {
		tx = repos
		a.dispatcher = usecase.NewOutboxDispatcher(repos, relay, cfg.Outbox.BatchSize, cfg.Outbox.PollInterval, log).
			WithMetrics(metrics)
	}

	confirmations := usecase.NewAccountConfirmationService(repos.Users, confirmationTokens, publisher, usecase.MailTemplate{
		Subject: cfg.Mail.ConfirmationSubject,
		Body:    cfg.Mail.ConfirmationBody,
		Link:    cfg.Auth.ConfirmAccountLink,
	}, cfg.Auth.DiscloseUnknownEmail, log)

	passwordReset := usecase.NewPasswordResetService(repos.Users, resetTokens, hasher, policy, publisher, usecase.MailTemplate{
		Subject: cfg.Mail.ResetSubject,
		Body:    cfg.Mail.ResetBody,
		Link:    cfg.Auth.ResetPasswordLink,
	}, cfg.Auth.DiscloseUnknownEmail, log)

	authService := usecase.NewAuthService(usecase.AuthConfig{
		DefaultRole:                cfg.Auth.DefaultRole,
		SendConfirmationOnRegister: cfg.Auth.SendConfirmationOnRegister,
	}, repos.Users, repos.Roles, hasher, policy, issuer, cfg.JWT.AccessTokenTTL, refreshTokens, log).
		WithConfirmation(confirmations)

	roleService := usecase.NewRoleService(repos.Roles)
	userService := usecase.NewUserService(repos.Users, repos.Roles, tx, publisher, log)

	if err := a.bootstrap(ctx, authService, roleService); err != nil {
		return err
	}

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{Registerer: registry})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}
	grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		return fmt.Errorf("init grpc metrics: %w", err)
	}

	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisClient.Key("rate-limit"))

	a.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		Issuer:      issuer,
		Metrics:     httpMetrics,
		Gatherer:    prometheus.DefaultGatherer,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:          authService,
			Users:         userService,
			Roles:         roleService,
			PasswordReset: passwordReset,
			Confirmations: confirmations,
		},
	})

	a.grpcHealth = health.NewServer()
	a.grpcServer = transportgrpc.NewServer(transportgrpc.ServerDependencies{
		Health:  a.grpcHealth,
		Metrics: grpcMetrics,
		Logger:  log,
	})

	return nil
}

// eventPublisher returns the Kafka publisher, or a logging stub when no broker is reachable.
func (a *Application) eventPublisher() (port.EventPublisher, port.OutboxRelay) {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka brokers not configured, using stub publisher")
		stub := kafkainfra.NewStubPublisher(a.logger)
		return stub, stub
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		stub := kafkainfra.NewStubPublisher(a.logger)
		return stub, stub
	}
	a.producer = producer

	publisher := kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
	return publisher, publisher
}

func (a *Application) bootstrap(ctx context.Context, auth *usecase.AuthService, roles *usecase.RoleService) error {
	seeded := append([]string{a.cfg.Auth.DefaultRole}, a.cfg.Authorization.AdminRoles...)
	if err := roles.EnsureDefaults(ctx, seeded...); err != nil {
		return fmt.Errorf("seed roles: %w", err)
	}

	if a.cfg.Bootstrap.AdminEmail == "" {
		return nil
	}
	adminRole := domain.RoleAdmin
	if len(a.cfg.Authorization.AdminRoles) > 0 {
		adminRole = a.cfg.Authorization.AdminRoles[0]
	}
	if err := auth.EnsureAdmin(ctx, usecase.BootstrapAdmin{
		Name:     a.cfg.Bootstrap.AdminName,
		Email:    a.cfg.Bootstrap.AdminEmail,
		Password: a.cfg.Bootstrap.AdminPassword,
		Role:     adminRole,
	}); err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	return nil
}

func tokenStores(cfg config.TokenSettings, repos *postgresrepo.Repositories, client *redisinfra.Client) (map[domain.TokenKind]port.SecureTokenStore, error) {
	stores := make(map[domain.TokenKind]port.SecureTokenStore, len(domain.TokenKinds))
	for _, kind := range domain.TokenKinds {
		if cfg.Store != "redis" {
			stores[kind] = repos.Tokens[kind]
			continue
		}
		store, err := redisrepo.NewTokenStore(client.Client(), kind, redisrepo.TokenStoreConfig{
			KeyPrefix: client.Key("tokens"),
			Retention: cfg.RedisRetention,
		})
		if err != nil {
			return nil, fmt.Errorf("init %s token store: %w", kind, err)
		}
		stores[kind] = store
	}
	return stores, nil
}

func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	if a.dispatcher != nil {
		stop := startBackground(ctx, a.dispatcher.Run)
		defer stop()
	}

	grpcErrCh := make(chan error, 1)
	lis, err := net.Listen("tcp", a.grpcAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}
	a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
	go func() {
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			a.logger.Error("gRPC server error", zap.Error(err))
			grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
		}
	}()
	defer a.grpcServer.GracefulStop()

	srv := newHTTPServer(a.cfg.App.Host, a.cfg.App.Port, a.engine)
	a.logger.Info("starting identity API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := serve(srv)

	select {
	case <-ctx.Done():
		a.grpcHealth.Shutdown()
		return shutdown(srv)
	case err := <-serverErrCh:
		return err
	case err := <-grpcErrCh:
		return err
	}
}

// startBackground runs fn on a child of ctx. The returned stop cancels it and
// blocks until fn has returned.
func startBackground(ctx context.Context, fn func(context.Context)) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn(ctx)
	}()
	return func() {
		cancel()
		<-done
	}
}

func (a *Application) close() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("close kafka producer", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	flushTracing(a.tracing, a.logger)
	_ = a.logger.Sync()
}

func newHTTPServer(host string, port int, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              net.JoinHostPort(host, fmt.Sprint(port)),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

func serve(srv *http.Server) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("run server: %w", err)
		}
	}()
	return errCh
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}

func flushTracing(fn telemetry.ShutdownFunc, log *zap.Logger) {
	if fn == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn("flush traces", zap.Error(err))
	}
}
