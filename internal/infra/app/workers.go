package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/arklim/storefront-iam/internal/core/domain"
	"github.com/arklim/storefront-iam/internal/core/port"
	"github.com/arklim/storefront-iam/internal/infra/config"
	"github.com/arklim/storefront-iam/internal/infra/database"
	kafkainfra "github.com/arklim/storefront-iam/internal/infra/kafka"
	"github.com/arklim/storefront-iam/internal/infra/logger"
	"github.com/arklim/storefront-iam/internal/infra/mail"
	"github.com/arklim/storefront-iam/internal/infra/telemetry"
	postgresrepo "github.com/arklim/storefront-iam/internal/repository/postgres"
	"github.com/arklim/storefront-iam/internal/transport/http/middleware"
	"github.com/arklim/storefront-iam/internal/transport/http/routes"
	"github.com/arklim/storefront-iam/internal/usecase"
)

// Worker runs one Kafka consumer group next to a small HTTP server.
type Worker struct {
	name     string
	logger   *zap.Logger
	pool     *pgxpool.Pool
	consumer *kafkainfra.ConsumerGroup
	server   *http.Server
	tracing  telemetry.ShutdownFunc
}

// NewCatalogConsumer builds the catalog side: it applies UserActivationChanged
// events to listings and serves the public product listing.
func NewCatalogConsumer(ctx context.Context, cfg *config.AppConfig) (*Worker, error) {
	w, err := newWorker(ctx, "catalog-consumer", cfg)
	if err != nil {
		return nil, err
	}

	if err := w.initCatalog(ctx, cfg); err != nil {
		w.close()
		return nil, err
	}
	return w, nil
}

func (w *Worker) initCatalog(ctx context.Context, cfg *config.AppConfig) error {
	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, w.logger)
	if err != nil {
		return fmt.Errorf("init postgres: %w", err)
	}
	w.pool = pool

	if cfg.Postgres.ApplySchema {
		if err := database.ApplySchema(ctx, pool, database.SchemaCatalog, w.logger); err != nil {
			return err
		}
	}

	catalog := usecase.NewCatalogService(postgresrepo.NewListingRepository(pool), w.logger)

	kafkaCfg := cfg.Kafka
	kafkaCfg.ConsumerGroup = cfg.Catalog.ConsumerGroup
	if err := w.initConsumer(kafkaCfg, kafkainfra.NewActivationConsumer(catalog, w.logger), domain.EventTypeUserActivationChanged); err != nil {
		return err
	}

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{
		Registerer: prometheus.DefaultRegisterer,
		Subsystem:  "catalog_http",
	})
	if err != nil {
		return fmt.Errorf("init http metrics: %w", err)
	}

	engine := routes.RegisterCatalog(routes.CatalogDependencies{
		Config:   cfg,
		Logger:   w.logger,
		Catalog:  catalog,
		Metrics:  httpMetrics,
		Gatherer: prometheus.DefaultGatherer,
		Database: pool,
	})
	w.server = newHTTPServer(cfg.Catalog.Host, cfg.Catalog.Port, engine)
	return nil
}

// NewMailWorker builds the mail dispatcher: it delivers MailSendingEvent
// messages through SMTP, or logs them when no SMTP host is configured.
func NewMailWorker(ctx context.Context, cfg *config.AppConfig) (*Worker, error) {
	w, err := newWorker(ctx, "mail-worker", cfg)
	if err != nil {
		return nil, err
	}

	if err := w.initMail(cfg); err != nil {
		w.close()
		return nil, err
	}
	return w, nil
}

func (w *Worker) initMail(cfg *config.AppConfig) error {
	var mailer port.Mailer
	if cfg.SMTP.Host == "" {
		w.logger.Info("smtp host not configured, mails are logged instead of sent")
		mailer = mail.NewLogMailer(w.logger)
	} else {
		smtpMailer, err := mail.NewSMTPMailer(cfg.SMTP, w.logger)
		if err != nil {
			return fmt.Errorf("init smtp mailer: %w", err)
		}
		mailer = smtpMailer
	}

	kafkaCfg := cfg.Kafka
	kafkaCfg.ConsumerGroup = cfg.MailWorker.ConsumerGroup
	if err := w.initConsumer(kafkaCfg, kafkainfra.NewMailConsumer(mailer, w.logger), domain.EventTypeMailSendRequested); err != nil {
		return err
	}

	engine := routes.RegisterOps(cfg, w.logger, prometheus.DefaultGatherer)
	w.server = newHTTPServer(cfg.App.Host, cfg.MailWorker.MetricsPort, engine)
	return nil
}

func newWorker(ctx context.Context, name string, cfg *config.AppConfig) (*Worker, error) {
	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	log = log.Named(name)

	telemetryCfg := cfg.Telemetry
	telemetryCfg.ServiceName = telemetryCfg.ServiceName + "-" + name
	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetryCfg, log)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	return &Worker{name: name, logger: log, tracing: shutdownTracing}, nil
}

func (w *Worker) initConsumer(cfg config.KafkaSettings, handler kafkainfra.MessageHandler, eventType string) error {
	consumer, err := kafkainfra.NewConsumerGroup(cfg, handler, w.logger, eventType)
	if err != nil {
		return fmt.Errorf("init consumer: %w", err)
	}
	w.consumer = consumer.WithMetrics(telemetry.NewMetrics(prometheus.DefaultRegisterer))
	return nil
}

// Run consumes until ctx is cancelled or the consumer or HTTP server fails.
func (w *Worker) Run(ctx context.Context) error {
	defer w.close()

	consumerErrCh := make(chan error, 1)
	go func() {
		consumerErrCh <- w.consumer.Run(ctx)
	}()

	w.logger.Info("starting worker", zap.String("worker", w.name), zap.String("address", w.server.Addr))
	serverErrCh := serve(w.server)

	select {
	case <-ctx.Done():
		return shutdown(w.server)
	case err := <-serverErrCh:
		return err
	case err := <-consumerErrCh:
		if err != nil {
			return err
		}
		return shutdown(w.server)
	}
}

func (w *Worker) close() {
	if w.consumer != nil {
		if err := w.consumer.Close(); err != nil {
			w.logger.Warn("close consumer group", zap.Error(err))
		}
	}
	if w.pool != nil {
		w.pool.Close()
	}
	flushTracing(w.tracing, w.logger)
	_ = w.logger.Sync()
}
