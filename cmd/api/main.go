package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	httpAdapter "github.com/mehmetymw/failover-dispatch/internal/adapter/http"
	"github.com/mehmetymw/failover-dispatch/internal/adapter/memory"
	"github.com/mehmetymw/failover-dispatch/internal/adapter/postgres"
	"github.com/mehmetymw/failover-dispatch/internal/adapter/provider"
	"github.com/mehmetymw/failover-dispatch/internal/adapter/queue"
	"github.com/mehmetymw/failover-dispatch/internal/adapter/ws"
	"github.com/mehmetymw/failover-dispatch/internal/app"
	"github.com/mehmetymw/failover-dispatch/internal/domain"
	"github.com/mehmetymw/failover-dispatch/internal/port"
	"github.com/mehmetymw/failover-dispatch/pkg/circuitbreaker"
	"github.com/mehmetymw/failover-dispatch/pkg/config"
	"github.com/mehmetymw/failover-dispatch/pkg/logger"
	"github.com/mehmetymw/failover-dispatch/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.JaegerEndpoint != "" {
		tp, err := tracing.InitTracer(ctx, "failover-dispatch", cfg.JaegerEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracer, continuing without tracing", zap.Error(err))
		} else {
			defer func() { _ = tp.Shutdown(context.Background()) }()
		}
	}

	opts := []app.Option{
		app.WithRetryLimit(cfg.RetryLimit),
		app.WithLogger(log),
	}

	wsHub := ws.NewHub()
	opts = append(opts, app.WithBroadcaster(wsHub))

	var (
		db       *sqlx.DB
		attempts port.AttemptReader
	)
	if cfg.DatabaseURL != "" {
		db, err = postgres.NewConnection(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatal("failed to connect to database", zap.Error(err))
		}
		defer func() { _ = db.Close() }()

		runMigrations(cfg.DatabaseURL, log)

		attemptRepo := postgres.NewAttemptRepo(db)
		attempts = attemptRepo
		opts = append(opts, app.WithAttemptRecorder(attemptRepo))
	}

	coordinator, err := app.NewDispatchCoordinator(memory.NewStatusStore(), buildProviders(cfg, log), opts...)
	if err != nil {
		log.Fatal("failed to build dispatch coordinator", zap.Error(err))
	}

	var (
		publisher port.DispatchPublisher
		consumer  *queue.Consumer
	)
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		producer := queue.NewProducer(brokers, cfg.KafkaTopic)
		defer func() { _ = producer.Close() }()
		publisher = producer

		consumer = queue.NewConsumer(queue.ConsumerConfig{
			Brokers: brokers,
			Topic:   cfg.KafkaTopic,
			Group:   cfg.KafkaConsumerGroup,
			Logger:  log,
		})

		go func() {
			if err := consumer.Start(ctx, dispatchFromQueue(coordinator, cfg.DispatchTimeout)); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("kafka consumer stopped", zap.Error(err))
			}
		}()
	}

	router := httpAdapter.NewRouter(httpAdapter.RouterDeps{
		DispatchHandler:  httpAdapter.NewDispatchHandler(coordinator, publisher, attempts, cfg.DispatchTimeout),
		HealthHandler:    httpAdapter.NewHealthHandler(db, cfg.Brokers()),
		MetricsHandler:   httpAdapter.NewMetricsHandler(coordinator.Metrics()),
		WebSocketHandler: httpAdapter.NewWebSocketHandler(wsHub),
		Logger:           log,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.AppPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.DispatchTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting http server",
			zap.String("port", cfg.AppPort),
			zap.Int("retry_limit", coordinator.RetryLimit()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("http server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down gracefully")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	cancel()
	if consumer != nil {
		if err := consumer.Stop(shutdownCtx); err != nil {
			log.Error("failed to stop consumer", zap.Error(err))
		}
	}

	log.Info("server stopped")
}

// buildProviders turns the configured endpoints into the fallback list.
// Without endpoints it falls back to two mock providers so the service can
// run locally.
func buildProviders(cfg *config.Config, log *zap.Logger) []port.Provider {
	endpoints := cfg.Providers()
	if len(endpoints) == 0 {
		log.Warn("no PROVIDER_URLS configured, using mock providers")
		return []port.Provider{
			provider.NewMockProvider("mock-primary", 0.5, 50*time.Millisecond),
			provider.NewMockProvider("mock-secondary", 0.1, 50*time.Millisecond),
		}
	}

	providers := make([]port.Provider, 0, len(endpoints))
	for _, ep := range endpoints {
		var p port.Provider = provider.NewWebhookProvider(ep.Name, ep.URL, cfg.ProviderTimeout)
		if cfg.BreakerEnabled {
			p = provider.NewBreakerProvider(p, circuitbreaker.NewWithSettings(ep.Name, provider.BreakerSettings()))
		}
		providers = append(providers, p)

		log.Info("provider registered",
			zap.String("provider", ep.Name),
			zap.String("url", ep.URL),
			zap.Bool("breaker", cfg.BreakerEnabled),
		)
	}
	return providers
}

func dispatchFromQueue(coordinator *app.DispatchCoordinator, timeout time.Duration) port.DispatchHandler {
	return func(ctx context.Context, key string, msg *domain.Message) error {
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		_, err := coordinator.Dispatch(ctx, msg, key)
		return err
	}
}

func runMigrations(databaseURL string, log *zap.Logger) {
	m, err := migrate.New("file://migrations", databaseURL)
	if err != nil {
		log.Warn("failed to create migrator", zap.Error(err))
		return
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Warn("migration failed", zap.Error(err))
		return
	}

	log.Info("database migrations applied")
}
