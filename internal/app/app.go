// Package app wires the review service together and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/utafrali/folio/internal/auth"
	"github.com/utafrali/folio/internal/cache"
	"github.com/utafrali/folio/internal/config"
	"github.com/utafrali/folio/internal/dispatch"
	"github.com/utafrali/folio/internal/event"
	handler "github.com/utafrali/folio/internal/handler/http"
	"github.com/utafrali/folio/internal/job"
	"github.com/utafrali/folio/internal/repository"
	"github.com/utafrali/folio/internal/repository/memory"
	mongostore "github.com/utafrali/folio/internal/repository/mongo"
	"github.com/utafrali/folio/internal/repository/postgres"
	"github.com/utafrali/folio/internal/sender"
	"github.com/utafrali/folio/internal/sender/breaker"
	mocksender "github.com/utafrali/folio/internal/sender/mock"
	"github.com/utafrali/folio/internal/sender/smtp"
	"github.com/utafrali/folio/internal/service"
	"github.com/utafrali/folio/migrations"
	"github.com/utafrali/folio/pkg/database"
	"github.com/utafrali/folio/pkg/health"
	pkgkafka "github.com/utafrali/folio/pkg/kafka"
	"github.com/utafrali/folio/pkg/middleware"
	"github.com/utafrali/folio/pkg/tracing"
)

// ServiceName identifies the service in logs, metrics, traces and events.
const ServiceName = "review-service"

// Version is set at build time.
var Version = "dev"

// accessTokenTTL applies to generated tokens only. Validation uses exp.
const accessTokenTTL = 15 * time.Minute

// App wires together all dependencies and runs the review service.
type App struct {
	cfg    *config.Config
	logger *slog.Logger

	store      repository.Store
	dispatcher *dispatch.Dispatcher
	sweeper    *job.RetrySweeper
	httpServer *http.Server

	// closers run in reverse order on shutdown.
	closers []func(ctx context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close(context.Background())
		}
	}()

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing(ServiceName, Version))
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.closers = append(a.closers, shutdownTracer)

	reg := prometheus.NewRegistry()
	healthHandler := health.NewHandler()

	store, err := a.openStore(ctx, reg, healthHandler)
	if err != nil {
		return nil, err
	}
	a.store = store

	reviewCache, err := a.openCache(ctx, healthHandler)
	if err != nil {
		return nil, err
	}

	var kafkaProducer *pkgkafka.Producer
	if cfg.KafkaEnabled {
		kafkaProducer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		a.closers = append(a.closers, func(context.Context) error { return kafkaProducer.Close() })
		healthHandler.RegisterNonCritical("kafka", kafkaProducer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	}
	eventProducer := event.NewProducer(kafkaProducer, logger)

	a.dispatcher = dispatch.New(store.Deliveries(), a.newSender(), dispatch.Config{
		Workers:     cfg.DispatchWorkers,
		QueueSize:   cfg.DispatchQueueSize,
		MaxAttempts: cfg.DeliveryMaxAttempts,
		Backoff:     cfg.DeliveryBackoff,
	}, logger)

	a.sweeper, err = job.NewRetrySweeper(cfg.DeliveryRetrySchedule, a.dispatcher, cfg.DeliveryRetryBatch, logger)
	if err != nil {
		return nil, err
	}

	// Build the dependency graph.
	svcs := handler.Services{
		Books:         service.NewBookService(store, logger),
		Reviews:       service.NewReviewService(store, reviewCache, eventProducer, logger),
		Moderation:    service.NewModerationService(store, reviewCache, eventProducer, a.dispatcher, cfg.EditWindow, logger),
		Appeals:       service.NewAppealService(store, eventProducer, a.dispatcher, logger),
		Notifications: service.NewNotificationService(store, logger),
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, accessTokenTTL)

	router := handler.NewRouter(svcs, handler.RouterConfig{
		ServiceName: ServiceName,
		Auth:        jwtManager.Middleware,
		Health:      healthHandler,
		Metrics:     middleware.NewHTTPMetrics(reg),
		MetricsHandler: promhttp.HandlerFor(
			prometheus.Gatherers{prometheus.DefaultGatherer, reg},
			promhttp.HandlerOpts{},
		),
		CORS:           middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins},
		WriteLimiter: middleware.NewRateLimiter(middleware.RateLimitConfig{
			RPS:   cfg.WriteRateLimitRPS,
			Burst: cfg.WriteRateLimitBurst,
		}, logger),
		RequestTimeout: cfg.RequestTimeout,
		Logger:         logger,
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ok = true
	return a, nil
}

// openStore connects the configured store driver and registers its health
// check.
func (a *App) openStore(ctx context.Context, reg prometheus.Registerer, hh *health.Handler) (repository.Store, error) {
	cfg := a.cfg

	var store repository.Store
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		database.SetSlowQueryLogging(time.Duration(cfg.LogSlowQueryMS)*time.Millisecond, a.logger)

		pool, err := database.NewPostgresPool(ctx, cfg.Postgres(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		a.closers = append(a.closers, func(context.Context) error { pool.Close(); return nil })
		a.logger.Info("connected to PostgreSQL",
			slog.String("host", cfg.PostgresHost),
			slog.Int("port", cfg.PostgresPort),
			slog.String("database", cfg.PostgresDB),
		)

		if err := database.RunMigrations(ctx, pool, migrations.FS, a.logger); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if err := database.RegisterPoolMetrics(reg, pool, ServiceName); err != nil {
			return nil, fmt.Errorf("register pool metrics: %w", err)
		}
		store = postgres.NewStore(pool)

	case config.StoreDriverMongo:
		client, err := database.NewMongoClient(ctx, cfg.Mongo(), a.logger)
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		a.closers = append(a.closers, client.Disconnect)
		a.logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDBName))
		store = mongostore.NewStore(client, cfg.MongoDBName)

	case config.StoreDriverMemory:
		a.logger.Warn("using in-memory store, data is lost on restart")
		store = memory.NewStore()

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}

	hh.RegisterCritical(cfg.StoreDriver, store.Ping)
	return store, nil
}

// openCache connects Redis when enabled. The review cache is optional, so an
// unreachable Redis at startup degrades to no caching.
func (a *App) openCache(ctx context.Context, hh *health.Handler) (cache.ReviewCache, error) {
	if !a.cfg.RedisEnabled {
		return cache.Noop{}, nil
	}

	client, err := database.NewRedisClient(ctx, a.cfg.Redis())
	if err != nil {
		a.logger.Warn("redis unavailable, review cache disabled",
			slog.String("addr", a.cfg.Redis().Addr()),
			slog.String("error", err.Error()),
		)
		return cache.Noop{}, nil
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	hh.RegisterNonCritical("redis", func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	})
	a.logger.Info("connected to Redis", slog.String("addr", a.cfg.Redis().Addr()))

	return cache.NewRedisReviewCache(client, a.cfg.ReviewCacheTTL), nil
}

func (a *App) newSender() sender.Sender {
	if !a.cfg.SMTPEnabled {
		a.logger.Info("SMTP disabled, notification emails are logged only")
		return mocksender.NewMockSender(a.logger)
	}

	relay := smtp.New(smtp.Config{
		Host:     a.cfg.SMTPHost,
		Port:     a.cfg.SMTPPort,
		Username: a.cfg.SMTPUsername,
		Password: a.cfg.SMTPPassword,
		From:     a.cfg.SMTPFrom,
		FromName: a.cfg.SMTPFromName,
	}, a.logger)
	return breaker.New(relay, breaker.DefaultConfig("smtp"), a.logger)
}

// Handler returns the HTTP handler of the service.
func (a *App) Handler() http.Handler {
	return a.httpServer.Handler
}

// Run starts the HTTP server, the email dispatcher and the retry sweeper,
// then blocks until ctx is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.httpServer.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	a.dispatcher.Start(ctx)
	a.sweeper.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("starting HTTP server", slog.String("addr", ln.Addr().String()))
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			a.logger.Info("shutdown signal received")
		}
		return a.Shutdown()
	})

	return g.Wait()
}

// Shutdown gracefully stops all components. Queued emails are drained before
// the store is closed.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server shutdown: %w", err))
	}
	if err := a.sweeper.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop retry sweeper: %w", err))
	}
	if err := a.dispatcher.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop dispatcher: %w", err))
	}
	if err := a.close(ctx); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		a.logger.Error("application shutdown finished with errors", slog.String("error", err.Error()))
		return err
	}
	a.logger.Info("application shutdown complete")
	return nil
}

func (a *App) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
