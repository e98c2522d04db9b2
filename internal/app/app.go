package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"

	"github.com/tylerfeldstein/portfolio-chat/pkg/database"
	"github.com/tylerfeldstein/portfolio-chat/pkg/health"
	"github.com/tylerfeldstein/portfolio-chat/pkg/httpclient"
	pkgkafka "github.com/tylerfeldstein/portfolio-chat/pkg/kafka"
	"github.com/tylerfeldstein/portfolio-chat/pkg/tracing"

	"github.com/tylerfeldstein/portfolio-chat/internal/auth"
	"github.com/tylerfeldstein/portfolio-chat/internal/config"
	"github.com/tylerfeldstein/portfolio-chat/internal/event"
	handler "github.com/tylerfeldstein/portfolio-chat/internal/handler/http"
	"github.com/tylerfeldstein/portfolio-chat/internal/identity"
	"github.com/tylerfeldstein/portfolio-chat/internal/repository/postgres"
	redisrepo "github.com/tylerfeldstein/portfolio-chat/internal/repository/redis"
	"github.com/tylerfeldstein/portfolio-chat/internal/service"
	"github.com/tylerfeldstein/portfolio-chat/migrations"
)

// App wires together all dependencies and runs the chat service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	pool           *pgxpool.Pool
	redis          *goredis.Client
	producer       *pkgkafka.Producer
	sessions       *service.SessionService
	httpServer     *http.Server
	tracerShutdown func(context.Context) error
	sweepStop      chan struct{}
	sweepDone      chan struct{}
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize OpenTelemetry tracing.
	tracerShutdown, err := tracing.InitTracer(ctx, tracing.Config{
		ServiceName:    "chat",
		ServiceVersion: "0.1.0",
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		SampleRate:     cfg.TraceSampleRate,
		Enabled:        cfg.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}

	// Initialize PostgreSQL connection pool.
	pgCfg := database.PostgresConfig{
		Host:            cfg.PostgresHost,
		Port:            cfg.PostgresPort,
		User:            cfg.PostgresUser,
		Password:        cfg.PostgresPass,
		DBName:          cfg.PostgresDB,
		SSLMode:         cfg.PostgresSSL,
		MaxConns:        cfg.DBMaxConns,
		MinConns:        cfg.DBMinConns,
		MaxConnLifetime: cfg.DBMaxConnLifetime,
		MaxConnIdleTime: cfg.DBMaxConnIdleTime,
	}

	pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	logger.Info("connected to PostgreSQL",
		slog.String("host", cfg.PostgresHost),
		slog.Int("port", cfg.PostgresPort),
		slog.String("database", cfg.PostgresDB),
	)
	database.RegisterPoolMetrics(pool, "chat")

	// Run database migrations.
	if err := database.RunMigrations(ctx, pool, migrations.FS, logger); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	logger.Info("database migrations completed")

	// Initialize Redis for typing presence.
	redisClient, err := database.NewRedisClient(ctx, database.RedisConfig{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("connected to Redis", slog.String("host", cfg.RedisHost))

	// Initialize Kafka producer.
	kafkaCfg := pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers)
	producer := pkgkafka.NewProducer(kafkaCfg, logger)
	logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))

	// Build the dependency graph.
	signer := auth.NewTokenSigner(cfg.JWTSecret, cfg.JWTAccessExpiry, cfg.JWTRefreshExpiry)
	cookies := auth.NewCookieManager(!cfg.IsDevelopment())

	userRepo := postgres.NewUserRepository(pool)
	tokenRepo := postgres.NewTokenRepository(pool)
	chatRepo := postgres.NewChatRepository(pool)
	messageRepo := postgres.NewMessageRepository(pool)
	typingRepo := redisrepo.NewTypingRepository(redisClient)

	providerClient := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpclient.DefaultConfig()),
		httpclient.DefaultCircuitBreakerConfig("identity-provider"),
		logger,
	)
	provider := identity.NewProvider(cfg.IdentityProviderURL, providerClient, logger)

	eventProducer := event.NewProducer(producer, logger)
	sessionService := service.NewSessionService(tokenRepo, userRepo, signer, eventProducer, logger)
	identityService := service.NewIdentityService(userRepo, provider, sessionService, logger)
	authorizer := service.NewAuthorizer(chatRepo)
	chatService := service.NewChatService(chatRepo, messageRepo, typingRepo, userRepo, authorizer, eventProducer, logger)

	// Health checks. Redis and Kafka are non-critical: typing presence and
	// event publication degrade without taking sessions down.
	healthHandler := health.NewHandler()
	healthHandler.RegisterCritical("postgres", func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
		return redisClient.Ping(ctx).Err()
	})
	healthHandler.RegisterNonCritical("kafka", func(ctx context.Context) error {
		return producer.Ping(ctx)
	})

	// HTTP router.
	router := handler.NewRouter(
		identityService,
		sessionService,
		chatService,
		cookies,
		healthHandler,
		logger,
		handler.CORSConfig{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			Environment:    cfg.Environment,
		},
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		cfg:            cfg,
		logger:         logger,
		pool:           pool,
		redis:          redisClient,
		producer:       producer,
		sessions:       sessionService,
		httpServer:     httpServer,
		tracerShutdown: tracerShutdown,
		sweepStop:      make(chan struct{}),
		sweepDone:      make(chan struct{}),
	}, nil
}

// Run starts the HTTP server and the ledger sweep, blocking until the
// context is canceled.
func (a *App) Run(ctx context.Context) error {
	go a.runLedgerSweep()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	return a.Shutdown()
}

// runLedgerSweep periodically garbage-collects invalidated and fully expired
// token records.
func (a *App) runLedgerSweep() {
	defer close(a.sweepDone)

	ticker := time.NewTicker(a.cfg.TokenSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.sweepStop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			n, err := a.sessions.SweepExpired(ctx)
			cancel()
			if err != nil {
				a.logger.Error("ledger sweep failed", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				a.logger.Info("ledger sweep completed", slog.Int64("deleted", n))
			}
		}
	}
}

// Shutdown gracefully stops all components in the correct order:
// 1. Ledger sweep (no new writes)
// 2. HTTP server (drain in-flight requests)
// 3. Tracer (flush pending spans from drained requests)
// 4. Kafka producer
// 5. Redis client
// 6. PostgreSQL pool
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	var errs []error

	// 1. Stop the ledger sweep.
	close(a.sweepStop)
	<-a.sweepDone

	// 2. Drain in-flight HTTP requests (5s budget).
	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := a.httpServer.Shutdown(httpCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 3. Flush pending spans after HTTP drain so in-flight request spans are captured.
	if a.tracerShutdown != nil {
		tracerCtx, tracerCancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer tracerCancel()
		if err := a.tracerShutdown(tracerCtx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
			errs = append(errs, err)
		}
	}

	// 4. Close Kafka producer.
	if err := a.producer.Close(); err != nil {
		a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 5. Close Redis client.
	if err := a.redis.Close(); err != nil {
		a.logger.Error("redis close error", slog.String("error", err.Error()))
		errs = append(errs, err)
	}

	// 6. Close PostgreSQL pool.
	a.pool.Close()

	a.logger.Info("application shutdown complete")
	return errors.Join(errs...)
}
