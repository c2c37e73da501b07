/**
 * @description
 * This is the main entry point for the ledger-service. It is responsible for
 * initializing all components of the service, including configuration, database
 * connection, message broker, Redis, repositories, the core application
 * service, and the HTTP server. It wires everything together and starts the
 * service.
 *
 * @dependencies
 * - net/http, os/signal: Standard Go libraries for the HTTP server and shutdown.
 * - github.com/go-chi/chi/v5: For HTTP routing.
 * - github.com/jackc/pgx/v5: PostgreSQL driver.
 * - go.uber.org/zap: Structured logging.
 * - internal/api, internal/app, internal/config, internal/store: Internal packages for the service.
 * - pkg/proofclient, pkg/rabbitmq: External service clients.
 */

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/vaultpay/ledger-service/internal/api"
	"github.com/vaultpay/ledger-service/internal/app"
	"github.com/vaultpay/ledger-service/internal/config"
	"github.com/vaultpay/ledger-service/internal/store"
	"github.com/vaultpay/ledger-service/pkg/proofclient"
	vprabbit "github.com/vaultpay/ledger-service/pkg/rabbitmq"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	// Load application configuration from environment variables.
	cfg, err := config.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	if strings.TrimSpace(cfg.InternalAPIKey) == "" {
		logger.Fatal("internal api key must be configured", zap.String("env", "INTERNAL_API_KEY"))
	}

	logger.Info("starting ledger-service", zap.String("port", cfg.ServerPort))

	// Establish a connection pool to the PostgreSQL database.
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database url parse failed", zap.Error(err))
	}

	poolConfig.MaxConns = 100
	poolConfig.MinConns = 20
	poolConfig.MaxConnLifetime = 30 * time.Minute
	poolConfig.MaxConnIdleTime = 5 * time.Minute

	// Disable prepared statement caching to prevent conflicts
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	dbpool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer dbpool.Close()
	logger.Info("database connected")

	// Initialize the RabbitMQ producer to publish audit and notification events.
	// Missing RabbitMQ must not keep the ledger down; events fall back to logs.
	var producer vprabbit.Publisher
	if eventProducer, err := vprabbit.NewEventProducer(cfg.RabbitMQURL, logger); err != nil {
		logger.Warn("rabbitmq producer unavailable, using fallback", zap.Error(err))
		producer = &vprabbit.EventProducerFallback{Logger: logger}
	} else {
		defer eventProducer.Close()
		producer = eventProducer
		logger.Info("rabbitmq producer connected")
	}

	// Initialize the document-service client for proof-of-payment uploads.
	// Without it, deposit proofs are stored as the raw upload handle.
	var proofs app.ProofStorage
	if strings.TrimSpace(cfg.DocumentServiceURL) == "" {
		logger.Warn("document-service client not configured, storing raw proof handles")
		proofs = app.PassthroughProofStorage{}
	} else {
		proofs = proofclient.NewClient(cfg.DocumentServiceURL, cfg.DocumentServiceAPIKey)
	}

	// Connect Redis for withdrawal rate limiting. A missing or unreachable
	// Redis disables the limiter rather than blocking startup.
	var redisClient *redis.Client
	if strings.TrimSpace(cfg.RedisURL) == "" {
		logger.Warn("redis url missing, withdrawal rate limiting disabled", zap.String("env", "REDIS_URL"))
	} else if redisOptions, parseErr := redis.ParseURL(cfg.RedisURL); parseErr != nil {
		logger.Warn("redis url parse failed, withdrawal rate limiting disabled", zap.Error(parseErr))
	} else {
		redisClient = redis.NewClient(redisOptions)
		pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
		if pingErr := redisClient.Ping(pingCtx).Err(); pingErr != nil {
			logger.Warn("redis ping failed, withdrawal rate limiting disabled", zap.Error(pingErr))
			redisClient.Close()
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info("redis connected")
		}
		cancelPing()
	}

	// Initialize the data access layer (repository).
	repository := store.NewPostgresRepository(dbpool)

	// Initialize the core application service with its dependencies.
	opts := app.ServiceOptions{
		Audit:            app.NewRabbitAuditSink(producer),
		Notifier:         app.NewRabbitNotifier(producer),
		Proofs:           proofs,
		Logger:           logger,
		WithdrawalLimit:  cfg.WithdrawalRateLimit,
		WithdrawalWindow: time.Duration(cfg.WithdrawalRateWindowMinutes) * time.Minute,
		DefaultCurrency:  cfg.DefaultCurrency,
	}
	if redisClient != nil {
		opts.RateLimiter = app.NewRedisWithdrawalRateLimiter(redisClient, cfg.RedisRateLimitPrefix)
	}
	ledgerService := app.NewService(repository, opts)

	// Initialize the API handlers and router.
	handlers := api.NewLedgerHandlers(ledgerService, logger)
	router := chi.NewRouter()
	router.Mount("/ledger", api.LedgerRoutes(handlers, api.RouterConfig{
		JWKSURL:        cfg.JWKSURL,
		Issuer:         cfg.JWTIssuer,
		Audience:       cfg.JWTAudience,
		InternalAPIKey: cfg.InternalAPIKey,
	}))

	serverAddr := fmt.Sprintf(":%s", cfg.ServerPort)
	logger.Info("server listening", zap.String("addr", serverAddr))

	server := &http.Server{
		Addr:    serverAddr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server stopped unexpectedly", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	logger.Info("shutdown started")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
}

func newLogger(level string) *zap.Logger {
	parsed, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsed = zapcore.InfoLevel
	}
	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(parsed)
	logger, err := zapConfig.Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	return logger
}
