package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	httpAdapter "github.com/iho/occledger/internal/adapter/http"
	"github.com/iho/occledger/internal/adapter/http/handler"
	"github.com/iho/occledger/internal/adapter/http/middleware"
	postgresRepo "github.com/iho/occledger/internal/adapter/repository/postgres"
	redisRepo "github.com/iho/occledger/internal/adapter/repository/redis"
	"github.com/iho/occledger/internal/infrastructure/config"
	"github.com/iho/occledger/internal/infrastructure/logger"
	"github.com/iho/occledger/internal/infrastructure/metrics"
	"github.com/iho/occledger/internal/infrastructure/postgres"
	"github.com/iho/occledger/internal/infrastructure/redis"
	"github.com/iho/occledger/internal/usecase"
)

const rateLimitCleanupInterval = 10 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	zerolog.DefaultContextLogger = &log

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(log.WithContext(ctx), cfg); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	log := zerolog.Ctx(ctx)

	isolation, err := postgresRepo.ParseIsolation(cfg.DatabaseIsolation)
	if err != nil {
		return err
	}

	policy, err := retryPolicy(cfg)
	if err != nil {
		return err
	}

	if cfg.AutoMigrate {
		if err := postgres.RunMigrations(ctx, cfg.DatabaseURL, cfg.MigrationsPath); err != nil {
			return err
		}
	}

	conn, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseConnectTimeout)
	if err != nil {
		return err
	}
	log.Info().Str("isolation", cfg.DatabaseIsolation).Msg("connected to postgres")

	m := metrics.New()

	guard := postgresRepo.NewConnGuard(conn,
		postgresRepo.WithIsolation(isolation),
		postgresRepo.WithWaitObserver(m.ObserveConnWait),
		postgresRepo.WithReconnect(func(ctx context.Context) (postgresRepo.Conn, error) {
			return postgres.Connect(ctx, cfg.DatabaseURL, cfg.DatabaseConnectTimeout)
		}),
	)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTPShutdownTimeout)
		defer cancel()
		if err := guard.Close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("failed to close database connection")
		}
	}()

	// Redis is optional; without it requests are not deduplicated
	var (
		redisClient      goredis.UniversalClient
		idempotencyStore usecase.IdempotencyStore
	)
	if cfg.RedisURL != "" {
		client, err := redis.Connect(ctx, cfg.RedisURL, cfg.DatabaseConnectTimeout)
		if err != nil {
			return err
		}
		defer client.Close()
		log.Info().Msg("connected to redis")

		redisClient = client
		idempotencyStore = redisRepo.NewIdempotencyStore(client)
	}

	// Initialize use cases
	transferUC := usecase.NewTransferUseCase(
		guard,
		postgresRepo.NewTransferExecutor(),
		postgresRepo.NewConflictClassifier(),
		postgresRepo.NewULIDGenerator(),
		m,
		policy,
	)
	accountUC := usecase.NewAccountUseCase(guard, postgresRepo.NewAccountRepository())
	ledgerUC := usecase.NewLedgerUseCase(guard, postgresRepo.NewLedgerRepository())

	routerCfg := httpAdapter.RouterConfig{
		AccountHandler:   handler.NewAccountHandler(accountUC),
		TransferHandler:  handler.NewTransferHandler(transferUC),
		LedgerHandler:    handler.NewLedgerHandler(ledgerUC),
		HealthHandler:    handler.NewHealthHandler(guard, redisClient),
		IdempotencyStore: idempotencyStore,
		IdempotencyTTL:   cfg.IdempotencyTTL,
		Metrics:          m,
		Gatherer:         prometheus.DefaultGatherer,
		Logger:           *log,
	}

	if cfg.RateLimitRPS > 0 {
		limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		stopCleanup := make(chan struct{})
		defer close(stopCleanup)
		go limiter.Run(rateLimitCleanupInterval, stopCleanup)
		routerCfg.RateLimiter = limiter
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:      httpAdapter.NewRouter(routerCfg),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
		BaseContext:  func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTPShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server stopped")
	return nil
}

// retryPolicy builds the conflict retry policy from configuration.
func retryPolicy(cfg *config.Config) (usecase.RetryPolicy, error) {
	if cfg.RetryMaxAttempts < 0 {
		return usecase.RetryPolicy{}, fmt.Errorf("RETRY_MAX_ATTEMPTS must not be negative: %d", cfg.RetryMaxAttempts)
	}

	switch strings.ToLower(cfg.RetryBackoff) {
	case "", "none":
		policy := usecase.UnboundedRetry()
		policy.MaxAttempts = cfg.RetryMaxAttempts
		return policy, nil
	case "exponential":
		return usecase.ExponentialRetry(cfg.RetryMaxAttempts, cfg.RetryInitialInterval, cfg.RetryMaxInterval), nil
	default:
		return usecase.RetryPolicy{}, fmt.Errorf("unknown RETRY_BACKOFF %q", cfg.RetryBackoff)
	}
}
