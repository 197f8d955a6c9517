package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/garrettladley/notisync/internal/migrations/postgres"
	"github.com/garrettladley/notisync/internal/server"
	"github.com/garrettladley/notisync/internal/server/handler"
	"github.com/garrettladley/notisync/internal/service/inbox"
	"github.com/garrettladley/notisync/internal/service/token"
	"github.com/garrettladley/notisync/internal/service/webhook"
	"github.com/garrettladley/notisync/internal/storage"
	"github.com/garrettladley/notisync/internal/xslog"
)

const (
	keyPort        = "port"
	keyStorage     = "storage"
	keyRateLimit   = "rate_limit"
	keyRateBurst   = "rate_burst"
	keyGracePeriod = "grace_period"
)

func main() {
	_ = godotenv.Load()

	logger := xslog.NewLoggerFromEnv(os.Stdout)
	slog.SetDefault(logger)

	ctx := context.Background()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", xslog.Error(err))
		os.Exit(1)
	}
}

// backends holds whatever the chosen storage mode opened.
type backends struct {
	store   storage.NotificationStore
	broker  storage.Broker
	limiter storage.Backend
	closers []func()
}

func (b *backends) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := server.ReadConfig()
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}

	if cfg.Env.IsProduction() && cfg.Storage == server.StorageMemory {
		logger.WarnContext(ctx, "in-memory storage in production: data is lost on restart and live events do not cross replicas")
	}

	b, err := initBackends(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer b.close()

	inboxService := inbox.NewService(b.store, b.broker)
	tokenService := token.NewJWT(cfg.JWTSecret)
	webhookService := webhook.NewProcessor(cfg.WebhookSecret, inboxService)

	router := server.NewRouter(server.Deps{
		Inbox:     inboxService,
		Webhooks:  webhookService,
		Tokens:    tokenService,
		Limiter:   b.limiter,
		Health:    []handler.Pinger{b.store, b.limiter},
		Heartbeat: cfg.Heartbeat,
		Logger:    logger,
	})

	shutdownCoordinator := server.NewShutdownCoordinator(cfg.ShutdownGrace)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      0, // disabled for websockets; frames carry their own deadlines
		IdleTimeout:       60 * time.Second,
		BaseContext: func(_ net.Listener) context.Context {
			return shutdownCoordinator.BaseContext()
		},
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.InfoContext(ctx, "starting server",
			xslog.Version(),
			slog.String(keyPort, cfg.Port),
			slog.String(keyStorage, string(cfg.Storage)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-done:
	case err := <-serveErr:
		return fmt.Errorf("server error: %w", err)
	}
	logger.InfoContext(ctx, "shutdown signal received, initiating graceful shutdown")

	shutdownCoordinator.InitiateShutdown()
	logger.InfoContext(ctx, "websocket grace period complete, shutting down server",
		slog.Duration(keyGracePeriod, cfg.ShutdownGrace))

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.InfoContext(ctx, "server stopped")
	return nil
}

func initBackends(ctx context.Context, cfg server.Config, logger *slog.Logger) (*backends, error) {
	if cfg.Storage == server.StorageMemory {
		logger.InfoContext(ctx, "initializing in-memory storage",
			slog.Float64(keyRateLimit, cfg.RateLimit.Limit),
			slog.Int(keyRateBurst, cfg.RateLimit.Burst))

		broker := storage.NewMemoryBroker()
		limiter := storage.NewMemoryBackend(cfg.RateLimit.Limit, cfg.RateLimit.Burst)
		return &backends{
			store:   storage.NewMemoryNotificationStore(),
			broker:  broker,
			limiter: limiter,
			closers: []func(){
				func() { _ = broker.Close() },
				func() { _ = limiter.Close() },
			},
		}, nil
	}

	pool, err := initPostgres(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	logger.InfoContext(ctx, "initializing Redis pub/sub and rate limiter")
	redisClient, err := storage.NewRedisClient(ctx, cfg.Redis.URL)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize redis client: %w", err)
	}

	redisCfg := storage.RedisConfig{Client: redisClient}
	limiter := storage.NewRedisBackend(redisCfg, int(cfg.RateLimit.Limit))

	return &backends{
		store:   storage.NewPostgresNotificationStore(pool),
		broker:  storage.NewRedisBroker(redisCfg),
		limiter: limiter,
		closers: []func(){
			pool.Close,
			func() {
				if err := limiter.Close(); err != nil {
					logger.ErrorContext(ctx, "failed to close redis", xslog.Error(err))
				}
			},
		},
	}, nil
}

func initPostgres(ctx context.Context, cfg server.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	logger.InfoContext(ctx, "initializing PostgreSQL")

	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	applied, err := postgres.Apply(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	if len(applied) > 0 {
		logger.InfoContext(ctx, "applied migrations", xslog.Count(len(applied)))
	}

	return pool, nil
}
