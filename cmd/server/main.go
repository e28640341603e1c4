package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/gatherly/eventwire/internal/adapter/postgres"
	"github.com/gatherly/eventwire/internal/adapter/redis"
	"github.com/gatherly/eventwire/internal/config"
	"github.com/gatherly/eventwire/internal/logging"
	"github.com/gatherly/eventwire/internal/notification"
	"github.com/gatherly/eventwire/internal/realtime"
	"github.com/gatherly/eventwire/internal/server"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return pool
}

func setupRedis(cfg *config.Config) *redis.Client {
	client, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		slog.Error("Failed to create Redis client", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func runGracefulShutdown(srv *server.Server, queue *realtime.MessageQueue, heartbeat *realtime.HeartbeatMonitor, registry *realtime.ConnectionRegistry) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		heartbeat.Stop()
		queue.Stop()
		registry.Stop()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port)

	pool := setupDB(cfg)
	defer pool.Close()

	redisClient := setupRedis(cfg)
	defer func() { _ = redisClient.Close() }()

	eventPublisher := redis.NewConnectionEventPublisher(redisClient.Underlying(), cfg.ConnectionEventChannel)

	registry, err := realtime.NewConnectionRegistry(realtime.RegistryConfig{MaxConnections: cfg.MaxConnections}, clock, eventPublisher)
	if err != nil {
		slog.Error("Failed to create connection registry", "error", err)
		os.Exit(1)
	}

	router := realtime.NewBroadcastRouter(registry, clock)

	queue, err := realtime.NewMessageQueue(router, clock, realtime.QueueConfig{
		FlushInterval: cfg.QueueFlushInterval,
		MaxAttempts:   cfg.QueueMaxAttempts,
	})
	if err != nil {
		slog.Error("Failed to create message queue", "error", err)
		os.Exit(1)
	}

	heartbeat, err := realtime.NewHeartbeatMonitor(registry, clock, cfg.HeartbeatInterval)
	if err != nil {
		slog.Error("Failed to create heartbeat monitor", "error", err)
		os.Exit(1)
	}

	store := notification.NewBreakerStore(postgres.NewNotificationRepo(pool))
	bridge := notification.NewBridge(store, router)
	stats := realtime.NewStatsCollector(registry, queue)

	srv := server.NewServer(cfg, server.Deps{
		Registry:      registry,
		Router:        router,
		Queue:         queue,
		Bridge:        bridge,
		Stats:         stats,
		RedisCheck:    redisClient,
		PostgresCheck: pool,
		StoreBreaker:  store,
	})

	queue.Start()
	heartbeat.Start()

	done := runGracefulShutdown(srv, queue, heartbeat, registry)

	slog.Info("Server starting", "port", cfg.Port)
	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
