package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sony/gobreaker"

	"github.com/gatherly/eventwire/internal/config"
	"github.com/gatherly/eventwire/internal/errors"
	"github.com/gatherly/eventwire/internal/notification"
	"github.com/gatherly/eventwire/internal/realtime"
)

// redisHealthChecker is the minimal interface for Redis health checks.
type redisHealthChecker interface {
	Ping(ctx context.Context) error
}

// postgresHealthChecker is the minimal interface for PostgreSQL health checks.
type postgresHealthChecker interface {
	Ping(ctx context.Context) error
}

// storeBreakerState reports the notification store circuit breaker state.
type storeBreakerState interface {
	State() gobreaker.State
}

type Server struct {
	echo     *echo.Echo
	config   *config.Config
	registry *realtime.ConnectionRegistry
	router   *realtime.BroadcastRouter
	queue    *realtime.MessageQueue
	bridge   *notification.Bridge
	stats    *realtime.StatsCollector
	limits   *ConnectionLimits

	redisCheck    redisHealthChecker
	postgresCheck postgresHealthChecker
	storeBreaker  storeBreakerState

	startTime time.Time
}

// Deps carries the wired components the server serves.
type Deps struct {
	Registry *realtime.ConnectionRegistry
	Router   *realtime.BroadcastRouter
	Queue    *realtime.MessageQueue
	Bridge   *notification.Bridge
	Stats    *realtime.StatsCollector

	RedisCheck    redisHealthChecker
	PostgresCheck postgresHealthChecker
	StoreBreaker  storeBreakerState
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(errors.Middleware())

	srv := &Server{
		echo:          e,
		config:        cfg,
		registry:      deps.Registry,
		router:        deps.Router,
		queue:         deps.Queue,
		bridge:        deps.Bridge,
		stats:         deps.Stats,
		limits:        NewConnectionLimits(int64(cfg.MaxConnections), cfg.MaxConnectionsPerIP, cfg.ConnectionsPerSecond, cfg.ConnectionBurst),
		redisCheck:    deps.RedisCheck,
		postgresCheck: deps.PostgresCheck,
		storeBreaker:  deps.StoreBreaker,
		startTime:     time.Now(),
	}

	srv.registerRoutes()
	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
