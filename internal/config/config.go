package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

// Config holds all runtime configuration. The realtime tunables
// (MaxConnections, HeartbeatInterval, QueueFlushInterval) are required and
// carry no compiled-in defaults: the operator decides them per deployment.
type Config struct {
	AppEnv      string `env:"APP_ENV" default:"development"`
	Port        string `env:"PORT" default:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" default:"info"`
	LogFormat   string `env:"LOG_FORMAT" default:"text"`

	MaxConnections     int           `env:"MAX_CONNECTIONS"`
	HeartbeatInterval  time.Duration `env:"HEARTBEAT_INTERVAL"`
	QueueFlushInterval time.Duration `env:"QUEUE_FLUSH_INTERVAL"`

	// QueueMaxAttempts caps flush retries per message. 0 retries forever.
	QueueMaxAttempts int `env:"QUEUE_MAX_ATTEMPTS" default:"0"`

	MaxConnectionsPerIP  int     `env:"MAX_CONNECTIONS_PER_IP" default:"20"`
	ConnectionsPerSecond float64 `env:"CONNECTIONS_PER_SECOND" default:"10"`
	ConnectionBurst      int     `env:"CONNECTION_BURST" default:"10"`

	ConnectionEventChannel string `env:"CONNECTION_EVENT_CHANNEL" default:"eventwire:connections"`
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	required := map[string]string{
		"DATABASE_URL": cfg.DatabaseURL,
		"REDIS_URL":    cfg.RedisURL,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required", name)
		}
	}

	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS is required and must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.HeartbeatInterval <= 0 {
		return fmt.Errorf("HEARTBEAT_INTERVAL is required and must be positive, got %v", cfg.HeartbeatInterval)
	}
	if cfg.QueueFlushInterval <= 0 {
		return fmt.Errorf("QUEUE_FLUSH_INTERVAL is required and must be positive, got %v", cfg.QueueFlushInterval)
	}
	if cfg.QueueMaxAttempts < 0 {
		return fmt.Errorf("QUEUE_MAX_ATTEMPTS must not be negative, got %d", cfg.QueueMaxAttempts)
	}
	if cfg.MaxConnectionsPerIP <= 0 {
		return fmt.Errorf("MAX_CONNECTIONS_PER_IP must be positive, got %d", cfg.MaxConnectionsPerIP)
	}

	return nil
}
