package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sony/gobreaker"
)

type healthStatus struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp time.Time         `json:"timestamp"`
}

// handleHealth reports per-service health: the websocket layer is healthy
// while the registry accepts connections, the notification path while the
// store is reachable and its breaker closed.
func (s *Server) handleHealth(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	services := map[string]string{
		"websocket":     "healthy",
		"notifications": "healthy",
	}

	if s.storeBreaker != nil && s.storeBreaker.State() == gobreaker.StateOpen {
		services["notifications"] = "unhealthy"
	} else if s.postgresCheck != nil {
		if err := s.postgresCheck.Ping(ctx); err != nil {
			services["notifications"] = "unhealthy"
		}
	}

	status := healthStatus{
		Status:    "healthy",
		Services:  services,
		Timestamp: time.Now().UTC(),
	}
	code := http.StatusOK
	for _, state := range services {
		if state != "healthy" {
			status.Status = "unhealthy"
			code = http.StatusServiceUnavailable
			break
		}
	}

	return c.JSON(code, status)
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleReadiness(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	checks := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"redis", s.checkRedis},
		{"postgres", s.checkPostgres},
	}

	for _, check := range checks {
		if err := check.fn(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, map[string]any{
				"status":       "unhealthy",
				"failed_check": check.name,
				"error":        err.Error(),
			})
		}
	}

	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) checkRedis(ctx context.Context) error {
	if s.redisCheck == nil {
		return nil
	}
	return s.redisCheck.Ping(ctx)
}

func (s *Server) checkPostgres(ctx context.Context) error {
	if s.postgresCheck == nil {
		return nil
	}
	return s.postgresCheck.Ping(ctx)
}
