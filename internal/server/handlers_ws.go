package server

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/gatherly/eventwire/internal/adapter/websocket"
	"github.com/gatherly/eventwire/internal/errors"
	"github.com/gatherly/eventwire/internal/metrics"
)

var upgrader = ws.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // identity is asserted upstream, not via origin
	},
}

// handleWebSocket upgrades the request and registers the connection. Identity
// comes from the X-User-Id header, which the edge proxy verifies before the
// request reaches this service.
func (s *Server) handleWebSocket(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-Id")
	if userID == "" {
		metrics.WebSocketUpgradesTotal.WithLabelValues("rejected").Inc()
		return errors.ValidationError("X-User-Id header is required")
	}
	eventID := c.QueryParam("event_id")
	sessionID := c.QueryParam("session_id")
	ip := c.RealIP()

	ok, reason := s.limits.Acquire(ip)
	if !ok {
		metrics.ConnectionLimitRejections.WithLabelValues(string(reason)).Inc()
		metrics.WebSocketUpgradesTotal.WithLabelValues("rejected").Inc()
		slog.Warn("Connection rejected by limiter", "ip", ip, "reason", reason)
		if reason == LimitReasonGlobal {
			return errors.CapacityError("maximum connection count reached")
		}
		return echo.NewHTTPError(http.StatusTooManyRequests, "too many connections")
	}

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.limits.Release(ip)
		metrics.WebSocketUpgradesTotal.WithLabelValues("failed").Inc()
		slog.Warn("WebSocket upgrade failed", "ip", ip, "error", err)
		// Upgrade already wrote its handshake error to the response.
		return nil
	}

	transport := websocket.NewTransport(conn)
	connID, err := s.registry.Add(uuid.NewString(), userID, transport, eventID, sessionID)
	if err != nil {
		// The registry closed the transport; the client sees the socket drop.
		s.limits.Release(ip)
		metrics.WebSocketUpgradesTotal.WithLabelValues("rejected").Inc()
		slog.Warn("Connection rejected by registry", "user_id", userID, "error", err)
		return nil
	}

	metrics.WebSocketUpgradesTotal.WithLabelValues("success").Inc()

	// Blocks until the socket errors or closes. The pump keeps pong frames
	// flowing to the heartbeat monitor.
	transport.ReadPump(func() {
		s.registry.Remove(connID)
		s.limits.Release(ip)
		slog.Debug("Connection closed", "connection_id", connID, "user_id", userID)
	})

	return nil
}
