package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Realtime endpoint
	s.echo.GET("/ws", s.handleWebSocket)

	// API routes
	s.echo.POST("/api/broadcast", s.handleBroadcast)
	s.echo.POST("/api/notifications", s.handleSendNotification)
	s.echo.GET("/api/notifications", s.handleListNotifications)
	s.echo.POST("/api/notifications/:id/read", s.handleMarkNotificationRead)
	s.echo.GET("/api/stats", s.handleStats)
}
