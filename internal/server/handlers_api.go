package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gatherly/eventwire/internal/domain"
	"github.com/gatherly/eventwire/internal/errors"
)

type broadcastRequest struct {
	Type   domain.MessageType `json:"type"`
	Data   any                `json:"data"`
	Target *domain.Target     `json:"target,omitempty"`
}

// handleBroadcast fans a message out to the resolved connections. With
// ?queue=true the message is buffered for the next flush cycle instead.
func (s *Server) handleBroadcast(c echo.Context) error {
	var req broadcastRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError("invalid request body")
	}
	if !req.Type.Valid() {
		return errors.ValidationError("unknown message type").WithContext("type", string(req.Type))
	}

	msg := &domain.Message{
		Type:   req.Type,
		Data:   req.Data,
		Target: req.Target,
	}

	if c.QueryParam("queue") == "true" {
		id := s.queue.Enqueue(msg)
		return c.JSON(http.StatusAccepted, map[string]any{"queuedId": id})
	}

	target := domain.Target{}
	if req.Target != nil {
		target = *req.Target
	}
	delivered, err := s.router.Broadcast(msg, target)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"delivered": delivered})
}

type sendNotificationRequest struct {
	RecipientID string `json:"recipientId"`
	Title       string `json:"title"`
	Message     string `json:"message"`
	Kind        string `json:"kind,omitempty"`
	Link        string `json:"link,omitempty"`
}

func (s *Server) handleSendNotification(c echo.Context) error {
	var req sendNotificationRequest
	if err := c.Bind(&req); err != nil {
		return errors.ValidationError("invalid request body")
	}

	record, err := s.bridge.SendRealtimeNotification(c.Request().Context(), req.RecipientID, req.Title, req.Message,
		domain.NotificationOptions{Kind: req.Kind, Link: req.Link})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, record)
}

func (s *Server) handleListNotifications(c echo.Context) error {
	recipientID := c.QueryParam("recipient")
	if recipientID == "" {
		return errors.ValidationError("recipient query parameter is required")
	}

	filter := domain.NotificationFilter{
		UnreadOnly: c.QueryParam("unread") == "true",
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return errors.ValidationError("limit must be a non-negative integer")
		}
		filter.Limit = limit
	}
	if raw := c.QueryParam("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return errors.ValidationError("offset must be a non-negative integer")
		}
		filter.Offset = offset
	}

	page, err := s.bridge.ListForRecipient(c.Request().Context(), recipientID, filter)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) handleMarkNotificationRead(c echo.Context) error {
	record, err := s.bridge.MarkRead(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, record)
}

func (s *Server) handleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, s.stats.Snapshot())
}
