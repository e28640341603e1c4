// Package notification bridges the durable notification store and the live
// broadcast path. The store is the source of truth; the realtime push is a
// best-effort nudge that may reach nobody.
package notification

import (
	"context"
	stderrors "errors"
	"log/slog"
	"strings"

	"github.com/sony/gobreaker"

	"github.com/gatherly/eventwire/internal/domain"
	"github.com/gatherly/eventwire/internal/errors"
	"github.com/gatherly/eventwire/internal/metrics"
)

// Broadcaster is the realtime delivery port. Satisfied by
// *realtime.BroadcastRouter.
type Broadcaster interface {
	Broadcast(msg *domain.Message, target domain.Target) (int, error)
}

// Bridge persists notifications and pushes them to connected recipients.
type Bridge struct {
	store  domain.NotificationStore
	router Broadcaster
}

// NewBridge creates a bridge over the given store and broadcaster.
func NewBridge(store domain.NotificationStore, router Broadcaster) *Bridge {
	return &Bridge{store: store, router: router}
}

// SendRealtimeNotification persists a notification record and broadcasts it to
// the recipient's live connection. The returned record is the persisted one;
// a failed or empty broadcast is not an error since the recipient may simply
// be offline.
func (b *Bridge) SendRealtimeNotification(ctx context.Context, recipientID, title, message string, opts domain.NotificationOptions) (*domain.Notification, error) {
	if strings.TrimSpace(recipientID) == "" {
		return nil, errors.ValidationError("recipient id is required")
	}
	if strings.TrimSpace(title) == "" {
		return nil, errors.ValidationError("notification title is required")
	}
	if strings.TrimSpace(message) == "" {
		return nil, errors.ValidationError("notification message is required")
	}

	record, err := b.store.Create(ctx, &domain.Notification{
		RecipientID: recipientID,
		Title:       title,
		Message:     message,
		Kind:        opts.Kind,
		Link:        opts.Link,
	})
	if err != nil {
		metrics.NotificationsSentTotal.WithLabelValues("store_error").Inc()
		return nil, b.storeError("create notification", err)
	}

	msg := &domain.Message{
		Type:   domain.MessageNotification,
		Data:   record,
		Target: &domain.Target{UserIDs: []string{recipientID}},
	}
	delivered, err := b.router.Broadcast(msg, *msg.Target)
	switch {
	case err != nil:
		metrics.NotificationsSentTotal.WithLabelValues("missed").Inc()
		slog.Warn("Notification broadcast failed", "notification_id", record.ID, "recipient_id", recipientID, "error", err)
	case delivered == 0:
		metrics.NotificationsSentTotal.WithLabelValues("missed").Inc()
		slog.Debug("Notification recipient not connected", "notification_id", record.ID, "recipient_id", recipientID)
	default:
		metrics.NotificationsSentTotal.WithLabelValues("delivered").Inc()
		slog.Debug("Notification delivered", "notification_id", record.ID, "recipient_id", recipientID, "delivered", delivered)
	}

	return record, nil
}

// Notification fetches a single record by id.
func (b *Bridge) Notification(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.ValidationError("notification id is required")
	}
	record, err := b.store.GetByID(ctx, id)
	if err != nil {
		return nil, b.storeError("get notification", err)
	}
	return record, nil
}

// ListForRecipient returns one page of a recipient's notifications.
func (b *Bridge) ListForRecipient(ctx context.Context, recipientID string, filter domain.NotificationFilter) (*domain.NotificationPage, error) {
	if strings.TrimSpace(recipientID) == "" {
		return nil, errors.ValidationError("recipient id is required")
	}
	page, err := b.store.ListByRecipient(ctx, recipientID, filter)
	if err != nil {
		return nil, b.storeError("list notifications", err)
	}
	return page, nil
}

// MarkRead flags a notification as read and returns the updated record.
func (b *Bridge) MarkRead(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.ValidationError("notification id is required")
	}
	record, err := b.store.MarkRead(ctx, id)
	if err != nil {
		return nil, b.storeError("mark notification read", err)
	}
	return record, nil
}

func (b *Bridge) storeError(op string, err error) error {
	switch {
	case stderrors.Is(err, domain.ErrNotificationNotFound):
		return errors.NotFoundError("notification not found")
	case stderrors.Is(err, gobreaker.ErrOpenState), stderrors.Is(err, gobreaker.ErrTooManyRequests):
		return errors.ExternalError("notification store unavailable", err).WithContext("operation", op)
	default:
		return errors.ExternalError("notification store request failed", err).WithContext("operation", op)
	}
}
