package domain

import (
	"context"
	"errors"
	"time"
)

// ErrNotificationNotFound is returned by stores when no record matches.
var ErrNotificationNotFound = errors.New("notification not found")

// Notification is a persisted in-app notification record. The store is the
// durable source of truth; the live broadcast is a best-effort nudge.
type Notification struct {
	ID          string    `json:"id"`
	RecipientID string    `json:"recipientId"`
	Title       string    `json:"title"`
	Message     string    `json:"message"`
	Kind        string    `json:"kind,omitempty"`
	Link        string    `json:"link,omitempty"`
	Read        bool      `json:"read"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NotificationOptions carries optional fields for a new notification.
type NotificationOptions struct {
	Kind string
	Link string
}

// NotificationFilter narrows ListByRecipient results.
type NotificationFilter struct {
	UnreadOnly bool
	Limit      int
	Offset     int
}

// NotificationPage is one page of a recipient's notifications.
type NotificationPage struct {
	Items []Notification `json:"items"`
	Total int            `json:"total"`
}

// NotificationStore persists and queries notification records. The realtime
// core never reads or writes notification state outside this interface.
type NotificationStore interface {
	Create(ctx context.Context, n *Notification) (*Notification, error)
	GetByID(ctx context.Context, id string) (*Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, filter NotificationFilter) (*NotificationPage, error)
	MarkRead(ctx context.Context, id string) (*Notification, error)
}
