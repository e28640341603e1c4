package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/gatherly/eventwire/internal/domain"
)

// ConnectionEvent is the pub/sub payload for a connection lifecycle change.
type ConnectionEvent struct {
	Event      string    `json:"event"` // connected | disconnected
	Connection string    `json:"connectionId"`
	UserID     string    `json:"userId"`
	EventID    string    `json:"eventId,omitempty"`
	SessionID  string    `json:"sessionId,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// ConnectionEventPublisher publishes registry lifecycle events to a Redis
// channel so sibling services can track presence. Publishing is best-effort:
// a Redis outage never blocks or fails connection handling.
type ConnectionEventPublisher struct {
	rdb     *goredis.Client
	channel string
	timeout time.Duration
}

var _ domain.RegistryObserver = (*ConnectionEventPublisher)(nil)

// NewConnectionEventPublisher creates a publisher for the given channel.
func NewConnectionEventPublisher(rdb *goredis.Client, channel string) *ConnectionEventPublisher {
	return &ConnectionEventPublisher{rdb: rdb, channel: channel, timeout: 2 * time.Second}
}

func (p *ConnectionEventPublisher) ConnectionAdded(info domain.ConnectionInfo) {
	p.publish("connected", info)
}

func (p *ConnectionEventPublisher) ConnectionRemoved(info domain.ConnectionInfo) {
	p.publish("disconnected", info)
}

func (p *ConnectionEventPublisher) publish(event string, info domain.ConnectionInfo) {
	payload, err := json.Marshal(ConnectionEvent{
		Event:      event,
		Connection: info.ID,
		UserID:     info.UserID,
		EventID:    info.EventID,
		SessionID:  info.SessionID,
		Timestamp:  time.Now().UTC(),
	})
	if err != nil {
		slog.Error("Failed to marshal connection event", "event", event, "connection_id", info.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	if err := p.rdb.Publish(ctx, p.channel, payload).Err(); err != nil {
		slog.Warn("Failed to publish connection event", "event", event, "connection_id", info.ID, "error", err)
		return
	}
	slog.Debug("Connection event published", "event", event, "connection_id", info.ID, "channel", p.channel)
}
