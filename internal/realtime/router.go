package realtime

import (
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/gatherly/eventwire/internal/domain"
	"github.com/gatherly/eventwire/internal/errors"
	"github.com/gatherly/eventwire/internal/metrics"
)

// BroadcastRouter resolves a target description into a concrete connection
// set and dispatches messages. Delivery is best-effort, at most once per
// call: a connection that fails a write is evicted through the registry and
// the caller only ever sees a delivered count.
type BroadcastRouter struct {
	registry *ConnectionRegistry
	clock    clockwork.Clock
}

// NewBroadcastRouter creates a router over the given registry.
func NewBroadcastRouter(registry *ConnectionRegistry, clock clockwork.Clock) *BroadcastRouter {
	return &BroadcastRouter{registry: registry, clock: clock}
}

// Resolve applies the target filters against the registry, keeping only
// alive connections. An empty target selects all alive connections.
func (r *BroadcastRouter) Resolve(target domain.Target) []*domain.Connection {
	conns := r.registry.Find(domain.FindCriteria{
		EventID:    target.EventID,
		SessionID:  target.SessionID,
		ActiveOnly: true,
	})

	if len(target.UserIDs) == 0 && len(target.ExcludeUserIDs) == 0 {
		return conns
	}

	var include map[string]struct{}
	if len(target.UserIDs) > 0 {
		include = make(map[string]struct{}, len(target.UserIDs))
		for _, id := range target.UserIDs {
			include[id] = struct{}{}
		}
	}
	exclude := make(map[string]struct{}, len(target.ExcludeUserIDs))
	for _, id := range target.ExcludeUserIDs {
		exclude[id] = struct{}{}
	}

	result := conns[:0]
	for _, conn := range conns {
		if include != nil {
			if _, ok := include[conn.UserID]; !ok {
				continue
			}
		}
		// Exclusion wins even over an explicit include.
		if _, ok := exclude[conn.UserID]; ok {
			continue
		}
		result = append(result, conn)
	}
	return result
}

// Send delivers a message to a single connection. Returns false without
// error if the connection is missing or not alive; a failed or closed
// transport evicts the connection.
func (r *BroadcastRouter) Send(connectionID string, msg *domain.Message) bool {
	r.stamp(msg)
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal message", "message_id", msg.ID, "error", err)
		return false
	}

	conn, ok := r.registry.Get(connectionID)
	if !ok {
		return false
	}
	return r.deliver(conn, data)
}

// Broadcast resolves the target and sends the message to every resolved
// connection, returning the number of successful deliveries. A target that
// resolves to zero connections is a normal zero-count result, not an error;
// the only error is a message that cannot be serialized.
func (r *BroadcastRouter) Broadcast(msg *domain.Message, target domain.Target) (int, error) {
	r.stamp(msg)
	data, err := json.Marshal(msg)
	if err != nil {
		return 0, errors.InternalError("failed to marshal broadcast message", err).
			WithContext("message_id", msg.ID)
	}

	start := r.clock.Now()
	delivered := 0
	for _, conn := range r.Resolve(target) {
		if r.deliver(conn, data) {
			delivered++
		}
	}
	metrics.BroadcastDuration.Observe(r.clock.Since(start).Seconds())

	slog.Debug("Broadcast complete", "message_id", msg.ID, "type", msg.Type, "delivered", delivered)
	return delivered, nil
}

// deliver writes one frame to a connection. Transport failures are absorbed
// here: the connection is removed and the write is reported as undelivered.
func (r *BroadcastRouter) deliver(conn *domain.Connection, data []byte) bool {
	if !conn.Alive() {
		metrics.BroadcastFailedTotal.WithLabelValues("dead").Inc()
		return false
	}
	if !conn.Transport.Open() {
		metrics.BroadcastFailedTotal.WithLabelValues("closed").Inc()
		r.registry.Remove(conn.ID)
		return false
	}

	start := r.clock.Now()
	if err := conn.Transport.WriteMessage(data); err != nil {
		slog.Warn("Evicting connection after failed write", "connection_id", conn.ID, "user_id", conn.UserID, "error", err)
		metrics.BroadcastFailedTotal.WithLabelValues("write_error").Inc()
		r.registry.Remove(conn.ID)
		return false
	}
	metrics.TransportSendDuration.Observe(r.clock.Since(start).Seconds())
	metrics.BroadcastDeliveredTotal.Inc()
	return true
}

// stamp assigns the message id and timestamp if absent. Once set they are
// never rewritten.
func (r *BroadcastRouter) stamp(msg *domain.Message) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = r.clock.Now().UTC()
	}
}
