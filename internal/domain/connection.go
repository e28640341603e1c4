package domain

import (
	"sync"
	"time"
)

// Transport is an already-open bidirectional socket handed over by the
// listener. A Connection exclusively owns its Transport and closes it when the
// Connection is removed.
type Transport interface {
	// Open reports whether the underlying socket is still usable.
	Open() bool
	// WriteMessage writes one text frame. Writes to a single transport are
	// serialized by the implementation, preserving caller order.
	WriteMessage(data []byte) error
	// Ping sends a liveness probe frame.
	Ping() error
	// SetPongHandler registers a callback invoked on every pong frame.
	SetPongHandler(fn func())
	// Close closes the socket. Safe to call more than once.
	Close() error
}

// Connection is a registered live transport session bound to a user and
// optionally an event/session context. Liveness state is guarded internally
// so the heartbeat monitor and pong callbacks can mutate it without the
// registry lock.
type Connection struct {
	ID        string
	UserID    string
	EventID   string
	SessionID string
	Transport Transport

	ConnectedAt time.Time

	mu              sync.Mutex
	alive           bool
	lastHeartbeatAt time.Time
	pingPending     bool
}

// NewConnection creates a live connection owning the given transport.
func NewConnection(id, userID string, transport Transport, eventID, sessionID string, now time.Time) *Connection {
	return &Connection{
		ID:          id,
		UserID:      userID,
		EventID:     eventID,
		SessionID:   sessionID,
		Transport:   transport,
		ConnectedAt: now,
		alive:       true,
	}
}

// Alive reports whether the connection is considered live.
func (c *Connection) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

// MarkDead marks the connection as not alive.
func (c *Connection) MarkDead() {
	c.mu.Lock()
	c.alive = false
	c.mu.Unlock()
}

// MarkPing records that a liveness probe was sent and is awaiting a pong.
func (c *Connection) MarkPing(now time.Time) {
	c.mu.Lock()
	c.pingPending = true
	c.mu.Unlock()
}

// MarkPong records a pong response, restoring the connection to alive.
func (c *Connection) MarkPong(now time.Time) {
	c.mu.Lock()
	c.alive = true
	c.pingPending = false
	c.lastHeartbeatAt = now
	c.mu.Unlock()
}

// PingPending reports whether a probe is outstanding without a pong.
func (c *Connection) PingPending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pingPending
}

// LastHeartbeatAt returns the time of the last pong, if any.
func (c *Connection) LastHeartbeatAt() (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastHeartbeatAt, !c.lastHeartbeatAt.IsZero()
}

// Info returns a point-in-time snapshot of the connection for observers and
// stats. The snapshot does not retain the transport.
func (c *Connection) Info() ConnectionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionInfo{
		ID:          c.ID,
		UserID:      c.UserID,
		EventID:     c.EventID,
		SessionID:   c.SessionID,
		ConnectedAt: c.ConnectedAt,
		Alive:       c.alive,
	}
}

// ConnectionInfo is an immutable snapshot of a Connection.
type ConnectionInfo struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	EventID     string    `json:"eventId,omitempty"`
	SessionID   string    `json:"sessionId,omitempty"`
	ConnectedAt time.Time `json:"connectedAt"`
	Alive       bool      `json:"alive"`
}

// RegistryObserver receives connection lifecycle events from the registry.
// Callbacks run outside the registry lock and must not block.
type RegistryObserver interface {
	ConnectionAdded(info ConnectionInfo)
	ConnectionRemoved(info ConnectionInfo)
}

// FindCriteria filters registry lookups. Zero-value fields are ignored.
type FindCriteria struct {
	EventID    string
	SessionID  string
	UserID     string
	ActiveOnly bool
}
