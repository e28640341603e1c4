package realtime

import (
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/gatherly/eventwire/internal/domain"
	"github.com/gatherly/eventwire/internal/errors"
	"github.com/gatherly/eventwire/internal/metrics"
)

// RegistryConfig holds the registry's construction parameters.
// MaxConnections is required; there is no compiled-in default.
type RegistryConfig struct {
	MaxConnections int
}

// ConnectionRegistry owns the set of live connections. All mutation goes
// through its methods; the connection map and its secondary indices are never
// touched by other components. Transport closes and observer callbacks run
// outside the lock so a blocking socket cannot stall the registry.
type ConnectionRegistry struct {
	clock          clockwork.Clock
	observers      []domain.RegistryObserver
	maxConnections int

	mu        sync.RWMutex
	conns     map[string]*domain.Connection
	byUser    map[string]string
	byEvent   map[string]map[string]struct{}
	bySession map[string]map[string]struct{}
	stopped   bool
}

// NewConnectionRegistry creates a registry. A non-positive MaxConnections is
// a programmer error and rejected synchronously.
func NewConnectionRegistry(cfg RegistryConfig, clock clockwork.Clock, observers ...domain.RegistryObserver) (*ConnectionRegistry, error) {
	if cfg.MaxConnections <= 0 {
		return nil, errors.ValidationError("max connections must be positive").
			WithContext("max_connections", cfg.MaxConnections)
	}

	return &ConnectionRegistry{
		clock:          clock,
		observers:      observers,
		maxConnections: cfg.MaxConnections,
		conns:          make(map[string]*domain.Connection),
		byUser:         make(map[string]string),
		byEvent:        make(map[string]map[string]struct{}),
		bySession:      make(map[string]map[string]struct{}),
	}, nil
}

// Add registers a connection, taking exclusive ownership of the transport.
// If a live connection already exists for the user it is evicted first
// (transport closed, indices cleared). Returns a capacity error when the
// registry is full.
func (r *ConnectionRegistry) Add(id, userID string, transport domain.Transport, eventID, sessionID string) (string, error) {
	if id == "" || userID == "" {
		return "", errors.ValidationError("connection id and user id are required")
	}
	if transport == nil {
		return "", errors.ValidationError("transport is required")
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		transport.Close()
		return "", errors.InternalError("registry is stopped", nil)
	}

	// A same-user replacement frees its own slot, so it never trips capacity.
	_, replacesUser := r.byUser[userID]
	if !replacesUser && len(r.conns) >= r.maxConnections {
		r.mu.Unlock()
		transport.Close()
		metrics.RegistryConnectionsTotal.WithLabelValues("rejected").Inc()
		return "", errors.CapacityError("maximum connection count reached").
			WithContext("max_connections", r.maxConnections)
	}

	var evicted *domain.Connection
	if replacesUser {
		evicted = r.removeLocked(r.byUser[userID])
	}

	conn := domain.NewConnection(id, userID, transport, eventID, sessionID, r.clock.Now().UTC())
	transport.SetPongHandler(func() {
		conn.MarkPong(r.clock.Now().UTC())
	})

	r.conns[id] = conn
	r.byUser[userID] = id
	if eventID != "" {
		r.indexAdd(r.byEvent, eventID, id)
	}
	if sessionID != "" {
		r.indexAdd(r.bySession, sessionID, id)
	}
	total := len(r.conns)
	r.mu.Unlock()

	metrics.RegistryActiveConnections.Set(float64(total))
	metrics.RegistryConnectionsTotal.WithLabelValues("added").Inc()

	if evicted != nil {
		metrics.RegistryEvictionsTotal.Inc()
		slog.Info("Evicted prior connection for user", "user_id", userID, "connection_id", evicted.ID)
		r.finalizeRemoval(evicted)
	}

	slog.Debug("Connection registered", "connection_id", id, "user_id", userID, "event_id", eventID, "session_id", sessionID, "total", total)
	r.notifyAdded(conn.Info())

	return id, nil
}

// Remove deregisters a connection and closes its transport, ignoring close
// errors. Idempotent; returns false if the id is unknown.
func (r *ConnectionRegistry) Remove(id string) bool {
	r.mu.Lock()
	conn := r.removeLocked(id)
	total := len(r.conns)
	r.mu.Unlock()

	if conn == nil {
		return false
	}

	metrics.RegistryActiveConnections.Set(float64(total))
	r.finalizeRemoval(conn)
	slog.Debug("Connection removed", "connection_id", id, "user_id", conn.UserID, "total", total)
	return true
}

// Get returns the connection with the given id.
func (r *ConnectionRegistry) Get(id string) (*domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// Find returns the connections matching the criteria, consistent with a
// single point-in-time snapshot. No ordering guarantee.
func (r *ConnectionRegistry) Find(criteria domain.FindCriteria) []*domain.Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var candidates []*domain.Connection
	switch {
	case criteria.UserID != "":
		if id, ok := r.byUser[criteria.UserID]; ok {
			candidates = []*domain.Connection{r.conns[id]}
		}
	case criteria.EventID != "":
		candidates = r.indexLookup(r.byEvent, criteria.EventID)
	case criteria.SessionID != "":
		candidates = r.indexLookup(r.bySession, criteria.SessionID)
	default:
		candidates = make([]*domain.Connection, 0, len(r.conns))
		for _, conn := range r.conns {
			candidates = append(candidates, conn)
		}
	}

	result := candidates[:0]
	for _, conn := range candidates {
		if criteria.EventID != "" && conn.EventID != criteria.EventID {
			continue
		}
		if criteria.SessionID != "" && conn.SessionID != criteria.SessionID {
			continue
		}
		if criteria.UserID != "" && conn.UserID != criteria.UserID {
			continue
		}
		if criteria.ActiveOnly && !conn.Alive() {
			continue
		}
		result = append(result, conn)
	}
	return result
}

// FindByUser returns the single live connection for a user, if any.
func (r *ConnectionRegistry) FindByUser(userID string) (*domain.Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUser[userID]
	if !ok {
		return nil, false
	}
	return r.conns[id], true
}

// Len returns the number of registered connections.
func (r *ConnectionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Stop closes every registered transport and clears the registry.
// Safe to call from any state; subsequent Adds are rejected.
func (r *ConnectionRegistry) Stop() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.stopped = true
	remaining := make([]*domain.Connection, 0, len(r.conns))
	for _, conn := range r.conns {
		remaining = append(remaining, conn)
	}
	r.conns = make(map[string]*domain.Connection)
	r.byUser = make(map[string]string)
	r.byEvent = make(map[string]map[string]struct{})
	r.bySession = make(map[string]map[string]struct{})
	r.mu.Unlock()

	for _, conn := range remaining {
		r.finalizeRemoval(conn)
	}
	metrics.RegistryActiveConnections.Set(0)
	slog.Info("Connection registry stopped", "closed_connections", len(remaining))
}

// removeLocked deletes all map and index entries for id and returns the
// connection for post-unlock cleanup. Must be called with mu held.
func (r *ConnectionRegistry) removeLocked(id string) *domain.Connection {
	conn, ok := r.conns[id]
	if !ok {
		return nil
	}
	delete(r.conns, id)
	if r.byUser[conn.UserID] == id {
		delete(r.byUser, conn.UserID)
	}
	if conn.EventID != "" {
		r.indexDelete(r.byEvent, conn.EventID, id)
	}
	if conn.SessionID != "" {
		r.indexDelete(r.bySession, conn.SessionID, id)
	}
	return conn
}

// finalizeRemoval runs the out-of-lock part of a removal: marking the
// connection dead, closing the transport and notifying observers.
func (r *ConnectionRegistry) finalizeRemoval(conn *domain.Connection) {
	info := conn.Info()
	conn.MarkDead()
	_ = conn.Transport.Close()
	r.notifyRemoved(info)
}

func (r *ConnectionRegistry) indexAdd(index map[string]map[string]struct{}, key, id string) {
	set, ok := index[key]
	if !ok {
		set = make(map[string]struct{})
		index[key] = set
	}
	set[id] = struct{}{}
}

func (r *ConnectionRegistry) indexDelete(index map[string]map[string]struct{}, key, id string) {
	if set, ok := index[key]; ok {
		delete(set, id)
		if len(set) == 0 {
			delete(index, key)
		}
	}
}

func (r *ConnectionRegistry) indexLookup(index map[string]map[string]struct{}, key string) []*domain.Connection {
	set := index[key]
	conns := make([]*domain.Connection, 0, len(set))
	for id := range set {
		conns = append(conns, r.conns[id])
	}
	return conns
}

func (r *ConnectionRegistry) notifyAdded(info domain.ConnectionInfo) {
	for _, obs := range r.observers {
		obs.ConnectionAdded(info)
	}
}

func (r *ConnectionRegistry) notifyRemoved(info domain.ConnectionInfo) {
	for _, obs := range r.observers {
		obs.ConnectionRemoved(info)
	}
}
