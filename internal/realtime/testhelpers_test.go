package realtime

import (
	"sync"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/gatherly/eventwire/internal/domain"
)

// fakeTransport is an in-memory domain.Transport for tests. Tests control
// the open state, inject write/ping failures and trigger pong callbacks.
type fakeTransport struct {
	mu       sync.Mutex
	open     bool
	writeErr error
	pingErr  error
	written  [][]byte
	pings    int
	closes   int
	pongFn   func()
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{open: true}
}

func (t *fakeTransport) Open() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.open
}

func (t *fakeTransport) WriteMessage(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.writeErr != nil {
		return t.writeErr
	}
	t.written = append(t.written, data)
	return nil
}

func (t *fakeTransport) Ping() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pingErr != nil {
		return t.pingErr
	}
	t.pings++
	return nil
}

func (t *fakeTransport) SetPongHandler(fn func()) {
	t.mu.Lock()
	t.pongFn = fn
	t.mu.Unlock()
}

func (t *fakeTransport) Close() error {
	t.mu.Lock()
	t.open = false
	t.closes++
	t.mu.Unlock()
	return nil
}

func (t *fakeTransport) setOpen(open bool) {
	t.mu.Lock()
	t.open = open
	t.mu.Unlock()
}

func (t *fakeTransport) failWrites(err error) {
	t.mu.Lock()
	t.writeErr = err
	t.mu.Unlock()
}

func (t *fakeTransport) failPings(err error) {
	t.mu.Lock()
	t.pingErr = err
	t.mu.Unlock()
}

func (t *fakeTransport) messages() [][]byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([][]byte, len(t.written))
	copy(out, t.written)
	return out
}

func (t *fakeTransport) pingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pings
}

func (t *fakeTransport) closeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closes
}

// pong simulates the peer answering the last probe.
func (t *fakeTransport) pong() {
	t.mu.Lock()
	fn := t.pongFn
	t.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// recordingObserver collects registry events for assertions.
type recordingObserver struct {
	mu      sync.Mutex
	added   []domain.ConnectionInfo
	removed []domain.ConnectionInfo
}

func (o *recordingObserver) ConnectionAdded(info domain.ConnectionInfo) {
	o.mu.Lock()
	o.added = append(o.added, info)
	o.mu.Unlock()
}

func (o *recordingObserver) ConnectionRemoved(info domain.ConnectionInfo) {
	o.mu.Lock()
	o.removed = append(o.removed, info)
	o.mu.Unlock()
}

func (o *recordingObserver) addedIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, len(o.added))
	for i, info := range o.added {
		ids[i] = info.ID
	}
	return ids
}

func (o *recordingObserver) removedIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	ids := make([]string, len(o.removed))
	for i, info := range o.removed {
		ids[i] = info.ID
	}
	return ids
}

func newTestRegistry(t *testing.T, maxConnections int, observers ...domain.RegistryObserver) (*ConnectionRegistry, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClock()
	registry, err := NewConnectionRegistry(RegistryConfig{MaxConnections: maxConnections}, clock, observers...)
	require.NoError(t, err)
	t.Cleanup(registry.Stop)
	return registry, clock
}

func mustAdd(t *testing.T, registry *ConnectionRegistry, id, userID, eventID, sessionID string) *fakeTransport {
	t.Helper()
	transport := newFakeTransport()
	_, err := registry.Add(id, userID, transport, eventID, sessionID)
	require.NoError(t, err)
	return transport
}
