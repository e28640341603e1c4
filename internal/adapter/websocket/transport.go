// Package websocket adapts a gorilla/websocket connection to the transport
// contract consumed by the connection registry.
package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/gorilla/websocket"

	"github.com/gatherly/eventwire/internal/domain"
	"github.com/gatherly/eventwire/internal/metrics"
)

const (
	writeTimeout   = 5 * time.Second
	maxMessageSize = 4096
)

// Transport wraps a gorilla connection. A single write mutex serializes data
// and control frames so per-connection delivery order is preserved.
type Transport struct {
	conn *ws.Conn

	writeMu sync.Mutex
	closed  atomic.Bool
}

var _ domain.Transport = (*Transport)(nil)

// NewTransport wraps an upgraded connection.
func NewTransport(conn *ws.Conn) *Transport {
	conn.SetReadLimit(maxMessageSize)
	return &Transport{conn: conn}
}

// Open reports whether Close has been called.
func (t *Transport) Open() bool {
	return !t.closed.Load()
}

// WriteMessage sends one text frame under a write deadline.
func (t *Transport) WriteMessage(data []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	start := time.Now()
	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	err := t.conn.WriteMessage(ws.TextMessage, data)
	metrics.TransportSendDuration.Observe(time.Since(start).Seconds())
	return err
}

// Ping sends a control ping frame.
func (t *Transport) Ping() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	_ = t.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return t.conn.WriteMessage(ws.PingMessage, nil)
}

// SetPongHandler registers fn to run when a pong control frame arrives.
// Gorilla dispatches control frames from the read loop, so the owning read
// pump must be running for fn to fire.
func (t *Transport) SetPongHandler(fn func()) {
	t.conn.SetPongHandler(func(string) error {
		fn()
		return nil
	})
}

// Close shuts the underlying socket. Idempotent; concurrent writes fail with
// the socket's close error.
func (t *Transport) Close() error {
	if !t.closed.CompareAndSwap(false, true) {
		return nil
	}

	t.writeMu.Lock()
	_ = t.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = t.conn.WriteMessage(ws.CloseMessage, ws.FormatCloseMessage(ws.CloseNormalClosure, ""))
	t.writeMu.Unlock()

	return t.conn.Close()
}

// ReadPump drains inbound frames until the socket errors, then invokes
// onClose once. Inbound text frames are discarded: clients only listen.
// The pump keeps the connection's pong handler firing.
func (t *Transport) ReadPump(onClose func()) {
	defer func() {
		t.closed.Store(true)
		onClose()
	}()
	for {
		if _, _, err := t.conn.ReadMessage(); err != nil {
			return
		}
	}
}
