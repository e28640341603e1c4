package realtime

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gatherly/eventwire/internal/domain"
	"github.com/gatherly/eventwire/internal/errors"
	"github.com/gatherly/eventwire/internal/metrics"
)

// HeartbeatMonitor periodically probes every registered connection and marks
// unresponsive ones dead. It never removes connections itself: removal stays
// single-sourced in the router's send path, which evicts on the next failed
// delivery.
type HeartbeatMonitor struct {
	registry *ConnectionRegistry
	clock    clockwork.Clock
	interval time.Duration

	started  atomic.Bool
	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewHeartbeatMonitor creates a monitor. The interval is caller-supplied
// configuration; a non-positive value is rejected synchronously.
func NewHeartbeatMonitor(registry *ConnectionRegistry, clock clockwork.Clock, interval time.Duration) (*HeartbeatMonitor, error) {
	if interval <= 0 {
		return nil, errors.ValidationError("heartbeat interval must be positive").
			WithContext("interval", interval.String())
	}
	return &HeartbeatMonitor{
		registry: registry,
		clock:    clock,
		interval: interval,
		done:     make(chan struct{}),
	}, nil
}

// Start launches the tick loop. Calling Start twice is a no-op.
func (m *HeartbeatMonitor) Start() {
	if !m.started.CompareAndSwap(false, true) {
		return
	}
	m.wg.Add(1)
	go m.run()
	slog.Info("Heartbeat monitor started", "interval", m.interval)
}

// Stop terminates the tick loop and waits for it to exit. Idempotent and
// safe to call from any state.
func (m *HeartbeatMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}

func (m *HeartbeatMonitor) run() {
	defer m.wg.Done()

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.Chan():
			m.tick()
		}
	}
}

// tick probes every connection with an open transport and immediately marks
// connections with a closed transport dead. A connection whose previous
// probe went unanswered is stale and marked dead; a later pong restores it.
func (m *HeartbeatMonitor) tick() {
	now := m.clock.Now().UTC()

	for _, conn := range m.registry.Find(domain.FindCriteria{}) {
		if !conn.Transport.Open() {
			if conn.Alive() {
				metrics.HeartbeatDeadConnections.WithLabelValues("closed").Inc()
				slog.Debug("Heartbeat: transport closed", "connection_id", conn.ID, "user_id", conn.UserID)
			}
			conn.MarkDead()
			continue
		}

		if conn.PingPending() && conn.Alive() {
			metrics.HeartbeatDeadConnections.WithLabelValues("stale").Inc()
			slog.Debug("Heartbeat: no pong since last probe", "connection_id", conn.ID, "user_id", conn.UserID)
			conn.MarkDead()
		}

		// Stale connections are still probed: a pong revives them.
		if err := conn.Transport.Ping(); err != nil {
			metrics.HeartbeatDeadConnections.WithLabelValues("ping_failed").Inc()
			slog.Debug("Heartbeat: ping failed", "connection_id", conn.ID, "error", err)
			conn.MarkDead()
			continue
		}
		conn.MarkPing(now)
	}

	metrics.HeartbeatTicksTotal.Inc()
}
