package realtime

import "github.com/gatherly/eventwire/internal/domain"

// StatsSnapshot is a point-in-time aggregation over the registry and queue.
type StatsSnapshot struct {
	TotalConnections     int            `json:"totalConnections"`
	ActiveConnections    int            `json:"activeConnections"`
	ConnectionsByEvent   map[string]int `json:"connectionsByEvent"`
	ConnectionsBySession map[string]int `json:"connectionsBySession"`
	QueuedMessages       int            `json:"queuedMessages"`
}

// StatsCollector derives aggregate counts from the registry and queue.
// Read-only: no side effects, no caching beyond the single read.
type StatsCollector struct {
	registry *ConnectionRegistry
	queue    *MessageQueue
}

// NewStatsCollector creates a collector over the given components.
func NewStatsCollector(registry *ConnectionRegistry, queue *MessageQueue) *StatsCollector {
	return &StatsCollector{registry: registry, queue: queue}
}

// Snapshot aggregates connection and queue state at call time.
func (s *StatsCollector) Snapshot() StatsSnapshot {
	snap := StatsSnapshot{
		ConnectionsByEvent:   make(map[string]int),
		ConnectionsBySession: make(map[string]int),
		QueuedMessages:       s.queue.Len(),
	}

	for _, conn := range s.registry.Find(domain.FindCriteria{}) {
		info := conn.Info()
		snap.TotalConnections++
		if info.Alive {
			snap.ActiveConnections++
		}
		if info.EventID != "" {
			snap.ConnectionsByEvent[info.EventID]++
		}
		if info.SessionID != "" {
			snap.ConnectionsBySession[info.SessionID]++
		}
	}

	return snap
}
