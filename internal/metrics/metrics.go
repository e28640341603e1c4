// Package metrics defines the Prometheus collectors for the realtime core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection Registry Metrics
var (
	// RegistryActiveConnections tracks currently registered connections
	RegistryActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_active_connections",
			Help: "Number of currently registered connections",
		},
	)

	// RegistryConnectionsTotal tracks connection registrations by outcome
	RegistryConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "registry_connections_total",
			Help: "Total connection registration attempts by outcome (added/evicted/rejected)",
		},
		[]string{"outcome"},
	)

	// RegistryEvictionsTotal tracks connections evicted for a same-user replacement
	RegistryEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_evictions_total",
			Help: "Total connections evicted because a newer connection arrived for the same user",
		},
	)
)

// Broadcast Router Metrics
var (
	// BroadcastDeliveredTotal tracks successful message deliveries
	BroadcastDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_delivered_total",
			Help: "Total messages successfully delivered to a connection",
		},
	)

	// BroadcastFailedTotal tracks failed deliveries by reason
	BroadcastFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_failed_total",
			Help: "Total failed deliveries by reason (dead/closed/write_error)",
		},
		[]string{"reason"},
	)

	// BroadcastDuration tracks fan-out duration per Broadcast call
	BroadcastDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcast_duration_seconds",
			Help:    "Duration of a single broadcast fan-out in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	// TransportSendDuration tracks single transport write latency
	TransportSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "transport_send_duration_seconds",
			Help:    "Duration of a single transport write in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)
)

// Message Queue Metrics
var (
	// QueueDepth tracks buffered messages awaiting flush
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of buffered messages awaiting the next flush",
		},
	)

	// QueueRequeuedTotal tracks messages re-buffered after a failed flush
	QueueRequeuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_requeued_total",
			Help: "Total messages re-queued after a failed broadcast during flush",
		},
	)

	// QueueDroppedTotal tracks messages dropped after exhausting the retry cap
	QueueDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_dropped_total",
			Help: "Total messages dropped after reaching the configured retry cap",
		},
	)

	// QueueFlushDuration tracks flush pass duration
	QueueFlushDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queue_flush_duration_seconds",
			Help:    "Duration of a queue flush pass in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)
)

// Heartbeat Monitor Metrics
var (
	// HeartbeatTicksTotal tracks completed heartbeat ticks
	HeartbeatTicksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "heartbeat_ticks_total",
			Help: "Total completed heartbeat ticks",
		},
	)

	// HeartbeatDeadConnections tracks connections marked dead by the monitor
	HeartbeatDeadConnections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heartbeat_dead_connections_total",
			Help: "Total connections marked dead by the heartbeat monitor, by reason (closed/stale/ping_failed)",
		},
		[]string{"reason"},
	)
)

// Notification Bridge Metrics
var (
	// NotificationsSentTotal tracks realtime notifications by outcome
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total realtime notifications by outcome (delivered/missed/store_error)",
		},
		[]string{"outcome"},
	)

	// NotificationStoreBreakerState tracks the store circuit breaker state (0=closed, 1=half-open, 2=open)
	NotificationStoreBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notification_store_breaker_state",
			Help: "Notification store circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// WebSocket Endpoint Metrics
var (
	// WebSocketUpgradesTotal tracks upgrade attempts by outcome
	WebSocketUpgradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "websocket_upgrades_total",
			Help: "Total websocket upgrade attempts by outcome (accepted/rejected_limit/rejected_capacity/failed)",
		},
		[]string{"outcome"},
	)

	// ConnectionLimitRejections tracks rejected connections by limiter
	ConnectionLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connection_limit_rejections_total",
			Help: "Total connections rejected by a limiter (global_limit/per_ip_limit/rate_limit)",
		},
		[]string{"reason"},
	)
)
