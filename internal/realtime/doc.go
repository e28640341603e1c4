// Package realtime implements the live connection and broadcast core.
//
// ConnectionRegistry owns all live connections with secondary indices by
// user/event/session. BroadcastRouter resolves targets and fans messages out;
// failed writes evict lazily through the registry. HeartbeatMonitor probes
// transports on a tick and marks dead peers. MessageQueue buffers undeliverable
// messages and retries them on a flush cycle. All timers run on an injected
// clockwork.Clock so tests drive time explicitly.
package realtime
