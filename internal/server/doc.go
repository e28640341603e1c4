// Package server exposes the HTTP surface: the websocket endpoint, the
// broadcast and notification APIs, stats and health endpoints, and the
// Prometheus metrics handler.
package server
