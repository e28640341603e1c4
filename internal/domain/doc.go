// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (connection.go, message.go,
// notification.go) with shared types and cross-cutting interfaces.
// No implementation code - just contracts. Prevents circular imports by
// keeping interfaces next to the types they describe.
package domain
