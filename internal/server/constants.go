// Package server provides HTTP and WebSocket handlers
package server

import "time"

// Server configuration constants
const (
	// Request bodies are small JSON documents
	MaxBodyBytes = 64 << 10

	// Default page size for GET /api/history
	DefaultHistoryLimit = 20

	// Bound on a single broadcast write to a slow client
	BroadcastWriteTimeout = 2 * time.Second

	// Global IP-based rate limiting (prevents multi-connection bypass attacks)
	IPRateLimitMessages        = 30               // Max messages per IP per window
	IPRateLimitWindow          = time.Second      // Sliding window duration
	IPRateLimitCleanupInterval = 5 * time.Minute  // How often to purge stale IP entries
	IPRateLimitEntryTTL        = 10 * time.Minute // TTL for inactive IP entries
)
