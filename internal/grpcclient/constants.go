// Package grpcclient provides a client for the inference gRPC server
package grpcclient

import "time"

// Client configuration defaults
const (
	// Keepalive configuration
	DefaultKeepaliveTime    = 10 * time.Second
	DefaultKeepaliveTimeout = 3 * time.Second

	// Readiness probe at startup
	HealthCheckTimeout = 2 * time.Second

	// Breaker names, also used as the provider label on errors
	OCRProvider       = "ocr"
	TranslateProvider = "translate"
)
