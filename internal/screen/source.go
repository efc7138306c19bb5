// Package screen provides capture sources for the sampling pipeline.
package screen

import (
	"context"
	"image"
	"time"
)

// Screen capture constants
const (
	// Hamming distance between perceptual hashes at or below which two frames
	// count as the same picture (about 95% similar).
	MaxHashDistance = 3

	// How often an open display stream checks that its display still exists.
	DisplayPollInterval = 2 * time.Second
)

// Source grants capture streams.
type Source interface {
	// Open requests a stream. Refusal or lack of support is CaptureDenied.
	Open(ctx context.Context) (Stream, error)
}

// Stream is one granted capture. Done is closed when the source ends the
// stream on its own, for example because the display went away.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Done() <-chan struct{}
	Close()
}
