// Package kv is the shared durable store that links the control and display
// surfaces. It is a string map persisted to a JSON file, with change
// notifications delivered to every connection except the writer.
package kv

import (
	"context"
	"slices"
)

// DefaultWatchBuffer is the per-watcher notification backlog.
const DefaultWatchBuffer = 16

// Change is a notification that Key now holds Value.
type Change struct {
	Key    string
	Value  string
	Origin string // name of the writing connection
}

// Store is one execution context's view of the shared store.
type Store interface {
	// Get returns the value under key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	// Set writes value under key. Other contexts watching the store are notified.
	Set(ctx context.Context, key, value string) error
	// Watch streams changes made by other contexts until ctx is done or the
	// store is closed, at which point the channel is closed.
	Watch(ctx context.Context) (<-chan Change, error)
	Close() error
}

// Enqueue sends c on ch without blocking. When ch is full the pending changes
// are collapsed to the newest one per key, and only if every pending change is
// for a distinct key is the oldest dropped. It reports false when a pending
// change was superseded or dropped. The caller must be the only sender on ch.
func Enqueue(ch chan Change, c Change) bool {
	select {
	case ch <- c:
		return true
	default:
	}

	pending := make([]Change, 0, cap(ch)+1)
drain:
	for {
		select {
		case p := <-ch:
			pending = append(pending, p)
		default:
			break drain
		}
	}
	kept := latestPerKey(append(pending, c))
	if len(kept) > cap(ch) {
		kept = kept[len(kept)-cap(ch):]
	}
	// ch was emptied and nothing else sends, so these never block.
	for _, p := range kept {
		ch <- p
	}
	return false
}

// latestPerKey keeps the last change for each key, in the order those last
// changes arrived.
func latestPerKey(changes []Change) []Change {
	seen := make(map[string]bool, len(changes))
	kept := make([]Change, 0, len(changes))
	for i := len(changes) - 1; i >= 0; i-- {
		if seen[changes[i].Key] {
			continue
		}
		seen[changes[i].Key] = true
		kept = append(kept, changes[i])
	}
	slices.Reverse(kept)
	return kept
}
