// Package syncx provides synchronization primitives shared by the control and display surfaces
package syncx

import "sync"

// RWGuard wraps RWMutex around a value with scoped lock helpers.
type RWGuard[T any] struct {
	mu    sync.RWMutex
	value T
}

// NewGuard creates a guarded value.
func NewGuard[T any](initial T) *RWGuard[T] {
	return &RWGuard[T]{value: initial}
}

// Write executes fn while holding write lock, fn receives pointer for mutation.
func (g *RWGuard[T]) Write(fn func(*T)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	fn(&g.value)
}

// Update applies fn to a copy of the value under the write lock and commits
// the copy only if fn returns nil. It returns the value after the call.
func (g *RWGuard[T]) Update(fn func(*T) error) (T, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	next := g.value
	if err := fn(&next); err != nil {
		return g.value, err
	}
	g.value = next
	return g.value, nil
}

// Get returns a copy of the value (T should be value type or immutable).
func (g *RWGuard[T]) Get() T {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.value
}

// Set atomically replaces the value.
func (g *RWGuard[T]) Set(v T) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = v
}

// Swap atomically replaces and returns old value.
func (g *RWGuard[T]) Swap(v T) T {
	g.mu.Lock()
	defer g.mu.Unlock()
	old := g.value
	g.value = v
	return old
}
