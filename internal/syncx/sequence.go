package syncx

import (
	"sync"
	"time"
)

// Sequencer hands out strictly increasing numbers, one apart. The first value
// is the wall clock in milliseconds at construction, so a restarted producer
// normally continues above the numbers it issued before.
type Sequencer struct {
	mu   sync.Mutex
	last int64
}

// NewSequencer creates a sequencer. A nil clock uses time.Now.
func NewSequencer(clock func() time.Time) *Sequencer {
	if clock == nil {
		clock = time.Now
	}
	return &Sequencer{last: clock().UnixMilli() - 1}
}

// Next returns the next value.
func (s *Sequencer) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last++
	return s.last
}
