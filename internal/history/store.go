// Package history keeps recent translations and operator notices for the
// control surface and fans them out as events.
package history

import (
	"log/slog"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
)

// Buffer sizes.
const (
	DefaultMaxEntries = 100
	MaxNotices        = 20
	EventBuffer       = 100
)

// Kind classifies an Event.
type Kind string

const (
	KindTranslation Kind = "translation"
	KindNotice      Kind = "notice"
	KindState       Kind = "state"
)

// Entry is one accepted translation.
type Entry struct {
	Timestamp        time.Time `json:"timestamp"`
	SourceText       string    `json:"sourceText"`
	TranslatedText   string    `json:"translatedText"`
	DetectedLanguage string    `json:"detectedLanguage,omitempty"`
	TargetLanguage   string    `json:"targetLanguage"`
	Sequence         int64     `json:"sequence"`
}

// Notice is a human-readable report for the operator.
type Notice struct {
	Timestamp time.Time `json:"timestamp"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
}

// Event is broadcast to control clients. Only the field matching Kind is set.
type Event struct {
	Kind   Kind
	Entry  Entry
	Notice Notice
	State  string
}

// Store is a bounded in-memory history.
type Store struct {
	mu       sync.RWMutex
	entries  []Entry
	notices  []Notice
	maxSize  int
	eventsCh chan Event
}

// NewStore creates a store keeping at most maxEntries translations.
func NewStore(maxEntries, eventBuffer int) *Store {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{
		entries:  make([]Entry, 0, maxEntries),
		maxSize:  maxEntries,
		eventsCh: make(chan Event, eventBuffer),
	}
}

// Add records a translation and emits it.
func (s *Store) Add(e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	s.mu.Lock()
	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxSize {
		s.entries = s.entries[len(s.entries)-s.maxSize:]
	}
	s.mu.Unlock()

	s.Emit(Event{Kind: KindTranslation, Entry: e})
}

// Notify records a notice, logs it and emits it.
func (s *Store) Notify(code apperrors.Code, msg string) {
	n := Notice{Timestamp: time.Now(), Code: code.String(), Message: msg}
	s.mu.Lock()
	s.notices = append(s.notices, n)
	if len(s.notices) > MaxNotices {
		s.notices = s.notices[len(s.notices)-MaxNotices:]
	}
	s.mu.Unlock()

	slog.Warn("operator notice", "code", n.Code, "message", msg)
	s.Emit(Event{Kind: KindNotice, Notice: n})
}

// StateChanged emits a capture state transition.
func (s *Store) StateChanged(state string) {
	s.Emit(Event{Kind: KindState, State: state})
}

// Recent returns up to n of the newest entries, oldest first.
// n <= 0 returns everything.
func (s *Store) Recent(n int) []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start := 0
	if n > 0 && n < len(s.entries) {
		start = len(s.entries) - n
	}
	out := make([]Entry, len(s.entries)-start)
	copy(out, s.entries[start:])
	return out
}

// Notices returns a copy of the retained notices.
func (s *Store) Notices() []Notice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Notice, len(s.notices))
	copy(out, s.notices)
	return out
}

// Events returns the channel for history events.
func (s *Store) Events() <-chan Event {
	return s.eventsCh
}

// Emit sends an event (non-blocking).
func (s *Store) Emit(event Event) {
	select {
	case s.eventsCh <- event:
	default:
	}
}
