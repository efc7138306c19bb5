// Package relay implements publish and catch-up over the shared store.
// The control surface publishes the latest translation and settings under
// well-known keys, and display surfaces load the last value on open and then
// follow change notifications.
package relay

import (
	"context"
	"encoding/json"
	"sync"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/kv"
	"github.com/GriffinCanCode/lingualens/platform/internal/syncx"
)

// Well-known keys.
const (
	TranslationKey = "lingualens.translation"
	SettingsKey    = "lingualens.settings"
)

// Message is the published translation. Sequence orders messages from one
// control surface lifetime.
type Message struct {
	Text     string `json:"text"`
	Sequence int64  `json:"sequence"`
}

// Publisher writes values to the store.
type Publisher struct {
	store kv.Store
	seq   *syncx.Sequencer
}

func NewPublisher(store kv.Store, seq *syncx.Sequencer) *Publisher {
	if seq == nil {
		seq = syncx.NewSequencer(nil)
	}
	return &Publisher{store: store, seq: seq}
}

// Publish serializes v as JSON and writes it under key.
func (p *Publisher) Publish(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "encode published value").WithMetadata("key", key)
	}
	return p.store.Set(ctx, key, string(raw))
}

// PublishText stamps text with the next sequence and publishes it.
func (p *Publisher) PublishText(ctx context.Context, text string) (Message, error) {
	msg := Message{Text: text, Sequence: p.seq.Next()}
	return msg, p.Publish(ctx, TranslationKey, msg)
}

// LoadLatest decodes the current value under key into dst.
// It reports false with no error when the key has never been written.
func LoadLatest(ctx context.Context, store kv.Store, key string, dst any) (bool, error) {
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "decode published value").WithMetadata("key", key)
	}
	return true, nil
}

// Gate admits strictly increasing sequences.
type Gate struct {
	mu   sync.Mutex
	last int64
	seen bool
}

// Admit records seq and returns true if it is newer than every sequence
// admitted so far.
func (g *Gate) Admit(seq int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.seen && seq <= g.last {
		return false
	}
	g.last, g.seen = seq, true
	return true
}

// Last returns the highest admitted sequence and whether any was admitted.
func (g *Gate) Last() (int64, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last, g.seen
}
