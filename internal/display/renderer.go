package display

import (
	"context"
	"encoding/json"
	"log/slog"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/kv"
	"github.com/GriffinCanCode/lingualens/platform/internal/relay"
	"github.com/GriffinCanCode/lingualens/platform/internal/settings"
)

// Renderer follows the translation and settings keys and redraws a surface.
// Sequence ordering survives reconnects: a Renderer may Run against several
// stores in turn.
type Renderer struct {
	surface  Surface
	gate     relay.Gate
	msg      relay.Message
	settings settings.DisplaySettings
}

func NewRenderer(surface Surface) *Renderer {
	return &Renderer{surface: surface, settings: settings.Defaults()}
}

// Run mounts the latest values from store, then applies changes until ctx is
// done or the store stops delivering. It returns nil only when ctx ends.
func (r *Renderer) Run(ctx context.Context, store kv.Store) error {
	// Subscribe before loading so nothing written in between is lost. A
	// duplicate is harmless: the gate drops it.
	changes, err := store.Watch(ctx)
	if err != nil {
		return err
	}
	if err := r.mount(ctx, store); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case c, ok := <-changes:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return apperrors.New(apperrors.CodeStorageUnavailable, "store stopped delivering changes")
			}
			if r.apply(c.Key, c.Value) {
				r.render()
			}
		}
	}
}

func (r *Renderer) mount(ctx context.Context, store kv.Store) error {
	for _, key := range []string{relay.SettingsKey, relay.TranslationKey} {
		raw, ok, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			r.apply(key, raw)
		}
	}
	r.render()
	return nil
}

// apply reports whether the view changed.
func (r *Renderer) apply(key, raw string) bool {
	switch key {
	case relay.TranslationKey:
		var msg relay.Message
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			slog.Warn("ignoring malformed translation", "error", err)
			return false
		}
		if !r.gate.Admit(msg.Sequence) {
			last, _ := r.gate.Last()
			slog.Debug("ignoring stale translation", "sequence", msg.Sequence, "last", last)
			return false
		}
		r.msg = msg
		return true
	case relay.SettingsKey:
		r.settings = decodeSettings(raw)
		return true
	default:
		return false
	}
}

func decodeSettings(raw string) settings.DisplaySettings {
	var s settings.DisplaySettings
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		slog.Warn("malformed display settings, using defaults", "error", err)
		return settings.Defaults()
	}
	if err := s.Validate(); err != nil {
		slog.Warn("invalid display settings, using defaults", "error", err)
		return settings.Defaults()
	}
	return s
}

func (r *Renderer) render() {
	r.surface.Render(Project(r.msg, r.settings))
}
