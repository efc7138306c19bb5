package settings

import (
	"context"
	"log/slog"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/kv"
	"github.com/GriffinCanCode/lingualens/platform/internal/relay"
	"github.com/GriffinCanCode/lingualens/platform/internal/syncx"
	"github.com/GriffinCanCode/lingualens/platform/internal/trace"
)

// Store is the control surface's copy of the display settings. Every
// successful change is written through to the shared store immediately.
type Store struct {
	kv      kv.Store
	pub     *relay.Publisher
	current *syncx.RWGuard[DisplaySettings]
}

func NewStore(store kv.Store) *Store {
	return &Store{
		kv:      store,
		pub:     relay.NewPublisher(store, nil),
		current: syncx.NewGuard(Defaults()),
	}
}

// Load reads the persisted settings. Missing, unreadable or invalid values
// fall back to the defaults.
func (s *Store) Load(ctx context.Context) DisplaySettings {
	loaded := Defaults()
	found, err := relay.LoadLatest(ctx, s.kv, relay.SettingsKey, &loaded)
	switch {
	case err != nil:
		trace.Logger(ctx).Warn("settings unavailable, using defaults", "error", err)
		loaded = Defaults()
	case !found:
		loaded = Defaults()
	default:
		if verr := loaded.Validate(); verr != nil {
			trace.Logger(ctx).Warn("stored settings invalid, using defaults", "error", verr)
			loaded = Defaults()
		}
	}
	s.current.Set(loaded)
	return loaded
}

// Get returns the current settings.
func (s *Store) Get() DisplaySettings { return s.current.Get() }

// Update applies p. An invalid patch leaves the settings unchanged and
// returns InvalidArgument. If the write-through fails, the new settings stay
// in effect for this surface and StorageUnavailable is returned with them.
func (s *Store) Update(ctx context.Context, p Patch) (DisplaySettings, error) {
	var (
		result DisplaySettings
		err    error
	)
	s.current.Write(func(cur *DisplaySettings) {
		next, aerr := p.Apply(*cur)
		if aerr != nil {
			result, err = *cur, aerr
			return
		}
		*cur, result = next, next
		if perr := s.pub.Publish(ctx, relay.SettingsKey, next); perr != nil {
			err = apperrors.Wrap(perr, apperrors.CodeStorageUnavailable, "settings not persisted")
		}
	})
	if err != nil {
		trace.Logger(ctx).Warn("settings update", "error", err)
		return result, err
	}
	slog.Debug("settings updated", "fontSize", result.FontSize, "opacity", result.Opacity)
	return result, nil
}
