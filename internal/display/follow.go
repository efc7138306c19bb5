package display

import (
	"context"
	"log/slog"

	"github.com/GriffinCanCode/lingualens/platform/internal/kv"
	"github.com/GriffinCanCode/lingualens/platform/internal/resilience"
)

// Dialer opens a connection to the shared store.
type Dialer func(ctx context.Context) (kv.Store, error)

// Follow keeps r attached to the store, redialing with backoff whenever the
// connection drops. It returns when ctx ends or a redial budget is exhausted.
func Follow(ctx context.Context, dial Dialer, r *Renderer, retry resilience.RetryConfig) error {
	for {
		var store kv.Store
		err := resilience.Retry(ctx, retry, func() error {
			s, err := dial(ctx)
			if err != nil {
				slog.Warn("store dial failed", "error", err)
				return err
			}
			store = s
			return nil
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		slog.Info("display attached to store")
		err = r.Run(ctx, store)
		store.Close()
		if err == nil {
			return nil
		}
		slog.Warn("display detached from store", "error", err)
	}
}
