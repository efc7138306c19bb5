package screen

import (
	"context"
	"image"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/kbinani/screenshot"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
)

// Indirection over the screenshot package so tests can stand in for a display.
var (
	numDisplays   = screenshot.NumActiveDisplays
	displayBounds = screenshot.GetDisplayBounds
	captureRect   = screenshot.CaptureRect
)

// DisplaySource captures one attached display.
type DisplaySource struct {
	Index        int
	PollInterval time.Duration
}

// NewDisplaySource captures display index.
func NewDisplaySource(index int) *DisplaySource {
	return &DisplaySource{Index: index, PollInterval: DisplayPollInterval}
}

func (s *DisplaySource) Open(ctx context.Context) (Stream, error) {
	n := numDisplays()
	if n == 0 {
		return nil, apperrors.New(apperrors.CodeCaptureDenied, "no active display")
	}
	if s.Index < 0 || s.Index >= n {
		return nil, apperrors.Newf(apperrors.CodeCaptureDenied, "display %d not available", s.Index).
			WithMetadata("displays", strconv.Itoa(n))
	}
	bounds := displayBounds(s.Index)
	// A refused screen-recording permission shows up as a failed first capture.
	if _, err := captureRect(bounds); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureDenied, "screen capture refused")
	}

	poll := s.PollInterval
	if poll <= 0 {
		poll = DisplayPollInterval
	}
	st := &displayStream{index: s.Index, bounds: bounds, done: make(chan struct{}), stop: make(chan struct{})}
	go st.watch(poll)
	slog.Info("display capture opened", "display", s.Index, "bounds", bounds.String())
	return st, nil
}

type displayStream struct {
	index  int
	bounds image.Rectangle
	done   chan struct{}
	stop   chan struct{}
	once   sync.Once
	ended  sync.Once
}

func (st *displayStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img, err := captureRect(st.bounds)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (st *displayStream) Done() <-chan struct{} { return st.done }

func (st *displayStream) Close() {
	st.once.Do(func() { close(st.stop) })
}

// watch ends the stream when the display disappears or changes geometry.
func (st *displayStream) watch(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-st.stop:
			return
		case <-ticker.C:
			if st.index < numDisplays() && displayBounds(st.index) == st.bounds {
				continue
			}
			slog.Warn("display went away, ending capture", "display", st.index)
			st.ended.Do(func() { close(st.done) })
			return
		}
	}
}
