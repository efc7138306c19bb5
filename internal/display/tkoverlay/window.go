// Package tkoverlay projects display views onto a borderless, always-on-top
// Tk window.
package tkoverlay

import (
	"context"
	"log/slog"
	"time"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders
	. "modernc.org/tk9.0"

	"github.com/GriffinCanCode/lingualens/platform/internal/display"
)

const (
	pollInterval = 50 * time.Millisecond
	fadeSteps    = 6

	// Tk has no per-colour alpha, so background opacity drives the window
	// alpha. Keep the text readable at opacity 0.
	minAlpha = 0.15
)

// Window is a display.Surface. Render may be called from any goroutine; Tk
// calls happen on the goroutine running Run.
type Window struct {
	views chan display.View
	done  <-chan struct{}

	label    *LabelWidget
	afterID  string
	fadeKey  int64
	fadeStep int
	target   float64
}

// New builds the overlay on the Tk main window. geometry is a Tk geometry
// string such as "900x160+80+80".
func New(geometry string) *Window {
	w := &Window{views: make(chan display.View, 1), fadeStep: fadeSteps}

	App.WmTitle("LinguaLens")
	WmGeometry(App, geometry)
	WmAttributes(App, "-topmost", 1)
	WmAttributes(App, "-alpha", 0.0)
	WmProtocol(App, "WM_DELETE_WINDOW", w.Close)

	w.label = Label(Txt(""), Justify("center"), Wraplength("860"))
	Pack(w.label, Fill("both"), Expand(true), Padx("4m"), Pady("2m"))
	return w
}

// Render queues v, replacing any view not yet drawn.
func (w *Window) Render(v display.View) {
	for {
		select {
		case w.views <- v:
			return
		default:
		}
		select {
		case <-w.views:
		default:
		}
	}
}

// Run drives the Tk event loop until the window is closed or ctx ends.
func (w *Window) Run(ctx context.Context) {
	w.done = ctx.Done()
	w.schedule()
	App.Wait()
}

// Close destroys the window and ends Run.
func (w *Window) Close() {
	if w.afterID != "" {
		TclAfterCancel(w.afterID)
	}
	Destroy(App)
}

func (w *Window) schedule() {
	w.afterID = TclAfter(pollInterval, w.poll)
}

func (w *Window) poll() {
	select {
	case <-w.done:
		w.Close()
		return
	default:
	}

	select {
	case v := <-w.views:
		w.draw(v)
	default:
	}
	if w.fadeStep < fadeSteps {
		w.fadeStep++
		WmAttributes(App, "-alpha", display.FadeAlpha(w.fadeStep, fadeSteps, w.target))
	}
	w.schedule()
}

func (w *Window) draw(v display.View) {
	bg, fg := display.HexColor(v.Background), display.HexColor(v.Foreground)
	App.Configure(Background(bg))
	w.label.Configure(
		Txt(v.Text),
		Font("Helvetica", v.FontSize),
		Background(bg),
		Foreground(fg),
	)

	w.target = max(float64(v.Background.A)/255, minAlpha)
	if v.Sequence != w.fadeKey {
		w.fadeKey = v.Sequence
		w.fadeStep = 0
		WmAttributes(App, "-alpha", 0.0)
		slog.Debug("overlay fade", "sequence", v.Sequence)
		return
	}
	if w.fadeStep >= fadeSteps {
		WmAttributes(App, "-alpha", w.target)
	}
}
