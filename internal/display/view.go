// Package display renders the latest published translation with the current
// display settings. A renderer only ever reads the shared store.
package display

import (
	"fmt"
	"image/color"
	"log/slog"

	"github.com/GriffinCanCode/lingualens/platform/internal/relay"
	"github.com/GriffinCanCode/lingualens/platform/internal/settings"
)

// View is what a surface draws. Sequence is the fade key: a surface restarts
// its fade-in whenever it changes.
type View struct {
	Text       string
	Sequence   int64
	FontSize   int
	Background color.RGBA // alpha carries the opacity setting
	Foreground color.RGBA
}

// Surface draws views. Render may be called from any goroutine.
type Surface interface {
	Render(View)
}

// Project combines a message and settings into a view. Unparseable colours
// fall back to the defaults.
func Project(msg relay.Message, s settings.DisplaySettings) View {
	def := settings.Defaults()
	bg, err := settings.ParseRGB(s.BackgroundColor)
	if err != nil {
		bg, _ = settings.ParseRGB(def.BackgroundColor)
	}
	fg, err := settings.ParseRGB(s.TextColor)
	if err != nil {
		fg, _ = settings.ParseRGB(def.TextColor)
	}
	opacity := min(max(s.Opacity, settings.MinOpacity), settings.MaxOpacity)
	bg.A = uint8(opacity * 255 / settings.MaxOpacity)

	return View{
		Text:       msg.Text,
		Sequence:   msg.Sequence,
		FontSize:   s.FontSize,
		Background: bg,
		Foreground: fg,
	}
}

// HexColor formats the RGB channels as #rrggbb.
func HexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// FadeAlpha is the window alpha at step of a fade-in towards target.
func FadeAlpha(step, steps int, target float64) float64 {
	if steps <= 0 || step >= steps {
		return target
	}
	if step < 0 {
		return 0
	}
	return target * float64(step) / float64(steps)
}

// LogSurface writes each view to a logger. It is the headless display.
type LogSurface struct {
	Logger  *slog.Logger
	lastSeq int64
}

func (l *LogSurface) Render(v View) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	fade := v.Sequence != l.lastSeq
	l.lastSeq = v.Sequence
	logger.Info("display",
		"text", v.Text,
		"sequence", v.Sequence,
		"fade", fade,
		"font_size", v.FontSize,
		"background", HexColor(v.Background),
		"opacity", v.Background.A,
		"foreground", HexColor(v.Foreground),
	)
}
