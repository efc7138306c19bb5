// Package control implements the operator's operations on the control surface:
// start and stop capture, choose the target language and adjust the display.
package control

import (
	"context"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/history"
	"github.com/GriffinCanCode/lingualens/platform/internal/pipeline"
	"github.com/GriffinCanCode/lingualens/platform/internal/settings"
	"github.com/GriffinCanCode/lingualens/platform/internal/trace"
)

// Language is a validated target language.
type Language struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	NativeName string `json:"nativeName"`
}

// Manager coordinates the pipeline, the settings store and the history.
type Manager struct {
	pipeline *pipeline.Pipeline
	settings *settings.Store
	history  *history.Store
}

// New creates a manager.
func New(p *pipeline.Pipeline, s *settings.Store, h *history.Store) *Manager {
	return &Manager{pipeline: p, settings: s, history: h}
}

// StartCapture begins a capture session.
func (m *Manager) StartCapture(ctx context.Context) (pipeline.Status, error) {
	ctx, span := trace.StartSpan(ctx, "start_capture")
	defer span.End()

	if err := m.pipeline.Start(ctx); err != nil {
		span.Fail(err)
		return m.pipeline.Status(), err
	}
	trace.Logger(ctx).Info("capture started")
	return m.pipeline.Status(), nil
}

// StopCapture ends the session. Stopping while idle is a no-op.
func (m *Manager) StopCapture(ctx context.Context) pipeline.Status {
	m.pipeline.Stop()
	trace.Logger(ctx).Info("capture stopped")
	return m.pipeline.Status()
}

// SetTargetLanguage validates code as a BCP 47 tag and applies it from the
// next translation on.
func (m *Manager) SetTargetLanguage(ctx context.Context, code string) (Language, error) {
	tag, err := language.Parse(strings.TrimSpace(code))
	if err != nil || tag == language.Und {
		return Language{}, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown language %q", code)
	}
	lang := describe(tag)
	m.pipeline.SetTargetLanguage(lang.Code)
	trace.Logger(ctx).Info("target language changed", "language", lang.Code)
	return lang, nil
}

// TargetLanguage returns the current target language.
func (m *Manager) TargetLanguage() Language {
	tag, err := language.Parse(m.pipeline.TargetLanguage())
	if err != nil {
		return Language{Code: m.pipeline.TargetLanguage()}
	}
	return describe(tag)
}

func describe(tag language.Tag) Language {
	return Language{
		Code:       tag.String(),
		Name:       display.English.Tags().Name(tag),
		NativeName: display.Self.Name(tag),
	}
}

// SetDisplaySettings applies a partial settings update and publishes it.
func (m *Manager) SetDisplaySettings(ctx context.Context, p settings.Patch) (settings.DisplaySettings, error) {
	return m.settings.Update(ctx, p)
}

// DisplaySettings returns the current settings.
func (m *Manager) DisplaySettings() settings.DisplaySettings { return m.settings.Get() }

// Status returns a pipeline snapshot.
func (m *Manager) Status() pipeline.Status { return m.pipeline.Status() }

// History returns up to n recent translations, oldest first.
func (m *Manager) History(n int) []history.Entry { return m.history.Recent(n) }

// Notices returns the recent operator notices.
func (m *Manager) Notices() []history.Notice { return m.history.Notices() }

// Events returns the control event stream.
func (m *Manager) Events() <-chan history.Event { return m.history.Events() }

// Shutdown stops capture and waits for an in-flight cycle to finish.
func (m *Manager) Shutdown() {
	m.pipeline.Stop()
	m.pipeline.Wait()
}
