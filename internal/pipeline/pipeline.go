// Package pipeline runs the capture session: sample a frame on a fixed
// interval, extract its text, translate genuine changes and publish them to
// the shared store.
package pipeline

import (
	"context"
	"image"
	"log/slog"
	"strings"
	"sync"
	"time"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/history"
	"github.com/GriffinCanCode/lingualens/platform/internal/metrics"
	"github.com/GriffinCanCode/lingualens/platform/internal/relay"
	"github.com/GriffinCanCode/lingualens/platform/internal/screen"
	"github.com/GriffinCanCode/lingualens/platform/internal/trace"
	pb "github.com/GriffinCanCode/lingualens/platform/pkg/pb"
)

// DefaultInterval is the sampling cadence.
const DefaultInterval = 5 * time.Second

// Extractor recognizes text in an encoded image.
type Extractor interface {
	ExtractText(ctx context.Context, imageData []byte, format string) (string, error)
}

// Translator translates text into a target language.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (*pb.TranslateResponse, error)
}

// Publisher delivers translated text to display surfaces.
type Publisher interface {
	PublishText(ctx context.Context, text string) (relay.Message, error)
}

// Journal records what the operator should see.
type Journal interface {
	Add(history.Entry)
	Notify(code apperrors.Code, msg string)
	StateChanged(state string)
}

// TranslationResult is the translation of the current source text.
type TranslationResult struct {
	TranslatedText         string `json:"translatedText"`
	DetectedSourceLanguage string `json:"detectedSourceLanguage,omitempty"`
}

// Status is a snapshot for the control surface.
type Status struct {
	State          string             `json:"state"`
	Stage          string             `json:"stage,omitempty"`
	Running        bool               `json:"running"`
	SourceText     string             `json:"sourceText"`
	Result         *TranslationResult `json:"result,omitempty"`
	TargetLanguage string             `json:"targetLanguage"`
	LastSequence   int64              `json:"lastSequence,omitempty"`
}

// Config holds pipeline settings.
type Config struct {
	Interval       time.Duration
	TargetLanguage string
	Encoder        screen.Encoder
	SkipSimilar    bool
}

// Deps are the pipeline's collaborators.
type Deps struct {
	Source     screen.Source
	Extractor  Extractor
	Translator Translator
	Publisher  Publisher
	Journal    Journal
	Metrics    *metrics.Metrics
}

// Pipeline owns at most one capture session.
type Pipeline struct {
	Deps
	interval time.Duration
	encoder  screen.Encoder
	filter   *screen.SimilarityFilter

	mu         sync.Mutex
	state      State
	stage      Stage
	gen        uint64
	opening    bool
	session    *session
	sourceText string
	result     *TranslationResult
	target     string
	lastSeq    int64

	inflight sync.WaitGroup
}

type session struct {
	gen    uint64
	ctx    context.Context
	stream screen.Stream
	ticker *time.Ticker
	stop   chan struct{}
	once   sync.Once
}

func (s *session) end() {
	s.once.Do(func() {
		s.ticker.Stop()
		close(s.stop)
		s.stream.Close()
	})
}

// New creates an idle pipeline.
func New(cfg Config, deps Deps) *Pipeline {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	p := &Pipeline{
		Deps:     deps,
		interval: cfg.Interval,
		encoder:  cfg.Encoder,
		target:   cfg.TargetLanguage,
	}
	if cfg.SkipSimilar {
		p.filter = screen.NewSimilarityFilter(screen.MaxHashDistance)
	}
	return p
}

// transition moves the guard. Caller holds p.mu.
func (p *Pipeline) transition(next State) bool {
	if !canTransition(p.state, next) {
		slog.Error("illegal capture state transition", "from", p.state, "to", next)
		return false
	}
	p.state = next
	return true
}

// current reports whether gen is the live session. Caller holds p.mu.
func (p *Pipeline) current(gen uint64) bool {
	return p.session != nil && p.session.gen == gen
}

// Start opens the capture source and begins sampling. It fails with
// CaptureActive when a session is running or starting, and with
// CaptureDenied when the source refuses.
func (p *Pipeline) Start(ctx context.Context) error {
	ctx, span := trace.StartSpan(ctx, "capture_start")
	defer span.End()
	log := trace.Logger(ctx)

	p.mu.Lock()
	if p.state != StateIdle || p.opening {
		p.mu.Unlock()
		return apperrors.New(apperrors.CodeCaptureActive, "capture already running")
	}
	p.opening = true
	openGen := p.gen
	p.mu.Unlock()

	stream, err := p.Source.Open(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.opening = false

	if err != nil {
		span.Fail(err)
		if !apperrors.IsCode(err, apperrors.CodeCaptureDenied) {
			err = apperrors.Wrap(err, apperrors.CodeCaptureDenied, "capture source unavailable")
		}
		log.Warn("capture denied", "error", err)
		p.Journal.Notify(apperrors.CodeCaptureDenied, "Could not start screen capture. Please grant permissions and try again.")
		return err
	}
	if p.gen != openGen {
		stream.Close()
		return apperrors.New(apperrors.CodeCancelled, "capture stopped while starting")
	}

	p.gen++
	s := &session{
		gen:    p.gen,
		ctx:    trace.Detach(ctx),
		stream: stream,
		ticker: time.NewTicker(p.interval),
		stop:   make(chan struct{}),
	}
	p.session = s
	p.transition(StateCapturing)
	if p.filter != nil {
		p.filter.Reset()
	}

	go p.loop(s)
	go p.watchStream(s)

	p.Metrics.SessionStarted()
	p.Journal.StateChanged(StateCapturing.String())
	log.Info("capture started", "interval", p.interval, "target", p.target)
	return nil
}

func (p *Pipeline) loop(s *session) {
	for {
		select {
		case <-s.stop:
			return
		case <-s.ticker.C:
			p.tick(s.gen)
		}
	}
}

func (p *Pipeline) watchStream(s *session) {
	select {
	case <-s.stop:
	case <-s.stream.Done():
		trace.Logger(s.ctx).Info("capture stream ended by source")
		p.teardown(s)
	}
}

// Tick runs one sampling step now, as the timer would. It returns false when
// the tick was skipped because no session is capturing or a cycle is still
// in flight.
func (p *Pipeline) Tick() bool {
	p.mu.Lock()
	var gen uint64
	if p.session != nil {
		gen = p.session.gen
	}
	p.mu.Unlock()
	return p.tick(gen)
}

func (p *Pipeline) tick(gen uint64) bool {
	p.mu.Lock()
	if !p.current(gen) || p.state == StateIdle {
		p.mu.Unlock()
		p.Metrics.Tick(metrics.OutcomeSkippedIdle)
		return false
	}
	if p.state == StateBusy {
		p.mu.Unlock()
		p.Metrics.Tick(metrics.OutcomeSkippedBusy)
		slog.Debug("tick skipped, cycle in flight")
		return false
	}
	s := p.session
	p.transition(StateBusy)
	p.stage = StageSampling
	p.inflight.Add(1)
	p.mu.Unlock()

	p.Metrics.Tick(metrics.OutcomeCycle)
	go func() {
		defer p.inflight.Done()
		p.cycle(s)
	}()
	return true
}

// cycle runs sample, extract, detect, translate and publish for session s.
// Every step that touches shared state first checks that s is still live.
func (p *Pipeline) cycle(s *session) {
	ctx, span := trace.StartSpan(s.ctx, "capture_cycle")
	defer span.End()
	defer p.finishCycle(s.gen)
	log := trace.Logger(ctx)

	frame, err := s.stream.Frame(ctx)
	if err != nil {
		span.Fail(err)
		p.notify(s.gen, apperrors.CodeExtractionFailure, "Could not sample the screen: "+err.Error())
		return
	}
	var fp screen.Fingerprint
	if p.filter != nil {
		var similar bool
		if fp, similar = p.filter.Check(frame); similar {
			p.Metrics.FrameSkipped()
			return
		}
	}

	text, err := p.extract(ctx, frame)
	p.Metrics.Extraction(metrics.Result(err))
	if err != nil {
		span.Fail(err)
		p.notify(s.gen, apperrors.CodeExtractionFailure, "Text extraction failed: "+message(err))
		return
	}

	p.mu.Lock()
	if !p.current(s.gen) {
		p.mu.Unlock()
		return
	}
	// A frame counts as seen only once its text is in hand.
	if p.filter != nil {
		p.filter.Commit(fp)
	}
	p.stage = StageDetecting
	if !Changed(p.sourceText, text) {
		p.mu.Unlock()
		return
	}
	p.sourceText = text
	target := p.target
	p.stage = StageTranslating
	p.mu.Unlock()
	span.SetAttr("source_len", len(text))

	var result TranslationResult
	if strings.TrimSpace(text) == "" {
		p.Metrics.Translation(metrics.ResultBlank)
	} else {
		resp, err := p.Translator.Translate(ctx, text, target)
		p.Metrics.Translation(metrics.Result(err))
		if err != nil {
			span.Fail(err)
			p.notify(s.gen, apperrors.CodeTranslationFailure, "Translation failed: "+message(err))
			return
		}
		result = TranslationResult{TranslatedText: resp.TranslatedText, DetectedSourceLanguage: resp.DetectedSourceLanguage}
	}

	// Publishing under the lock keeps a stopped session from publishing.
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.current(s.gen) {
		return
	}
	p.stage = StagePublishing

	msg, err := p.Publisher.PublishText(ctx, result.TranslatedText)
	p.Metrics.Publish(metrics.Result(err))
	if err != nil {
		span.Fail(err)
		log.Warn("publish failed", "error", err)
		p.Journal.Notify(apperrors.CodeStorageUnavailable, "Translation could not be sent to the display: "+message(err))
		return
	}
	// Result only ever shows what the display has been sent.
	p.result = &result
	p.lastSeq = msg.Sequence
	p.Journal.Add(history.Entry{
		SourceText:       text,
		TranslatedText:   result.TranslatedText,
		DetectedLanguage: result.DetectedSourceLanguage,
		TargetLanguage:   target,
		Sequence:         msg.Sequence,
	})
	log.Info("translation published", "sequence", msg.Sequence, "target", target, "detected", result.DetectedSourceLanguage)
}

func (p *Pipeline) extract(ctx context.Context, frame image.Image) (string, error) {
	payload, err := p.encoder.Encode(frame)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.CodeExtractionFailure, "encode frame")
	}
	return p.Extractor.ExtractText(ctx, payload, screen.Format)
}

func (p *Pipeline) finishCycle(gen uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current(gen) && p.state == StateBusy {
		p.transition(StateCapturing)
		p.stage = StageNone
	}
}

// notify reports a failure unless the session that hit it has ended.
func (p *Pipeline) notify(gen uint64, code apperrors.Code, msg string) {
	p.mu.Lock()
	live := p.current(gen)
	p.mu.Unlock()
	if !live {
		slog.Debug("dropping failure from ended session", "code", code, "message", msg)
		return
	}
	p.Journal.Notify(code, msg)
}

// Stop ends the session if there is one. It is idempotent and returns once
// the timer is stopped and the stream released. Cycles still in flight finish
// on their own and their results are discarded.
func (p *Pipeline) Stop() {
	p.teardown(nil)
}

// teardown ends the live session. A non-nil only restricts it to that session.
func (p *Pipeline) teardown(only *session) {
	p.mu.Lock()
	if only != nil && p.session != only {
		p.mu.Unlock()
		return
	}
	p.gen++
	s := p.session
	p.session = nil
	p.sourceText = ""
	p.result = nil
	p.stage = StageNone
	if p.state != StateIdle {
		p.transition(StateIdle)
	}
	p.mu.Unlock()

	if s == nil {
		return
	}
	s.end()
	if p.filter != nil {
		p.filter.Reset()
	}
	p.Metrics.SessionEnded()
	p.Journal.StateChanged(StateIdle.String())
	trace.Logger(s.ctx).Info("capture stopped")
}

// Wait blocks until cycles that are in flight have returned.
func (p *Pipeline) Wait() {
	p.inflight.Wait()
}

// SetTargetLanguage changes the language used by the next translation.
func (p *Pipeline) SetTargetLanguage(code string) {
	p.mu.Lock()
	p.target = code
	p.mu.Unlock()
}

// TargetLanguage returns the configured target language.
func (p *Pipeline) TargetLanguage() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// Status returns a snapshot of the session.
func (p *Pipeline) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	st := Status{
		State:          p.state.String(),
		Stage:          p.stage.String(),
		Running:        p.state != StateIdle,
		SourceText:     p.sourceText,
		TargetLanguage: p.target,
		LastSequence:   p.lastSeq,
	}
	if p.result != nil {
		r := *p.result
		st.Result = &r
	}
	return st
}

func message(err error) string {
	if appErr, ok := apperrors.As(err); ok {
		return appErr.Message
	}
	return err.Error()
}
