// Package server provides HTTP and WebSocket handlers
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GriffinCanCode/lingualens/platform/internal/config"
	"github.com/GriffinCanCode/lingualens/platform/internal/control"
	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/history"
	"github.com/GriffinCanCode/lingualens/platform/internal/kvbridge"
	"github.com/GriffinCanCode/lingualens/platform/internal/metrics"
	"github.com/GriffinCanCode/lingualens/platform/internal/pipeline"
	"github.com/GriffinCanCode/lingualens/platform/internal/settings"
	"github.com/GriffinCanCode/lingualens/platform/internal/trace"
)

// Controller is the set of operator operations the server exposes.
// *control.Manager implements it.
type Controller interface {
	StartCapture(ctx context.Context) (pipeline.Status, error)
	StopCapture(ctx context.Context) pipeline.Status
	SetTargetLanguage(ctx context.Context, code string) (control.Language, error)
	TargetLanguage() control.Language
	SetDisplaySettings(ctx context.Context, p settings.Patch) (settings.DisplaySettings, error)
	DisplaySettings() settings.DisplaySettings
	Status() pipeline.Status
	History(n int) []history.Entry
	Notices() []history.Notice
	Events() <-chan history.Event
}

// Server handles HTTP and WebSocket connections.
type Server struct {
	ctrl    Controller
	store   kvbridge.Connector
	metrics *metrics.Metrics
	origins []string
	limiter *ipRateLimiter

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

// New creates a new server. store may be nil, which disables the store bridge,
// and m may be nil, which disables /metrics.
func New(ctrl Controller, cfg *config.Config, store kvbridge.Connector, m *metrics.Metrics) *Server {
	s := &Server{
		ctrl:    ctrl,
		store:   store,
		metrics: m,
		origins: cfg.AllowedOrigins,
		limiter: newIPRateLimiter(),
		conns:   make(map[*websocket.Conn]struct{}),
		done:    make(chan struct{}),
	}

	go s.broadcastEvents()
	go s.limiter.cleanupLoop(s.done)

	return s
}

// Close stops the background broadcaster.
func (s *Server) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// WebSocket endpoints
	mux.HandleFunc("GET /ws", s.handleWebSocket)
	if s.store != nil {
		mux.Handle("GET /api/store", kvbridge.Handler(s.store, s.origins, s.metrics))
	}

	// REST API
	mux.HandleFunc("POST /api/capture/start", s.handleCaptureStart)
	mux.HandleFunc("POST /api/capture/stop", s.handleCaptureStop)
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/language", s.handleGetLanguage)
	mux.HandleFunc("PUT /api/language", s.handleSetLanguage)
	mux.HandleFunc("GET /api/settings", s.handleGetSettings)
	mux.HandleFunc("PATCH /api/settings", s.handlePatchSettings)
	mux.HandleFunc("GET /api/history", s.handleHistory)

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	// Apply middleware: trace -> CORS
	return corsMiddleware(trace.Middleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		appErr = apperrors.Wrap(err, apperrors.CodeInternal, "internal error")
	}
	trace.Logger(ctx).Warn("request failed", "code", appErr.Code, "error", err)
	writeJSON(w, appErr.HTTPStatus(), ErrorResponse{Error: appErr.Message, Code: appErr.Code.String()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "malformed request body")
	}
	return nil
}

func (s *Server) handleCaptureStart(w http.ResponseWriter, r *http.Request) {
	st, err := s.ctrl.StartCapture(r.Context())
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleCaptureStop(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.StopCapture(r.Context()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.Status())
}

func (s *Server) handleGetLanguage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.TargetLanguage())
}

// LanguageRequest is the body of PUT /api/language.
type LanguageRequest struct {
	Code string `json:"code"`
}

func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var req LanguageRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	lang, err := s.ctrl.SetTargetLanguage(r.Context(), req.Code)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, lang)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ctrl.DisplaySettings())
}

func (s *Server) handlePatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch settings.Patch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	updated, err := s.ctrl.SetDisplaySettings(r.Context(), patch)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// HistoryResponse is the body of GET /api/history.
type HistoryResponse struct {
	Entries []history.Entry  `json:"entries"`
	Notices []history.Notice `json:"notices"`
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := DefaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(r.Context(), w, apperrors.Newf(apperrors.CodeInvalidArgument, "invalid limit %q", v))
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		Entries: s.ctrl.History(limit),
		Notices: s.ctrl.Notices(),
	})
}
