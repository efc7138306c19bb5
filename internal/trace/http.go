// Package trace - HTTP/WebSocket middleware for trace extraction.
package trace

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"net/http"
)

// Middleware adopts the caller's trace from request headers (or starts one),
// echoes the trace id in the response and records an "http_request" span with
// the final status.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithContext(r.Context(), extractFromHeaders(r))
		ctx, span := StartSpan(ctx, "http_request")
		span.SetAttr("method", r.Method)
		span.SetAttr("path", r.URL.Path)

		w.Header().Set(TraceIDKey, span.Ctx.TraceID)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))

		span.SetAttr("status", rec.status)
		span.End()
	})
}

// statusRecorder captures the response status. It passes Hijack through so
// WebSocket upgrades keep working behind the middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	s.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// extractFromHeaders gets trace context from HTTP headers. The caller's span
// becomes the parent.
func extractFromHeaders(r *http.Request) Context {
	return FromMap(map[string]string{
		TraceIDKey: r.Header.Get(TraceIDKey),
		SpanIDKey:  r.Header.Get(SpanIDKey),
	})
}

// ExtractFromJSON reads trace_id and span_id from a control WebSocket frame.
// It reports false, with a fresh context, when the frame carries no trace_id.
func ExtractFromJSON(data []byte) (Context, bool) {
	var msg struct {
		TraceID string `json:"trace_id"`
		SpanID  string `json:"span_id"`
	}
	if err := json.Unmarshal(data, &msg); err != nil || msg.TraceID == "" {
		return New(), false
	}
	return FromMap(map[string]string{TraceIDKey: msg.TraceID, SpanIDKey: msg.SpanID}), true
}
