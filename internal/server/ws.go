package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/history"
	"github.com/GriffinCanCode/lingualens/platform/internal/settings"
	"github.com/GriffinCanCode/lingualens/platform/internal/trace"
)

// Message types.
type Message struct {
	Type string `json:"type"`
}

// CommandMessage is an inbound control command: "start", "stop",
// "language" (with Code) or "settings" (with Settings).
type CommandMessage struct {
	Type     string          `json:"type"`
	Code     string          `json:"code,omitempty"`
	Settings *settings.Patch `json:"settings,omitempty"`
	TraceID  string          `json:"trace_id,omitempty"`
}

type StatusMessage struct {
	Type   string `json:"type"`
	Status any    `json:"status"`
}

type TranslationMessage struct {
	Type  string        `json:"type"`
	Entry history.Entry `json:"entry"`
}

type NoticeMessage struct {
	Type   string         `json:"type"`
	Notice history.Notice `json:"notice"`
}

type StateMessage struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// allow checks if a message is allowed and records the timestamp if so.
func (r *rateLimiter) allow(now time.Time) bool {
	cutoff := now.Add(-IPRateLimitWindow)
	r.lastSeen = now

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= IPRateLimitMessages {
		return false
	}

	r.timestamps = append(r.timestamps, now)
	return true
}

// ipRateLimiter shares one window across all connections from an address.
type ipRateLimiter struct {
	mu      sync.Mutex
	windows map[string]*rateLimiter
	now     func() time.Time
}

func newIPRateLimiter() *ipRateLimiter {
	return &ipRateLimiter{windows: make(map[string]*rateLimiter), now: time.Now}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	rl, ok := l.windows[ip]
	if !ok {
		rl = &rateLimiter{}
		l.windows[ip] = rl
	}
	return rl.allow(l.now())
}

// purge drops entries idle for longer than IPRateLimitEntryTTL.
func (l *ipRateLimiter) purge() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-IPRateLimitEntryTTL)
	for ip, rl := range l.windows {
		if rl.lastSeen.Before(cutoff) {
			delete(l.windows, ip)
		}
	}
}

func (l *ipRateLimiter) cleanupLoop(done <-chan struct{}) {
	ticker := time.NewTicker(IPRateLimitCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			l.purge()
		}
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.origins,
	})
	if err != nil {
		trace.Logger(r.Context()).Error("websocket accept error", "error", err)
		return
	}
	defer func() { _ = conn.Close(websocket.StatusNormalClosure, "") }()

	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
	}()

	// Get trace context from HTTP upgrade request
	baseCtx := r.Context()
	log := trace.Logger(baseCtx)
	log.Info("websocket connected", "remote", r.RemoteAddr)
	ip := remoteIP(r)

	// Greet with the current state so a panel can render immediately.
	_ = wsjson.Write(baseCtx, conn, StatusMessage{Type: "status", Status: s.ctrl.Status()})

	for {
		var msg json.RawMessage
		if err := wsjson.Read(baseCtx, conn, &msg); err != nil {
			log.Debug("websocket read error", "error", err)
			return
		}

		if !s.limiter.allow(ip) {
			log.Warn("rate limit exceeded", "remote", r.RemoteAddr)
			_ = wsjson.Write(baseCtx, conn, ErrorMessage{
				Type:    "error",
				Message: "rate limit exceeded",
			})
			continue
		}

		var cmd CommandMessage
		if err := json.Unmarshal(msg, &cmd); err != nil {
			continue
		}

		// Extract trace_id from message or create new trace context
		ctx := baseCtx
		if tc, ok := trace.ExtractFromJSON(msg); ok {
			ctx = trace.WithContext(ctx, tc)
		} else {
			ctx, _ = trace.EnsureContext(ctx)
		}
		s.handleCommand(ctx, conn, cmd)
	}
}

func (s *Server) handleCommand(ctx context.Context, conn *websocket.Conn, cmd CommandMessage) {
	ctx, span := trace.StartSpan(ctx, "handle_command")
	defer span.End()
	span.SetAttr("type", cmd.Type)

	var (
		reply any
		err   error
	)
	switch cmd.Type {
	case "start":
		var st any
		st, err = s.ctrl.StartCapture(ctx)
		reply = StatusMessage{Type: "status", Status: st}
	case "stop":
		reply = StatusMessage{Type: "status", Status: s.ctrl.StopCapture(ctx)}
	case "status":
		reply = StatusMessage{Type: "status", Status: s.ctrl.Status()}
	case "language":
		var lang any
		lang, err = s.ctrl.SetTargetLanguage(ctx, cmd.Code)
		reply = StatusMessage{Type: "language", Status: lang}
	case "settings":
		if cmd.Settings == nil {
			err = apperrors.New(apperrors.CodeInvalidArgument, "settings command without settings")
			break
		}
		var ds any
		ds, err = s.ctrl.SetDisplaySettings(ctx, *cmd.Settings)
		reply = StatusMessage{Type: "settings", Status: ds}
	default:
		err = apperrors.Newf(apperrors.CodeInvalidArgument, "unknown command %q", cmd.Type)
	}

	if err != nil {
		span.Fail(err)
		appErr, ok := apperrors.As(err)
		if !ok {
			appErr = apperrors.Wrap(err, apperrors.CodeInternal, err.Error())
		}
		reply = ErrorMessage{Type: "error", Message: appErr.Message, Code: appErr.Code.String()}
	}
	_ = wsjson.Write(ctx, conn, reply)
}

func eventMessage(evt history.Event) (any, bool) {
	switch evt.Kind {
	case history.KindTranslation:
		return TranslationMessage{Type: "translation", Entry: evt.Entry}, true
	case history.KindNotice:
		return NoticeMessage{Type: "notice", Notice: evt.Notice}, true
	case history.KindState:
		return StateMessage{Type: "state", State: evt.State}, true
	default:
		return nil, false
	}
}

func (s *Server) broadcastEvents() {
	events := s.ctrl.Events()
	for {
		var (
			evt history.Event
			ok  bool
		)
		select {
		case <-s.done:
			return
		case evt, ok = <-events:
			if !ok {
				return
			}
		}
		msg, known := eventMessage(evt)
		if !known {
			continue
		}

		s.mu.RLock()
		for conn := range s.conns {
			go func(c *websocket.Conn) {
				ctx, cancel := context.WithTimeout(context.Background(), BroadcastWriteTimeout)
				defer cancel()
				_ = wsjson.Write(ctx, c, msg)
			}(conn)
		}
		s.mu.RUnlock()
	}
}
