package kvbridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/kv"
	"github.com/GriffinCanCode/lingualens/platform/internal/metrics"
	"github.com/GriffinCanCode/lingualens/platform/internal/trace"
)

// Connector hands out per-peer store connections. *kv.Hub implements it.
type Connector interface {
	Connect(name string) *kv.Conn
}

type handler struct {
	hub     Connector
	origins []string
	metrics *metrics.Metrics
	peers   atomic.Uint64
}

// Handler serves the store bridge. originPatterns is passed to websocket.Accept.
func Handler(hub Connector, originPatterns []string, m *metrics.Metrics) http.Handler {
	return &handler{hub: hub, origins: originPatterns, metrics: m}
}

func (h *handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Error("store bridge accept error", "error", err)
		return
	}
	defer func() { _ = ws.Close(websocket.StatusNormalClosure, "") }()
	ws.SetReadLimit(ReadLimit)

	name := fmt.Sprintf("bridge-%d", h.peers.Add(1))
	store := h.hub.Connect(name)
	defer func() { _ = store.Close() }()

	h.metrics.PeerConnected()
	defer h.metrics.PeerDisconnected()

	ctx := r.Context()
	log := trace.Logger(ctx).With("peer", name)
	log.Info("store peer connected", "remote", r.RemoteAddr)

	watching := false
	for {
		var req frame
		if err := wsjson.Read(ctx, ws, &req); err != nil {
			log.Info("store peer disconnected", "reason", err)
			return
		}

		resp := frame{Op: OpResult, ID: req.ID}
		switch req.Op {
		case OpGet:
			v, ok, err := store.Get(ctx, req.Key)
			resp.Value, resp.Found = v, ok
			setError(&resp, err)
		case OpSet:
			setError(&resp, store.Set(ctx, req.Key, req.Value))
		case OpWatch:
			if !watching {
				ch, err := store.Watch(ctx)
				if err == nil {
					watching = true
					go forward(ctx, ws, ch)
				}
				setError(&resp, err)
			}
		default:
			setError(&resp, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown op %q", req.Op))
		}

		if err := wsjson.Write(ctx, ws, resp); err != nil {
			log.Debug("store bridge write error", "error", err)
			return
		}
	}
}

func forward(ctx context.Context, ws *websocket.Conn, ch <-chan kv.Change) {
	for c := range ch {
		if err := wsjson.Write(ctx, ws, frame{Op: OpChange, Key: c.Key, Value: c.Value}); err != nil {
			return
		}
	}
}

func setError(f *frame, err error) {
	if err == nil {
		return
	}
	f.Error = err.Error()
	f.Code = apperrors.CodeInternal.String()
	if appErr, ok := apperrors.As(err); ok {
		f.Error = appErr.Message
		f.Code = appErr.Code.String()
	}
}
