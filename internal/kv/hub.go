package kv

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/metrics"
)

// Hub owns the durable map and fans changes out to connections.
type Hub struct {
	mu       sync.Mutex
	path     string
	data     map[string]string
	watchers map[*watcher]struct{}
	buffer   int
	metrics  *metrics.Metrics
}

// Option configures a Hub.
type Option func(*Hub)

// WithMetrics records writes and notification delivery on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// WithWatchBuffer sets the per-watcher backlog. Values below 1 are ignored.
func WithWatchBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// Open loads the store from path. A missing file is an empty store.
// An empty path gives a store that lives only in memory.
func Open(path string, opts ...Option) (*Hub, error) {
	h := &Hub{
		path:     path,
		data:     make(map[string]string),
		watchers: make(map[*watcher]struct{}),
		buffer:   DefaultWatchBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	if path == "" {
		return h, nil
	}

	raw, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		return h, nil
	case err != nil:
		return nil, apperrors.Wrap(err, apperrors.CodeStorageUnavailable, "read store").WithMetadata("path", path)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &h.data); err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeStorageUnavailable, "decode store").WithMetadata("path", path)
		}
	}
	slog.Debug("store loaded", "path", path, "keys", len(h.data))
	return h, nil
}

// Memory returns a store that is never written to disk.
func Memory(opts ...Option) *Hub {
	h, _ := Open("", opts...)
	return h
}

// Connect returns a new execution context handle named name.
func (h *Hub) Connect(name string) *Conn {
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{hub: h, name: name, done: ctx.Done(), cancel: cancel}
}

func (h *Hub) get(key string) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	v, ok := h.data[key]
	return v, ok
}

func (h *Hub) set(origin *Conn, key, value string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	prev, had := h.data[key]
	if had && prev == value {
		return nil
	}
	h.data[key] = value
	if err := h.persist(); err != nil {
		if had {
			h.data[key] = prev
		} else {
			delete(h.data, key)
		}
		h.metrics.StoreWrite(metrics.ResultError)
		slog.Warn("store write failed", "key", key, "origin", origin.name, "error", err)
		return apperrors.Wrap(err, apperrors.CodeStorageUnavailable, "persist store").WithMetadata("key", key)
	}
	h.metrics.StoreWrite(metrics.ResultOK)

	c := Change{Key: key, Value: value, Origin: origin.name}
	for w := range h.watchers {
		if w.owner == origin {
			continue
		}
		if w.deliver(c) {
			h.metrics.Notification(metrics.ResultSent)
		} else {
			h.metrics.Notification(metrics.ResultDropped)
			slog.Debug("watcher backlog full, collapsed pending changes", "watcher", w.owner.name, "key", key)
		}
	}
	return nil
}

// persist writes the map atomically. Caller holds h.mu.
func (h *Hub) persist() error {
	if h.path == "" {
		return nil
	}
	raw, err := json.MarshalIndent(h.data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(h.path), filepath.Base(h.path)+".tmp*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), h.path)
}

// Snapshot returns a copy of the current contents.
func (h *Hub) Snapshot() map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return maps.Clone(h.data)
}

func (h *Hub) addWatcher(owner *Conn) *watcher {
	w := &watcher{owner: owner, ch: make(chan Change, h.buffer)}
	h.mu.Lock()
	h.watchers[w] = struct{}{}
	h.mu.Unlock()
	return w
}

func (h *Hub) removeWatcher(w *watcher) {
	h.mu.Lock()
	delete(h.watchers, w)
	close(w.ch)
	h.mu.Unlock()
}

type watcher struct {
	owner *Conn
	ch    chan Change
}

// deliver enqueues c. Caller holds the hub lock, so w.ch has a single sender.
func (w *watcher) deliver(c Change) bool {
	return Enqueue(w.ch, c)
}
