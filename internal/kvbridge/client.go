package kvbridge

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
	"github.com/GriffinCanCode/lingualens/platform/internal/kv"
)

// Client is a kv.Store reached through the bridge.
type Client struct {
	ws     *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
	nextID atomic.Uint64

	mu       sync.Mutex
	pending  map[uint64]chan frame
	watchers map[chan kv.Change]struct{}
	watching bool
	done     chan struct{}
	err      error
}

var _ kv.Store = (*Client)(nil)

// Dial connects to a bridge endpoint such as ws://127.0.0.1:8000/api/store.
func Dial(ctx context.Context, url string) (*Client, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeStorageUnavailable, "dial store bridge").WithMetadata("url", url)
	}
	ws.SetReadLimit(ReadLimit)

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		ws:       ws,
		ctx:      cctx,
		cancel:   cancel,
		pending:  make(map[uint64]chan frame),
		watchers: make(map[chan kv.Change]struct{}),
		done:     make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Done is closed when the connection is lost or closed.
func (c *Client) Done() <-chan struct{} { return c.done }

// Err reports why the connection ended.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Client) readLoop() {
	for {
		var f frame
		if err := wsjson.Read(c.ctx, c.ws, &f); err != nil {
			c.fail(err)
			return
		}
		switch f.Op {
		case OpResult:
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			delete(c.pending, f.ID)
			c.mu.Unlock()
			if ok {
				ch <- f
			}
		case OpChange:
			c.fanOut(kv.Change{Key: f.Key, Value: f.Value})
		}
	}
}

func (c *Client) fanOut(change kv.Change) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for ch := range c.watchers {
		kv.Enqueue(ch, change)
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.done:
		return
	default:
	}
	c.err = apperrors.Wrap(err, apperrors.CodeStorageUnavailable, "store bridge disconnected")
	close(c.done)
	for ch := range c.watchers {
		close(ch)
	}
	c.watchers = nil
}

func (c *Client) call(ctx context.Context, req frame) (frame, error) {
	req.ID = c.nextID.Add(1)
	reply := make(chan frame, 1)

	c.mu.Lock()
	if c.watchers == nil {
		err := c.err
		c.mu.Unlock()
		return frame{}, err
	}
	c.pending[req.ID] = reply
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	if err := wsjson.Write(ctx, c.ws, req); err != nil {
		return frame{}, apperrors.Wrap(err, apperrors.CodeStorageUnavailable, "store bridge write")
	}

	select {
	case resp := <-reply:
		if resp.Error != "" {
			return resp, apperrors.New(apperrors.ParseCode(resp.Code), resp.Error)
		}
		return resp, nil
	case <-c.done:
		return frame{}, c.Err()
	case <-ctx.Done():
		return frame{}, ctx.Err()
	}
}

func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	resp, err := c.call(ctx, frame{Op: OpGet, Key: key})
	if err != nil {
		return "", false, err
	}
	return resp.Value, resp.Found, nil
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	_, err := c.call(ctx, frame{Op: OpSet, Key: key, Value: value})
	return err
}

// Watch subscribes the peer on first use and returns a local channel that
// closes when ctx is done or the connection drops.
func (c *Client) Watch(ctx context.Context) (<-chan kv.Change, error) {
	c.mu.Lock()
	subscribe := !c.watching
	c.watching = true
	c.mu.Unlock()

	if subscribe {
		if _, err := c.call(ctx, frame{Op: OpWatch}); err != nil {
			c.mu.Lock()
			c.watching = false
			c.mu.Unlock()
			return nil, err
		}
	}

	ch := make(chan kv.Change, kv.DefaultWatchBuffer)
	c.mu.Lock()
	if c.watchers == nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.watchers[ch] = struct{}{}
	c.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
			return
		}
		c.mu.Lock()
		if _, ok := c.watchers[ch]; ok {
			delete(c.watchers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}()
	return ch, nil
}

// Close ends the connection and every watch.
func (c *Client) Close() error {
	err := c.ws.Close(websocket.StatusNormalClosure, "")
	c.cancel()
	c.fail(context.Canceled)
	return err
}
