package kv

import (
	"context"
	"sync"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
)

// Conn is a Store bound to one execution context of a Hub.
type Conn struct {
	hub       *Hub
	name      string
	done      <-chan struct{}
	cancel    context.CancelFunc
	closeOnce sync.Once
}

var _ Store = (*Conn)(nil)

var errClosed = apperrors.New(apperrors.CodeStorageUnavailable, "store connection closed")

// Name identifies the connection in change origins.
func (c *Conn) Name() string { return c.name }

func (c *Conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Conn) Get(ctx context.Context, key string) (string, bool, error) {
	if c.closed() {
		return "", false, errClosed
	}
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	v, ok := c.hub.get(key)
	return v, ok, nil
}

func (c *Conn) Set(ctx context.Context, key, value string) error {
	if c.closed() {
		return errClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.hub.set(c, key, value)
}

func (c *Conn) Watch(ctx context.Context) (<-chan Change, error) {
	if c.closed() {
		return nil, errClosed
	}
	w := c.hub.addWatcher(c)
	go func() {
		select {
		case <-ctx.Done():
		case <-c.done:
		}
		c.hub.removeWatcher(w)
	}()
	return w.ch, nil
}

// Close ends all watches on the connection. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(c.cancel)
	return nil
}
