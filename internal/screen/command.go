package screen

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg" // JPEG decoder
	_ "image/png"  // PNG decoder
	"log/slog"
	"os"
	"sync"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
)

var errNoTool = errors.New("no screenshot tool available")

// backend runs a native screenshot tool and returns the encoded image.
type backend interface {
	captureRaw() ([]byte, error)
	cleanup()
}

// CommandSource captures through the operating system's screenshot tool.
type CommandSource struct {
	newBackend func(tempDir string) backend
}

func NewCommandSource() *CommandSource {
	return &CommandSource{newBackend: newPlatformBackend}
}

func (s *CommandSource) Open(ctx context.Context) (Stream, error) {
	tmpDir, err := os.MkdirTemp("", "lingualens-screen-*")
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureDenied, "create capture directory")
	}
	b := s.newBackend(tmpDir)
	if _, err := b.captureRaw(); err != nil {
		b.cleanup()
		_ = os.RemoveAll(tmpDir)
		return nil, apperrors.Wrap(err, apperrors.CodeCaptureDenied, "screen capture refused")
	}
	slog.Info("command capture opened", "dir", tmpDir)
	return &commandStream{backend: b, tempDir: tmpDir, done: make(chan struct{})}, nil
}

type commandStream struct {
	backend
	tempDir string
	done    chan struct{}
	mu      sync.Mutex
	closed  bool
}

func (st *commandStream) Frame(ctx context.Context) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return nil, errors.New("capture stream closed")
	}
	data, err := st.captureRaw()
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	return img, err
}

// Done never fires: a command capture only ends when closed.
func (st *commandStream) Done() <-chan struct{} { return st.done }

func (st *commandStream) Close() {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}
	st.closed = true
	st.cleanup()
	_ = os.RemoveAll(st.tempDir)
}
