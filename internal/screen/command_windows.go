//go:build windows

package screen

import "fmt"

// Windows has no bundled command-line screenshot tool; use DisplaySource.
type windowsBackend struct{}

func (windowsBackend) captureRaw() ([]byte, error) {
	return nil, fmt.Errorf("%w on windows, use CAPTURE_BACKEND=display", errNoTool)
}

func (windowsBackend) cleanup() {}

func newPlatformBackend(string) backend {
	return windowsBackend{}
}
