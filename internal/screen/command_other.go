//go:build !darwin && !linux && !windows

package screen

import "fmt"

type unsupportedBackend struct{}

func (unsupportedBackend) captureRaw() ([]byte, error) {
	return nil, fmt.Errorf("%w on this platform", errNoTool)
}

func (unsupportedBackend) cleanup() {}

func newPlatformBackend(string) backend {
	return unsupportedBackend{}
}
