//go:build darwin

package screen

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

type darwinBackend struct{ tempDir string }

func (d *darwinBackend) captureRaw() ([]byte, error) {
	tmpFile := filepath.Join(d.tempDir, "screenshot.jpg")
	cmd := exec.Command("screencapture", "-x", "-t", "jpg", "-m", tmpFile)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("screencapture: %w: %s", err, stderr.String())
	}
	defer os.Remove(tmpFile)
	return os.ReadFile(tmpFile)
}

func (d *darwinBackend) cleanup() {}

func newPlatformBackend(tempDir string) backend {
	return &darwinBackend{tempDir: tempDir}
}
