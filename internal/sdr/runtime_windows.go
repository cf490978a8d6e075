//go:build windows

package sdr

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// FindRuntime locates an SDR capture tool, first on the PATH and then
// in a bin/ directory next to the executable, where Windows builds are
// expected to bundle the rtl-sdr tools.
func FindRuntime(runtime string) (string, error) {
	if binPath, err := exec.LookPath(runtime); err == nil {
		return binPath, nil
	}

	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get executable path: %w", err)
	}

	binPath := filepath.Join(filepath.Dir(exePath), "bin", fmt.Sprintf("%s.exe", runtime))
	if _, err = os.Stat(binPath); err != nil {
		return "", fmt.Errorf("failed to find binary '%s': %w", runtime, err)
	}

	return binPath, nil
}
