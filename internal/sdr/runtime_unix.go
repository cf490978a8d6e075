//go:build !windows

package sdr

import (
	"fmt"
	"os/exec"
)

// FindRuntime locates an SDR capture tool on the PATH.
func FindRuntime(runtime string) (string, error) {
	binPath, err := exec.LookPath(runtime)
	if err != nil {
		return "", fmt.Errorf("`%s` not found in PATH: %w", runtime, err)
	}

	return binPath, nil
}
