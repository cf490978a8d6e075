//go:build !linux && !darwin

package announce

import "os/exec"

func speechCommand(string) *exec.Cmd {
	return nil
}
