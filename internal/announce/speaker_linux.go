//go:build linux

package announce

import "os/exec"

func speechCommand(text string) *exec.Cmd {
	return exec.Command("espeak", text)
}
