//go:build darwin

package announce

import "os/exec"

func speechCommand(text string) *exec.Cmd {
	return exec.Command("say", text)
}
