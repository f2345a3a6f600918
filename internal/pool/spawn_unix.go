//go:build unix

package pool

import (
	"os/exec"
	"syscall"
)

// detach starts the worker in a new session so it survives the terminal
// that launched it.
func detach(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
}
