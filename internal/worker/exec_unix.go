//go:build unix

package worker

import (
	"os/exec"
	"syscall"
)

// detachFromTerminal puts the command in its own process group, led by the
// command itself, so a Ctrl+C aimed at the worker does not interrupt the
// job while a forced stop can still signal the whole group.
func detachFromTerminal(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
