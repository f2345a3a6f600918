//go:build !unix

package worker

import "os/exec"

func detachFromTerminal(cmd *exec.Cmd) {}
