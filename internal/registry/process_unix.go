//go:build unix

package registry

import (
	"errors"

	"golang.org/x/sys/unix"
)

// OSProcesses signals real processes on this host.
type OSProcesses struct{}

func (OSProcesses) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return exists(pid)
}

func (OSProcesses) Terminate(pid int) error {
	return ignoreGone(unix.Kill(pid, unix.SIGTERM))
}

func (OSProcesses) Kill(pid int) error {
	return ignoreGone(unix.Kill(pid, unix.SIGKILL))
}

// GroupAlive reports whether any process is left in group pgid.
func (OSProcesses) GroupAlive(pgid int) bool {
	if pgid <= 1 {
		return false
	}
	return exists(-pgid)
}

func (OSProcesses) TerminateGroup(pgid int) error {
	if pgid <= 1 {
		return nil
	}
	return ignoreGone(unix.Kill(-pgid, unix.SIGTERM))
}

func (OSProcesses) KillGroup(pgid int) error {
	if pgid <= 1 {
		return nil
	}
	return ignoreGone(unix.Kill(-pgid, unix.SIGKILL))
}

func exists(target int) bool {
	err := unix.Kill(target, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

func ignoreGone(err error) error {
	if errors.Is(err, unix.ESRCH) {
		return nil
	}
	return err
}
