//go:build !unix

package registry

import "os"

// OSProcesses signals real processes on this host. Without POSIX signals
// termination is always immediate and a process group is just its leader.
type OSProcesses struct{}

func (OSProcesses) Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}

func (OSProcesses) Terminate(pid int) error {
	return OSProcesses{}.Kill(pid)
}

func (OSProcesses) Kill(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	return p.Kill()
}

func (OSProcesses) GroupAlive(pgid int) bool { return OSProcesses{}.Alive(pgid) }

func (OSProcesses) TerminateGroup(pgid int) error { return OSProcesses{}.Kill(pgid) }

func (OSProcesses) KillGroup(pgid int) error { return OSProcesses{}.Kill(pgid) }
