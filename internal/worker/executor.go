package worker

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"

	"github.com/joshu-sajeev/queuectl/internal/models"
)

// Executor runs a job's command to completion. started, when not nil, is
// called with the command's process group id once it is running.
type Executor interface {
	Run(ctx context.Context, command string, started func(pgid int)) models.ExecutionResult
}

// ShellExecutor runs commands through the platform shell and captures at
// most OutputLimit bytes of each output stream.
type ShellExecutor struct {
	OutputLimit int
}

func NewShellExecutor(outputLimit int) *ShellExecutor {
	return &ShellExecutor{OutputLimit: outputLimit}
}

var _ Executor = (*ShellExecutor)(nil)

func (e *ShellExecutor) Run(ctx context.Context, command string, started func(pgid int)) models.ExecutionResult {
	name, args := shellCommand(command)

	cmd := exec.CommandContext(ctx, name, args...)
	stdout := newCappedBuffer(e.OutputLimit)
	stderr := newCappedBuffer(e.OutputLimit)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	detachFromTerminal(cmd)

	err := cmd.Start()
	if err == nil {
		if started != nil {
			started(cmd.Process.Pid)
		}
		err = cmd.Wait()
	}

	res := models.ExecutionResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		return res
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		if res.ExitCode >= 0 {
			res.Err = fmt.Sprintf("exit status %d", res.ExitCode)
		} else {
			res.Err = exitErr.Error()
		}
		return res
	}

	// the command never started
	res.ExitCode = -1
	res.Err = fmt.Sprintf("command execution failure: %v", err)
	return res
}

func shellCommand(command string) (string, []string) {
	if runtime.GOOS == "windows" {
		return "cmd", []string{"/C", command}
	}
	return "/bin/sh", []string{"-c", command}
}
