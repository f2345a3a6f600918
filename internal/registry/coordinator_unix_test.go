//go:build unix

package registry

import (
	"context"
	"errors"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startReaped starts cmd and reaps it in the background so a signalled
// process does not linger as a zombie.
func startReaped(t *testing.T, cmd *exec.Cmd) <-chan error {
	t.Helper()
	require.NoError(t, cmd.Start())

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
	})
	return done
}

func waitExit(t *testing.T, done <-chan error, what string) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatalf("%s still running", what)
		return nil
	}
}

func TestCoordinator_ForceStopKillsRunningCommand(t *testing.T) {
	r, _ := setupRegistry(t)
	ctx := context.Background()

	// a worker that ignores SIGTERM while its command runs
	workerCmd := exec.Command("/bin/sh", "-c", `trap "" TERM; while :; do sleep 1; done`)
	workerDone := startReaped(t, workerCmd)

	jobCmd := exec.Command("sleep", "30")
	jobCmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	jobDone := startReaped(t, jobCmd)

	require.NoError(t, r.Register(ctx, models.WorkerRecord{WorkerID: "w1", PID: workerCmd.Process.Pid}))
	require.NoError(t, r.TrackJobProcess(ctx, "w1", "job1", jobCmd.Process.Pid))

	report, err := newTestCoordinator(r, OSProcesses{}).StopWorkers(ctx, "w1", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, report.Killed)

	var exitErr *exec.ExitError
	err = waitExit(t, jobDone, "job command")
	require.True(t, errors.As(err, &exitErr), "command should die from a signal, got %v", err)
	status := exitErr.Sys().(syscall.WaitStatus)
	assert.True(t, status.Signaled())

	err = waitExit(t, workerDone, "worker")
	require.True(t, errors.As(err, &exitErr))
	assert.True(t, exitErr.Sys().(syscall.WaitStatus).Signaled())
}

func TestCoordinator_StalePidIsLeftAlone(t *testing.T) {
	r, clock := setupRegistry(t)
	ctx := context.Background()

	bystander := exec.Command("sleep", "30")
	done := startReaped(t, bystander)

	require.NoError(t, r.Register(ctx, models.WorkerRecord{WorkerID: "crashed", PID: bystander.Process.Pid}))
	clock.Advance(time.Hour)

	report, err := newTestCoordinator(r, OSProcesses{}).StopWorkers(ctx, "", 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []string{"crashed"}, report.Stopped)
	assert.Empty(t, report.Killed)

	select {
	case err := <-done:
		t.Fatalf("unrelated process was signalled: %v", err)
	case <-time.After(200 * time.Millisecond):
	}
	assert.True(t, OSProcesses{}.Alive(bystander.Process.Pid))
}
