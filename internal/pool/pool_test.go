//go:build unix

package pool

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/logging"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/joshu-sajeev/queuectl/internal/registry"
	"github.com/joshu-sajeev/queuectl/internal/storage/filestore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPool(t *testing.T, count int, script string, opts Options) (*WorkerPool, *filestore.Store) {
	t.Helper()

	store, err := filestore.Open(t.TempDir(), filestore.WithLogger(logging.Discard()))
	require.NoError(t, err)

	reg := registry.NewRegistry(filestore.NewWorkerRepository(store), registry.WithLogger(logging.Discard()))
	coord := registry.NewCoordinator(reg, registry.OSProcesses{},
		registry.WithPollInterval(10*time.Millisecond),
		registry.WithCoordinatorLogger(logging.Discard()),
	)

	opts.Executable = "/bin/sh"
	// "$2" receives the worker id
	opts.Args = []string{"-c", script, "sh"}
	if opts.LogDir == "" {
		opts.LogDir = filepath.Join(store.Dir(), "logs")
	}

	return NewWorkerPool(count, opts, reg, coord, logging.Discard()), store
}

func TestWorkerPool_StartAndWait(t *testing.T) {
	p, _ := setupPool(t, 2, `echo "worker $2 in $QUEUECTL_TEST_MARK"`, Options{
		Env: []string{"QUEUECTL_TEST_MARK=pool"},
	})

	require.NoError(t, p.Start())
	procs := p.Processes()
	require.Len(t, procs, 2)
	assert.NotEqual(t, procs[0].WorkerID, procs[1].WorkerID)

	require.NoError(t, p.Wait(context.Background()))

	for i, proc := range procs {
		assert.Equal(t, filepath.Base(proc.LogFile), []string{"worker-1.log", "worker-2.log"}[i])

		out, err := os.ReadFile(proc.LogFile)
		require.NoError(t, err)
		assert.Equal(t, "worker "+proc.WorkerID+" in pool\n", string(out))
	}
}

func TestWorkerPool_WaitReportsFailedWorker(t *testing.T) {
	p, _ := setupPool(t, 1, `exit 3`, Options{})

	require.NoError(t, p.Start())
	err := p.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit status 3")
}

func TestWorkerPool_StopTerminatesUnregisteredWorkers(t *testing.T) {
	p, _ := setupPool(t, 2, `trap 'exit 0' TERM; echo ready; while :; do sleep 0.05; done`, Options{})

	require.NoError(t, p.Start())
	for _, proc := range p.Processes() {
		require.Eventually(t, func() bool {
			out, _ := os.ReadFile(proc.LogFile)
			return string(out) == "ready\n"
		}, 5*time.Second, 10*time.Millisecond)
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- p.Wait(context.Background()) }()

	report, err := p.Stop(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Len(t, report.Killed, 2)
	assert.Empty(t, report.Stopped)

	select {
	case err := <-waitErr:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("workers did not exit after SIGTERM")
	}
}

func TestWorkerPool_WaitPrunesStaleRecords(t *testing.T) {
	p, store := setupPool(t, 1, `sleep 0.3`, Options{
		PruneInterval: 20 * time.Millisecond,
		StaleAfter:    time.Minute,
	})

	past := func() time.Time { return time.Now().Add(-time.Hour) }
	old := registry.NewRegistry(filestore.NewWorkerRepository(store),
		registry.WithClock(past), registry.WithLogger(logging.Discard()))
	require.NoError(t, old.Register(context.Background(), models.WorkerRecord{WorkerID: "gone", PID: 1}))

	require.NoError(t, p.Start())
	require.NoError(t, p.Wait(context.Background()))

	workers, err := p.registry.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, workers)
}

func TestWorkerPool_Detach(t *testing.T) {
	p, _ := setupPool(t, 1, `exit 0`, Options{})

	require.NoError(t, p.Start())
	require.Len(t, p.Processes(), 1)

	p.Detach()
	assert.Empty(t, p.Processes())
}
