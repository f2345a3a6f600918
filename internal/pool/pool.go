// Package pool launches and supervises worker processes.
package pool

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/internal/registry"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Executable is the binary to launch. Defaults to the running binary.
	Executable string
	// Args precede the "--id <worker id>" pair on each command line.
	Args []string
	// Env is appended to the parent's environment.
	Env    []string
	LogDir string
	// PruneInterval is how often Wait clears dead worker records.
	PruneInterval time.Duration
	StaleAfter    time.Duration
}

// Process is one launched worker.
type Process struct {
	WorkerID string `json:"worker_id"`
	PID      int    `json:"pid"`
	LogFile  string `json:"log_file"`

	cmd *exec.Cmd
}

type WorkerPool struct {
	count       int
	opts        Options
	registry    *registry.Registry
	coordinator *registry.Coordinator
	procs       registry.ProcessController
	log         logrus.FieldLogger

	mu      sync.Mutex
	running []*Process
}

func NewWorkerPool(count int, opts Options, reg *registry.Registry, coord *registry.Coordinator, log logrus.FieldLogger) *WorkerPool {
	if opts.PruneInterval <= 0 {
		opts.PruneInterval = 30 * time.Second
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 15 * time.Second
	}
	return &WorkerPool{
		count:       count,
		opts:        opts,
		registry:    reg,
		coordinator: coord,
		procs:       registry.OSProcesses{},
		log:         log,
	}
}

// Start launches the workers, each in its own session with output sent to
// <LogDir>/worker-<n>.log. If a launch fails the ones already started keep
// running and are returned by Processes.
func (p *WorkerPool) Start() error {
	exe := p.opts.Executable
	if exe == "" {
		self, err := os.Executable()
		if err != nil {
			return fmt.Errorf("locate executable: %w", err)
		}
		exe = self
	}

	if err := os.MkdirAll(p.opts.LogDir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	for n := 1; n <= p.count; n++ {
		proc, err := p.spawn(exe, n)
		if err != nil {
			return fmt.Errorf("start worker %d: %w", n, err)
		}

		p.mu.Lock()
		p.running = append(p.running, proc)
		p.mu.Unlock()

		p.log.WithFields(logrus.Fields{
			"worker_id": proc.WorkerID,
			"pid":       proc.PID,
			"log_file":  proc.LogFile,
		}).Info("worker process started")
	}
	return nil
}

func (p *WorkerPool) spawn(exe string, n int) (*Process, error) {
	id, err := registry.NewWorkerID()
	if err != nil {
		return nil, err
	}

	logPath := filepath.Join(p.opts.LogDir, fmt.Sprintf("worker-%d.log", n))
	out, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	// the child holds its own descriptor once started
	defer out.Close()

	args := append(append([]string(nil), p.opts.Args...), "--id", id)
	cmd := exec.Command(exe, args...)
	cmd.Env = append(os.Environ(), p.opts.Env...)
	cmd.Stdout = out
	cmd.Stderr = out
	detach(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	return &Process{WorkerID: id, PID: cmd.Process.Pid, LogFile: logPath, cmd: cmd}, nil
}

// Processes returns the workers launched so far.
func (p *WorkerPool) Processes() []Process {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]Process, 0, len(p.running))
	for _, proc := range p.running {
		out = append(out, *proc)
	}
	return out
}

// Detach lets the workers outlive this process.
func (p *WorkerPool) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, proc := range p.running {
		if err := proc.cmd.Process.Release(); err != nil {
			p.log.WithError(err).WithField("worker_id", proc.WorkerID).Warn("failed to release worker process")
		}
	}
	p.running = nil
}

// Wait blocks until every launched worker has exited, pruning dead worker
// records in the meantime. It reports the first worker that exited with an
// error.
func (p *WorkerPool) Wait(ctx context.Context) error {
	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()

	var janitor errgroup.Group
	janitor.Go(func() error {
		p.janitor(janitorCtx)
		return nil
	})

	var children errgroup.Group
	for _, proc := range p.Processes() {
		children.Go(func() error {
			err := proc.cmd.Wait()
			log := p.log.WithFields(logrus.Fields{"worker_id": proc.WorkerID, "pid": proc.PID})
			if err != nil {
				log.WithError(err).Error("worker process exited")
				return fmt.Errorf("worker %s: %w", proc.WorkerID, err)
			}
			log.Info("worker process exited")
			return nil
		})
	}

	err := children.Wait()
	stopJanitor()
	_ = janitor.Wait()
	return err
}

func (p *WorkerPool) janitor(ctx context.Context) {
	ticker := time.NewTicker(p.opts.PruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := p.registry.PruneStale(ctx, p.opts.StaleAfter); err != nil && ctx.Err() == nil {
				p.log.WithError(err).Warn("prune stale workers failed")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Stop runs the stop protocol for every launched worker concurrently. A
// worker that never registered is terminated directly.
func (p *WorkerPool) Stop(ctx context.Context, grace time.Duration) (*dto.StopWorkersResponse, error) {
	report := &dto.StopWorkersResponse{Stopped: []string{}, Killed: []string{}}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, proc := range p.Processes() {
		g.Go(func() error {
			r, err := p.coordinator.StopWorkers(gctx, proc.WorkerID, grace)
			if errors.Is(err, registry.ErrWorkerNotFound) {
				r = &dto.StopWorkersResponse{}
				if p.procs.Alive(proc.PID) {
					if err := p.procs.Terminate(proc.PID); err != nil {
						return fmt.Errorf("terminate %s: %w", proc.WorkerID, err)
					}
					r.Killed = []string{proc.WorkerID}
				} else {
					r.Stopped = []string{proc.WorkerID}
				}
			} else if err != nil {
				return err
			}

			mu.Lock()
			report.Stopped = append(report.Stopped, r.Stopped...)
			report.Killed = append(report.Killed, r.Killed...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report, err
	}
	return report, nil
}
