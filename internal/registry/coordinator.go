package registry

import (
	"context"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/sirupsen/logrus"
)

// ProcessController inspects and signals worker processes and the process
// groups of their commands on this host.
type ProcessController interface {
	Alive(pid int) bool
	Terminate(pid int) error
	Kill(pid int) error
	GroupAlive(pgid int) bool
	TerminateGroup(pgid int) error
	KillGroup(pgid int) error
}

var _ ProcessController = OSProcesses{}

// Coordinator runs the stop protocol: a cooperative request first, then
// forced termination of whatever is still running once the grace period ends.
type Coordinator struct {
	registry     *Registry
	procs        ProcessController
	pollInterval time.Duration
	killWait     time.Duration
	log          logrus.FieldLogger
}

type CoordinatorOption func(*Coordinator)

func WithPollInterval(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.pollInterval = d }
}

// WithKillWait sets the pause between SIGTERM and SIGKILL.
func WithKillWait(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.killWait = d }
}

func WithCoordinatorLogger(l logrus.FieldLogger) CoordinatorOption {
	return func(c *Coordinator) { c.log = l }
}

func NewCoordinator(r *Registry, procs ProcessController, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		registry:     r,
		procs:        procs,
		pollInterval: 100 * time.Millisecond,
		killWait:     500 * time.Millisecond,
		log:          logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StopWorkers asks the target (all workers when workerID is empty) to stop
// and waits up to grace for them to exit on their own. A worker in the
// middle of a job keeps running it during that time. Stragglers are then
// terminated and their records removed; a job they held is left as a stale
// claim for Claim to recover.
func (c *Coordinator) StopWorkers(ctx context.Context, workerID string, grace time.Duration) (*dto.StopWorkersResponse, error) {
	asked, err := c.registry.RequestStop(ctx, workerID)
	if err != nil {
		return nil, err
	}

	report := &dto.StopWorkersResponse{Stopped: []string{}, Killed: []string{}}
	if len(asked) == 0 {
		return report, nil
	}

	pending := make(map[string]bool, len(asked))
	for _, id := range asked {
		pending[id] = true
	}

	deadline := time.Now().Add(grace)
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	var remaining map[string]models.WorkerRecord
	for {
		remaining, err = c.collectExited(ctx, pending, report)
		if err != nil {
			return report, err
		}
		if len(remaining) == 0 || !time.Now().Before(deadline) {
			break
		}

		select {
		case <-ctx.Done():
			return report, ctx.Err()
		case <-ticker.C:
		}
	}

	for id, rec := range remaining {
		c.forceStop(ctx, rec)
		report.Killed = append(report.Killed, id)
	}

	if len(report.Killed) > 0 {
		if err := c.registry.Remove(ctx, report.Killed...); err != nil {
			return report, err
		}
	}

	return report, nil
}

// collectExited moves workers that have stopped, vanished from the
// registry, or whose process is gone from pending into report.Stopped.
// A record whose heartbeat went stale counts as exited without looking at
// its pid, which may belong to another process by now. It returns the
// records still running.
func (c *Coordinator) collectExited(ctx context.Context, pending map[string]bool, report *dto.StopWorkersResponse) (map[string]models.WorkerRecord, error) {
	workers, err := c.registry.List(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.WorkerRecord, len(workers))
	for _, w := range workers {
		byID[w.WorkerID] = w
	}

	now := c.registry.now().UTC()
	remaining := make(map[string]models.WorkerRecord)
	var exited []string
	for id := range pending {
		rec, ok := byID[id]
		if ok && c.registry.live(rec, now) && c.procs.Alive(rec.PID) {
			remaining[id] = rec
			continue
		}

		delete(pending, id)
		report.Stopped = append(report.Stopped, id)
		if ok {
			exited = append(exited, id)
		}
	}

	if len(exited) > 0 {
		if err := c.registry.Remove(ctx, exited...); err != nil {
			return nil, err
		}
	}

	return remaining, nil
}

// forceStop sends SIGTERM to the worker and to its command's process
// group, then SIGKILL to whatever is left after the kill wait.
func (c *Coordinator) forceStop(ctx context.Context, rec models.WorkerRecord) {
	log := c.log.WithFields(logrus.Fields{
		"worker_id":   rec.WorkerID,
		"pid":         rec.PID,
		"current_job": rec.CurrentJobID,
		"job_pgid":    rec.JobPGID,
	})
	log.Warn("grace period elapsed, terminating worker")

	if err := c.procs.Terminate(rec.PID); err != nil {
		log.WithError(err).Warn("SIGTERM failed")
	}
	if rec.JobPGID > 0 {
		if err := c.procs.TerminateGroup(rec.JobPGID); err != nil {
			log.WithError(err).Warn("SIGTERM to job process group failed")
		}
	}

	deadline := time.Now().Add(c.killWait)
	for time.Now().Before(deadline) {
		if !c.running(rec) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.pollInterval):
		}
	}

	if c.procs.Alive(rec.PID) {
		if err := c.procs.Kill(rec.PID); err != nil {
			log.WithError(err).Error("SIGKILL failed")
		}
	}
	if rec.JobPGID > 0 && c.procs.GroupAlive(rec.JobPGID) {
		if err := c.procs.KillGroup(rec.JobPGID); err != nil {
			log.WithError(err).Error("SIGKILL to job process group failed")
		}
	}
}

func (c *Coordinator) running(rec models.WorkerRecord) bool {
	if c.procs.Alive(rec.PID) {
		return true
	}
	return rec.JobPGID > 0 && c.procs.GroupAlive(rec.JobPGID)
}
