// Package worker runs jobs one at a time in a single worker process.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/job"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/joshu-sajeev/queuectl/internal/registry"
	"github.com/joshu-sajeev/queuectl/internal/storage/filestore"
	"github.com/sirupsen/logrus"
)

// JobClaimer is the part of the job service a worker drives.
type JobClaimer interface {
	Claim(ctx context.Context, workerID string) (*models.Job, error)
	ReportSuccess(ctx context.Context, jobID, workerID string, res models.ExecutionResult) (*models.Job, error)
	ReportFailure(ctx context.Context, jobID, workerID string, res models.ExecutionResult) (*models.Job, error)
}

// Registrar is the part of the worker registry a worker drives.
type Registrar interface {
	Register(ctx context.Context, rec models.WorkerRecord) error
	Heartbeat(ctx context.Context, id, currentJobID string) (config.WorkerStatus, error)
	TrackJobProcess(ctx context.Context, id, jobID string, pgid int) error
	MarkStopped(ctx context.Context, id string) error
	Remove(ctx context.Context, ids ...string) error
}

type Config struct {
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	// WakeFile, when set, is watched so new jobs are picked up before the
	// poll interval ends.
	WakeFile string
}

type Worker struct {
	ID       string
	jobs     JobClaimer
	registry Registrar
	exec     Executor
	cfg      Config
	log      logrus.FieldLogger

	quit     chan struct{}
	quitOnce sync.Once
}

func NewWorker(id string, jobs JobClaimer, reg Registrar, exec Executor, cfg Config, log logrus.FieldLogger) *Worker {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 2 * time.Second
	}
	return &Worker{
		ID:       id,
		jobs:     jobs,
		registry: reg,
		exec:     exec,
		cfg:      cfg,
		log:      log.WithField("worker_id", id),
		quit:     make(chan struct{}),
	}
}

// Run registers the worker and processes jobs until a stop is requested
// through the registry, Stop is called, or ctx is cancelled. A job that is
// already running always finishes and is reported first. Run only returns
// an error when the store is unusable.
func (w *Worker) Run(ctx context.Context) error {
	var wake <-chan struct{}
	if w.cfg.WakeFile != "" {
		ch, closeWatch := watchFile(ctx, w.cfg.WakeFile, w.log)
		defer closeWatch()
		wake = ch
	}

	host, _ := os.Hostname()
	rec := models.WorkerRecord{WorkerID: w.ID, PID: os.Getpid(), Hostname: host}
	if err := w.registry.Register(ctx, rec); err != nil {
		return fmt.Errorf("register worker: %w", err)
	}
	defer w.deregister()

	w.log.Info("worker started")

	for {
		if w.stopping(ctx) {
			w.log.Info("worker stopping")
			return nil
		}

		status, err := w.registry.Heartbeat(ctx, w.ID, "")
		switch {
		case errors.Is(err, registry.ErrWorkerNotFound):
			w.log.Warn("worker record removed, exiting")
			return nil
		case errors.Is(err, filestore.ErrCorruptStore):
			return err
		case err != nil:
			w.log.WithError(err).Warn("heartbeat failed")
		case status != config.WorkerStatusActive:
			w.log.Info("stop requested, exiting")
			return nil
		}

		j, err := w.jobs.Claim(ctx, w.ID)
		if err != nil {
			if errors.Is(err, filestore.ErrCorruptStore) {
				return err
			}
			if ctx.Err() == nil {
				w.log.WithError(err).Warn("claim failed")
			}
			j = nil
		}

		if j == nil {
			w.sleep(ctx, wake)
			continue
		}

		if err := w.process(ctx, j); err != nil {
			return err
		}
	}
}

// Stop asks Run to return after the current job.
func (w *Worker) Stop() {
	w.quitOnce.Do(func() { close(w.quit) })
}

func (w *Worker) stopping(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	case <-w.quit:
		return true
	default:
		return false
	}
}

func (w *Worker) sleep(ctx context.Context, wake <-chan struct{}) {
	timer := time.NewTimer(w.cfg.PollInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-wake:
	case <-ctx.Done():
	case <-w.quit:
	}
}

func (w *Worker) process(ctx context.Context, j *models.Job) error {
	log := w.log.WithFields(logrus.Fields{
		"job_id":  j.ID,
		"attempt": j.Attempts + 1,
	})
	log.WithField("command", j.Command).Info("executing job")

	// Stop requests and signals are honoured between jobs only, so the
	// command and its report run detached from ctx.
	runCtx := context.WithoutCancel(ctx)

	hbCtx, stopHeartbeat := context.WithCancel(runCtx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.heartbeatWhileRunning(hbCtx, j.ID)
	}()

	start := time.Now()
	res := w.exec.Run(runCtx, j.Command, func(pgid int) {
		if err := w.registry.TrackJobProcess(runCtx, w.ID, j.ID, pgid); err != nil {
			log.WithError(err).Warn("failed to record job process group")
		}
	})
	stopHeartbeat()
	wg.Wait()

	// the group id may be reused once the command is gone
	if _, err := w.registry.Heartbeat(runCtx, w.ID, ""); err != nil && !errors.Is(err, registry.ErrWorkerNotFound) {
		log.WithError(err).Warn("failed to clear job process group")
	}

	log = log.WithFields(logrus.Fields{
		"exit_code": res.ExitCode,
		"duration":  time.Since(start).Round(time.Millisecond),
	})

	var err error
	if res.ExitCode == 0 && res.Err == "" {
		_, err = w.jobs.ReportSuccess(runCtx, j.ID, w.ID, res)
	} else {
		log.WithField("error", res.Err).Info("command failed")
		_, err = w.jobs.ReportFailure(runCtx, j.ID, w.ID, res)
	}

	switch {
	case err == nil:
		log.Info("job reported")
	case errors.Is(err, job.ErrClaimLost):
		log.WithError(err).Warn("claim was reclaimed while running, result discarded")
	case errors.Is(err, filestore.ErrCorruptStore):
		return err
	default:
		// the claim goes stale and the job is retried elsewhere
		log.WithError(err).Error("failed to report job result")
	}
	return nil
}

func (w *Worker) heartbeatWhileRunning(ctx context.Context, jobID string) {
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		if _, err := w.registry.Heartbeat(ctx, w.ID, jobID); err != nil && ctx.Err() == nil {
			w.log.WithError(err).Warn("heartbeat failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) deregister() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := w.registry.MarkStopped(ctx, w.ID); err != nil && !errors.Is(err, registry.ErrWorkerNotFound) {
		w.log.WithError(err).Warn("failed to mark worker stopped")
	}
	if err := w.registry.Remove(ctx, w.ID); err != nil {
		w.log.WithError(err).Warn("failed to remove worker record")
	}
	w.log.Info("worker stopped")
}
