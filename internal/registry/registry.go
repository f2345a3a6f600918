// Package registry tracks live worker processes in the shared store and
// carries the cooperative stop signal from operators to workers.
package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/models"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/sirupsen/logrus"
)

var ErrWorkerNotFound = errors.New("registry: worker not found")

const idAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// WorkerRepoInterface is the locked read-modify-write access to the
// workers record.
type WorkerRepoInterface interface {
	Snapshot(ctx context.Context) (*models.WorkerList, error)
	Update(ctx context.Context, fn func(*models.WorkerList) error) error
}

type Registry struct {
	repo       WorkerRepoInterface
	staleAfter time.Duration
	now        func() time.Time
	log        logrus.FieldLogger
}

type Option func(*Registry)

// WithStaleAfter sets how old a heartbeat may be before the worker is
// considered dead.
func WithStaleAfter(d time.Duration) Option {
	return func(r *Registry) { r.staleAfter = d }
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(r *Registry) { r.log = l }
}

func NewRegistry(repo WorkerRepoInterface, opts ...Option) *Registry {
	r := &Registry{
		repo:       repo,
		staleAfter: 15 * time.Second,
		now:        time.Now,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewWorkerID derives an id from the host and pid plus a random suffix,
// so a recycled pid never collides with an old record.
func NewWorkerID() (string, error) {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}

	suffix, err := gonanoid.Generate(idAlphabet, 6)
	if err != nil {
		return "", fmt.Errorf("generate worker id: %w", err)
	}

	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), suffix), nil
}

// Register adds or replaces the record for rec.WorkerID as active.
func (r *Registry) Register(ctx context.Context, rec models.WorkerRecord) error {
	if rec.WorkerID == "" {
		return errors.New("registry: worker id is required")
	}

	now := r.now().UTC()
	rec.Status = config.WorkerStatusActive
	rec.StopRequestedAt = nil
	rec.LastHeartbeatAt = now
	if rec.StartedAt.IsZero() {
		rec.StartedAt = now
	}

	err := r.repo.Update(ctx, func(l *models.WorkerList) error {
		if idx := l.Find(rec.WorkerID); idx >= 0 {
			l.Workers[idx] = rec
			return nil
		}
		l.Workers = append(l.Workers, rec)
		return nil
	})
	if err != nil {
		return err
	}

	r.log.WithFields(logrus.Fields{"worker_id": rec.WorkerID, "pid": rec.PID}).Info("worker registered")
	return nil
}

// Heartbeat refreshes the worker's liveness and current job, and returns
// its status so the caller learns about stop requests in the same step.
func (r *Registry) Heartbeat(ctx context.Context, id, currentJobID string) (config.WorkerStatus, error) {
	var status config.WorkerStatus

	err := r.repo.Update(ctx, func(l *models.WorkerList) error {
		idx := l.Find(id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
		}

		w := &l.Workers[idx]
		w.LastHeartbeatAt = r.now().UTC()
		w.CurrentJobID = currentJobID
		if currentJobID == "" {
			w.JobPGID = 0
		}
		status = w.Status
		return nil
	})
	if err != nil {
		return "", err
	}
	return status, nil
}

// TrackJobProcess records the process group running jobID so that a forced
// stop reaches the command as well as the worker.
func (r *Registry) TrackJobProcess(ctx context.Context, id, jobID string, pgid int) error {
	return r.repo.Update(ctx, func(l *models.WorkerList) error {
		idx := l.Find(id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
		}

		w := &l.Workers[idx]
		w.LastHeartbeatAt = r.now().UTC()
		w.CurrentJobID = jobID
		w.JobPGID = pgid
		return nil
	})
}

// RequestStop asks one worker, or every worker when id is empty, to exit
// after its current job. It returns the ids that were asked.
func (r *Registry) RequestStop(ctx context.Context, id string) ([]string, error) {
	var asked []string

	err := r.repo.Update(ctx, func(l *models.WorkerList) error {
		now := r.now().UTC()

		if id != "" && l.Find(id) < 0 {
			return fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
		}

		for i := range l.Workers {
			w := &l.Workers[i]
			if id != "" && w.WorkerID != id {
				continue
			}
			if w.Status == config.WorkerStatusStopped {
				continue
			}
			if w.Status == config.WorkerStatusActive {
				at := now
				w.Status = config.WorkerStatusStopRequested
				w.StopRequestedAt = &at
			}
			asked = append(asked, w.WorkerID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(asked) > 0 {
		r.log.WithField("workers", asked).Info("stop requested")
	}
	return asked, nil
}

func (r *Registry) MarkStopped(ctx context.Context, id string) error {
	return r.repo.Update(ctx, func(l *models.WorkerList) error {
		idx := l.Find(id)
		if idx < 0 {
			return fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
		}
		l.Workers[idx].Status = config.WorkerStatusStopped
		l.Workers[idx].CurrentJobID = ""
		return nil
	})
}

// Remove deletes the given records. Unknown ids are ignored.
func (r *Registry) Remove(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}

	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	return r.repo.Update(ctx, func(l *models.WorkerList) error {
		kept := l.Workers[:0]
		for _, w := range l.Workers {
			if !drop[w.WorkerID] {
				kept = append(kept, w)
			}
		}
		l.Workers = kept
		return nil
	})
}

// PruneStale removes stopped workers and workers whose heartbeat is older
// than threshold. It returns the removed ids.
func (r *Registry) PruneStale(ctx context.Context, threshold time.Duration) ([]string, error) {
	var pruned []string

	err := r.repo.Update(ctx, func(l *models.WorkerList) error {
		now := r.now().UTC()
		kept := l.Workers[:0]
		for _, w := range l.Workers {
			if w.Status == config.WorkerStatusStopped || now.Sub(w.LastHeartbeatAt) > threshold {
				pruned = append(pruned, w.WorkerID)
				continue
			}
			kept = append(kept, w)
		}
		l.Workers = kept
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(pruned) > 0 {
		r.log.WithField("workers", pruned).Info("pruned stale workers")
	}
	return pruned, nil
}

// List returns all records ordered by start time.
func (r *Registry) List(ctx context.Context) ([]models.WorkerRecord, error) {
	l, err := r.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	out := append([]models.WorkerRecord(nil), l.Workers...)
	sort.SliceStable(out, func(a, b int) bool { return out[a].StartedAt.Before(out[b].StartedAt) })
	return out, nil
}

func (r *Registry) Get(ctx context.Context, id string) (*models.WorkerRecord, error) {
	l, err := r.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	idx := l.Find(id)
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrWorkerNotFound, id)
	}

	w := l.Workers[idx]
	return &w, nil
}

// IsLive reports whether rec has heartbeated recently and has not stopped.
func IsLive(rec models.WorkerRecord, now time.Time, staleAfter time.Duration) bool {
	if rec.Status == config.WorkerStatusStopped {
		return false
	}
	return now.Sub(rec.LastHeartbeatAt) <= staleAfter
}

func (r *Registry) live(rec models.WorkerRecord, now time.Time) bool {
	return IsLive(rec, now, r.staleAfter)
}

// LiveWorkerIDs lets the job service tell abandoned claims from busy ones.
func (r *Registry) LiveWorkerIDs(ctx context.Context) (map[string]bool, error) {
	l, err := r.repo.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	live := make(map[string]bool, len(l.Workers))
	for _, w := range l.Workers {
		if r.live(w, now) {
			live[w.WorkerID] = true
		}
	}
	return live, nil
}

func (r *Registry) ActiveCount(ctx context.Context) (int, error) {
	live, err := r.LiveWorkerIDs(ctx)
	if err != nil {
		return 0, err
	}
	return len(live), nil
}
