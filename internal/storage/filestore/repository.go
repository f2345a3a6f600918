package filestore

import (
	"context"

	"github.com/joshu-sajeev/queuectl/internal/models"
)

type JobRepository struct {
	store *Store
}

func NewJobRepository(s *Store) *JobRepository {
	return &JobRepository{store: s}
}

func (r *JobRepository) Snapshot(ctx context.Context) (*models.JobList, error) {
	return Snapshot[models.JobList](ctx, r.store, RecordJobs)
}

func (r *JobRepository) Update(ctx context.Context, fn func(*models.JobList) error) error {
	return Update(ctx, r.store, RecordJobs, fn)
}

// Path is the jobs file, watched by workers to wake up early.
func (r *JobRepository) Path() string {
	return r.store.Path(RecordJobs)
}

type WorkerRepository struct {
	store *Store
}

func NewWorkerRepository(s *Store) *WorkerRepository {
	return &WorkerRepository{store: s}
}

func (r *WorkerRepository) Snapshot(ctx context.Context) (*models.WorkerList, error) {
	return Snapshot[models.WorkerList](ctx, r.store, RecordWorkers)
}

func (r *WorkerRepository) Update(ctx context.Context, fn func(*models.WorkerList) error) error {
	return Update(ctx, r.store, RecordWorkers, fn)
}

type ConfigRepository struct {
	store *Store
}

func NewConfigRepository(s *Store) *ConfigRepository {
	return &ConfigRepository{store: s}
}

func (r *ConfigRepository) Load(ctx context.Context) (models.QueueConfig, error) {
	cfg, err := Snapshot[models.QueueConfig](ctx, r.store, RecordConfig)
	if err != nil {
		return models.QueueConfig{}, err
	}
	return *cfg, nil
}

// Update applies fn and rejects the result if it is not a valid policy.
func (r *ConfigRepository) Update(ctx context.Context, fn func(*models.QueueConfig) error) error {
	return Update(ctx, r.store, RecordConfig, func(cfg *models.QueueConfig) error {
		if err := fn(cfg); err != nil {
			return err
		}
		return cfg.Validate()
	})
}
