package filestore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/logging"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_InitializesMissingRecords(t *testing.T) {
	s := SetupTestStore(t)
	ctx := context.Background()

	for _, rec := range records {
		_, err := os.Stat(s.Path(rec))
		assert.NoError(t, err, "record %s should exist", rec)
	}

	jobs, err := Snapshot[models.JobList](ctx, s, RecordJobs)
	require.NoError(t, err)
	assert.Empty(t, jobs.Jobs)

	cfg, err := NewConfigRepository(s).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMaxRetries, cfg.MaxRetries)
	assert.Equal(t, config.DefaultBackoffBase, cfg.BackoffBase.Std())
}

func TestOpen_KeepsExistingRecords(t *testing.T) {
	dir := t.TempDir()
	existing := `{"max_retries": 7, "backoff_base": 5}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(existing), 0o644))

	s := openAt(t, dir)

	cfg, err := NewConfigRepository(s).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.BackoffBase.Std())
}

func TestOpen_RejectsCorruptRecord(t *testing.T) {
	tests := []struct {
		name     string
		record   Record
		contents string
	}{
		{name: "truncated jobs", record: RecordJobs, contents: `{"jobs": [`},
		{name: "empty workers", record: RecordWorkers, contents: ``},
		{name: "config of the wrong shape", record: RecordConfig, contents: `{"max_retries": "many"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, tt.record.fileName())
			require.NoError(t, os.WriteFile(path, []byte(tt.contents), 0o644))

			_, err := Open(dir, WithLogger(logging.Discard()))
			require.ErrorIs(t, err, ErrCorruptStore)

			var corrupt *CorruptStoreError
			require.ErrorAs(t, err, &corrupt)
			assert.Equal(t, path, corrupt.Path)

			b, readErr := os.ReadFile(path)
			require.NoError(t, readErr)
			assert.Equal(t, tt.contents, string(b), "corrupt record is not rewritten")
		})
	}
}

func TestSnapshot_CorruptRecord(t *testing.T) {
	tests := []struct {
		name     string
		contents string
	}{
		{name: "truncated json", contents: `{"jobs": [{"id": "a"`},
		{name: "empty file", contents: ``},
		{name: "wrong shape", contents: `{"jobs": "nope"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := SetupTestStore(t)
			path := s.Path(RecordJobs)
			require.NoError(t, os.WriteFile(path, []byte(tt.contents), 0o644))

			_, err := Snapshot[models.JobList](context.Background(), s, RecordJobs)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrCorruptStore)

			var corrupt *CorruptStoreError
			require.True(t, errors.As(err, &corrupt))
			assert.Equal(t, path, corrupt.Path)

			// Update must refuse as well and leave the file alone
			err = NewJobRepository(s).Update(context.Background(), func(l *models.JobList) error {
				l.Jobs = nil
				return nil
			})
			assert.ErrorIs(t, err, ErrCorruptStore)

			b, readErr := os.ReadFile(path)
			require.NoError(t, readErr)
			assert.Equal(t, tt.contents, string(b))
		})
	}
}

func TestUpdate_PersistsChanges(t *testing.T) {
	s := SetupTestStore(t)
	repo := NewJobRepository(s)
	ctx := context.Background()

	err := repo.Update(ctx, func(l *models.JobList) error {
		l.Jobs = append(l.Jobs, models.Job{ID: "a", Command: "true", State: config.JobStatePending})
		return nil
	})
	require.NoError(t, err)

	// a second handle on the same dir sees the write
	other := openAt(t, s.Dir())
	jobs, err := NewJobRepository(other).Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, jobs.Jobs, 1)
	assert.Equal(t, "a", jobs.Jobs[0].ID)
}

func TestUpdate_TransformErrorWritesNothing(t *testing.T) {
	s := SetupTestStore(t)
	repo := NewJobRepository(s)
	ctx := context.Background()

	require.NoError(t, repo.Update(ctx, func(l *models.JobList) error {
		l.Jobs = append(l.Jobs, models.Job{ID: "keep"})
		return nil
	}))
	before, err := os.ReadFile(s.Path(RecordJobs))
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = repo.Update(ctx, func(l *models.JobList) error {
		l.Jobs = append(l.Jobs, models.Job{ID: "drop"})
		return errBoom
	})
	assert.Same(t, errBoom, err)

	after, err := os.ReadFile(s.Path(RecordJobs))
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUpdate_CrashBeforeRenameKeepsLiveFile(t *testing.T) {
	s := SetupTestStore(t)
	repo := NewJobRepository(s)
	ctx := context.Background()

	require.NoError(t, repo.Update(ctx, func(l *models.JobList) error {
		l.Jobs = append(l.Jobs, models.Job{ID: "committed"})
		return nil
	}))

	original := beforeRename
	defer func() { beforeRename = original }()

	errCrash := errors.New("simulated crash")
	beforeRename = func(tmpPath string) error {
		// the temp file holds the new version, the live file the old one
		b, err := os.ReadFile(tmpPath)
		require.NoError(t, err)
		assert.Contains(t, string(b), "uncommitted")
		return errCrash
	}

	err := repo.Update(ctx, func(l *models.JobList) error {
		l.Jobs = append(l.Jobs, models.Job{ID: "uncommitted"})
		return nil
	})
	assert.ErrorIs(t, err, errCrash)

	jobs, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, jobs.Jobs, 1)
	assert.Equal(t, "committed", jobs.Jobs[0].ID)

	leftovers, err := filepath.Glob(filepath.Join(s.Dir(), ".jobs-*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestSnapshot_IgnoresHalfWrittenTempFile(t *testing.T) {
	s := SetupTestStore(t)
	repo := NewJobRepository(s)
	ctx := context.Background()

	require.NoError(t, repo.Update(ctx, func(l *models.JobList) error {
		l.Jobs = append(l.Jobs, models.Job{ID: "a"})
		return nil
	}))

	// what a writer killed mid-write leaves behind
	partial := filepath.Join(s.Dir(), ".jobs-123456.tmp")
	require.NoError(t, os.WriteFile(partial, []byte(`{"jobs": [{"id": "a"}, {"id": "b`), 0o644))

	jobs, err := repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs.Jobs, 1)

	require.NoError(t, repo.Update(ctx, func(l *models.JobList) error {
		l.Jobs = append(l.Jobs, models.Job{ID: "c"})
		return nil
	}))
	jobs, err = repo.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, jobs.Jobs, 2)
}

func TestUpdate_LockTimeout(t *testing.T) {
	s := SetupTestStore(t)

	held := flock.New(s.Path(RecordJobs) + ".lock")
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	start := time.Now()
	err = NewJobRepository(s).Update(context.Background(), func(l *models.JobList) error {
		t.Fatal("transform must not run without the lock")
		return nil
	})

	assert.ErrorIs(t, err, ErrLockTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 200*time.Millisecond)
}

func TestUpdate_CallerCancellation(t *testing.T) {
	s := SetupTestStore(t)

	held := flock.New(s.Path(RecordJobs) + ".lock")
	ok, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, ok)
	defer held.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = NewJobRepository(s).Update(ctx, func(l *models.JobList) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrLockTimeout)
}

func TestUpdate_ConcurrentWritersAreSerialized(t *testing.T) {
	dir := t.TempDir()
	const writers, perWriter = 8, 10

	stores := make([]*Store, writers)
	for i := range stores {
		s, err := Open(dir, WithLockTimeout(10*time.Second), WithRetryDelay(time.Millisecond))
		require.NoError(t, err)
		stores[i] = s
	}

	var wg sync.WaitGroup
	for _, s := range stores {
		wg.Add(1)
		go func(s *Store) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				err := NewConfigRepository(s).Update(context.Background(), func(c *models.QueueConfig) error {
					c.MaxRetries++
					return nil
				})
				assert.NoError(t, err)
			}
		}(s)
	}
	wg.Wait()

	cfg, err := NewConfigRepository(stores[0]).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, config.DefaultMaxRetries+writers*perWriter, cfg.MaxRetries)
}

func TestConfigRepository_UpdateRejectsInvalidPolicy(t *testing.T) {
	s := SetupTestStore(t)
	repo := NewConfigRepository(s)
	ctx := context.Background()

	err := repo.Update(ctx, func(c *models.QueueConfig) error {
		c.BackoffBase = 0
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "backoff_base must be positive")

	cfg, err := repo.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultBackoffBase, cfg.BackoffBase.Std())
}
