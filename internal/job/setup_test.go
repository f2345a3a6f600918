package job

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/logging"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/joshu-sajeev/queuectl/internal/storage/filestore"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fakeLiveness struct {
	live map[string]bool
	err  error
}

func (f *fakeLiveness) LiveWorkerIDs(ctx context.Context) (map[string]bool, error) {
	return f.live, f.err
}

type testEnv struct {
	store   *filestore.Store
	repo    *filestore.JobRepository
	service *JobService
	clock   *fakeClock
}

func setupService(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	return setupServiceAt(t, t.TempDir(), newFakeClock(), opts...)
}

func setupServiceAt(t *testing.T, dir string, clock *fakeClock, opts ...Option) *testEnv {
	t.Helper()

	store, err := filestore.Open(dir,
		filestore.WithLockTimeout(10*time.Second),
		filestore.WithRetryDelay(time.Millisecond),
		filestore.WithLogger(logging.Discard()),
	)
	require.NoError(t, err)

	repo := filestore.NewJobRepository(store)
	base := []Option{WithClock(clock.Now), WithLogger(logging.Discard())}
	svc := NewJobService(repo, filestore.NewConfigRepository(store), append(base, opts...)...)

	return &testEnv{store: store, repo: repo, service: svc, clock: clock}
}

func (e *testEnv) setPolicy(t *testing.T, maxRetries int, backoffBase time.Duration) {
	t.Helper()
	err := filestore.NewConfigRepository(e.store).Update(context.Background(), func(c *models.QueueConfig) error {
		c.MaxRetries = maxRetries
		c.BackoffBase = models.Duration(backoffBase)
		return nil
	})
	require.NoError(t, err)
}

func intPtr(v int) *int { return &v }

func durPtr(d time.Duration) *models.Duration {
	md := models.Duration(d)
	return &md
}
