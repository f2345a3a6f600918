// Package filestore persists queue state as JSON files in a shared
// directory. Every record is guarded by an advisory lock file and replaced
// atomically, so any number of processes on one host can share it.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofrs/flock"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/sirupsen/logrus"
)

type Record string

const (
	RecordJobs    Record = "jobs"
	RecordConfig  Record = "config"
	RecordWorkers Record = "workers"
)

var records = []Record{RecordJobs, RecordConfig, RecordWorkers}

func (r Record) fileName() string { return string(r) + ".json" }

func defaultContents(r Record) any {
	switch r {
	case RecordJobs:
		return models.JobList{Jobs: []models.Job{}}
	case RecordWorkers:
		return models.WorkerList{Workers: []models.WorkerRecord{}}
	case RecordConfig:
		return models.DefaultQueueConfig()
	}
	return struct{}{}
}

// decodeTarget returns a pointer to the type rec is stored as.
func decodeTarget(r Record) any {
	switch r {
	case RecordJobs:
		return &models.JobList{}
	case RecordWorkers:
		return &models.WorkerList{}
	case RecordConfig:
		return &models.QueueConfig{}
	}
	return &struct{}{}
}

type Store struct {
	dir         string
	lockTimeout time.Duration
	retryDelay  time.Duration
	log         logrus.FieldLogger
	defaults    map[Record][]byte
}

type Option func(*Store)

func WithLockTimeout(d time.Duration) Option {
	return func(s *Store) { s.lockTimeout = d }
}

// WithRetryDelay sets how often a contended lock is retried.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Store) { s.retryDelay = d }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Store) { s.log = l }
}

// beforeRename runs between writing the temp file and renaming it into
// place. Tests replace it to simulate a crash mid-write.
var beforeRename = func(tmpPath string) error { return nil }

// Open prepares dir and writes the default contents of any missing record.
// Every existing record is parsed once; one that fails yields a
// *CorruptStoreError and is left as it is.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		dir:         dir,
		lockTimeout: 5 * time.Second,
		retryDelay:  10 * time.Millisecond,
		log:         logrus.StandardLogger(),
		defaults:    make(map[Record][]byte, len(records)),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}

	for _, rec := range records {
		b, err := json.MarshalIndent(defaultContents(rec), "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode default %s: %w", rec, err)
		}
		s.defaults[rec] = b

		if err := s.initRecord(rec); err != nil {
			return nil, err
		}
	}

	return s, nil
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) Path(rec Record) string {
	return filepath.Join(s.dir, rec.fileName())
}

func (s *Store) initRecord(rec Record) error {
	if _, err := os.Stat(s.Path(rec)); err == nil {
		return s.read(rec, decodeTarget(rec))
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", rec, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.lockTimeout)
	defer cancel()

	unlock, err := s.lock(ctx, rec)
	if err != nil {
		return err
	}
	defer unlock()

	// another process may have created it while we waited
	if _, err := os.Stat(s.Path(rec)); err == nil {
		return nil
	}

	s.log.WithField("record", rec).Debug("initializing record")
	return s.writeBytes(rec, s.defaults[rec])
}

// Snapshot returns the current contents of rec. Live files are only ever
// replaced by rename, so the read sees one complete version without locking.
func Snapshot[T any](ctx context.Context, s *Store, rec Record) (*T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var v T
	if err := s.read(rec, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// Update runs fn on the current contents of rec while holding its exclusive
// lock and persists the result. When fn fails nothing is written and its
// error is returned as is.
func Update[T any](ctx context.Context, s *Store, rec Record, fn func(*T) error) error {
	unlock, err := s.lock(ctx, rec)
	if err != nil {
		return err
	}
	defer unlock()

	var v T
	if err := s.read(rec, &v); err != nil {
		return err
	}

	if err := fn(&v); err != nil {
		return err
	}

	b, err := json.MarshalIndent(&v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec, err)
	}
	return s.writeBytes(rec, b)
}

func (s *Store) lock(ctx context.Context, rec Record) (func(), error) {
	fl := flock.New(s.Path(rec) + ".lock")

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	ok, err := fl.TryLockContext(lockCtx, s.retryDelay)
	if err != nil || !ok {
		// the caller's own cancellation is not a lock timeout
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err == nil || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrLockTimeout, rec, s.lockTimeout)
		}
		return nil, fmt.Errorf("lock %s: %w", rec, err)
	}

	return func() {
		if err := fl.Unlock(); err != nil {
			s.log.WithError(err).WithField("record", rec).Warn("failed to release lock")
		}
	}, nil
}

func (s *Store) read(rec Record, dest any) error {
	path := s.Path(rec)

	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		b = s.defaults[rec]
	} else if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	if len(b) == 0 {
		return &CorruptStoreError{Path: path, Err: errors.New("empty file")}
	}

	if err := json.Unmarshal(b, dest); err != nil {
		return &CorruptStoreError{Path: path, Err: err}
	}
	return nil
}

// writeBytes replaces rec with b via a synced temp file in the same
// directory and a rename. The live file is never opened for writing.
func (s *Store) writeBytes(rec Record, b []byte) (err error) {
	tmp, err := os.CreateTemp(s.dir, "."+string(rec)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", rec, err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp for %s: %w", rec, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp for %s: %w", rec, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp for %s: %w", rec, err)
	}

	if err = beforeRename(tmpPath); err != nil {
		return err
	}

	if err = os.Rename(tmpPath, s.Path(rec)); err != nil {
		return fmt.Errorf("replace %s: %w", rec, err)
	}

	s.syncDir()
	return nil
}

// syncDir flushes the rename. Not every platform can fsync a directory,
// so failures are only logged.
func (s *Store) syncDir() {
	d, err := os.Open(s.dir)
	if err != nil {
		return
	}
	defer d.Close()

	if err := d.Sync(); err != nil {
		s.log.WithError(err).Debug("directory sync not supported")
	}
}
