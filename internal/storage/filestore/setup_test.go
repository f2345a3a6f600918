package filestore

import (
	"testing"
	"time"

	"github.com/joshu-sajeev/queuectl/internal/logging"
	"github.com/stretchr/testify/require"
)

// SetupTestStore opens a store in a fresh temp dir with a short lock timeout.
func SetupTestStore(t *testing.T) *Store {
	t.Helper()
	return openAt(t, t.TempDir())
}

func openAt(t *testing.T, dir string) *Store {
	t.Helper()
	s, err := Open(dir,
		WithLockTimeout(200*time.Millisecond),
		WithRetryDelay(time.Millisecond),
		WithLogger(logging.Discard()),
	)
	require.NoError(t, err)
	return s
}
