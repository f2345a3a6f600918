package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/joshu-sajeev/queuectl/internal/storage/filestore"
	"github.com/stretchr/testify/assert"
)

var errMissing = errors.New("missing")

func TestClassify(t *testing.T) {
	table := []ErrorStatus{{Err: errMissing, Status: http.StatusNotFound}}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{
			name:       "api error passes through",
			err:        Errf(http.StatusTeapot, "short and stout"),
			wantStatus: http.StatusTeapot,
			wantMsg:    "short and stout",
		},
		{
			name:       "wrapped sentinel from table",
			err:        fmt.Errorf("%w: j1", errMissing),
			wantStatus: http.StatusNotFound,
			wantMsg:    "missing: j1",
		},
		{
			name:       "lock timeout",
			err:        fmt.Errorf("%w: jobs after 5s", filestore.ErrLockTimeout),
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:       "corrupt store",
			err:        &filestore.CorruptStoreError{Path: "/tmp/jobs.json", Err: errors.New("bad")},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantMsg:    "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err, table...)
			assert.Equal(t, tt.wantStatus, got.Status)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, got.Message)
			}
		})
	}
}
