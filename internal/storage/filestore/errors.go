package filestore

import (
	"errors"
	"fmt"
)

var (
	// ErrLockTimeout is returned when a record lock could not be taken
	// within the configured timeout.
	ErrLockTimeout = errors.New("store: lock timeout")

	// ErrCorruptStore matches any *CorruptStoreError.
	ErrCorruptStore = errors.New("store: corrupt record")
)

// CorruptStoreError reports a record file that exists but cannot be parsed.
// The file is left untouched for the operator to inspect.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("store: corrupt record %s: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

func (e *CorruptStoreError) Is(target error) bool { return target == ErrCorruptStore }
