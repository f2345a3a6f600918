package job

import "errors"

var (
	ErrInvalidJob   = errors.New("job: invalid job")
	ErrDuplicateID  = errors.New("job: duplicate id")
	ErrJobNotFound  = errors.New("job: not found")
	ErrInvalidState = errors.New("job: invalid state transition")

	// ErrClaimLost is returned when a worker reports on a job it no longer
	// holds, typically because its claim went stale and was reclaimed.
	ErrClaimLost = errors.New("job: claim lost")
)
