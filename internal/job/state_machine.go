package job

import (
	"fmt"

	"github.com/joshu-sajeev/queuectl/internal/config"
)

var allowedTransitions = map[config.JobState]map[config.JobState]bool{
	config.JobStatePending: {
		config.JobStateRunning: true,
	},
	config.JobStateFailed: {
		config.JobStateRunning: true,
	},
	config.JobStateRunning: {
		config.JobStateSucceeded:  true,
		config.JobStatePending:    true, // retry or stale reclaim
		config.JobStateDeadLetter: true,
	},
	// leaving the DLQ is an operator requeue only
	config.JobStateDeadLetter: {
		config.JobStatePending: true,
	},
}

func ValidateTransition(from, to config.JobState) error {
	if from == config.JobStateSucceeded {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidState, from)
	}

	if !allowedTransitions[from][to] {
		return fmt.Errorf("%w: %s to %s", ErrInvalidState, from, to)
	}

	return nil
}
