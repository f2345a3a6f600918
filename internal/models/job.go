package models

import (
	"time"

	"github.com/joshu-sajeev/queuectl/internal/config"
)

type Job struct {
	ID             string          `json:"id"`
	Command        string          `json:"command"`
	State          config.JobState `json:"state"`
	Attempts       int             `json:"attempts"`
	MaxRetries     int             `json:"max_retries"`
	BackoffBase    Duration        `json:"backoff_base"`
	NextEligibleAt time.Time       `json:"next_eligible_at"`
	ClaimedBy      string          `json:"claimed_by,omitempty"`
	ClaimedAt      *time.Time      `json:"claimed_at,omitempty"`
	Stdout         string          `json:"stdout,omitempty"`
	Stderr         string          `json:"stderr,omitempty"`
	ExitCode       *int            `json:"exit_code,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// Claimable reports whether the job may be handed to a worker at now.
// Records left in the failed state by older tooling are treated as pending.
func (j *Job) Claimable(now time.Time) bool {
	if j.State != config.JobStatePending && j.State != config.JobStateFailed {
		return false
	}
	return !j.NextEligibleAt.After(now)
}

// JobList is the layout of jobs.json.
type JobList struct {
	Jobs []Job `json:"jobs"`
}

// Find returns the index of the job with the given id, or -1.
func (l *JobList) Find(id string) int {
	for i := range l.Jobs {
		if l.Jobs[i].ID == id {
			return i
		}
	}
	return -1
}

// ExecutionResult is what a worker observed when running a job's command.
type ExecutionResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Err describes a failure to run the command at all, or a non-zero exit.
	Err string
}
