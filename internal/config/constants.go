package config

import "time"

type JobState string

const (
	JobStatePending    JobState = "pending"
	JobStateRunning    JobState = "running"
	JobStateSucceeded  JobState = "succeeded"
	JobStateFailed     JobState = "failed"
	JobStateDeadLetter JobState = "dead_letter"
)

// AllJobStates is the order states are reported in by status.
var AllJobStates = []JobState{
	JobStatePending,
	JobStateRunning,
	JobStateSucceeded,
	JobStateFailed,
	JobStateDeadLetter,
}

func (s JobState) Valid() bool {
	for _, st := range AllJobStates {
		if s == st {
			return true
		}
	}
	return false
}

type WorkerStatus string

const (
	WorkerStatusActive        WorkerStatus = "active"
	WorkerStatusStopRequested WorkerStatus = "stop_requested"
	WorkerStatusStopped       WorkerStatus = "stopped"
)

// Queue policy defaults, used when the config record is first created.
const (
	DefaultMaxRetries  = 3
	DefaultBackoffBase = 2 * time.Second
)

// Keys accepted by `config set`.
const (
	KeyMaxRetries  = "max_retries"
	KeyBackoffBase = "backoff_base"
)

var AllowedConfigKeys = []string{KeyMaxRetries, KeyBackoffBase}
