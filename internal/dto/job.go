package dto

import (
	"time"

	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/models"
)

// EnqueueRequest is the body of POST /jobs and the JSON accepted by
// `queuectl enqueue`. Unset fields fall back to the persisted queue policy.
type EnqueueRequest struct {
	ID          string           `json:"id,omitempty" validate:"omitempty,max=128,excludesall= /\\"`
	Command     string           `json:"command" validate:"required"`
	MaxRetries  *int             `json:"max_retries,omitempty" validate:"omitempty,gte=0,lte=100"`
	BackoffBase *models.Duration `json:"backoff_base,omitempty" validate:"omitempty,gt=0"`
	Delay       *models.Duration `json:"delay,omitempty" validate:"omitempty,gte=0"`
	RunAt       *time.Time       `json:"run_at,omitempty"`
}

type ListQuery struct {
	State config.JobState `form:"state" validate:"omitempty,oneof=pending running succeeded failed dead_letter"`
	Limit int             `form:"limit" validate:"gte=0"`
}

type StatusResponse struct {
	Jobs          map[config.JobState]int `json:"jobs"`
	Total         int                     `json:"total"`
	ActiveWorkers int                     `json:"active_workers"`
}

// StopWorkersRequest targets one worker, or all when WorkerID is empty. A
// zero Timeout uses the configured grace period.
type StopWorkersRequest struct {
	WorkerID string          `json:"worker_id,omitempty"`
	Timeout  models.Duration `json:"timeout,omitempty" validate:"gte=0"`
}

// StopWorkersResponse lists how each targeted worker ended.
type StopWorkersResponse struct {
	Stopped []string `json:"stopped"`
	Killed  []string `json:"killed"`
}
