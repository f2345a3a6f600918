package models

import (
	"time"

	"github.com/joshu-sajeev/queuectl/internal/config"
)

type WorkerRecord struct {
	WorkerID        string              `json:"worker_id"`
	PID             int                 `json:"pid"`
	Hostname        string              `json:"hostname"`
	StartedAt       time.Time           `json:"started_at"`
	LastHeartbeatAt time.Time           `json:"last_heartbeat_at"`
	Status          config.WorkerStatus `json:"status"`
	StopRequestedAt *time.Time          `json:"stop_requested_at,omitempty"`
	CurrentJobID    string              `json:"current_job_id,omitempty"`
	// JobPGID is the process group of the command running CurrentJobID.
	JobPGID         int                 `json:"job_pgid,omitempty"`
}

// WorkerList is the layout of workers.json.
type WorkerList struct {
	Workers []WorkerRecord `json:"workers"`
}

func (l *WorkerList) Find(id string) int {
	for i := range l.Workers {
		if l.Workers[i].WorkerID == id {
			return i
		}
	}
	return -1
}
