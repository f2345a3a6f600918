package dto

import (
	"time"

	"github.com/joshu-sajeev/queuectl/internal/models"
)

// WorkerResponse is a registry record plus derived fields for display.
type WorkerResponse struct {
	models.WorkerRecord
	Uptime string `json:"uptime"`
	Live   bool   `json:"live"`
}

func NewWorkerResponse(rec models.WorkerRecord, now time.Time, live bool) WorkerResponse {
	return WorkerResponse{
		WorkerRecord: rec,
		Uptime:       now.Sub(rec.StartedAt).Round(time.Second).String(),
		Live:         live,
	}
}
