package job

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/queuectl/internal/config"
	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/internal/models"
)

// JobRepoInterface is the locked read-modify-write access to the jobs record.
type JobRepoInterface interface {
	Snapshot(ctx context.Context) (*models.JobList, error)
	Update(ctx context.Context, fn func(*models.JobList) error) error
}

// PolicyRepoInterface supplies the queue policy copied into new jobs.
type PolicyRepoInterface interface {
	Load(ctx context.Context) (models.QueueConfig, error)
}

// WorkerLiveness tells Claim which claim owners are still alive, so that
// long running commands of a healthy worker are never reclaimed.
type WorkerLiveness interface {
	LiveWorkerIDs(ctx context.Context) (map[string]bool, error)
}

// JobServiceInterface defines the job lifecycle operations.
type JobServiceInterface interface {
	Enqueue(ctx context.Context, req *dto.EnqueueRequest) (*models.Job, error)
	Claim(ctx context.Context, workerID string) (*models.Job, error)
	ReportSuccess(ctx context.Context, jobID, workerID string, res models.ExecutionResult) (*models.Job, error)
	ReportFailure(ctx context.Context, jobID, workerID string, res models.ExecutionResult) (*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, opts dto.ListQuery) ([]models.Job, error)
	DLQList(ctx context.Context, limit int) ([]models.Job, error)
	DLQRequeue(ctx context.Context, id string) (*models.Job, error)
	Stats(ctx context.Context) (map[config.JobState]int, error)
}

// WorkerCounter reports how many workers are currently alive.
type WorkerCounter interface {
	ActiveCount(ctx context.Context) (int, error)
}

// JobHandlerInterface defines the contract for HTTP request handlers.
type JobHandlerInterface interface {
	Create(c *gin.Context)
	Get(c *gin.Context)
	List(c *gin.Context)
	Status(c *gin.Context)
	DLQList(c *gin.Context)
	DLQRequeue(c *gin.Context)
}
