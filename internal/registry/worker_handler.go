package registry

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/queuectl/common"
	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/internal/models"
	"github.com/joshu-sajeev/queuectl/middleware"
)

type WorkerLister interface {
	List(ctx context.Context) ([]models.WorkerRecord, error)
}

type WorkerStopper interface {
	StopWorkers(ctx context.Context, workerID string, grace time.Duration) (*dto.StopWorkersResponse, error)
}

// ErrorStatuses maps registry errors for middleware.ErrorHandler.
var ErrorStatuses = []common.ErrorStatus{
	{Err: ErrWorkerNotFound, Status: http.StatusNotFound},
}

type WorkerHandler struct {
	workers    WorkerLister
	stopper    WorkerStopper
	staleAfter time.Duration
	grace      time.Duration
	now        func() time.Time
}

func NewWorkerHandler(workers WorkerLister, stopper WorkerStopper, staleAfter, grace time.Duration) *WorkerHandler {
	return &WorkerHandler{
		workers:    workers,
		stopper:    stopper,
		staleAfter: staleAfter,
		grace:      grace,
		now:        time.Now,
	}
}

// List handles GET /workers.
func (h *WorkerHandler) List(c *gin.Context) {
	recs, err := h.workers.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	now := h.now().UTC()
	out := make([]dto.WorkerResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, dto.NewWorkerResponse(rec, now, IsLive(rec, now, h.staleAfter)))
	}

	c.JSON(http.StatusOK, out)
}

// Stop handles POST /workers/stop. The request blocks until every targeted
// worker has exited or been terminated.
func (h *WorkerHandler) Stop(c *gin.Context) {
	var req dto.StopWorkersRequest
	if c.Request.ContentLength != 0 && !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	grace := req.Timeout.Std()
	if grace == 0 {
		grace = h.grace
	}

	report, err := h.stopper.StopWorkers(c.Request.Context(), req.WorkerID, grace)
	if err != nil {
		c.Error(err)
		c.Abort()
		return
	}

	c.JSON(http.StatusOK, report)
}
