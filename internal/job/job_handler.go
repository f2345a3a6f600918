package job

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joshu-sajeev/queuectl/common"
	"github.com/joshu-sajeev/queuectl/internal/dto"
	"github.com/joshu-sajeev/queuectl/middleware"
)

// ErrorStatuses maps job errors for middleware.ErrorHandler.
var ErrorStatuses = []common.ErrorStatus{
	{Err: ErrInvalidJob, Status: http.StatusBadRequest},
	{Err: ErrDuplicateID, Status: http.StatusConflict},
	{Err: ErrJobNotFound, Status: http.StatusNotFound},
	{Err: ErrInvalidState, Status: http.StatusConflict},
	{Err: ErrClaimLost, Status: http.StatusConflict},
}

type JobHandler struct {
	service JobServiceInterface
	workers WorkerCounter
}

func NewJobHandler(s JobServiceInterface, workers WorkerCounter) *JobHandler {
	return &JobHandler{service: s, workers: workers}
}

var _ JobHandlerInterface = (*JobHandler)(nil)

func fail(c *gin.Context, err error) {
	c.Error(err)
	c.Abort()
}

// Create handles HTTP requests for enqueuing a new job.
// It validates and binds the request body, delegates to the JobService,
// and returns HTTP 201 with the stored job.
func (h *JobHandler) Create(c *gin.Context) {
	var req dto.EnqueueRequest

	if !middleware.Bind(c, &req) {
		c.Abort()
		return
	}

	j, err := h.service.Enqueue(c.Request.Context(), &req)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, j)
}

// Get returns a single job by id.
func (h *JobHandler) Get(c *gin.Context) {
	j, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, j)
}

// List handles GET /jobs with optional state and limit filters.
func (h *JobHandler) List(c *gin.Context) {
	var q dto.ListQuery
	if !middleware.BindQuery(c, &q) {
		c.Abort()
		return
	}

	jobs, err := h.service.List(c.Request.Context(), q)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// Status reports job counts per state and the number of live workers.
func (h *JobHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	counts, err := h.service.Stats(ctx)
	if err != nil {
		fail(c, err)
		return
	}

	active, err := h.workers.ActiveCount(ctx)
	if err != nil {
		fail(c, err)
		return
	}

	resp := dto.StatusResponse{Jobs: counts, ActiveWorkers: active}
	for _, n := range counts {
		resp.Total += n
	}

	c.JSON(http.StatusOK, resp)
}

func (h *JobHandler) DLQList(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.Error(common.Errf(http.StatusBadRequest, "invalid limit %q", raw))
			c.Abort()
			return
		}
		limit = n
	}

	jobs, err := h.service.DLQList(c.Request.Context(), limit)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// DLQRequeue moves a dead lettered job back to pending.
func (h *JobHandler) DLQRequeue(c *gin.Context) {
	j, err := h.service.DLQRequeue(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, j)
}
