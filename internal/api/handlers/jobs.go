package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/orrn/printsim/internal/core"
)

type CreateJobRequest struct {
	Type     string `json:"type" binding:"required"`
	Priority int    `json:"priority" binding:"required"`
}

type DelayJobRequest struct {
	Reason string `json:"reason"`
}

type UpdatePriorityRequest struct {
	Priority int `json:"priority" binding:"required"`
}

type ListJobsQuery struct {
	State string `form:"state"`
}

type JobResponse struct {
	core.Job
	Container core.Container `json:"container"`
}

type JobsResponse struct {
	Jobs  []core.Job `json:"jobs"`
	Count int        `json:"count"`
}

type ClearResponse struct {
	Removed  int    `json:"removed"`
	Revision uint64 `json:"revision"`
}

type JobHandler struct {
	engine *core.Engine
	submit gin.HandlerFunc
}

// NewJobHandler wires job routes. limit, when non-nil, guards job creation.
func NewJobHandler(engine *core.Engine, limit gin.HandlerFunc) *JobHandler {
	if limit == nil {
		limit = func(c *gin.Context) { c.Next() }
	}
	return &JobHandler{engine: engine, submit: limit}
}

func (h *JobHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	jobType, ok := core.ParseJobType(req.Type)
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_type",
			Message: "Job type must be one of pdf, doc, img",
		})
		return
	}

	job, err := h.engine.Submit(jobType, req.Priority)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   core.ResultInvalidInput.String(),
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusCreated, JobResponse{Job: job, Container: core.ContainerQueue})
}

func (h *JobHandler) ListJobs(c *gin.Context) {
	var query ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		validationError(c, err)
		return
	}

	snap := h.engine.Snapshot()
	var jobs []core.Job
	switch query.State {
	case "":
		jobs = append(jobs, snap.QueuedJobs...)
		jobs = append(jobs, snap.ActiveJobs...)
		jobs = append(jobs, snap.Completed...)
	case string(core.ContainerQueue), "queued":
		jobs = snap.QueuedJobs
	case string(core.ContainerActive):
		jobs = snap.ActiveJobs
	case string(core.ContainerCompleted):
		jobs = snap.Completed
	default:
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_state",
			Message: "State must be one of queued, active, completed",
		})
		return
	}

	if jobs == nil {
		jobs = []core.Job{}
	}
	c.JSON(http.StatusOK, JobsResponse{Jobs: jobs, Count: len(jobs)})
}

func (h *JobHandler) GetJob(c *gin.Context) {
	job, where, ok := h.engine.Job(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   core.ResultNotFound.String(),
			Message: "Job not found",
		})
		return
	}
	c.JSON(http.StatusOK, JobResponse{Job: job, Container: where})
}

func (h *JobHandler) StartNextJob(c *gin.Context) {
	respondResult(c, h.engine, h.engine.StartNextJob(), nil)
}

func (h *JobHandler) StartJob(c *gin.Context) {
	id := c.Param("id")
	h.respondWithJob(c, id, h.engine.StartJob(id))
}

func (h *JobHandler) CancelJob(c *gin.Context) {
	respondResult(c, h.engine, h.engine.CancelJob(c.Param("id")), nil)
}

func (h *JobHandler) DelayJob(c *gin.Context) {
	var req DelayJobRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		validationError(c, err)
		return
	}

	id := c.Param("id")
	h.respondWithJob(c, id, h.engine.DelayJob(id, req.Reason))
}

func (h *JobHandler) ResumeJob(c *gin.Context) {
	id := c.Param("id")
	h.respondWithJob(c, id, h.engine.ResumeJob(id))
}

func (h *JobHandler) UpdatePriority(c *gin.Context) {
	var req UpdatePriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	id := c.Param("id")
	h.respondWithJob(c, id, h.engine.UpdateJobPriority(id, req.Priority))
}

func (h *JobHandler) ClearQueue(c *gin.Context) {
	n := h.engine.ClearQueue()
	c.JSON(http.StatusOK, ClearResponse{Removed: n, Revision: h.engine.Revision()})
}

func (h *JobHandler) respondWithJob(c *gin.Context, id string, r core.Result) {
	if !r.OK() {
		respondResult(c, h.engine, r, nil)
		return
	}
	job, where, ok := h.engine.Job(id)
	if !ok {
		respondResult(c, h.engine, r, nil)
		return
	}
	c.JSON(http.StatusOK, JobResponse{Job: job, Container: where})
}

func (h *JobHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/jobs", h.ListJobs)
	r.POST("/jobs", h.submit, h.CreateJob)
	r.POST("/jobs/start-next", h.StartNextJob)
	r.DELETE("/jobs/queue", h.ClearQueue)
	r.GET("/jobs/:id", h.GetJob)
	r.POST("/jobs/:id/start", h.StartJob)
	r.POST("/jobs/:id/cancel", h.CancelJob)
	r.POST("/jobs/:id/delay", h.DelayJob)
	r.POST("/jobs/:id/resume", h.ResumeJob)
	r.PUT("/jobs/:id/priority", h.UpdatePriority)
}
