package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"workflows/internal/api/dto"
	"workflows/internal/builder"
	"workflows/internal/core/ports"
	"workflows/internal/domain"
	"workflows/internal/registry"
	"workflows/internal/service"
)

// Handler exposes the workflow engine over HTTP.
type Handler struct {
	builder *builder.Builder
	jobs    *service.JobService
	tasks   *service.TaskService

	now func() time.Time
}

func New(b *builder.Builder, jobs *service.JobService, tasks *service.TaskService) *Handler {
	return &Handler{
		builder: b,
		jobs:    jobs,
		tasks:   tasks,
		now:     time.Now,
	}
}

func (h *Handler) Register(router *gin.RouterGroup) {
	router.POST("/workflows/sync", h.SyncWorkflow)

	router.POST("/jobs", h.CreateJob)
	router.GET("/jobs/:job_id", h.GetJob)
	router.GET("/jobs/:job_id/tasks", h.ListJobTasks)

	router.GET("/tasks", h.ListTasks)
	router.GET("/tasks/:task_id", h.GetTask)
	router.GET("/tasks/:task_id/activities", h.ListTaskActivities)
	router.GET("/tasks/:task_id/logs", h.ListTaskLogs)
	router.POST("/tasks/:task_id/start", h.StartTask)
	router.POST("/tasks/:task_id/pause", h.PauseTask)
	router.POST("/tasks/:task_id/unpause", h.UnpauseTask)
	router.POST("/tasks/:task_id/abandon", h.AbandonTask)
	router.POST("/tasks/:task_id/finish", h.FinishTask)
	router.POST("/tasks/:task_id/reopen", h.ReopenTask)
}

func (h *Handler) SyncWorkflow(c *gin.Context) {
	var req dto.SyncWorkflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	version, err := h.builder.Sync(c.Request.Context(), registry.WorkflowDefinition{
		Slug:        req.Slug,
		Description: req.Description,
		Version:     req.Version,
		Initial:     req.Initial,
		States:      req.States,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SyncWorkflowResponse{
		VersionID: version.ID,
		Slug:      version.Slug(),
	})
}

func (h *Handler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	data, err := marshalData(req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var activatedAt time.Time
	if req.ActivatedAt != nil {
		activatedAt = *req.ActivatedAt
	}

	job, err := h.jobs.Create(c.Request.Context(), req.WorkflowVersionID, req.CreatedBy, req.Name, data, activatedAt)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto.CreateJobResponse{ID: job.ID})
}

func (h *Handler) GetJob(c *gin.Context) {
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}
	job, err := h.jobs.Get(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

func (h *Handler) ListJobTasks(c *gin.Context) {
	jobID, ok := pathID(c, "job_id")
	if !ok {
		return
	}
	tasks, err := h.jobs.Tasks(c.Request.Context(), jobID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewTaskResponses(tasks, h.now()))
}

// ListTasks serves the work-queue and reporting views. The status query
// parameter picks the view; workflow, swimlane and user narrow it.
func (h *Handler) ListTasks(c *gin.Context) {
	ctx := c.Request.Context()

	filter := ports.TaskFilter{
		WorkflowSlug: c.Query("workflow"),
		Swimlanes:    c.QueryArray("swimlane"),
	}
	if raw := c.Query("user"); raw != "" {
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user must be a valid uuid"})
			return
		}
		filter.UserID = &userID
	}

	var tasks []domain.Task
	var err error
	switch c.DefaultQuery("status", "waiting") {
	case "waiting":
		tasks, err = h.tasks.ListWaiting(ctx, filter)
	case "assigned":
		tasks, err = h.tasks.ListAssigned(ctx, filter)
	case "in_progress":
		tasks, err = h.tasks.ListInProgress(ctx, filter)
	case "paused":
		tasks, err = h.tasks.ListPaused(ctx, filter)
	case "finished":
		tasks, err = h.tasks.ListFinished(ctx, filter)
	case "late":
		tasks, err = h.tasks.ListLate(ctx)
	case "warning":
		tasks, err = h.tasks.ListWarning(ctx)
	case "on_time":
		tasks, err = h.tasks.ListOnTime(ctx)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewTaskResponses(tasks, h.now()))
}

func (h *Handler) GetTask(c *gin.Context) {
	taskID, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	task, err := h.tasks.Get(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewTaskResponse(task, h.now()))
}

func (h *Handler) ListTaskActivities(c *gin.Context) {
	taskID, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	activities, err := h.tasks.TaskActivities(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, activities)
}

func (h *Handler) ListTaskLogs(c *gin.Context) {
	taskID, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	logs, err := h.tasks.TaskLogs(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) StartTask(c *gin.Context) {
	taskID, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	var req dto.StartTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := h.tasks.Start(c.Request.Context(), taskID, req.StartedBy, req.User)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewTaskResponse(task, h.now()))
}

func (h *Handler) PauseTask(c *gin.Context) {
	taskID, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	var req dto.PauseTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := h.tasks.Pause(c.Request.Context(), taskID, req.PausedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewTaskResponse(task, h.now()))
}

func (h *Handler) UnpauseTask(c *gin.Context) {
	h.bareTransition(c, h.tasks.Unpause)
}

func (h *Handler) AbandonTask(c *gin.Context) {
	h.bareTransition(c, h.tasks.Abandon)
}

func (h *Handler) FinishTask(c *gin.Context) {
	taskID, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	var req dto.FinishTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := marshalData(req.Data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := h.tasks.Finish(c.Request.Context(), taskID, req.FinishedBy, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewTaskResponse(task, h.now()))
}

func (h *Handler) ReopenTask(c *gin.Context) {
	taskID, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	var req dto.ReopenTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	task, err := h.tasks.Reopen(c.Request.Context(), taskID, req.User)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewTaskResponse(task, h.now()))
}

func (h *Handler) bareTransition(c *gin.Context, op func(ctx context.Context, taskID uuid.UUID) (*domain.Task, error)) {
	taskID, ok := pathID(c, "task_id")
	if !ok {
		return
	}
	task, err := op(c.Request.Context(), taskID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewTaskResponse(task, h.now()))
}

func pathID(c *gin.Context, param string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": param + " must be a valid uuid"})
		return uuid.Nil, false
	}
	return id, true
}

func marshalData(data map[string]any) (datatypes.JSON, error) {
	if data == nil {
		return nil, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, domain.ErrGuardViolation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrCrossVersion):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrGraphIntegrity):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
