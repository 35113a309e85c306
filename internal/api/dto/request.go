package dto

import (
	"time"

	"github.com/google/uuid"
)

type SyncWorkflowRequest struct {
	Slug        string   `json:"slug" binding:"required"`
	Description string   `json:"description"`
	Version     int      `json:"version" binding:"required"`
	Initial     string   `json:"initial" binding:"required"`
	States      []string `json:"states" binding:"required,min=1"`
}

type CreateJobRequest struct {
	WorkflowVersionID uuid.UUID      `json:"workflow_version_id" binding:"required"`
	Name              string         `json:"name" binding:"required"`
	CreatedBy         uuid.UUID      `json:"created_by" binding:"required"`
	Data              map[string]any `json:"data"`
	ActivatedAt       *time.Time     `json:"activated_at"`
}

type StartTaskRequest struct {
	StartedBy uuid.UUID `json:"started_by" binding:"required"`
	User      uuid.UUID `json:"user" binding:"required"`
}

type PauseTaskRequest struct {
	PausedBy *uuid.UUID `json:"paused_by"`
}

type FinishTaskRequest struct {
	FinishedBy uuid.UUID      `json:"finished_by" binding:"required"`
	Data       map[string]any `json:"data"`
}

type ReopenTaskRequest struct {
	User uuid.UUID `json:"user" binding:"required"`
}
