package dto

import (
	"time"

	"github.com/google/uuid"

	"workflows/internal/domain"
)

type SyncWorkflowResponse struct {
	VersionID uuid.UUID `json:"version_id"`
	Slug      string    `json:"slug"`
}

type CreateJobResponse struct {
	ID uuid.UUID `json:"id"`
}

type TaskResponse struct {
	ID                uuid.UUID  `json:"id"`
	JobID             uuid.UUID  `json:"job_id"`
	StateSlug         string     `json:"state_slug,omitempty"`
	Status            string     `json:"status"`
	DueStatus         string     `json:"due_status,omitempty"`
	ActivatedAt       time.Time  `json:"activated_at"`
	DueDatetime       *time.Time `json:"due_datetime,omitempty"`
	WarningDatetime   *time.Time `json:"warning_datetime,omitempty"`
	StartDatetime     *time.Time `json:"start_datetime,omitempty"`
	PauseDatetime     *time.Time `json:"pause_datetime,omitempty"`
	FinishDatetime    *time.Time `json:"finish_datetime,omitempty"`
	User              *uuid.UUID `json:"user,omitempty"`
	IsCanceled        bool       `json:"is_canceled"`
	AdditionalDueTime int        `json:"additional_due_time,omitempty"`
}

func NewTaskResponse(task *domain.Task, now time.Time) TaskResponse {
	resp := TaskResponse{
		ID:                task.ID,
		JobID:             task.JobID,
		Status:            string(task.Status()),
		ActivatedAt:       task.ActivatedAt,
		DueDatetime:       task.DueDatetime,
		WarningDatetime:   task.WarningDatetime,
		StartDatetime:     task.StartDatetime,
		PauseDatetime:     task.PauseDatetime,
		FinishDatetime:    task.FinishDatetime,
		User:              task.UserID,
		IsCanceled:        task.IsCanceled,
		AdditionalDueTime: task.AdditionalDueTime,
	}
	if task.State != nil {
		resp.StateSlug = task.State.Slug
		resp.DueStatus = string(task.DueStatus(now))
	}
	return resp
}

func NewTaskResponses(tasks []domain.Task, now time.Time) []TaskResponse {
	responses := make([]TaskResponse, len(tasks))
	for i := range tasks {
		responses[i] = NewTaskResponse(&tasks[i], now)
	}
	return responses
}
