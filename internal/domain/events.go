package domain

import (
	"github.com/google/uuid"
)

// Event is the contract consumed by the notifier. Sender is the workflow
// version slug the event originated from.
type Event interface {
	Kind() string
}

// TaskCreatedEvent fires after a task row becomes visible, including the
// automatically created initial task of a new job.
type TaskCreatedEvent struct {
	TaskID    uuid.UUID `json:"task_id"`
	Sender    string    `json:"sender"`
	Swimlanes []string  `json:"swimlanes,omitempty"`
}

func (TaskCreatedEvent) Kind() string { return "task_created" }

// TaskFinishedEvent fires exactly once per successful finish.
type TaskFinishedEvent struct {
	TaskID uuid.UUID `json:"task_id"`
	Sender string    `json:"sender"`
}

func (TaskFinishedEvent) Kind() string { return "task_finished" }

// JobFinishedEvent fires when a task of a final state finishes.
type JobFinishedEvent struct {
	JobID  uuid.UUID `json:"job_id"`
	Sender string    `json:"sender"`
}

func (JobFinishedEvent) Kind() string { return "job_finished" }
