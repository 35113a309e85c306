package domain

import (
	"time"

	"github.com/google/uuid"
)

// TaskAction identifies one audited lifecycle operation.
type TaskAction string

const (
	ActionStarted   TaskAction = "started"
	ActionPaused    TaskAction = "paused"
	ActionAbandoned TaskAction = "abandoned"
	ActionFinished  TaskAction = "finished"
	ActionReopened  TaskAction = "reopened"
)

// TaskLog is one audit row recording who applied which lifecycle operation to
// a task. UserID is empty for unattributed operations such as abandon.
type TaskLog struct {
	ID     uuid.UUID  `gorm:"type:uuid;primary_key"`
	JobID  uuid.UUID  `gorm:"type:uuid;index;not null"`
	TaskID uuid.UUID  `gorm:"type:uuid;index;not null"`
	UserID *uuid.UUID `gorm:"type:uuid"`
	Action TaskAction `gorm:"type:varchar(20);not null"`

	CreatedAt time.Time
}

func NewTaskLog(jobID, taskID uuid.UUID, userID *uuid.UUID, action TaskAction) *TaskLog {
	return &TaskLog{
		ID:     uuid.New(),
		JobID:  jobID,
		TaskID: taskID,
		UserID: userID,
		Action: action,
	}
}
