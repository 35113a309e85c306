package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Job is one running instance of a workflow version. Tasks only become live
// after ActivatedAt, which allows scheduling jobs into the future.
type Job struct {
	ID                uuid.UUID        `gorm:"type:uuid;primary_key"`
	ActivatedAt       time.Time        `gorm:"not null"`
	Name              string           `gorm:"type:varchar(50);not null"`
	WorkflowVersionID uuid.UUID        `gorm:"type:uuid;index;not null"`
	WorkflowVersion   *WorkflowVersion `gorm:"foreignKey:WorkflowVersionID"`
	CreatedByID       uuid.UUID        `gorm:"type:uuid;not null"`
	Data              datatypes.JSON   `gorm:"type:jsonb"`

	Tasks []Task `gorm:"foreignKey:JobID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewJob(versionID, createdBy uuid.UUID, name string, data datatypes.JSON, activatedAt time.Time) *Job {
	if activatedAt.IsZero() {
		activatedAt = time.Now()
	}
	return &Job{
		ID:                uuid.New(),
		ActivatedAt:       activatedAt,
		Name:              name,
		WorkflowVersionID: versionID,
		CreatedByID:       createdBy,
		Data:              data,
	}
}
