package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Workflow is the immutable identity of a process design. The actual graph
// lives on its versions so that running jobs are never affected by redesigns.
type Workflow struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	Slug        string    `gorm:"type:varchar(50);uniqueIndex;not null"`
	Description string    `gorm:"type:text"`
	IsActive    bool      `gorm:"default:true"`

	Versions []WorkflowVersion `gorm:"foreignKey:WorkflowID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewWorkflow(slug, description string) *Workflow {
	return &Workflow{
		ID:          uuid.New(),
		Slug:        slug,
		Description: description,
		IsActive:    true,
	}
}

// WorkflowVersion owns one immutable state graph of its workflow.
type WorkflowVersion struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	WorkflowID uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_workflow_version"`
	Workflow   *Workflow `gorm:"foreignKey:WorkflowID"`
	Version    int       `gorm:"not null;uniqueIndex:idx_workflow_version"`
	IsActive   bool      `gorm:"default:true"`

	States []State `gorm:"foreignKey:WorkflowVersionID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewWorkflowVersion(workflowID uuid.UUID, version int) *WorkflowVersion {
	return &WorkflowVersion{
		ID:         uuid.New(),
		WorkflowID: workflowID,
		Version:    version,
		IsActive:   true,
	}
}

// Slug identifies a version across the event contract, e.g. "sell-pizza.v2".
// The Workflow association must be loaded.
func (v *WorkflowVersion) Slug() string {
	if v.Workflow == nil {
		return fmt.Sprintf("%s.v%d", v.WorkflowID, v.Version)
	}
	return fmt.Sprintf("%s.v%d", v.Workflow.Slug, v.Version)
}
