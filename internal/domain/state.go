package domain

import (
	"time"

	"github.com/google/uuid"
)

// Swimlane is a work-queue category tag. Tasks are routed to worker groups
// by the swimlanes attached to their state.
type Swimlane struct {
	ID   uuid.UUID `gorm:"type:uuid;primary_key"`
	Name string    `gorm:"type:varchar(50);not null"`
	Slug string    `gorm:"type:varchar(50);uniqueIndex;not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewSwimlane(slug, name string) *Swimlane {
	return &Swimlane{ID: uuid.New(), Slug: slug, Name: name}
}

// State is one node of a workflow-version graph. DefinitionID references the
// registered state definition that carries the transition code; Slug is the
// human-facing identity. Both are unique within a version.
type State struct {
	ID                uuid.UUID        `gorm:"type:uuid;primary_key"`
	WorkflowVersionID uuid.UUID        `gorm:"type:uuid;index;not null;uniqueIndex:idx_version_slug;uniqueIndex:idx_version_definition"`
	WorkflowVersion   *WorkflowVersion `gorm:"foreignKey:WorkflowVersionID"`
	Name              string           `gorm:"type:varchar(100);not null"`
	Description       string           `gorm:"type:text"`
	Slug              string           `gorm:"type:varchar(100);not null;uniqueIndex:idx_version_slug"`
	DefinitionID      string           `gorm:"type:varchar(255);not null;uniqueIndex:idx_version_definition"`

	// Timing parameters, all in minutes.
	DueTime                  int `gorm:"not null"`
	DueTimeWarning           int `gorm:"not null"`
	MaxUnassignedTime        int `gorm:"not null"`
	MaxUnassignedTimeWarning int `gorm:"not null"`

	IsInitial bool `gorm:"default:false"`
	IsFinal   bool `gorm:"default:false"`
	Order     int  `gorm:"column:sort_order;default:0"`

	Swimlanes []Swimlane `gorm:"many2many:state_swimlanes"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewState(versionID uuid.UUID, slug, definitionID string) *State {
	return &State{
		ID:                uuid.New(),
		WorkflowVersionID: versionID,
		Slug:              slug,
		DefinitionID:      definitionID,
	}
}

// SwimlaneSlugs returns the slugs of the loaded swimlane association.
func (s *State) SwimlaneSlugs() []string {
	slugs := make([]string, 0, len(s.Swimlanes))
	for _, lane := range s.Swimlanes {
		slugs = append(slugs, lane.Slug)
	}
	return slugs
}
