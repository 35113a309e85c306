package domain

import (
	"time"

	"github.com/google/uuid"
)

// Activity is a checklist item attached to a state. Every task created for
// that state gets one TaskActivity per attached activity.
type Activity struct {
	ID      uuid.UUID `gorm:"type:uuid;primary_key"`
	StateID uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_state_activity"`
	Name    string    `gorm:"type:varchar(70);not null"`
	Slug    string    `gorm:"type:varchar(70);not null;uniqueIndex:idx_state_activity"`

	Statuses []ActivityStatus `gorm:"foreignKey:ActivityID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewActivity(stateID uuid.UUID, slug, name string) *Activity {
	return &Activity{ID: uuid.New(), StateID: stateID, Slug: slug, Name: name}
}

// ActivityStatus is one allowed status of an activity.
type ActivityStatus struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	ActivityID uuid.UUID `gorm:"type:uuid;index;not null;uniqueIndex:idx_activity_status"`
	Name       string    `gorm:"type:varchar(70);not null"`
	Slug       string    `gorm:"type:varchar(70);not null;uniqueIndex:idx_activity_status"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewActivityStatus(activityID uuid.UUID, slug, name string) *ActivityStatus {
	return &ActivityStatus{ID: uuid.New(), ActivityID: activityID, Slug: slug, Name: name}
}

// TaskActivity is the per-task instance of an activity, unique per
// (task, activity) pair.
type TaskActivity struct {
	ID         uuid.UUID       `gorm:"type:uuid;primary_key"`
	TaskID     uuid.UUID       `gorm:"type:uuid;index;not null;uniqueIndex:idx_task_activity"`
	ActivityID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_task_activity"`
	Activity   *Activity       `gorm:"foreignKey:ActivityID"`
	StatusID   *uuid.UUID      `gorm:"type:uuid"`
	Status     *ActivityStatus `gorm:"foreignKey:StatusID"`
	UserID     *uuid.UUID      `gorm:"type:uuid"`
	Datetime   *time.Time
	Notes      string `gorm:"type:text"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewTaskActivity(taskID, activityID uuid.UUID) *TaskActivity {
	return &TaskActivity{ID: uuid.New(), TaskID: taskID, ActivityID: activityID}
}
