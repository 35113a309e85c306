package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"workflows/internal/core/ports"
	"workflows/internal/domain"
)

type taskRepository struct {
	db *gorm.DB
}

func (r *taskRepository) Create(ctx context.Context, task *domain.Task) error {
	return r.db.WithContext(ctx).Omit("Job", "State").Create(task).Error
}

func (r *taskRepository) Save(ctx context.Context, task *domain.Task) error {
	return r.db.WithContext(ctx).Omit("Job", "State").Save(task).Error
}

func (r *taskRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return r.get(ctx, r.db, id)
}

// GetForUpdate locks the task row for the duration of the surrounding
// transaction. The associations are loaded by follow-up queries and are not
// part of the lock.
func (r *taskRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return r.get(ctx, r.db.Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *taskRepository) get(ctx context.Context, db *gorm.DB, id uuid.UUID) (*domain.Task, error) {
	var task domain.Task
	err := db.WithContext(ctx).
		Preload("State.Swimlanes").
		Preload("Job.WorkflowVersion.Workflow").
		Where("id = ?", id).
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) FindByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error) {
	var tasks []domain.Task
	err := r.db.WithContext(ctx).
		Preload("State.Swimlanes").
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *taskRepository) FindActiveByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Task, error) {
	return r.findActive(ctx, r.db, jobID)
}

// LockActiveByJob serializes progression against concurrent sibling finishes:
// two branches finishing at once must not both read the join as unmet.
func (r *taskRepository) LockActiveByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Task, error) {
	return r.findActive(ctx, r.db.Clauses(clause.Locking{Strength: "UPDATE"}), jobID)
}

func (r *taskRepository) findActive(ctx context.Context, db *gorm.DB, jobID uuid.UUID) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := db.WithContext(ctx).
		Where("job_id = ? AND is_finished = ?", jobID, false).
		Order("created_at ASC").
		Find(&tasks).Error
	return tasks, err
}

func (r *taskRepository) LastByJobAndState(ctx context.Context, jobID, stateID uuid.UUID) (*domain.Task, error) {
	var task domain.Task
	err := r.db.WithContext(ctx).
		Where("job_id = ? AND state_id = ?", jobID, stateID).
		Order("updated_at DESC").
		First(&task).Error
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *taskRepository) AnyFinished(ctx context.Context, jobID uuid.UUID, stateIDs []uuid.UUID) (bool, error) {
	if len(stateIDs) == 0 {
		return false, nil
	}
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("job_id = ? AND state_id IN ? AND is_finished = ?", jobID, stateIDs, true).
		Count(&count).Error
	return count > 0, err
}

func (r *taskRepository) FindUnfinishedByState(ctx context.Context, stateID uuid.UUID) ([]*domain.Task, error) {
	var tasks []*domain.Task
	err := r.db.WithContext(ctx).
		Preload("State.Swimlanes").
		Preload("Job.WorkflowVersion.Workflow").
		Where("state_id = ? AND is_finished = ?", stateID, false).
		Find(&tasks).Error
	return tasks, err
}

func (r *taskRepository) FindWaiting(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	db := r.filtered(ctx, filter).
		Where("tasks.user_id IS NULL AND tasks.is_finished = ?", false)
	return r.list(db)
}

func (r *taskRepository) FindAssigned(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	db := r.filtered(ctx, filter).
		Where("tasks.user_id IS NOT NULL AND tasks.is_finished = ?", false)
	return r.list(db)
}

func (r *taskRepository) FindFinished(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	db := r.filtered(ctx, filter).
		Where("tasks.is_finished = ?", true)
	return r.list(db)
}

func (r *taskRepository) FindInProgress(ctx context.Context, filter ports.TaskFilter, now time.Time) ([]domain.Task, error) {
	db := r.filtered(ctx, filter).
		Where("tasks.user_id IS NOT NULL AND tasks.is_finished = ? AND tasks.is_paused = ? AND tasks.activated_at <= ?",
			false, false, now)
	return r.list(db)
}

func (r *taskRepository) FindPaused(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	db := r.filtered(ctx, filter).
		Where("tasks.is_paused = ?", true)
	return r.list(db)
}

// The due views query the stored thresholds, so they stay consistent with the
// business-calendar computation done on persist.

func (r *taskRepository) FindLate(ctx context.Context, now time.Time) ([]domain.Task, error) {
	db := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("(is_finished = ? AND finish_datetime > due_datetime) OR (is_finished = ? AND due_datetime < ?)",
			true, false, now)
	return r.list(db)
}

func (r *taskRepository) FindWarning(ctx context.Context, now time.Time) ([]domain.Task, error) {
	db := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("(is_finished = ? AND finish_datetime <= due_datetime AND finish_datetime > warning_datetime)"+
			" OR (is_finished = ? AND warning_datetime < ? AND due_datetime > ?)",
			true, false, now, now)
	return r.list(db)
}

func (r *taskRepository) FindOnTime(ctx context.Context, now time.Time) ([]domain.Task, error) {
	db := r.db.WithContext(ctx).Model(&domain.Task{}).
		Where("(is_finished = ? AND finish_datetime <= due_datetime) OR (is_finished = ? AND warning_datetime > ?)",
			true, false, now)
	return r.list(db)
}

func (r *taskRepository) filtered(ctx context.Context, filter ports.TaskFilter) *gorm.DB {
	db := r.db.WithContext(ctx).Model(&domain.Task{})

	if filter.JobID != nil {
		db = db.Where("tasks.job_id = ?", *filter.JobID)
	}
	if filter.UserID != nil {
		db = db.Where("tasks.user_id = ?", *filter.UserID)
	}
	if filter.WorkflowSlug != "" {
		db = db.
			Joins("JOIN jobs ON jobs.id = tasks.job_id").
			Joins("JOIN workflow_versions ON workflow_versions.id = jobs.workflow_version_id").
			Joins("JOIN workflows ON workflows.id = workflow_versions.workflow_id").
			Where("workflows.slug = ?", filter.WorkflowSlug)
	}
	if len(filter.Swimlanes) > 0 {
		db = db.
			Joins("JOIN state_swimlanes ON state_swimlanes.state_id = tasks.state_id").
			Joins("JOIN swimlanes ON swimlanes.id = state_swimlanes.swimlane_id").
			Where("swimlanes.slug IN ?", filter.Swimlanes).
			Distinct("tasks.*")
	}
	return db
}

func (r *taskRepository) list(db *gorm.DB) ([]domain.Task, error) {
	var tasks []domain.Task
	err := db.
		Preload("State.Swimlanes").
		Order("tasks.created_at DESC").
		Find(&tasks).Error
	return tasks, err
}
