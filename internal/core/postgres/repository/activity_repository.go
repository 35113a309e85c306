package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"workflows/internal/domain"
)

type activityRepository struct {
	db *gorm.DB
}

func (r *activityRepository) GetOrCreate(ctx context.Context, stateID uuid.UUID, slug, name string) (*domain.Activity, error) {
	var activity domain.Activity
	err := r.db.WithContext(ctx).
		Where("state_id = ? AND slug = ?", stateID, slug).
		First(&activity).Error
	if err == nil {
		return &activity, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	created := domain.NewActivity(stateID, slug, name)
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		return nil, err
	}
	return created, nil
}

func (r *activityRepository) GetOrCreateStatus(ctx context.Context, activityID uuid.UUID, slug, name string) (*domain.ActivityStatus, error) {
	var status domain.ActivityStatus
	err := r.db.WithContext(ctx).
		Where("activity_id = ? AND slug = ?", activityID, slug).
		First(&status).Error
	if err == nil {
		return &status, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	created := domain.NewActivityStatus(activityID, slug, name)
	if err := r.db.WithContext(ctx).Create(created).Error; err != nil {
		return nil, err
	}
	return created, nil
}

func (r *activityRepository) FindByState(ctx context.Context, stateID uuid.UUID) ([]domain.Activity, error) {
	var activities []domain.Activity
	err := r.db.WithContext(ctx).
		Where("state_id = ?", stateID).
		Order("created_at ASC").
		Find(&activities).Error
	return activities, err
}

func (r *activityRepository) FindStatuses(ctx context.Context, activityID uuid.UUID) ([]domain.ActivityStatus, error) {
	var statuses []domain.ActivityStatus
	err := r.db.WithContext(ctx).
		Where("activity_id = ?", activityID).
		Order("created_at ASC").
		Find(&statuses).Error
	return statuses, err
}

func (r *activityRepository) CreateTaskActivity(ctx context.Context, taskActivity *domain.TaskActivity) error {
	return r.db.WithContext(ctx).Omit("Activity", "Status").Create(taskActivity).Error
}

func (r *activityRepository) FindTaskActivities(ctx context.Context, taskID uuid.UUID) ([]domain.TaskActivity, error) {
	var taskActivities []domain.TaskActivity
	err := r.db.WithContext(ctx).
		Preload("Activity").
		Preload("Status").
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&taskActivities).Error
	return taskActivities, err
}
