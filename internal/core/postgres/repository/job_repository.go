package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"workflows/internal/domain"
)

type jobRepository struct {
	db *gorm.DB
}

func (r *jobRepository) Create(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Omit("Tasks", "WorkflowVersion").Create(job).Error
}

func (r *jobRepository) Save(ctx context.Context, job *domain.Job) error {
	return r.db.WithContext(ctx).Omit("Tasks", "WorkflowVersion").Save(job).Error
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	var job domain.Job
	err := r.db.WithContext(ctx).
		Preload("WorkflowVersion.Workflow").
		Where("id = ?", id).
		First(&job).Error
	if err != nil {
		return nil, err
	}
	return &job, nil
}

func (r *jobRepository) HasTasks(ctx context.Context, jobID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Task{}).
		Where("job_id = ?", jobID).
		Count(&count).Error
	return count > 0, err
}
