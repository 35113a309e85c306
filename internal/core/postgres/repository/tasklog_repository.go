package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"workflows/internal/domain"
)

type taskLogRepository struct {
	db *gorm.DB
}

func (r *taskLogRepository) Create(ctx context.Context, log *domain.TaskLog) error {
	return r.db.WithContext(ctx).Create(log).Error
}

func (r *taskLogRepository) FindByTask(ctx context.Context, taskID uuid.UUID) ([]domain.TaskLog, error) {
	var logs []domain.TaskLog
	err := r.db.WithContext(ctx).
		Where("task_id = ?", taskID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, err
}
