package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"workflows/internal/domain"
)

type workflowRepository struct {
	db *gorm.DB
}

func (r *workflowRepository) Create(ctx context.Context, workflow *domain.Workflow) error {
	return r.db.WithContext(ctx).Create(workflow).Error
}

func (r *workflowRepository) Save(ctx context.Context, workflow *domain.Workflow) error {
	return r.db.WithContext(ctx).Save(workflow).Error
}

func (r *workflowRepository) GetBySlug(ctx context.Context, slug string) (*domain.Workflow, error) {
	var workflow domain.Workflow
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&workflow).Error
	if err != nil {
		return nil, err
	}
	return &workflow, nil
}

type versionRepository struct {
	db *gorm.DB
}

func (r *versionRepository) Create(ctx context.Context, version *domain.WorkflowVersion) error {
	return r.db.WithContext(ctx).Create(version).Error
}

func (r *versionRepository) Save(ctx context.Context, version *domain.WorkflowVersion) error {
	return r.db.WithContext(ctx).Save(version).Error
}

func (r *versionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowVersion, error) {
	var version domain.WorkflowVersion
	err := r.db.WithContext(ctx).Preload("Workflow").Where("id = ?", id).First(&version).Error
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func (r *versionRepository) GetByWorkflowAndVersion(ctx context.Context, workflowID uuid.UUID, version int) (*domain.WorkflowVersion, error) {
	var wv domain.WorkflowVersion
	err := r.db.WithContext(ctx).
		Preload("Workflow").
		Where("workflow_id = ? AND version = ?", workflowID, version).
		First(&wv).Error
	if err != nil {
		return nil, err
	}
	return &wv, nil
}

func (r *versionRepository) LastVersion(ctx context.Context, workflowID uuid.UUID) (*domain.WorkflowVersion, error) {
	var wv domain.WorkflowVersion
	err := r.db.WithContext(ctx).
		Preload("Workflow").
		Where("workflow_id = ?", workflowID).
		Order("version DESC").
		First(&wv).Error
	if err != nil {
		return nil, err
	}
	return &wv, nil
}
