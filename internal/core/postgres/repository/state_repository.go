package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"workflows/internal/domain"
)

type stateRepository struct {
	db *gorm.DB
}

func (r *stateRepository) Create(ctx context.Context, state *domain.State) error {
	return r.db.WithContext(ctx).Omit("Swimlanes").Create(state).Error
}

func (r *stateRepository) Save(ctx context.Context, state *domain.State) error {
	return r.db.WithContext(ctx).Omit("Swimlanes").Save(state).Error
}

func (r *stateRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.State, error) {
	var state domain.State
	err := r.db.WithContext(ctx).Preload("Swimlanes").Where("id = ?", id).First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *stateRepository) GetBySlug(ctx context.Context, versionID uuid.UUID, slug string) (*domain.State, error) {
	var state domain.State
	err := r.db.WithContext(ctx).
		Preload("Swimlanes").
		Where("workflow_version_id = ? AND slug = ?", versionID, slug).
		First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *stateRepository) GetByDefinition(ctx context.Context, versionID uuid.UUID, definitionID string) (*domain.State, error) {
	var state domain.State
	err := r.db.WithContext(ctx).
		Preload("Swimlanes").
		Where("workflow_version_id = ? AND definition_id = ?", versionID, definitionID).
		First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *stateRepository) GetInitial(ctx context.Context, versionID uuid.UUID) (*domain.State, error) {
	var state domain.State
	err := r.db.WithContext(ctx).
		Preload("Swimlanes").
		Where("workflow_version_id = ? AND is_initial = ?", versionID, true).
		First(&state).Error
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (r *stateRepository) FindByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.State, error) {
	var states []domain.State
	err := r.db.WithContext(ctx).
		Preload("Swimlanes").
		Where("workflow_version_id = ?", versionID).
		Order("sort_order ASC").
		Find(&states).Error
	return states, err
}

func (r *stateRepository) FindByDefinitions(ctx context.Context, versionID uuid.UUID, definitionIDs []string) ([]domain.State, error) {
	if len(definitionIDs) == 0 {
		return nil, nil
	}
	var states []domain.State
	err := r.db.WithContext(ctx).
		Where("workflow_version_id = ? AND definition_id IN ?", versionID, definitionIDs).
		Find(&states).Error
	return states, err
}

func (r *stateRepository) ReplaceSwimlanes(ctx context.Context, state *domain.State, lanes []domain.Swimlane) error {
	if err := r.db.WithContext(ctx).Model(state).Association("Swimlanes").Replace(&lanes); err != nil {
		return err
	}
	state.Swimlanes = lanes
	return nil
}

type swimlaneRepository struct {
	db *gorm.DB
}

func (r *swimlaneRepository) GetBySlug(ctx context.Context, slug string) (*domain.Swimlane, error) {
	var lane domain.Swimlane
	err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&lane).Error
	if err != nil {
		return nil, err
	}
	return &lane, nil
}

func (r *swimlaneRepository) GetOrCreate(ctx context.Context, slug, name string) (*domain.Swimlane, error) {
	lane, err := r.GetBySlug(ctx, slug)
	if err == nil {
		return lane, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	lane = domain.NewSwimlane(slug, name)
	if err := r.db.WithContext(ctx).Create(lane).Error; err != nil {
		return nil, err
	}
	return lane, nil
}
