package repository

import (
	"context"

	"gorm.io/gorm"

	"workflows/internal/core/ports"
	"workflows/internal/domain"
)

// Store is the postgres-backed ports.Store. Transaction hands out a Store
// bound to the transactional connection, so repositories inside fn share one
// atomic scope.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Workflows() ports.WorkflowRepository       { return &workflowRepository{db: s.db} }
func (s *Store) Versions() ports.WorkflowVersionRepository { return &versionRepository{db: s.db} }
func (s *Store) States() ports.StateRepository             { return &stateRepository{db: s.db} }
func (s *Store) Swimlanes() ports.SwimlaneRepository       { return &swimlaneRepository{db: s.db} }
func (s *Store) Jobs() ports.JobRepository                 { return &jobRepository{db: s.db} }
func (s *Store) Tasks() ports.TaskRepository               { return &taskRepository{db: s.db} }
func (s *Store) Activities() ports.ActivityRepository      { return &activityRepository{db: s.db} }
func (s *Store) TaskLogs() ports.TaskLogRepository         { return &taskLogRepository{db: s.db} }

func (s *Store) Transaction(ctx context.Context, fn func(ports.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}

// AutoMigrate creates or updates the schema for every workflow model.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Workflow{},
		&domain.WorkflowVersion{},
		&domain.Swimlane{},
		&domain.State{},
		&domain.Job{},
		&domain.Task{},
		&domain.Activity{},
		&domain.ActivityStatus{},
		&domain.TaskActivity{},
		&domain.TaskLog{},
	)
}
