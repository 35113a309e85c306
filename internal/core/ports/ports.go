// Package ports declares the storage collaborator contracts. The postgres
// package provides the production implementation; the memory package backs
// tests and embedded use.
package ports

import (
	"context"
	"time"

	"github.com/google/uuid"

	"workflows/internal/domain"
)

// TaskFilter narrows task list queries. Zero values mean "no filter".
type TaskFilter struct {
	WorkflowSlug string
	Swimlanes    []string
	UserID       *uuid.UUID
	JobID        *uuid.UUID
}

// Store bundles the repositories behind one transaction boundary.
type Store interface {
	Workflows() WorkflowRepository
	Versions() WorkflowVersionRepository
	States() StateRepository
	Swimlanes() SwimlaneRepository
	Jobs() JobRepository
	Tasks() TaskRepository
	Activities() ActivityRepository
	TaskLogs() TaskLogRepository

	// Transaction runs fn against a store whose operations commit or roll
	// back atomically. The implementation must provide at least
	// read-committed isolation so progression's join checks observe
	// committed sibling finishes.
	Transaction(ctx context.Context, fn func(Store) error) error
}

type WorkflowRepository interface {
	Create(ctx context.Context, workflow *domain.Workflow) error
	Save(ctx context.Context, workflow *domain.Workflow) error
	GetBySlug(ctx context.Context, slug string) (*domain.Workflow, error)
}

type WorkflowVersionRepository interface {
	Create(ctx context.Context, version *domain.WorkflowVersion) error
	Save(ctx context.Context, version *domain.WorkflowVersion) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowVersion, error)
	GetByWorkflowAndVersion(ctx context.Context, workflowID uuid.UUID, version int) (*domain.WorkflowVersion, error)
	LastVersion(ctx context.Context, workflowID uuid.UUID) (*domain.WorkflowVersion, error)
}

type StateRepository interface {
	Create(ctx context.Context, state *domain.State) error
	Save(ctx context.Context, state *domain.State) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.State, error)
	GetBySlug(ctx context.Context, versionID uuid.UUID, slug string) (*domain.State, error)
	GetByDefinition(ctx context.Context, versionID uuid.UUID, definitionID string) (*domain.State, error)
	GetInitial(ctx context.Context, versionID uuid.UUID) (*domain.State, error)
	FindByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.State, error)
	FindByDefinitions(ctx context.Context, versionID uuid.UUID, definitionIDs []string) ([]domain.State, error)

	// ReplaceSwimlanes swaps the state's swimlane set.
	ReplaceSwimlanes(ctx context.Context, state *domain.State, lanes []domain.Swimlane) error
}

type SwimlaneRepository interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Swimlane, error)
	GetOrCreate(ctx context.Context, slug, name string) (*domain.Swimlane, error)
}

type JobRepository interface {
	Create(ctx context.Context, job *domain.Job) error
	Save(ctx context.Context, job *domain.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	HasTasks(ctx context.Context, jobID uuid.UUID) (bool, error)
}

type TaskRepository interface {
	Create(ctx context.Context, task *domain.Task) error
	Save(ctx context.Context, task *domain.Task) error

	// GetByID loads a task with its state (incl. swimlanes), job and the
	// job's workflow version.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// GetForUpdate is GetByID with a row lock on the task for the duration
	// of the surrounding transaction.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	FindByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error)

	// FindActiveByJob returns the job's unfinished tasks.
	FindActiveByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Task, error)

	// LockActiveByJob is FindActiveByJob with row locks, used by progression
	// so concurrent sibling finishes serialize on the job's task set.
	LockActiveByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Task, error)

	// LastByJobAndState returns the most recently modified task of the job
	// in the given state.
	LastByJobAndState(ctx context.Context, jobID, stateID uuid.UUID) (*domain.Task, error)

	// AnyFinished reports whether the job has a finished task in any of the
	// given states.
	AnyFinished(ctx context.Context, jobID uuid.UUID, stateIDs []uuid.UUID) (bool, error)

	FindUnfinishedByState(ctx context.Context, stateID uuid.UUID) ([]*domain.Task, error)

	// Work-queue views.
	FindWaiting(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	FindAssigned(ctx context.Context, filter TaskFilter) ([]domain.Task, error)
	FindFinished(ctx context.Context, filter TaskFilter) ([]domain.Task, error)

	// FindInProgress returns assigned, unpaused, unfinished tasks whose
	// activation instant has passed.
	FindInProgress(ctx context.Context, filter TaskFilter, now time.Time) ([]domain.Task, error)
	FindPaused(ctx context.Context, filter TaskFilter) ([]domain.Task, error)

	// Due-threshold views against the stored due/warning datetimes.
	FindLate(ctx context.Context, now time.Time) ([]domain.Task, error)
	FindWarning(ctx context.Context, now time.Time) ([]domain.Task, error)
	FindOnTime(ctx context.Context, now time.Time) ([]domain.Task, error)
}

type TaskLogRepository interface {
	Create(ctx context.Context, log *domain.TaskLog) error
	FindByTask(ctx context.Context, taskID uuid.UUID) ([]domain.TaskLog, error)
}

type ActivityRepository interface {
	GetOrCreate(ctx context.Context, stateID uuid.UUID, slug, name string) (*domain.Activity, error)
	GetOrCreateStatus(ctx context.Context, activityID uuid.UUID, slug, name string) (*domain.ActivityStatus, error)
	FindByState(ctx context.Context, stateID uuid.UUID) ([]domain.Activity, error)
	FindStatuses(ctx context.Context, activityID uuid.UUID) ([]domain.ActivityStatus, error)
	CreateTaskActivity(ctx context.Context, taskActivity *domain.TaskActivity) error
	FindTaskActivities(ctx context.Context, taskID uuid.UUID) ([]domain.TaskActivity, error)
}
