package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"workflows/internal/core/ports"
	"workflows/internal/domain"
	"workflows/internal/metrics"
)

// Notifier delivers domain events after a mutation commits. Satisfied by
// notify.Notifier.
type Notifier interface {
	Emit(ctx context.Context, events ...domain.Event)
}

// TaskService applies lifecycle operations to tasks. Every mutation is one
// transaction with the task row locked, so two concurrent operations can
// never both pass their guards.
type TaskService struct {
	store       ports.Store
	cal         domain.WorkCalendar
	progression *Progression
	notifier    Notifier

	now func() time.Time
}

func NewTaskService(store ports.Store, cal domain.WorkCalendar, progression *Progression, notifier Notifier) *TaskService {
	return &TaskService{
		store:       store,
		cal:         cal,
		progression: progression,
		notifier:    notifier,
		now:         time.Now,
	}
}

func (s *TaskService) Get(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	return s.store.Tasks().GetByID(ctx, taskID)
}

// Start moves a waiting task to in progress, assigning it to user.
func (s *TaskService) Start(ctx context.Context, taskID, startedBy, user uuid.UUID) (*domain.Task, error) {
	task, err := s.mutate(ctx, taskID, domain.ActionStarted, &startedBy, func(t *domain.Task) error {
		return t.Start(s.now(), startedBy, user)
	})
	if err != nil {
		return nil, err
	}
	metrics.TasksStarted.Inc()
	log.Printf("task %s started by %s for %s", taskID, startedBy, user)
	return task, nil
}

func (s *TaskService) Pause(ctx context.Context, taskID uuid.UUID, pausedBy *uuid.UUID) (*domain.Task, error) {
	return s.mutate(ctx, taskID, domain.ActionPaused, pausedBy, func(t *domain.Task) error {
		return t.Pause(s.now(), pausedBy)
	})
}

// Unpause is not an audited action.
func (s *TaskService) Unpause(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	return s.mutate(ctx, taskID, "", nil, func(t *domain.Task) error {
		return t.Unpause()
	})
}

// Abandon returns the task to waiting, clearing the assignee and every
// lifecycle timestamp.
func (s *TaskService) Abandon(ctx context.Context, taskID uuid.UUID) (*domain.Task, error) {
	return s.mutate(ctx, taskID, domain.ActionAbandoned, nil, func(t *domain.Task) error {
		return t.Abandon()
	})
}

// Reopen returns a finished task to in progress. The reopening user is
// recorded in the audit log only; the original assignee keeps the task.
func (s *TaskService) Reopen(ctx context.Context, taskID, user uuid.UUID) (*domain.Task, error) {
	task, err := s.mutate(ctx, taskID, domain.ActionReopened, &user, func(t *domain.Task) error {
		return t.Reopen(s.now())
	})
	if err != nil {
		return nil, err
	}
	log.Printf("task %s reopened by %s", taskID, user)
	return task, nil
}

// Finish completes the task and advances the job. The overwrite of the final
// payload, the progression (successor creation, join checks, terminal
// cancellation) and the terminal flags all commit atomically; events are
// emitted only after the commit.
func (s *TaskService) Finish(ctx context.Context, taskID, finishedBy uuid.UUID, data datatypes.JSON) (*domain.Task, error) {
	var task *domain.Task
	var events []domain.Event

	err := s.store.Transaction(ctx, func(tx ports.Store) error {
		t, err := tx.Tasks().GetForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if err := t.CanFinish(); err != nil {
			return err
		}

		if len(data) > 0 {
			t.FinalData = data
			if err := s.persist(ctx, tx, t); err != nil {
				return err
			}
		}

		events, err = s.progression.Advance(ctx, tx, t, finishedBy)
		if err != nil {
			return err
		}

		t.CompleteFinish(s.now(), finishedBy)
		if err := s.persist(ctx, tx, t); err != nil {
			return err
		}
		if err := tx.TaskLogs().Create(ctx, domain.NewTaskLog(t.JobID, t.ID, &finishedBy, domain.ActionFinished)); err != nil {
			return err
		}

		events = append(events, domain.TaskFinishedEvent{
			TaskID: t.ID,
			Sender: t.Job.WorkflowVersion.Slug(),
		})
		if t.State.IsFinal {
			events = append(events, domain.JobFinishedEvent{
				JobID:  t.JobID,
				Sender: t.Job.WorkflowVersion.Slug(),
			})
		}

		task = t
		return nil
	})
	if err != nil {
		s.countGuard(err)
		return nil, err
	}

	metrics.TasksFinished.Inc()
	if task.State.IsFinal {
		metrics.JobsFinished.Inc()
	}
	s.notifier.Emit(ctx, events...)
	log.Printf("task %s finished by %s", taskID, finishedBy)
	return task, nil
}

// Work-queue and reporting views.

func (s *TaskService) ListWaiting(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	return s.store.Tasks().FindWaiting(ctx, filter)
}

func (s *TaskService) ListAssigned(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	return s.store.Tasks().FindAssigned(ctx, filter)
}

func (s *TaskService) ListFinished(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	return s.store.Tasks().FindFinished(ctx, filter)
}

func (s *TaskService) ListInProgress(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	return s.store.Tasks().FindInProgress(ctx, filter, s.now())
}

func (s *TaskService) ListPaused(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	return s.store.Tasks().FindPaused(ctx, filter)
}

func (s *TaskService) ListLate(ctx context.Context) ([]domain.Task, error) {
	return s.store.Tasks().FindLate(ctx, s.now())
}

func (s *TaskService) ListWarning(ctx context.Context) ([]domain.Task, error) {
	return s.store.Tasks().FindWarning(ctx, s.now())
}

func (s *TaskService) ListOnTime(ctx context.Context) ([]domain.Task, error) {
	return s.store.Tasks().FindOnTime(ctx, s.now())
}

func (s *TaskService) TaskActivities(ctx context.Context, taskID uuid.UUID) ([]domain.TaskActivity, error) {
	return s.store.Activities().FindTaskActivities(ctx, taskID)
}

func (s *TaskService) TaskLogs(ctx context.Context, taskID uuid.UUID) ([]domain.TaskLog, error) {
	return s.store.TaskLogs().FindByTask(ctx, taskID)
}

// mutate runs one locked read-modify-write cycle on the task, writing the
// audit row in the same transaction. An empty action writes none.
func (s *TaskService) mutate(ctx context.Context, taskID uuid.UUID, action domain.TaskAction, actor *uuid.UUID, op func(*domain.Task) error) (*domain.Task, error) {
	var task *domain.Task
	err := s.store.Transaction(ctx, func(tx ports.Store) error {
		t, err := tx.Tasks().GetForUpdate(ctx, taskID)
		if err != nil {
			return err
		}
		if err := op(t); err != nil {
			return err
		}
		if err := s.persist(ctx, tx, t); err != nil {
			return err
		}
		if action != "" {
			if err := tx.TaskLogs().Create(ctx, domain.NewTaskLog(t.JobID, t.ID, actor, action)); err != nil {
				return err
			}
		}
		task = t
		return nil
	})
	if err != nil {
		s.countGuard(err)
		return nil, err
	}
	return task, nil
}

// persist validates and saves the task, recomputing the due and warning
// datetimes the way every save must.
func (s *TaskService) persist(ctx context.Context, tx ports.Store, task *domain.Task) error {
	if err := task.Validate(); err != nil {
		return err
	}
	task.Recalculate(s.cal)
	return tx.Tasks().Save(ctx, task)
}

func (s *TaskService) countGuard(err error) {
	if errors.Is(err, domain.ErrGuardViolation) {
		metrics.GuardViolations.Inc()
	}
}
