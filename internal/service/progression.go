package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"workflows/internal/core/ports"
	"workflows/internal/domain"
	"workflows/internal/metrics"
	"workflows/internal/registry"
)

// Progression decides and creates the follow-on tasks when a task finishes.
// It always runs inside the finishing transaction, so the finished flag and
// the successor rows become visible atomically.
type Progression struct {
	registry *registry.Registry
	cal      domain.WorkCalendar

	// StopOnUnmetJoin replicates the legacy behavior where one successor's
	// unmet join aborts the remaining successors of the same advance. The
	// default treats successors independently: an unmet join skips only
	// that successor.
	StopOnUnmetJoin bool

	now func() time.Time
}

func NewProgression(reg *registry.Registry, cal domain.WorkCalendar) *Progression {
	return &Progression{
		registry: reg,
		cal:      cal,
		now:      time.Now,
	}
}

// Advance processes the finishing task's transition. Successors are created
// in the order the state definition returns them. A descriptor that cannot be
// resolved within the job's workflow version is logged and skipped without
// aborting the others. Returned events must be emitted after commit.
func (p *Progression) Advance(ctx context.Context, tx ports.Store, task *domain.Task, finishedBy uuid.UUID) ([]domain.Event, error) {
	if task.State.IsFinal {
		return nil, nil
	}

	def, err := p.registry.Definition(task.State.DefinitionID)
	if err != nil {
		log.Printf("progression: task %s state %q has no definition: %v", task.ID, task.State.Slug, err)
		return nil, nil
	}

	// Two branches finishing at once must not both read each other's task as
	// unfinished and skip a shared join. Locking the job's task set here
	// serializes the join checks and the successor creation below on the job
	// for the rest of the transaction.
	if _, err := tx.Tasks().LockActiveByJob(ctx, task.JobID); err != nil {
		return nil, err
	}

	versionID := task.Job.WorkflowVersionID
	var events []domain.Event

	for _, successor := range def.Next(task.FinalData, task) {
		state, err := tx.States().GetByDefinition(ctx, versionID, successor.Definition)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("progression: task %s: successor %q not found in version %s, skipping",
					task.ID, successor.Definition, versionID)
				continue
			}
			return nil, err
		}

		if state.IsFinal {
			if err := p.cancelSiblings(ctx, tx, task, finishedBy); err != nil {
				return nil, err
			}
		}

		satisfied, err := p.joinSatisfied(ctx, tx, task, state)
		if err != nil {
			return nil, err
		}
		if !satisfied {
			log.Printf("progression: task %s: join for %q not yet satisfied", task.ID, state.Slug)
			if p.StopOnUnmetJoin {
				return events, nil
			}
			continue
		}

		activatedAt := successor.ActivatedAt
		if activatedAt.IsZero() {
			activatedAt = p.now()
		}

		next := domain.NewTask(task.Job, state, task.FinalData, activatedAt, successor.AdditionalDueTime)
		event, err := createTask(ctx, tx, p.cal, next)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	return events, nil
}

// joinSatisfied checks the successor's required-state gate: the most recently
// modified task of every required state must be finished, and at least one
// finished task must exist among them. The triggering task counts as finished
// even though its terminal flags are only stamped later in the same
// transaction.
func (p *Progression) joinSatisfied(ctx context.Context, tx ports.Store, task *domain.Task, state *domain.State) (bool, error) {
	def, err := p.registry.Definition(state.DefinitionID)
	if err != nil {
		return false, err
	}
	required := def.Required()
	if len(required) == 0 {
		return true, nil
	}

	states, err := tx.States().FindByDefinitions(ctx, task.Job.WorkflowVersionID, required)
	if err != nil {
		return false, err
	}
	if len(states) == 0 {
		return true, nil
	}

	triggerCounts := false
	stateIDs := make([]uuid.UUID, 0, len(states))
	for i := range states {
		stateIDs = append(stateIDs, states[i].ID)
		last, err := tx.Tasks().LastByJobAndState(ctx, task.JobID, states[i].ID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		if last.ID == task.ID {
			triggerCounts = true
			continue
		}
		if !last.IsFinished {
			return false, nil
		}
	}
	if triggerCounts {
		return true, nil
	}

	return tx.Tasks().AnyFinished(ctx, task.JobID, stateIDs)
}

// cancelSiblings terminates every other unfinished task of the job. The first
// branch to reach a terminal state wins; canceled tasks never progress. The
// active set is read under row locks so a concurrent sibling finish cannot
// slip past the cancellation.
func (p *Progression) cancelSiblings(ctx context.Context, tx ports.Store, task *domain.Task, finishedBy uuid.UUID) error {
	active, err := tx.Tasks().LockActiveByJob(ctx, task.JobID)
	if err != nil {
		return err
	}
	for _, sibling := range active {
		if sibling.ID == task.ID {
			continue
		}
		sibling.Cancel(p.now(), finishedBy, task.FinalData)
		if err := sibling.Validate(); err != nil {
			return err
		}
		sibling.Recalculate(p.cal)
		if err := tx.Tasks().Save(ctx, sibling); err != nil {
			return err
		}
		metrics.TasksCanceled.Inc()
		log.Printf("progression: canceled task %s (job %s reached a final state)", sibling.ID, task.JobID)
	}
	return nil
}

// createTask persists a new task with its activity checklist and builds its
// creation event.
func createTask(ctx context.Context, tx ports.Store, cal domain.WorkCalendar, task *domain.Task) (domain.TaskCreatedEvent, error) {
	if err := task.Validate(); err != nil {
		return domain.TaskCreatedEvent{}, err
	}
	task.Recalculate(cal)
	if err := tx.Tasks().Create(ctx, task); err != nil {
		return domain.TaskCreatedEvent{}, err
	}

	activities, err := tx.Activities().FindByState(ctx, task.StateID)
	if err != nil {
		return domain.TaskCreatedEvent{}, err
	}
	for i := range activities {
		if err := tx.Activities().CreateTaskActivity(ctx, domain.NewTaskActivity(task.ID, activities[i].ID)); err != nil {
			return domain.TaskCreatedEvent{}, err
		}
	}

	metrics.TasksCreated.Inc()
	return domain.TaskCreatedEvent{
		TaskID:    task.ID,
		Sender:    task.Job.WorkflowVersion.Slug(),
		Swimlanes: task.State.SwimlaneSlugs(),
	}, nil
}
