package service

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"workflows/internal/core/ports"
	"workflows/internal/domain"
	"workflows/internal/metrics"
)

// JobService creates workflow instances. Creating a job also creates its
// initial task, atomically, seeded with the job's payload and activation
// instant.
type JobService struct {
	store    ports.Store
	cal      domain.WorkCalendar
	notifier Notifier

	now func() time.Time
}

func NewJobService(store ports.Store, cal domain.WorkCalendar, notifier Notifier) *JobService {
	return &JobService{
		store:    store,
		cal:      cal,
		notifier: notifier,
		now:      time.Now,
	}
}

// Create instantiates a job of the given workflow version. A zero activatedAt
// means "now"; a future instant schedules the job.
func (s *JobService) Create(ctx context.Context, versionID, createdBy uuid.UUID, name string, data datatypes.JSON, activatedAt time.Time) (*domain.Job, error) {
	var job *domain.Job
	var event domain.Event

	err := s.store.Transaction(ctx, func(tx ports.Store) error {
		version, err := tx.Versions().GetByID(ctx, versionID)
		if err != nil {
			return err
		}
		if !version.IsActive {
			return &domain.GraphError{Reference: version.Slug(), Reason: "the workflow version is not active"}
		}

		j := domain.NewJob(versionID, createdBy, name, data, activatedAt)
		j.WorkflowVersion = version
		if err := tx.Jobs().Create(ctx, j); err != nil {
			return err
		}

		initial, err := tx.States().GetInitial(ctx, versionID)
		if err != nil {
			return err
		}

		task := domain.NewTask(j, initial, j.Data, j.ActivatedAt, 0)
		event, err = createTask(ctx, tx, s.cal, task)
		if err != nil {
			return err
		}

		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.JobsCreated.Inc()
	s.notifier.Emit(ctx, event)
	log.Printf("job %s (%s) created by %s", job.ID, job.Name, createdBy)
	return job, nil
}

func (s *JobService) Get(ctx context.Context, jobID uuid.UUID) (*domain.Job, error) {
	return s.store.Jobs().GetByID(ctx, jobID)
}

func (s *JobService) Tasks(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error) {
	return s.store.Tasks().FindByJob(ctx, jobID)
}

// ChangeVersion repoints a job to another workflow version. Rejected once any
// task exists: running jobs are bound to the graph they started on.
func (s *JobService) ChangeVersion(ctx context.Context, jobID, versionID uuid.UUID) (*domain.Job, error) {
	var job *domain.Job
	err := s.store.Transaction(ctx, func(tx ports.Store) error {
		j, err := tx.Jobs().GetByID(ctx, jobID)
		if err != nil {
			return err
		}
		if j.WorkflowVersionID == versionID {
			job = j
			return nil
		}

		hasTasks, err := tx.Jobs().HasTasks(ctx, jobID)
		if err != nil {
			return err
		}
		if hasTasks {
			return &domain.CrossVersionError{
				Reason: "the workflow version of a job cannot change once tasks exist",
			}
		}

		version, err := tx.Versions().GetByID(ctx, versionID)
		if err != nil {
			return err
		}
		j.WorkflowVersionID = version.ID
		j.WorkflowVersion = version
		if err := tx.Jobs().Save(ctx, j); err != nil {
			return err
		}
		job = j
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}
