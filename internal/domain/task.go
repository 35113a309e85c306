package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Status is derived from the four lifecycle booleans and never stored.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusFinished   Status = "finished"
)

// DueStatus classifies a task against its state's due thresholds.
type DueStatus string

const (
	DueOnTime  DueStatus = "on_time"
	DueWarning DueStatus = "warning"
	DueLate    DueStatus = "late"
)

// WorkCalendar computes a deadline a number of working minutes after a start
// instant. Satisfied by calendar.Calendar.
type WorkCalendar interface {
	Advance(start time.Time, minutes int) time.Time
}

// Task is one state-instance execution within a job. Lifecycle transitions
// mutate the instance in memory and return a *GuardError when a precondition
// is unmet; persistence and locking are the service layer's concern.
type Task struct {
	ID          uuid.UUID `gorm:"type:uuid;primary_key"`
	JobID       uuid.UUID `gorm:"type:uuid;index;not null"`
	Job         *Job      `gorm:"foreignKey:JobID"`
	StateID     uuid.UUID `gorm:"type:uuid;index;not null"`
	State       *State    `gorm:"foreignKey:StateID"`
	ActivatedAt time.Time `gorm:"not null"`

	// AdditionalDueTime extends the state's due window, in minutes.
	AdditionalDueTime int        `gorm:"default:0"`
	DueDatetime       *time.Time `gorm:"index"`
	WarningDatetime   *time.Time

	IsStarted  bool `gorm:"default:false"`
	IsPaused   bool `gorm:"default:false"`
	IsFinished bool `gorm:"default:false;index"`
	IsCanceled bool `gorm:"default:false"`

	UserID       *uuid.UUID `gorm:"type:uuid;index"`
	StartedByID  *uuid.UUID `gorm:"type:uuid"`
	PausedByID   *uuid.UUID `gorm:"type:uuid"`
	FinishedByID *uuid.UUID `gorm:"type:uuid"`

	StartDatetime  *time.Time
	PauseDatetime  *time.Time
	FinishDatetime *time.Time

	InitialData datatypes.JSON `gorm:"type:jsonb"`
	FinalData   datatypes.JSON `gorm:"type:jsonb"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTask builds an unstarted task for the given job and state. Both payloads
// are seeded from data: InitialData is the task's input, FinalData only
// diverges once a finisher supplies a result.
func NewTask(job *Job, state *State, data datatypes.JSON, activatedAt time.Time, additionalDueTime int) *Task {
	if activatedAt.IsZero() {
		activatedAt = time.Now()
	}
	return &Task{
		ID:                uuid.New(),
		JobID:             job.ID,
		Job:               job,
		StateID:           state.ID,
		State:             state,
		ActivatedAt:       activatedAt,
		AdditionalDueTime: additionalDueTime,
		InitialData:       data,
		FinalData:         data,
	}
}

// Status derives the lifecycle status from the boolean flags.
func (t *Task) Status() Status {
	switch {
	case t.IsFinished:
		return StatusFinished
	case !t.IsStarted:
		return StatusWaiting
	case t.IsPaused:
		return StatusPaused
	default:
		return StatusInProgress
	}
}

// Data returns the payload relevant for the task's current stage: the final
// payload once finished, the initial one before that.
func (t *Task) Data() datatypes.JSON {
	if t.IsFinished {
		return t.FinalData
	}
	return t.InitialData
}

// DueStatus classifies the task at the reference instant. For finished tasks
// the finish time is the reference instead. The upper warning bound is
// inclusive: elapsed == due time is still a warning, not late.
func (t *Task) DueStatus(now time.Time) DueStatus {
	reference := now
	if t.IsFinished && t.FinishDatetime != nil {
		reference = *t.FinishDatetime
	}
	elapsed := int(reference.Sub(t.ActivatedAt).Minutes())

	switch {
	case elapsed > t.State.DueTime:
		return DueLate
	case elapsed >= t.State.DueTimeWarning:
		return DueWarning
	default:
		return DueOnTime
	}
}

// TimeUntilDue reports the remaining time before the due window closes, or
// zero when the task is finished or already overdue.
func (t *Task) TimeUntilDue(now time.Time) time.Duration {
	if t.IsFinished {
		return 0
	}
	until := t.ActivatedAt.
		Add(time.Duration(t.State.DueTime) * time.Minute).
		Add(time.Duration(t.AdditionalDueTime) * time.Minute).
		Sub(now)
	if until < 0 {
		return 0
	}
	return until
}

// OverdueTime reports how far past the due window the task is, or zero when
// it is still within it.
func (t *Task) OverdueTime(now time.Time) time.Duration {
	reference := now
	if t.IsFinished && t.FinishDatetime != nil {
		reference = *t.FinishDatetime
	}
	overdue := reference.Sub(t.ActivatedAt.Add(time.Duration(t.State.DueTime) * time.Minute))
	if overdue < 0 {
		return 0
	}
	return overdue
}

// Recalculate recomputes the due and warning datetimes from the activation
// instant and the state's timing parameters. It runs on every persist so that
// timing changes on the state propagate to unfinished tasks.
func (t *Task) Recalculate(cal WorkCalendar) {
	due := cal.Advance(t.ActivatedAt, t.State.DueTime+t.AdditionalDueTime)
	warning := cal.Advance(t.ActivatedAt, t.State.DueTimeWarning+t.AdditionalDueTime)
	t.DueDatetime = &due
	t.WarningDatetime = &warning
}

// Validate checks the invariants that must hold before any persist.
func (t *Task) Validate() error {
	if t.State != nil && t.Job != nil && t.State.WorkflowVersionID != t.Job.WorkflowVersionID {
		return &CrossVersionError{Reason: "the state must belong to the job's workflow version"}
	}
	if !t.IsStarted && t.IsPaused {
		return &GuardError{TaskID: t.ID, Op: "save", Reason: "an unstarted task cannot be paused"}
	}
	if !t.IsStarted && t.IsFinished && !t.IsCanceled {
		return &GuardError{TaskID: t.ID, Op: "save", Reason: "an unstarted task cannot be finished"}
	}
	if t.StartDatetime != nil && t.FinishDatetime != nil && t.StartDatetime.After(*t.FinishDatetime) {
		return &GuardError{TaskID: t.ID, Op: "save", Reason: "the finish time must be greater than the start time"}
	}
	if t.IsStarted && t.UserID == nil {
		return &GuardError{TaskID: t.ID, Op: "save", Reason: "an assignee is required to start the task"}
	}
	return nil
}

// Start moves the task from waiting to in progress and records the actor and
// the assignee.
func (t *Task) Start(now time.Time, startedBy, user uuid.UUID) error {
	if t.IsFinished {
		return &GuardError{TaskID: t.ID, Op: "start", Reason: "the task is already finished"}
	}
	if t.IsStarted {
		return &GuardError{TaskID: t.ID, Op: "start", Reason: "the task is already started"}
	}
	t.IsStarted = true
	t.StartDatetime = &now
	t.StartedByID = &startedBy
	t.UserID = &user
	return nil
}

// Pause suspends an in-progress task.
func (t *Task) Pause(now time.Time, pausedBy *uuid.UUID) error {
	if t.IsPaused {
		return &GuardError{TaskID: t.ID, Op: "pause", Reason: "the task is already paused"}
	}
	if !t.IsStarted {
		return &GuardError{TaskID: t.ID, Op: "pause", Reason: "the task is not started"}
	}
	if t.IsFinished {
		return &GuardError{TaskID: t.ID, Op: "pause", Reason: "the task is already finished"}
	}
	t.IsPaused = true
	t.PausedByID = pausedBy
	t.PauseDatetime = &now
	return nil
}

// Unpause resumes a paused task.
func (t *Task) Unpause() error {
	if !t.IsPaused {
		return &GuardError{TaskID: t.ID, Op: "unpause", Reason: "the task is not paused"}
	}
	t.IsPaused = false
	return nil
}

// Abandon returns an unfinished task to waiting, clearing every actor and
// timestamp the lifecycle has accumulated.
func (t *Task) Abandon() error {
	if t.IsFinished {
		return &GuardError{TaskID: t.ID, Op: "abandon", Reason: "the task is already finished"}
	}
	t.IsStarted = false
	t.IsPaused = false
	t.StartDatetime = nil
	t.PauseDatetime = nil
	t.StartedByID = nil
	t.PausedByID = nil
	t.UserID = nil
	return nil
}

// CanFinish reports whether the finish guards hold. The flag mutation is
// split into CompleteFinish so progression can run between the guard check
// and the terminal write, inside the same transaction.
func (t *Task) CanFinish() error {
	if !t.IsStarted {
		return &GuardError{TaskID: t.ID, Op: "finish", Reason: "the task is not started"}
	}
	if t.IsFinished {
		return &GuardError{TaskID: t.ID, Op: "finish", Reason: "the task is already finished"}
	}
	return nil
}

// CompleteFinish stamps the terminal fields after progression has run.
func (t *Task) CompleteFinish(now time.Time, finishedBy uuid.UUID) {
	t.IsFinished = true
	t.IsPaused = false
	t.FinishDatetime = &now
	t.FinishedByID = &finishedBy
}

// Cancel terminates the task without progression. It is system-invoked when a
// sibling branch reaches a final state; canceled tasks never spawn successors.
func (t *Task) Cancel(now time.Time, finishedBy uuid.UUID, data datatypes.JSON) {
	if len(data) > 0 {
		t.FinalData = data
	}
	t.IsCanceled = true
	t.IsFinished = true
	t.IsPaused = false
	t.FinishDatetime = &now
	t.FinishedByID = &finishedBy
}

// Reopen returns a finished task to in progress and restamps the start time.
func (t *Task) Reopen(now time.Time) error {
	if !t.IsStarted {
		return &GuardError{TaskID: t.ID, Op: "reopen", Reason: "the task is not started"}
	}
	if !t.IsFinished {
		return &GuardError{TaskID: t.ID, Op: "reopen", Reason: "the task is not finished"}
	}
	t.StartDatetime = &now
	t.IsFinished = false
	t.IsCanceled = false
	t.FinishedByID = nil
	t.FinishDatetime = nil
	return nil
}
