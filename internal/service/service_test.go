package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"workflows/internal/builder"
	"workflows/internal/core/memory"
	"workflows/internal/core/ports"
	"workflows/internal/domain"
	"workflows/internal/registry"
)

type minuteCal struct{}

func (minuteCal) Advance(start time.Time, minutes int) time.Time {
	return start.Add(time.Duration(minutes) * time.Minute)
}

type recorder struct {
	events []domain.Event
}

func (r *recorder) Emit(ctx context.Context, events ...domain.Event) {
	r.events = append(r.events, events...)
}

func (r *recorder) kinds() []string {
	kinds := make([]string, len(r.events))
	for i, e := range r.events {
		kinds[i] = e.Kind()
	}
	return kinds
}

type testState struct {
	registry.BaseState
	name, slug string
	final      bool
	lanes      []string
	required   []string
	next       []registry.Successor
}

func (s testState) Name() string        { return s.name }
func (s testState) Slug() string        { return s.slug }
func (s testState) IsFinal() bool       { return s.final }
func (s testState) Swimlanes() []string { return s.lanes }
func (s testState) Required() []string  { return s.required }
func (s testState) Next(datatypes.JSON, *domain.Task) []registry.Successor {
	return s.next
}

type harness struct {
	store       *memory.Store
	jobs        *JobService
	tasks       *TaskService
	progression *Progression
	recorder    *recorder
	version     *domain.WorkflowVersion
}

func setup(t *testing.T, def registry.WorkflowDefinition, states map[string]registry.StateDefinition) *harness {
	t.Helper()
	reg := registry.New()
	for id, sd := range states {
		require.NoError(t, reg.Register(id, sd))
	}

	store := memory.NewStore()
	cal := minuteCal{}
	version, err := builder.New(store, reg, cal).Sync(context.Background(), def)
	require.NoError(t, err)

	rec := &recorder{}
	progression := NewProgression(reg, cal)
	return &harness{
		store:       store,
		jobs:        NewJobService(store, cal, rec),
		tasks:       NewTaskService(store, cal, progression, rec),
		progression: progression,
		recorder:    rec,
		version:     version,
	}
}

// start -> left + right, both joining into a state that requires both, then a
// final state.
func fanOutGraph() (registry.WorkflowDefinition, map[string]registry.StateDefinition) {
	def := registry.WorkflowDefinition{
		Slug:    "fan-out",
		Version: 1,
		Initial: "t.start",
		States:  []string{"t.start", "t.left", "t.right", "t.join", "t.done"},
	}
	states := map[string]registry.StateDefinition{
		"t.start": testState{
			name: "Start", slug: "start", lanes: []string{"intake"},
			next: []registry.Successor{registry.To("t.left"), registry.To("t.right")},
		},
		"t.left": testState{
			name: "Left", slug: "left",
			next: []registry.Successor{registry.To("t.join")},
		},
		"t.right": testState{
			name: "Right", slug: "right",
			next: []registry.Successor{registry.To("t.join")},
		},
		"t.join": testState{
			name: "Join", slug: "join",
			required: []string{"t.left", "t.right"},
			next:     []registry.Successor{registry.To("t.done")},
		},
		"t.done": testState{name: "Done", slug: "done", final: true},
	}
	return def, states
}

// a -> b + c, where finishing b reaches the final state while c is still live.
func raceGraph() (registry.WorkflowDefinition, map[string]registry.StateDefinition) {
	def := registry.WorkflowDefinition{
		Slug:    "race",
		Version: 1,
		Initial: "s.a",
		States:  []string{"s.a", "s.b", "s.c", "s.final"},
	}
	states := map[string]registry.StateDefinition{
		"s.a": testState{
			name: "A", slug: "a",
			next: []registry.Successor{registry.To("s.b"), registry.To("s.c")},
		},
		"s.b": testState{
			name: "B", slug: "b",
			next: []registry.Successor{registry.To("s.final")},
		},
		"s.c": testState{name: "C", slug: "c"},
		"s.final": testState{
			name: "Final", slug: "final", final: true,
		},
	}
	return def, states
}

func (h *harness) createJob(t *testing.T) *domain.Job {
	t.Helper()
	job, err := h.jobs.Create(context.Background(), h.version.ID, uuid.New(), "job", nil, time.Now())
	require.NoError(t, err)
	return job
}

func (h *harness) taskByState(t *testing.T, jobID uuid.UUID, slug string) *domain.Task {
	t.Helper()
	tasks, err := h.store.Tasks().FindByJob(context.Background(), jobID)
	require.NoError(t, err)
	for i := range tasks {
		if tasks[i].State.Slug == slug {
			return &tasks[i]
		}
	}
	t.Fatalf("no task for state %q", slug)
	return nil
}

func (h *harness) finish(t *testing.T, taskID uuid.UUID, data datatypes.JSON) *domain.Task {
	t.Helper()
	ctx := context.Background()
	actor := uuid.New()
	_, err := h.tasks.Start(ctx, taskID, actor, actor)
	require.NoError(t, err)
	task, err := h.tasks.Finish(ctx, taskID, actor, data)
	require.NoError(t, err)
	return task
}

func TestCreateJob(t *testing.T) {
	def, states := fanOutGraph()
	h := setup(t, def, states)

	job := h.createJob(t)

	initial := h.taskByState(t, job.ID, "start")
	assert.Equal(t, domain.StatusWaiting, initial.Status())
	assert.NotNil(t, initial.DueDatetime)

	require.Len(t, h.recorder.events, 1)
	created, ok := h.recorder.events[0].(domain.TaskCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, initial.ID, created.TaskID)
	assert.Equal(t, "fan-out.v1", created.Sender)
	assert.Equal(t, []string{"intake"}, created.Swimlanes)
}

func TestCreateJobInactiveVersion(t *testing.T) {
	def, states := fanOutGraph()
	h := setup(t, def, states)
	ctx := context.Background()

	version, err := h.store.Versions().GetByID(ctx, h.version.ID)
	require.NoError(t, err)
	version.IsActive = false
	require.NoError(t, h.store.Versions().Save(ctx, version))

	_, err = h.jobs.Create(ctx, h.version.ID, uuid.New(), "job", nil, time.Now())
	assert.ErrorIs(t, err, domain.ErrGraphIntegrity)
}

func TestFinishCreatesSuccessors(t *testing.T) {
	def, states := fanOutGraph()
	h := setup(t, def, states)
	job := h.createJob(t)
	initial := h.taskByState(t, job.ID, "start")

	data := datatypes.JSON(`{"order":42}`)
	finished := h.finish(t, initial.ID, data)

	assert.Equal(t, domain.StatusFinished, finished.Status())
	assert.JSONEq(t, `{"order":42}`, string(finished.FinalData))

	left := h.taskByState(t, job.ID, "left")
	right := h.taskByState(t, job.ID, "right")
	assert.Equal(t, domain.StatusWaiting, left.Status())
	assert.Equal(t, domain.StatusWaiting, right.Status())
	assert.JSONEq(t, `{"order":42}`, string(left.InitialData),
		"successors are seeded with the finisher's payload")

	assert.Equal(t,
		[]string{"task_created", "task_created", "task_created", "task_finished"},
		h.recorder.kinds())
}

func TestDoubleFinishRejected(t *testing.T) {
	def, states := fanOutGraph()
	h := setup(t, def, states)
	job := h.createJob(t)
	initial := h.taskByState(t, job.ID, "start")

	h.finish(t, initial.ID, nil)
	emitted := len(h.recorder.events)

	_, err := h.tasks.Finish(context.Background(), initial.ID, uuid.New(), nil)
	assert.ErrorIs(t, err, domain.ErrGuardViolation)
	assert.Len(t, h.recorder.events, emitted, "a rejected finish emits nothing")
}

func TestRequiredStateJoin(t *testing.T) {
	def, states := fanOutGraph()
	h := setup(t, def, states)
	job := h.createJob(t)

	h.finish(t, h.taskByState(t, job.ID, "start").ID, nil)
	h.finish(t, h.taskByState(t, job.ID, "left").ID, nil)

	tasks, err := h.store.Tasks().FindByJob(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Len(t, tasks, 3, "the join waits for both branches")

	h.finish(t, h.taskByState(t, job.ID, "right").ID, nil)
	join := h.taskByState(t, job.ID, "join")
	assert.Equal(t, domain.StatusWaiting, join.Status())
}

func TestFinalTaskEmitsJobFinished(t *testing.T) {
	def, states := fanOutGraph()
	h := setup(t, def, states)
	job := h.createJob(t)

	h.finish(t, h.taskByState(t, job.ID, "start").ID, nil)
	h.finish(t, h.taskByState(t, job.ID, "left").ID, nil)
	h.finish(t, h.taskByState(t, job.ID, "right").ID, nil)
	h.finish(t, h.taskByState(t, job.ID, "join").ID, nil)
	h.recorder.events = nil

	h.finish(t, h.taskByState(t, job.ID, "done").ID, nil)

	require.Len(t, h.recorder.events, 2)
	assert.Equal(t, "task_finished", h.recorder.events[0].Kind())
	finished, ok := h.recorder.events[1].(domain.JobFinishedEvent)
	require.True(t, ok)
	assert.Equal(t, job.ID, finished.JobID)
}

func TestTerminalBranchCancelsSiblings(t *testing.T) {
	def, states := raceGraph()
	h := setup(t, def, states)
	job := h.createJob(t)

	h.finish(t, h.taskByState(t, job.ID, "a").ID, nil)
	h.finish(t, h.taskByState(t, job.ID, "b").ID, nil)

	c := h.taskByState(t, job.ID, "c")
	assert.True(t, c.IsCanceled)
	assert.Equal(t, domain.StatusFinished, c.Status())

	final := h.taskByState(t, job.ID, "final")
	assert.Equal(t, domain.StatusWaiting, final.Status())
}

func TestUnmetJoinPolicies(t *testing.T) {
	def := registry.WorkflowDefinition{
		Slug:    "gated",
		Version: 1,
		Initial: "j.a",
		States:  []string{"j.a", "j.gate", "j.b", "j.x"},
	}
	states := map[string]registry.StateDefinition{
		"j.a": testState{
			name: "A", slug: "a",
			next: []registry.Successor{registry.To("j.gate"), registry.To("j.b")},
		},
		"j.gate": testState{name: "Gate", slug: "gate", required: []string{"j.x"}},
		"j.b":    testState{name: "B", slug: "b"},
		"j.x":    testState{name: "X", slug: "x"},
	}

	t.Run("independent successors", func(t *testing.T) {
		h := setup(t, def, states)
		job := h.createJob(t)
		h.finish(t, h.taskByState(t, job.ID, "a").ID, nil)

		// The unmet gate skips only itself.
		h.taskByState(t, job.ID, "b")
		tasks, err := h.store.Tasks().FindByJob(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Len(t, tasks, 2)
	})

	t.Run("stop on unmet join", func(t *testing.T) {
		h := setup(t, def, states)
		h.progression.StopOnUnmetJoin = true
		job := h.createJob(t)
		h.finish(t, h.taskByState(t, job.ID, "a").ID, nil)

		tasks, err := h.store.Tasks().FindByJob(context.Background(), job.ID)
		require.NoError(t, err)
		assert.Len(t, tasks, 1, "the unmet gate aborts the remaining successors")
	})
}

// lockOrderStore records the interleaving of job-scoped task locks and task
// creation, across the transaction boundary.
type lockOrderStore struct {
	ports.Store
	ops *[]string
}

func (s *lockOrderStore) Tasks() ports.TaskRepository {
	return &lockOrderTasks{TaskRepository: s.Store.Tasks(), ops: s.ops}
}

func (s *lockOrderStore) Transaction(ctx context.Context, fn func(ports.Store) error) error {
	return s.Store.Transaction(ctx, func(tx ports.Store) error {
		return fn(&lockOrderStore{Store: tx, ops: s.ops})
	})
}

type lockOrderTasks struct {
	ports.TaskRepository
	ops *[]string
}

func (r *lockOrderTasks) LockActiveByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Task, error) {
	*r.ops = append(*r.ops, "lock")
	return r.TaskRepository.LockActiveByJob(ctx, jobID)
}

func (r *lockOrderTasks) Create(ctx context.Context, task *domain.Task) error {
	*r.ops = append(*r.ops, "create")
	return r.TaskRepository.Create(ctx, task)
}

// Progression must take the job-scoped row locks before it reads sibling
// state for joins or creates successors, so two branches finishing
// concurrently serialize on the job instead of each skipping a shared join.
func TestFinishLocksJobTaskSet(t *testing.T) {
	def, states := fanOutGraph()
	h := setup(t, def, states)
	job := h.createJob(t)
	ctx := context.Background()
	actor := uuid.New()

	var ops []string
	tasks := NewTaskService(&lockOrderStore{Store: h.store, ops: &ops}, minuteCal{}, h.progression, h.recorder)

	initial := h.taskByState(t, job.ID, "start")
	_, err := tasks.Start(ctx, initial.ID, actor, actor)
	require.NoError(t, err)
	_, err = tasks.Finish(ctx, initial.ID, actor, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"lock", "create", "create"}, ops,
		"the job's task set is locked before any successor work")
}

func TestListInProgressAndPaused(t *testing.T) {
	def, states := fanOutGraph()
	h := setup(t, def, states)
	job := h.createJob(t)
	ctx := context.Background()
	actor := uuid.New()

	h.finish(t, h.taskByState(t, job.ID, "start").ID, nil)
	left := h.taskByState(t, job.ID, "left")
	right := h.taskByState(t, job.ID, "right")
	_, err := h.tasks.Start(ctx, left.ID, actor, actor)
	require.NoError(t, err)
	_, err = h.tasks.Start(ctx, right.ID, actor, actor)
	require.NoError(t, err)
	_, err = h.tasks.Pause(ctx, right.ID, &actor)
	require.NoError(t, err)

	// A started task of a future-activated job is not yet live.
	future, err := h.jobs.Create(ctx, h.version.ID, uuid.New(), "scheduled", nil, time.Now().Add(time.Hour))
	require.NoError(t, err)
	scheduled := h.taskByState(t, future.ID, "start")
	_, err = h.tasks.Start(ctx, scheduled.ID, actor, actor)
	require.NoError(t, err)

	inProgress, err := h.tasks.ListInProgress(ctx, ports.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, inProgress, 1)
	assert.Equal(t, left.ID, inProgress[0].ID)

	paused, err := h.tasks.ListPaused(ctx, ports.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, paused, 1)
	assert.Equal(t, right.ID, paused[0].ID)
}

func TestTaskAuditLog(t *testing.T) {
	def, states := fanOutGraph()
	h := setup(t, def, states)
	job := h.createJob(t)
	ctx := context.Background()
	actor := uuid.New()

	initial := h.taskByState(t, job.ID, "start")
	_, err := h.tasks.Start(ctx, initial.ID, actor, actor)
	require.NoError(t, err)
	_, err = h.tasks.Pause(ctx, initial.ID, &actor)
	require.NoError(t, err)
	_, err = h.tasks.Unpause(ctx, initial.ID)
	require.NoError(t, err)
	_, err = h.tasks.Finish(ctx, initial.ID, actor, nil)
	require.NoError(t, err)
	reopener := uuid.New()
	_, err = h.tasks.Reopen(ctx, initial.ID, reopener)
	require.NoError(t, err)

	logs, err := h.tasks.TaskLogs(ctx, initial.ID)
	require.NoError(t, err)
	require.Len(t, logs, 4, "unpause is not audited")

	actions := make([]domain.TaskAction, len(logs))
	for i, entry := range logs {
		actions[i] = entry.Action
		assert.Equal(t, job.ID, entry.JobID)
		assert.Equal(t, initial.ID, entry.TaskID)
	}
	assert.Equal(t, []domain.TaskAction{
		domain.ActionStarted, domain.ActionPaused, domain.ActionFinished, domain.ActionReopened,
	}, actions)
	assert.Equal(t, &actor, logs[0].UserID)
	assert.Equal(t, &reopener, logs[3].UserID)
}

func TestPauseUnpauseAbandon(t *testing.T) {
	def, states := fanOutGraph()
	h := setup(t, def, states)
	job := h.createJob(t)
	ctx := context.Background()
	actor := uuid.New()

	initial := h.taskByState(t, job.ID, "start")
	_, err := h.tasks.Pause(ctx, initial.ID, &actor)
	assert.ErrorIs(t, err, domain.ErrGuardViolation)

	_, err = h.tasks.Start(ctx, initial.ID, actor, actor)
	require.NoError(t, err)

	task, err := h.tasks.Pause(ctx, initial.ID, &actor)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaused, task.Status())

	task, err = h.tasks.Unpause(ctx, initial.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, task.Status())

	task, err = h.tasks.Abandon(ctx, initial.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusWaiting, task.Status())
	assert.Nil(t, task.UserID)
}

func TestReopen(t *testing.T) {
	def, states := fanOutGraph()
	h := setup(t, def, states)
	job := h.createJob(t)

	initial := h.taskByState(t, job.ID, "start")
	h.finish(t, initial.ID, nil)

	task, err := h.tasks.Reopen(context.Background(), initial.ID, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, task.Status())
	assert.Nil(t, task.FinishDatetime)
}

func TestChangeVersion(t *testing.T) {
	def, states := fanOutGraph()
	h := setup(t, def, states)
	job := h.createJob(t)
	ctx := context.Background()

	def2 := def
	def2.Version = 2
	reg := registry.New()
	for id, sd := range states {
		require.NoError(t, reg.Register(id, sd))
	}
	v2, err := builder.New(h.store, reg, minuteCal{}).Sync(ctx, def2)
	require.NoError(t, err)

	_, err = h.jobs.ChangeVersion(ctx, job.ID, v2.ID)
	assert.ErrorIs(t, err, domain.ErrCrossVersion)

	// Repointing to the version the job already runs on is a no-op.
	same, err := h.jobs.ChangeVersion(ctx, job.ID, h.version.ID)
	require.NoError(t, err)
	assert.Equal(t, h.version.ID, same.WorkflowVersionID)
}

func TestListViews(t *testing.T) {
	def, states := fanOutGraph()
	h := setup(t, def, states)
	job := h.createJob(t)
	ctx := context.Background()
	actor := uuid.New()

	h.finish(t, h.taskByState(t, job.ID, "start").ID, nil)
	left := h.taskByState(t, job.ID, "left")
	_, err := h.tasks.Start(ctx, left.ID, actor, actor)
	require.NoError(t, err)

	waiting, err := h.tasks.ListWaiting(ctx, ports.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, waiting, 1)
	assert.Equal(t, "right", waiting[0].State.Slug)

	assigned, err := h.tasks.ListAssigned(ctx, ports.TaskFilter{UserID: &actor})
	require.NoError(t, err)
	assert.Len(t, assigned, 1)
	assert.Equal(t, "left", assigned[0].State.Slug)

	finished, err := h.tasks.ListFinished(ctx, ports.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, finished, 1)
	assert.Equal(t, "start", finished[0].State.Slug)

	byLane, err := h.tasks.ListWaiting(ctx, ports.TaskFilter{Swimlanes: []string{"intake"}})
	require.NoError(t, err)
	assert.Empty(t, byLane, "the waiting task is not on the intake lane")
}
