// Package memory provides an in-memory ports.Store for tests and embedded
// use. Transactions are serialized and do not roll back; the production
// implementation lives in the postgres repository package.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"workflows/internal/core/ports"
	"workflows/internal/domain"
)

type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	workflows  map[uuid.UUID]domain.Workflow
	versions   map[uuid.UUID]domain.WorkflowVersion
	states     map[uuid.UUID]domain.State
	swimlanes  map[uuid.UUID]domain.Swimlane
	jobs       map[uuid.UUID]domain.Job
	tasks      map[uuid.UUID]domain.Task
	activities map[uuid.UUID]domain.Activity
	statuses   map[uuid.UUID]domain.ActivityStatus
	taskActs   map[uuid.UUID]domain.TaskActivity
	taskLogs   map[uuid.UUID]domain.TaskLog

	// seq orders task modifications; the wall clock is too coarse to stand
	// in for updated_at inside one test run.
	seq     map[uuid.UUID]int64
	nextSeq int64
}

func NewStore() *Store {
	return &Store{
		workflows:  make(map[uuid.UUID]domain.Workflow),
		versions:   make(map[uuid.UUID]domain.WorkflowVersion),
		states:     make(map[uuid.UUID]domain.State),
		swimlanes:  make(map[uuid.UUID]domain.Swimlane),
		jobs:       make(map[uuid.UUID]domain.Job),
		tasks:      make(map[uuid.UUID]domain.Task),
		activities: make(map[uuid.UUID]domain.Activity),
		statuses:   make(map[uuid.UUID]domain.ActivityStatus),
		taskActs:   make(map[uuid.UUID]domain.TaskActivity),
		taskLogs:   make(map[uuid.UUID]domain.TaskLog),
		seq:        make(map[uuid.UUID]int64),
	}
}

func (s *Store) Workflows() ports.WorkflowRepository       { return &workflowRepo{s} }
func (s *Store) Versions() ports.WorkflowVersionRepository { return &versionRepo{s} }
func (s *Store) States() ports.StateRepository             { return &stateRepo{s} }
func (s *Store) Swimlanes() ports.SwimlaneRepository       { return &swimlaneRepo{s} }
func (s *Store) Jobs() ports.JobRepository                 { return &jobRepo{s} }
func (s *Store) Tasks() ports.TaskRepository               { return &taskRepo{s} }
func (s *Store) Activities() ports.ActivityRepository      { return &activityRepo{s} }
func (s *Store) TaskLogs() ports.TaskLogRepository         { return &taskLogRepo{s} }

func (s *Store) Transaction(ctx context.Context, fn func(ports.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	return fn(s)
}

func (s *Store) touch(id uuid.UUID) {
	s.nextSeq++
	s.seq[id] = s.nextSeq
}

// loadTask materializes a stored task with its associations, the way the
// postgres repository preloads them.
func (s *Store) loadTask(t domain.Task) *domain.Task {
	task := t
	if state, ok := s.states[task.StateID]; ok {
		loaded := s.loadState(state)
		task.State = &loaded
	}
	if job, ok := s.jobs[task.JobID]; ok {
		loaded := s.loadJob(job)
		task.Job = &loaded
	}
	return &task
}

func (s *Store) loadState(st domain.State) domain.State {
	lanes := make([]domain.Swimlane, len(st.Swimlanes))
	copy(lanes, st.Swimlanes)
	st.Swimlanes = lanes
	return st
}

func (s *Store) loadJob(j domain.Job) domain.Job {
	if version, ok := s.versions[j.WorkflowVersionID]; ok {
		if workflow, ok := s.workflows[version.WorkflowID]; ok {
			w := workflow
			version.Workflow = &w
		}
		v := version
		j.WorkflowVersion = &v
	}
	return j
}

type workflowRepo struct{ s *Store }

func (r *workflowRepo) Create(ctx context.Context, w *domain.Workflow) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.workflows[w.ID] = *w
	return nil
}

func (r *workflowRepo) Save(ctx context.Context, w *domain.Workflow) error {
	return r.Create(ctx, w)
}

func (r *workflowRepo) GetBySlug(ctx context.Context, slug string) (*domain.Workflow, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.workflows {
		if w.Slug == slug {
			found := w
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

type versionRepo struct{ s *Store }

func (r *versionRepo) Create(ctx context.Context, v *domain.WorkflowVersion) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *v
	stored.Workflow = nil
	stored.States = nil
	r.s.versions[v.ID] = stored
	return nil
}

func (r *versionRepo) Save(ctx context.Context, v *domain.WorkflowVersion) error {
	return r.Create(ctx, v)
}

func (r *versionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.versions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.load(v), nil
}

func (r *versionRepo) GetByWorkflowAndVersion(ctx context.Context, workflowID uuid.UUID, version int) (*domain.WorkflowVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, v := range r.s.versions {
		if v.WorkflowID == workflowID && v.Version == version {
			return r.load(v), nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *versionRepo) LastVersion(ctx context.Context, workflowID uuid.UUID) (*domain.WorkflowVersion, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var last *domain.WorkflowVersion
	for _, v := range r.s.versions {
		if v.WorkflowID != workflowID {
			continue
		}
		if last == nil || v.Version > last.Version {
			last = r.load(v)
		}
	}
	if last == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return last, nil
}

func (r *versionRepo) load(v domain.WorkflowVersion) *domain.WorkflowVersion {
	if w, ok := r.s.workflows[v.WorkflowID]; ok {
		workflow := w
		v.Workflow = &workflow
	}
	return &v
}

type stateRepo struct{ s *Store }

func (r *stateRepo) Create(ctx context.Context, st *domain.State) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.states[st.ID] = r.s.loadState(*st)
	return nil
}

func (r *stateRepo) Save(ctx context.Context, st *domain.State) error {
	return r.Create(ctx, st)
}

func (r *stateRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.State, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.states[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	loaded := r.s.loadState(st)
	return &loaded, nil
}

func (r *stateRepo) GetBySlug(ctx context.Context, versionID uuid.UUID, slug string) (*domain.State, error) {
	return r.find(func(st domain.State) bool {
		return st.WorkflowVersionID == versionID && st.Slug == slug
	})
}

func (r *stateRepo) GetByDefinition(ctx context.Context, versionID uuid.UUID, definitionID string) (*domain.State, error) {
	return r.find(func(st domain.State) bool {
		return st.WorkflowVersionID == versionID && st.DefinitionID == definitionID
	})
}

func (r *stateRepo) GetInitial(ctx context.Context, versionID uuid.UUID) (*domain.State, error) {
	return r.find(func(st domain.State) bool {
		return st.WorkflowVersionID == versionID && st.IsInitial
	})
}

func (r *stateRepo) find(match func(domain.State) bool) (*domain.State, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.states {
		if match(st) {
			loaded := r.s.loadState(st)
			return &loaded, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stateRepo) FindByVersion(ctx context.Context, versionID uuid.UUID) ([]domain.State, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var states []domain.State
	for _, st := range r.s.states {
		if st.WorkflowVersionID == versionID {
			states = append(states, r.s.loadState(st))
		}
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Order < states[j].Order })
	return states, nil
}

func (r *stateRepo) FindByDefinitions(ctx context.Context, versionID uuid.UUID, definitionIDs []string) ([]domain.State, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[string]int, len(definitionIDs))
	for i, id := range definitionIDs {
		wanted[id] = i
	}
	var states []domain.State
	for _, st := range r.s.states {
		if st.WorkflowVersionID != versionID {
			continue
		}
		if _, ok := wanted[st.DefinitionID]; ok {
			states = append(states, r.s.loadState(st))
		}
	}
	sort.Slice(states, func(i, j int) bool {
		return wanted[states[i].DefinitionID] < wanted[states[j].DefinitionID]
	})
	return states, nil
}

func (r *stateRepo) ReplaceSwimlanes(ctx context.Context, state *domain.State, lanes []domain.Swimlane) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.states[state.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	st.Swimlanes = append([]domain.Swimlane(nil), lanes...)
	r.s.states[state.ID] = st
	state.Swimlanes = st.Swimlanes
	return nil
}

type swimlaneRepo struct{ s *Store }

func (r *swimlaneRepo) GetBySlug(ctx context.Context, slug string) (*domain.Swimlane, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, lane := range r.s.swimlanes {
		if lane.Slug == slug {
			found := lane
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *swimlaneRepo) GetOrCreate(ctx context.Context, slug, name string) (*domain.Swimlane, error) {
	if lane, err := r.GetBySlug(ctx, slug); err == nil {
		return lane, nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	lane := domain.NewSwimlane(slug, name)
	r.s.swimlanes[lane.ID] = *lane
	return lane, nil
}

type jobRepo struct{ s *Store }

func (r *jobRepo) Create(ctx context.Context, j *domain.Job) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *j
	stored.Tasks = nil
	stored.WorkflowVersion = nil
	r.s.jobs[j.ID] = stored
	return nil
}

func (r *jobRepo) Save(ctx context.Context, j *domain.Job) error {
	return r.Create(ctx, j)
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	j, ok := r.s.jobs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	loaded := r.s.loadJob(j)
	return &loaded, nil
}

func (r *jobRepo) HasTasks(ctx context.Context, jobID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.tasks {
		if t.JobID == jobID {
			return true, nil
		}
	}
	return false, nil
}

type taskRepo struct{ s *Store }

func (r *taskRepo) store(t *domain.Task) {
	stored := *t
	stored.Job = nil
	stored.State = nil
	stored.UpdatedAt = time.Now()
	r.s.tasks[t.ID] = stored
	r.s.touch(t.ID)
}

func (r *taskRepo) Create(ctx context.Context, t *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	r.store(t)
	return nil
}

func (r *taskRepo) Save(ctx context.Context, t *domain.Task) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.store(t)
	return nil
}

func (r *taskRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tasks[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return r.s.loadTask(t), nil
}

func (r *taskRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	return r.GetByID(ctx, id)
}

func (r *taskRepo) FindByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Task, error) {
	loaded := r.collect(func(t domain.Task) bool { return t.JobID == jobID })
	tasks := make([]domain.Task, len(loaded))
	for i, t := range loaded {
		tasks[i] = *t
	}
	return tasks, nil
}

func (r *taskRepo) FindActiveByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Task, error) {
	return r.collect(func(t domain.Task) bool { return t.JobID == jobID && !t.IsFinished }), nil
}

func (r *taskRepo) LockActiveByJob(ctx context.Context, jobID uuid.UUID) ([]*domain.Task, error) {
	return r.FindActiveByJob(ctx, jobID)
}

func (r *taskRepo) collect(match func(domain.Task) bool) []*domain.Task {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var tasks []*domain.Task
	for _, t := range r.s.tasks {
		if match(t) {
			tasks = append(tasks, r.s.loadTask(t))
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].CreatedAt.Before(tasks[j].CreatedAt) })
	return tasks
}

func (r *taskRepo) LastByJobAndState(ctx context.Context, jobID, stateID uuid.UUID) (*domain.Task, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var last *domain.Task
	var lastSeq int64 = -1
	for _, t := range r.s.tasks {
		if t.JobID != jobID || t.StateID != stateID {
			continue
		}
		if seq := r.s.seq[t.ID]; seq > lastSeq {
			lastSeq = seq
			last = r.s.loadTask(t)
		}
	}
	if last == nil {
		return nil, gorm.ErrRecordNotFound
	}
	return last, nil
}

func (r *taskRepo) AnyFinished(ctx context.Context, jobID uuid.UUID, stateIDs []uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	wanted := make(map[uuid.UUID]bool, len(stateIDs))
	for _, id := range stateIDs {
		wanted[id] = true
	}
	for _, t := range r.s.tasks {
		if t.JobID == jobID && t.IsFinished && wanted[t.StateID] {
			return true, nil
		}
	}
	return false, nil
}

func (r *taskRepo) FindUnfinishedByState(ctx context.Context, stateID uuid.UUID) ([]*domain.Task, error) {
	return r.collect(func(t domain.Task) bool { return t.StateID == stateID && !t.IsFinished }), nil
}

func (r *taskRepo) FindWaiting(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	return r.filtered(filter, func(t *domain.Task) bool {
		return t.UserID == nil && !t.IsFinished
	}), nil
}

func (r *taskRepo) FindAssigned(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	return r.filtered(filter, func(t *domain.Task) bool {
		return t.UserID != nil && !t.IsFinished
	}), nil
}

func (r *taskRepo) FindFinished(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	return r.filtered(filter, func(t *domain.Task) bool { return t.IsFinished }), nil
}

func (r *taskRepo) FindInProgress(ctx context.Context, filter ports.TaskFilter, now time.Time) ([]domain.Task, error) {
	return r.filtered(filter, func(t *domain.Task) bool {
		return t.UserID != nil && !t.IsFinished && !t.IsPaused && !t.ActivatedAt.After(now)
	}), nil
}

func (r *taskRepo) FindPaused(ctx context.Context, filter ports.TaskFilter) ([]domain.Task, error) {
	return r.filtered(filter, func(t *domain.Task) bool { return t.IsPaused }), nil
}

func (r *taskRepo) filtered(filter ports.TaskFilter, match func(*domain.Task) bool) []domain.Task {
	loaded := r.collect(func(domain.Task) bool { return true })
	var tasks []domain.Task
	for _, t := range loaded {
		if !match(t) {
			continue
		}
		if filter.JobID != nil && t.JobID != *filter.JobID {
			continue
		}
		if filter.UserID != nil && (t.UserID == nil || *t.UserID != *filter.UserID) {
			continue
		}
		if filter.WorkflowSlug != "" {
			if t.Job == nil || t.Job.WorkflowVersion == nil || t.Job.WorkflowVersion.Workflow == nil ||
				t.Job.WorkflowVersion.Workflow.Slug != filter.WorkflowSlug {
				continue
			}
		}
		if len(filter.Swimlanes) > 0 && !hasLane(t, filter.Swimlanes) {
			continue
		}
		tasks = append(tasks, *t)
	}
	return tasks
}

func hasLane(t *domain.Task, lanes []string) bool {
	if t.State == nil {
		return false
	}
	for _, lane := range lanes {
		for _, attached := range t.State.Swimlanes {
			if attached.Slug == lane {
				return true
			}
		}
	}
	return false
}

func (r *taskRepo) FindLate(ctx context.Context, now time.Time) ([]domain.Task, error) {
	return r.filtered(ports.TaskFilter{}, func(t *domain.Task) bool {
		if t.DueDatetime == nil {
			return false
		}
		if t.IsFinished {
			return t.FinishDatetime != nil && t.FinishDatetime.After(*t.DueDatetime)
		}
		return t.DueDatetime.Before(now)
	}), nil
}

func (r *taskRepo) FindWarning(ctx context.Context, now time.Time) ([]domain.Task, error) {
	return r.filtered(ports.TaskFilter{}, func(t *domain.Task) bool {
		if t.DueDatetime == nil || t.WarningDatetime == nil {
			return false
		}
		if t.IsFinished {
			return t.FinishDatetime != nil &&
				!t.FinishDatetime.After(*t.DueDatetime) &&
				t.FinishDatetime.After(*t.WarningDatetime)
		}
		return t.WarningDatetime.Before(now) && t.DueDatetime.After(now)
	}), nil
}

func (r *taskRepo) FindOnTime(ctx context.Context, now time.Time) ([]domain.Task, error) {
	return r.filtered(ports.TaskFilter{}, func(t *domain.Task) bool {
		if t.DueDatetime == nil || t.WarningDatetime == nil {
			return false
		}
		if t.IsFinished {
			return t.FinishDatetime != nil && !t.FinishDatetime.After(*t.DueDatetime)
		}
		return t.WarningDatetime.After(now)
	}), nil
}

type taskLogRepo struct{ s *Store }

func (r *taskLogRepo) Create(ctx context.Context, log *domain.TaskLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	r.s.taskLogs[log.ID] = *log
	return nil
}

func (r *taskLogRepo) FindByTask(ctx context.Context, taskID uuid.UUID) ([]domain.TaskLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var logs []domain.TaskLog
	for _, log := range r.s.taskLogs {
		if log.TaskID == taskID {
			logs = append(logs, log)
		}
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].CreatedAt.Before(logs[j].CreatedAt) })
	return logs, nil
}

type activityRepo struct{ s *Store }

func (r *activityRepo) GetOrCreate(ctx context.Context, stateID uuid.UUID, slug, name string) (*domain.Activity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.activities {
		if a.StateID == stateID && a.Slug == slug {
			found := a
			return &found, nil
		}
	}
	a := domain.NewActivity(stateID, slug, name)
	r.s.activities[a.ID] = *a
	return a, nil
}

func (r *activityRepo) GetOrCreateStatus(ctx context.Context, activityID uuid.UUID, slug, name string) (*domain.ActivityStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.statuses {
		if st.ActivityID == activityID && st.Slug == slug {
			found := st
			return &found, nil
		}
	}
	st := domain.NewActivityStatus(activityID, slug, name)
	r.s.statuses[st.ID] = *st
	return st, nil
}

func (r *activityRepo) FindByState(ctx context.Context, stateID uuid.UUID) ([]domain.Activity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var activities []domain.Activity
	for _, a := range r.s.activities {
		if a.StateID == stateID {
			activities = append(activities, a)
		}
	}
	sort.Slice(activities, func(i, j int) bool { return activities[i].Slug < activities[j].Slug })
	return activities, nil
}

func (r *activityRepo) FindStatuses(ctx context.Context, activityID uuid.UUID) ([]domain.ActivityStatus, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var statuses []domain.ActivityStatus
	for _, st := range r.s.statuses {
		if st.ActivityID == activityID {
			statuses = append(statuses, st)
		}
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Slug < statuses[j].Slug })
	return statuses, nil
}

func (r *activityRepo) CreateTaskActivity(ctx context.Context, ta *domain.TaskActivity) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored := *ta
	stored.Activity = nil
	stored.Status = nil
	r.s.taskActs[ta.ID] = stored
	return nil
}

func (r *activityRepo) FindTaskActivities(ctx context.Context, taskID uuid.UUID) ([]domain.TaskActivity, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var taskActivities []domain.TaskActivity
	for _, ta := range r.s.taskActs {
		if ta.TaskID == taskID {
			if a, ok := r.s.activities[ta.ActivityID]; ok {
				activity := a
				ta.Activity = &activity
			}
			taskActivities = append(taskActivities, ta)
		}
	}
	sort.Slice(taskActivities, func(i, j int) bool {
		return taskActivities[i].CreatedAt.Before(taskActivities[j].CreatedAt)
	})
	return taskActivities, nil
}
