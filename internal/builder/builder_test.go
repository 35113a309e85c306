package builder

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"workflows/internal/core/memory"
	"workflows/internal/domain"
	"workflows/internal/registry"
)

type minuteCal struct{}

func (minuteCal) Advance(start time.Time, minutes int) time.Time {
	return start.Add(time.Duration(minutes) * time.Minute)
}

type testState struct {
	registry.BaseState
	name, slug string
	due        int
	final      bool
	lanes      []string
	activities map[string]registry.ActivityConfig
	forms      map[string]any
}

func (s testState) Name() string { return s.name }
func (s testState) Slug() string { return s.slug }
func (s testState) DueTime() int {
	if s.due != 0 {
		return s.due
	}
	return registry.DefaultDueTime
}
func (s testState) IsFinal() bool       { return s.final }
func (s testState) Swimlanes() []string { return s.lanes }
func (s testState) Activities() map[string]registry.ActivityConfig {
	return s.activities
}
func (s testState) Forms() map[string]any { return s.forms }

func definition() registry.WorkflowDefinition {
	return registry.WorkflowDefinition{
		Slug:        "sell-pizza",
		Description: "pizza fulfillment",
		Version:     1,
		Initial:     "pizza.receive",
		States:      []string{"pizza.receive", "pizza.deliver"},
	}
}

func newBuilder(t *testing.T, store *memory.Store, states map[string]registry.StateDefinition) *Builder {
	t.Helper()
	reg := registry.New()
	for id, def := range states {
		require.NoError(t, reg.Register(id, def))
	}
	return New(store, reg, minuteCal{})
}

func defaultStates() map[string]registry.StateDefinition {
	return map[string]registry.StateDefinition{
		"pizza.receive": testState{
			name:  "Receive order",
			slug:  "receive-order",
			due:   60,
			lanes: []string{"attendants"},
			activities: map[string]registry.ActivityConfig{
				"confirm-payment": {
					Name:   "Confirm payment",
					Status: map[string]string{"paid": "Paid", "refused": "Refused"},
				},
			},
		},
		"pizza.deliver": testState{
			name:  "Deliver pizza",
			slug:  "deliver-pizza",
			final: true,
			lanes: []string{"couriers"},
		},
	}
}

func TestSync(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	b := newBuilder(t, store, defaultStates())

	version, err := b.Sync(ctx, definition())
	require.NoError(t, err)
	assert.Equal(t, "sell-pizza.v1", version.Slug())

	states, err := store.States().FindByVersion(ctx, version.ID)
	require.NoError(t, err)
	require.Len(t, states, 2)

	initial, err := store.States().GetInitial(ctx, version.ID)
	require.NoError(t, err)
	assert.Equal(t, "receive-order", initial.Slug)
	assert.Equal(t, 60, initial.DueTime)
	assert.Equal(t, []string{"attendants"}, initial.SwimlaneSlugs())

	activities, err := store.Activities().FindByState(ctx, initial.ID)
	require.NoError(t, err)
	require.Len(t, activities, 1)
	statuses, err := store.Activities().FindStatuses(ctx, activities[0].ID)
	require.NoError(t, err)
	assert.Len(t, statuses, 2)

	final, err := store.States().GetBySlug(ctx, version.ID, "deliver-pizza")
	require.NoError(t, err)
	assert.True(t, final.IsFinal)
	assert.False(t, final.IsInitial)
}

func TestSyncIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	b := newBuilder(t, store, defaultStates())

	first, err := b.Sync(ctx, definition())
	require.NoError(t, err)
	second, err := b.Sync(ctx, definition())
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	states, err := store.States().FindByVersion(ctx, first.ID)
	require.NoError(t, err)
	assert.Len(t, states, 2)
}

func TestSyncNewVersion(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	b := newBuilder(t, store, defaultStates())

	v1, err := b.Sync(ctx, definition())
	require.NoError(t, err)

	def := definition()
	def.Version = 2
	v2, err := b.Sync(ctx, def)
	require.NoError(t, err)

	assert.NotEqual(t, v1.ID, v2.ID)
	assert.Equal(t, v1.WorkflowID, v2.WorkflowID)
	assert.Equal(t, "sell-pizza.v2", v2.Slug())
}

func TestSyncValidation(t *testing.T) {
	ctx := context.Background()

	t.Run("missing initial", func(t *testing.T) {
		b := newBuilder(t, memory.NewStore(), defaultStates())
		def := definition()
		def.Initial = ""
		_, err := b.Sync(ctx, def)
		assert.ErrorIs(t, err, domain.ErrGraphIntegrity)
	})

	t.Run("initial not in workflow", func(t *testing.T) {
		b := newBuilder(t, memory.NewStore(), defaultStates())
		def := definition()
		def.Initial = "pizza.bake"
		_, err := b.Sync(ctx, def)
		assert.ErrorIs(t, err, domain.ErrGraphIntegrity)
	})

	t.Run("unregistered state", func(t *testing.T) {
		b := newBuilder(t, memory.NewStore(), defaultStates())
		def := definition()
		def.States = append(def.States, "pizza.bake")
		_, err := b.Sync(ctx, def)
		assert.ErrorIs(t, err, domain.ErrGraphIntegrity)
	})

	t.Run("duplicate state slugs", func(t *testing.T) {
		states := defaultStates()
		states["pizza.duplicate"] = testState{name: "Duplicate", slug: "receive-order"}
		b := newBuilder(t, memory.NewStore(), states)
		def := definition()
		def.States = append(def.States, "pizza.duplicate")
		_, err := b.Sync(ctx, def)
		assert.ErrorIs(t, err, domain.ErrGraphIntegrity)
	})

	t.Run("duplicate form slugs", func(t *testing.T) {
		states := defaultStates()
		states["pizza.receive"] = testState{
			name: "Receive order", slug: "receive-order",
			forms: map[string]any{"order-form": nil},
		}
		states["pizza.deliver"] = testState{
			name: "Deliver pizza", slug: "deliver-pizza", final: true,
			forms: map[string]any{"order-form": nil},
		}
		b := newBuilder(t, memory.NewStore(), states)
		_, err := b.Sync(ctx, definition())
		assert.ErrorIs(t, err, domain.ErrGraphIntegrity)
	})
}

// A timing change on a state must propagate to the due datetimes of its
// unfinished tasks on the next sync.
func TestSyncRecalculatesUnfinishedTasks(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	b := newBuilder(t, store, defaultStates())
	version, err := b.Sync(ctx, definition())
	require.NoError(t, err)

	state, err := store.States().GetInitial(ctx, version.ID)
	require.NoError(t, err)

	job := domain.NewJob(version.ID, uuid.New(), "order 1", datatypes.JSON(nil), time.Now())
	require.NoError(t, store.Jobs().Create(ctx, job))
	task := domain.NewTask(job, state, nil, job.ActivatedAt, 0)
	task.Recalculate(minuteCal{})
	require.NoError(t, store.Tasks().Create(ctx, task))
	originalDue := *task.DueDatetime

	states := defaultStates()
	receive := states["pizza.receive"].(testState)
	receive.due = 120
	states["pizza.receive"] = receive

	_, err = newBuilder(t, store, states).Sync(ctx, definition())
	require.NoError(t, err)

	updated, err := store.Tasks().GetByID(ctx, task.ID)
	require.NoError(t, err)
	assert.True(t, updated.DueDatetime.After(originalDue),
		"due %s should move past %s", updated.DueDatetime, originalDue)
	assert.Equal(t, 120, updated.State.DueTime)
}
