// Package builder synchronizes registered state definitions into persisted
// workflow-version graphs. Sync is an idempotent upsert: rerunning it against
// an unchanged definition set is a no-op, and timing changes propagate to the
// unfinished tasks of the touched states.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log"

	"gorm.io/gorm"

	"workflows/internal/core/ports"
	"workflows/internal/domain"
	"workflows/internal/registry"
)

type Builder struct {
	store    ports.Store
	registry *registry.Registry
	cal      domain.WorkCalendar
}

func New(store ports.Store, reg *registry.Registry, cal domain.WorkCalendar) *Builder {
	return &Builder{store: store, registry: reg, cal: cal}
}

// Sync materializes the workflow definition into one persisted version graph.
func (b *Builder) Sync(ctx context.Context, def registry.WorkflowDefinition) (*domain.WorkflowVersion, error) {
	defs, err := b.resolve(def)
	if err != nil {
		return nil, err
	}
	if err := b.validate(def, defs); err != nil {
		return nil, err
	}

	var version *domain.WorkflowVersion
	err = b.store.Transaction(ctx, func(tx ports.Store) error {
		workflow, err := b.syncWorkflow(ctx, tx, def)
		if err != nil {
			return err
		}
		version, err = b.syncVersion(ctx, tx, workflow, def.Version)
		if err != nil {
			return err
		}

		for i, id := range def.States {
			if err := b.syncState(ctx, tx, version, id, defs[i], id == def.Initial); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("builder: synced workflow %q version %d (%d states)", def.Slug, def.Version, len(def.States))
	return version, nil
}

func (b *Builder) resolve(def registry.WorkflowDefinition) ([]registry.StateDefinition, error) {
	defs := make([]registry.StateDefinition, len(def.States))
	for i, id := range def.States {
		sd, err := b.registry.Definition(id)
		if err != nil {
			return nil, err
		}
		defs[i] = sd
	}
	return defs, nil
}

func (b *Builder) validate(def registry.WorkflowDefinition, defs []registry.StateDefinition) error {
	if def.Initial == "" {
		return &domain.GraphError{Reference: def.Slug, Reason: "the workflow has no initial state"}
	}

	initialFound := false
	slugs := make(map[string]bool, len(defs))
	forms := make(map[string]bool)

	for i, sd := range defs {
		if def.States[i] == def.Initial {
			initialFound = true
		}
		if slugs[sd.Slug()] {
			return &domain.GraphError{
				Reference: sd.Slug(),
				Reason:    "two states share the same slug",
			}
		}
		slugs[sd.Slug()] = true

		if provider, ok := sd.(registry.FormProvider); ok {
			for slug := range provider.Forms() {
				if forms[slug] {
					return &domain.GraphError{
						Reference: slug,
						Reason:    "form slugs must be unique across the workflow",
					}
				}
				forms[slug] = true
			}
		}
	}

	if !initialFound {
		return &domain.GraphError{
			Reference: def.Initial,
			Reason:    "the initial state is not part of the workflow",
		}
	}
	return nil
}

func (b *Builder) syncWorkflow(ctx context.Context, tx ports.Store, def registry.WorkflowDefinition) (*domain.Workflow, error) {
	workflow, err := tx.Workflows().GetBySlug(ctx, def.Slug)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		workflow = domain.NewWorkflow(def.Slug, def.Description)
		return workflow, tx.Workflows().Create(ctx, workflow)
	}
	if err != nil {
		return nil, err
	}
	workflow.Description = def.Description
	return workflow, tx.Workflows().Save(ctx, workflow)
}

func (b *Builder) syncVersion(ctx context.Context, tx ports.Store, workflow *domain.Workflow, number int) (*domain.WorkflowVersion, error) {
	version, err := tx.Versions().GetByWorkflowAndVersion(ctx, workflow.ID, number)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		version = domain.NewWorkflowVersion(workflow.ID, number)
		version.Workflow = workflow
		return version, tx.Versions().Create(ctx, version)
	}
	if err != nil {
		return nil, err
	}
	version.Workflow = workflow
	return version, nil
}

func (b *Builder) syncState(ctx context.Context, tx ports.Store, version *domain.WorkflowVersion, definitionID string, sd registry.StateDefinition, isInitial bool) error {
	lanes, err := b.syncSwimlanes(ctx, tx, sd)
	if err != nil {
		return err
	}

	created := false
	state, err := tx.States().GetBySlug(ctx, version.ID, sd.Slug())
	if errors.Is(err, gorm.ErrRecordNotFound) {
		state = domain.NewState(version.ID, sd.Slug(), definitionID)
		created = true
	} else if err != nil {
		return err
	}

	state.Name = sd.Name()
	state.Description = sd.Description()
	state.DefinitionID = definitionID
	state.IsInitial = isInitial
	state.IsFinal = sd.IsFinal()
	state.DueTime = sd.DueTime()
	state.DueTimeWarning = sd.DueTimeWarning()
	state.MaxUnassignedTime = sd.MaxUnassignedTime()
	state.MaxUnassignedTimeWarning = sd.MaxUnassignedTimeWarning()
	if sd.Order() != 0 {
		state.Order = sd.Order()
	}

	if created {
		if err := tx.States().Create(ctx, state); err != nil {
			return err
		}
	} else if err := tx.States().Save(ctx, state); err != nil {
		return err
	}

	if err := tx.States().ReplaceSwimlanes(ctx, state, lanes); err != nil {
		return err
	}
	if err := b.syncActivities(ctx, tx, state, sd); err != nil {
		return err
	}

	// Timing parameters may have changed on an existing state; the due and
	// warning datetimes of its unfinished tasks follow.
	if !created {
		return b.recalculateTasks(ctx, tx, state)
	}
	return nil
}

func (b *Builder) syncSwimlanes(ctx context.Context, tx ports.Store, sd registry.StateDefinition) ([]domain.Swimlane, error) {
	slugs := sd.Swimlanes()
	lanes := make([]domain.Swimlane, 0, len(slugs))
	for _, slug := range slugs {
		if _, err := tx.Swimlanes().GetOrCreate(ctx, slug, slug); err != nil {
			return nil, err
		}
		lane, err := tx.Swimlanes().GetBySlug(ctx, slug)
		if err != nil {
			return nil, &domain.GraphError{
				Reference: slug,
				Reason:    fmt.Sprintf("the swimlane defined on %q was not found", sd.Slug()),
			}
		}
		lanes = append(lanes, *lane)
	}
	return lanes, nil
}

func (b *Builder) syncActivities(ctx context.Context, tx ports.Store, state *domain.State, sd registry.StateDefinition) error {
	provider, _ := sd.(registry.ActivityProvider)
	var configs map[string]registry.ActivityConfig
	if provider != nil {
		configs = provider.Activities()
	}

	for slug, config := range configs {
		activity, err := tx.Activities().GetOrCreate(ctx, state.ID, slug, config.Name)
		if err != nil {
			return err
		}
		for statusSlug, statusName := range config.Status {
			if _, err := tx.Activities().GetOrCreateStatus(ctx, activity.ID, statusSlug, statusName); err != nil {
				return err
			}
		}
	}

	// Activities removed from the definition stay in place for their
	// existing task checklists; flag them so the operator can clean up.
	existing, err := tx.Activities().FindByState(ctx, state.ID)
	if err != nil {
		return err
	}
	for i := range existing {
		config, ok := configs[existing[i].Slug]
		if !ok {
			log.Printf("builder: orphan activity %q on state %q", existing[i].Slug, state.Slug)
			continue
		}
		statuses, err := tx.Activities().FindStatuses(ctx, existing[i].ID)
		if err != nil {
			return err
		}
		for j := range statuses {
			if _, ok := config.Status[statuses[j].Slug]; !ok {
				log.Printf("builder: orphan status %q on activity %q on state %q",
					statuses[j].Slug, existing[i].Slug, state.Slug)
			}
		}
	}
	return nil
}

func (b *Builder) recalculateTasks(ctx context.Context, tx ports.Store, state *domain.State) error {
	tasks, err := tx.Tasks().FindUnfinishedByState(ctx, state.ID)
	if err != nil {
		return err
	}
	for _, task := range tasks {
		task.State = state
		task.Recalculate(b.cal)
		if err := tx.Tasks().Save(ctx, task); err != nil {
			return err
		}
	}
	return nil
}
