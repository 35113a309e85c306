package registry

import (
	"time"

	"gorm.io/datatypes"

	"workflows/internal/domain"
)

// Per-deployment fallbacks for state timing parameters, in minutes. States
// that do not override them inherit these through BaseState.
var (
	DefaultDueTime                  = 3 * 24 * 60
	DefaultDueTimeWarning           = 2 * 24 * 60
	DefaultMaxUnassignedTime        = 12 * 60
	DefaultMaxUnassignedTimeWarning = 12 * 60
)

// Successor describes one state to activate after a task finishes. A zero
// ActivatedAt means "now"; AdditionalDueTime extends the successor task's due
// window in minutes.
type Successor struct {
	Definition        string
	ActivatedAt       time.Time
	AdditionalDueTime int
}

// To is the bare successor reference: activate immediately, no extra due time.
func To(definitionID string) Successor {
	return Successor{Definition: definitionID}
}

// StateDefinition is the polymorphic transition code behind one graph node.
// Integrators implement it once per state and register it under a stable
// identifier; the builder materializes it into a State row per version.
type StateDefinition interface {
	Name() string
	Slug() string
	Description() string
	DueTime() int
	DueTimeWarning() int
	MaxUnassignedTime() int
	MaxUnassignedTimeWarning() int
	IsFinal() bool
	Order() int

	// Swimlanes are the work-queue tags the state's tasks are routed to.
	Swimlanes() []string

	// Required lists definition identifiers of predecessor states that must
	// all have a finished task before this state's task is created.
	Required() []string

	// Next returns the successor descriptors for a finishing task. The
	// returned order is the creation order; no sort is applied.
	Next(data datatypes.JSON, task *domain.Task) []Successor
}

// ActivityConfig declares one checklist activity and its allowed statuses,
// both keyed by slug.
type ActivityConfig struct {
	Name   string
	Status map[string]string
}

// ActivityProvider is implemented by definitions that attach activities to
// their state.
type ActivityProvider interface {
	Activities() map[string]ActivityConfig
}

// FormProvider is implemented by definitions that expose forms. Form slugs
// must be unique across a whole workflow; the builder enforces that.
type FormProvider interface {
	Forms() map[string]any
}

// BaseState supplies the deployment defaults; embed it and override what the
// state needs.
type BaseState struct{}

func (BaseState) Description() string           { return "" }
func (BaseState) DueTime() int                  { return DefaultDueTime }
func (BaseState) DueTimeWarning() int           { return DefaultDueTimeWarning }
func (BaseState) MaxUnassignedTime() int        { return DefaultMaxUnassignedTime }
func (BaseState) MaxUnassignedTimeWarning() int { return DefaultMaxUnassignedTimeWarning }
func (BaseState) IsFinal() bool                 { return false }
func (BaseState) Order() int                    { return 0 }
func (BaseState) Swimlanes() []string           { return nil }
func (BaseState) Required() []string            { return nil }
func (BaseState) Next(datatypes.JSON, *domain.Task) []Successor {
	return nil
}

// WorkflowDefinition names the states of one workflow version. Initial must
// be one of States; States are registered definition identifiers.
type WorkflowDefinition struct {
	Slug        string
	Description string
	Version     int
	Initial     string
	States      []string
}
