package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error categories. Callers branch with errors.Is; the concrete types below
// carry the context needed to report the failure to an end user.
var (
	ErrGuardViolation = errors.New("guard violation")
	ErrGraphIntegrity = errors.New("graph integrity error")
	ErrCrossVersion   = errors.New("cross version violation")
)

// GuardError is an attempted task transition whose precondition is unmet.
// It is surfaced to the caller and never retried.
type GuardError struct {
	TaskID uuid.UUID
	Op     string
	Reason string
}

func (e *GuardError) Error() string {
	return fmt.Sprintf("task %s: cannot %s: %s", e.TaskID, e.Op, e.Reason)
}

func (e *GuardError) Unwrap() error { return ErrGuardViolation }

// GraphError is a workflow-graph reference that cannot be resolved, such as
// an unknown successor definition or a missing swimlane.
type GraphError struct {
	Reference string
	Reason    string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("graph reference %q: %s", e.Reference, e.Reason)
}

func (e *GraphError) Unwrap() error { return ErrGraphIntegrity }

// CrossVersionError is a task/state or job/version pairing across workflow
// versions. It is rejected before anything is persisted.
type CrossVersionError struct {
	Reason string
}

func (e *CrossVersionError) Error() string { return e.Reason }

func (e *CrossVersionError) Unwrap() error { return ErrCrossVersion }
