package domain

import (
	"errors"
	"fmt"
)

// ErrNoActiveAgent is returned when a message is sent before any agent
// has been selected.
var ErrNoActiveAgent = errors.New("no active agent")

// NotFoundError is returned when a named agent does not exist.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("agent %q not found", e.Name)
}

// DuplicateNameError is returned when registering a name that is taken.
type DuplicateNameError struct {
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("agent %q already exists", e.Name)
}

// ProtectedEntryError is returned when deleting a built-in agent.
type ProtectedEntryError struct {
	Name string
}

func (e *ProtectedEntryError) Error() string {
	return fmt.Sprintf("agent %q is built in and cannot be deleted", e.Name)
}

// ValidationError describes an invalid agent configuration.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// EngineError wraps a failure from the agent execution engine.
type EngineError struct {
	Agent string
	Model string
	Err   error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("agent %s (%s) failed: %v", e.Agent, e.Model, e.Err)
}

func (e *EngineError) Unwrap() error { return e.Err }

// LoggingError records a failed write to the interaction log. It is never
// returned to callers of the observer; it is kept for inspection.
type LoggingError struct {
	Op  string
	Err error
}

func (e *LoggingError) Error() string {
	return fmt.Sprintf("log %s: %v", e.Op, e.Err)
}

func (e *LoggingError) Unwrap() error { return e.Err }
