package core

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned by Registry.Call for an unknown tool name.
	ErrToolNotFound = errors.New("tool not found")
	// ErrInvalidToolSpec is returned by Registry.Register for malformed specs.
	ErrInvalidToolSpec = errors.New("invalid tool spec")
	// ErrInvalidArguments is returned by typed capabilities whose arguments fail schema validation.
	ErrInvalidArguments = errors.New("invalid tool arguments")
	// ErrInvalidMaxSteps is returned by Agent.Run for a negative step budget.
	ErrInvalidMaxSteps = errors.New("max steps must be >= 0")
	// ErrUnknownAction is reported when a policy returns an action of unknown type.
	ErrUnknownAction = errors.New("unknown action type")
)

// ToolNotFoundError identifies the missing tool. It matches ErrToolNotFound with errors.Is.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("%s: %q", ErrToolNotFound, e.Name)
}

func (e *ToolNotFoundError) Is(target error) bool {
	return target == ErrToolNotFound
}

// CapabilityError wraps a failure raised by a tool's own logic, including recovered panics.
type CapabilityError struct {
	Tool string
	Err  error
}

func (e *CapabilityError) Error() string {
	return e.Err.Error()
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}
