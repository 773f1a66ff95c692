package riskerr

import (
	"fmt"
)

// Category classifies an engine error. Business outcomes (rejected trades,
// breaker trips) are never errors; the only fatal category is configuration.
type Category string

const (
	// CategoryConfiguration marks invalid risk parameters detected at
	// startup. The engine must refuse to start on these.
	CategoryConfiguration Category = "CONFIG"

	// CategoryInput marks malformed snapshots handed in by a collaborator
	// (NaN prices, negative quantities). Recoverable: the caller supplies a
	// fresh snapshot.
	CategoryInput Category = "INPUT"

	// CategoryCollaborator marks failures in an external adapter (exchange
	// snapshot fetch, alert delivery). Never fatal to the engine.
	CategoryCollaborator Category = "COLLABORATOR"
)

// EngineError is a categorized error with component context
type EngineError struct {
	Category   Category
	Component  string
	Operation  string
	Message    string
	Underlying error
}

// Error implements the error interface
func (e *EngineError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Operation, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Operation, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *EngineError) Unwrap() error {
	return e.Underlying
}

// IsFatal reports whether the process must not continue with this error
func (e *EngineError) IsFatal() bool {
	return e.Category == CategoryConfiguration
}

// New creates a new categorized engine error
func New(category Category, component, operation, message string) *EngineError {
	return &EngineError{
		Category:  category,
		Component: component,
		Operation: operation,
		Message:   message,
	}
}

// Wrap wraps an existing error with engine error context
func Wrap(err error, category Category, component, operation string) *EngineError {
	return &EngineError{
		Category:   category,
		Component:  component,
		Operation:  operation,
		Message:    "operation failed",
		Underlying: err,
	}
}

// Configf builds a configuration error; these are fatal at startup
func Configf(component, format string, args ...interface{}) *EngineError {
	return &EngineError{
		Category:  CategoryConfiguration,
		Component: component,
		Operation: "validate",
		Message:   fmt.Sprintf(format, args...),
	}
}
