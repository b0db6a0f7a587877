// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrHITLRequestNotFound indicates a HITL request was not found.
	ErrHITLRequestNotFound = errors.New("hitl request not found")

	// ErrHITLAlreadyAnswered indicates a HITL request was answered twice.
	ErrHITLAlreadyAnswered = errors.New("hitl request already answered")

	// ErrHITLExpired indicates an answer arrived after the request expired.
	ErrHITLExpired = errors.New("hitl request expired")
)

// StorageError wraps storage failures with operation context.
type StorageError struct {
	Op     string // Operation being performed (e.g. "GetByID", "Save", "Prune")
	Entity string // Entity kind ("workflow", "execution", "hitl", "variable")
	ID     string // Entity ID if applicable
	Err    error  // Underlying error
}

func (e *StorageError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}

	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStorageError creates a storage error with context.
func NewStorageError(op, entity, id string, err error) *StorageError {
	return &StorageError{Op: op, Entity: entity, ID: id, Err: err}
}
