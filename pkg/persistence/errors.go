// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrAutomationNotFound indicates an automation was not found by the given identifier.
	ErrAutomationNotFound = errors.New("automation not found")

	// ErrActivationNotFound indicates an activation was not found by the given identifier.
	ErrActivationNotFound = errors.New("activation not found")

	// ErrActionStatusNotFound indicates no action record exists for the given key.
	ErrActionStatusNotFound = errors.New("action status not found")

	// ErrScheduleNotFound indicates a schedule was not found by the given identifier.
	ErrScheduleNotFound = errors.New("schedule not found")

	// ErrIdempotencyRecordNotFound indicates no record exists for the given key.
	ErrIdempotencyRecordNotFound = errors.New("idempotency record not found")
)

// StorageError wraps a storage-layer failure with operation context.
type StorageError struct {
	Op     string // Operation being performed (e.g., "SaveActivation")
	Entity string // Entity identifier if applicable
	Err    error  // Underlying error
}

func (e *StorageError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s failed for %s: %v", e.Op, e.Entity, e.Err)
	}

	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func (e *StorageError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStorageError creates a storage error with context.
func NewStorageError(op, entity string, err error) *StorageError {
	return &StorageError{Op: op, Entity: entity, Err: err}
}

// IsAutomationNotFound checks if an error indicates a missing automation.
func IsAutomationNotFound(err error) bool {
	return errors.Is(err, ErrAutomationNotFound)
}

// IsActivationNotFound checks if an error indicates a missing activation.
func IsActivationNotFound(err error) bool {
	return errors.Is(err, ErrActivationNotFound)
}

// IsActionStatusNotFound checks if an error indicates a missing action record.
func IsActionStatusNotFound(err error) bool {
	return errors.Is(err, ErrActionStatusNotFound)
}

// IsScheduleNotFound checks if an error indicates a missing schedule.
func IsScheduleNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound)
}

// IsIdempotencyRecordNotFound checks if an error indicates a missing idempotency record.
func IsIdempotencyRecordNotFound(err error) bool {
	return errors.Is(err, ErrIdempotencyRecordNotFound)
}
