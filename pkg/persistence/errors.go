// Package persistence provides standardized error types for persistence operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrParameterNotFound indicates a catalog parameter was not found.
	ErrParameterNotFound = errors.New("parameter not found")

	// ErrFamilyNotFound indicates a node family was not found.
	ErrFamilyNotFound = errors.New("node family not found")

	// ErrVersionNotFound indicates a node version was not found.
	ErrVersionNotFound = errors.New("node version not found")

	// ErrPublishedVersionNotFound indicates the family has no published version.
	ErrPublishedVersionNotFound = errors.New("published version not found")

	// ErrSubNodeNotFound indicates a subnode instance was not found.
	ErrSubNodeNotFound = errors.New("subnode not found")

	// ErrExecutionNotFound indicates an execution record was not found.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrExecutionFinished indicates an update targeted a record already in
	// a terminal state. Terminal states are settled exactly once.
	ErrExecutionFinished = errors.New("execution already finished")

	// ErrDuplicateParameterKey indicates a catalog key collision.
	ErrDuplicateParameterKey = errors.New("parameter key already exists")

	// ErrDuplicateFamilyName indicates a family name collision.
	ErrDuplicateFamilyName = errors.New("family name already exists")

	// ErrDuplicateLink indicates the (parent, child) version pair is already linked.
	ErrDuplicateLink = errors.New("version link already exists")

	// ErrDuplicateRelationship indicates the (parent, child) family pair is already declared.
	ErrDuplicateRelationship = errors.New("family relationship already exists")

	// ErrDuplicateSubNodeName indicates a (family, name, version) collision.
	ErrDuplicateSubNodeName = errors.New("subnode name already exists")
)

// StoreError wraps repository errors with operation context.
type StoreError struct {
	Op     string // Operation being performed (e.g., "Publish", "Save", "Delete")
	Entity string // Entity kind (e.g., "version", "family")
	ID     string // Entity identifier, if applicable
	Err    error  // Underlying error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s operation failed for %s %s: %v", e.Op, e.Entity, e.ID, e.Err)
	}

	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.Entity, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// Is implements error comparison for store errors.
func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new store error with context.
func NewStoreError(op, entity, id string, err error) *StoreError {
	return &StoreError{
		Op:     op,
		Entity: entity,
		ID:     id,
		Err:    err,
	}
}

// IsNotFound checks if an error indicates any missing entity.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrParameterNotFound) ||
		errors.Is(err, ErrFamilyNotFound) ||
		errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, ErrPublishedVersionNotFound) ||
		errors.Is(err, ErrSubNodeNotFound) ||
		errors.Is(err, ErrExecutionNotFound)
}

// IsDuplicate checks if an error indicates a uniqueness violation.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicateParameterKey) ||
		errors.Is(err, ErrDuplicateFamilyName) ||
		errors.Is(err, ErrDuplicateLink) ||
		errors.Is(err, ErrDuplicateRelationship) ||
		errors.Is(err, ErrDuplicateSubNodeName)
}
