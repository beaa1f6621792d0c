// Package services provides the business operations over the version graph,
// the parameter catalog, and subnode instances, plus the standardized error
// taxonomy the web layer maps to HTTP statuses.
package services

import (
	"errors"
	"fmt"

	"github.com/nodeflow/nodeflow/pkg/models"
	"github.com/nodeflow/nodeflow/pkg/persistence"
)

// Validation errors (400 Bad Request).
var (
	ErrInvalidRequest       = errors.New("invalid request")
	ErrFamilyNameRequired   = errors.New("family name is required")
	ErrParameterKeyRequired = errors.New("parameter key is required")
	ErrSubNodeNameRequired  = errors.New("subnode name is required")
	ErrSameFamilyLink       = errors.New("cannot link versions of the same family")
	ErrNoFamilyRelationship = errors.New("parent family does not declare the child family")
	ErrChildNotPublished    = errors.New("child version must be published to be linked")
)

// Invalid-state errors (422 Unprocessable Entity).
var (
	ErrScriptRequired       = errors.New("version has no script reference")
	ErrVersionNotDraft      = errors.New("only draft versions can be modified")
	ErrVersionNotPublished  = errors.New("version is not published")
	ErrRollbackIneligible   = errors.New("rollback target must be published or archived")
	ErrSubNodeDeployed      = errors.New("deployed subnodes are immutable")
	ErrExecutionNotRunning  = errors.New("execution is not running")
	ErrParameterDeactivated = errors.New("parameter is deactivated")
)

// Conflict errors (409 Conflict).
var (
	ErrCannotDeletePublished = errors.New("cannot delete the published version")
	ErrCannotDeleteOnly      = errors.New("cannot delete the only version of a family")
	ErrVersionHasExecutions  = errors.New("version has execution records")
	ErrFamilyHasVersions     = errors.New("family cannot be renamed once versions exist")
	ErrParameterInUse        = errors.New("parameter is referenced by versions or subnodes")
)

// Precondition errors (412 Precondition Failed).
var (
	ErrNoPublishedVersion = errors.New("family has no published version")
)

// ServiceError wraps service-level errors with operation context.
type ServiceError struct {
	Op      string // Operation name
	Message string // Human-readable message
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewServiceError creates a service error with context.
func NewServiceError(op, message string, err error) *ServiceError {
	return &ServiceError{Op: op, Message: message, Err: err}
}

// IsValidationError checks if an error is a validation error that should
// return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrFamilyNameRequired) ||
		errors.Is(err, ErrParameterKeyRequired) ||
		errors.Is(err, ErrSubNodeNameRequired) ||
		errors.Is(err, ErrSameFamilyLink) ||
		errors.Is(err, ErrNoFamilyRelationship) ||
		errors.Is(err, ErrChildNotPublished) ||
		errors.Is(err, models.ErrTypeMismatch) ||
		errors.Is(err, models.ErrUnknownDatatype)
}

// IsInvalidStateError checks if an error is a lifecycle violation that should
// return HTTP 422.
func IsInvalidStateError(err error) bool {
	return errors.Is(err, ErrScriptRequired) ||
		errors.Is(err, ErrVersionNotDraft) ||
		errors.Is(err, ErrVersionNotPublished) ||
		errors.Is(err, ErrRollbackIneligible) ||
		errors.Is(err, ErrSubNodeDeployed) ||
		errors.Is(err, ErrExecutionNotRunning) ||
		errors.Is(err, ErrParameterDeactivated)
}

// IsConflictError checks if an error is a business conflict that should
// return HTTP 409. Store-level duplicates classify here too.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrCannotDeletePublished) ||
		errors.Is(err, ErrCannotDeleteOnly) ||
		errors.Is(err, ErrVersionHasExecutions) ||
		errors.Is(err, ErrFamilyHasVersions) ||
		errors.Is(err, ErrParameterInUse) ||
		persistence.IsDuplicate(err)
}

// IsPreconditionError checks if an error is a failed precondition that should
// return HTTP 412.
func IsPreconditionError(err error) bool {
	return errors.Is(err, ErrNoPublishedVersion)
}

// IsNotFoundError checks if an error is a missing-entity error that should
// return HTTP 404.
func IsNotFoundError(err error) bool {
	return persistence.IsNotFound(err)
}
