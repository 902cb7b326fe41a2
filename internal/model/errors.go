package model

// #region imports
import (
	"errors"
	"fmt"
)

// #endregion imports

// #region validation-error

// ValidationError marks a malformed document or threat context.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// #endregion validation-error

// #region not-found-error

// NotFoundError marks a referenced entity that vanished between steps.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// #endregion not-found-error

// #region dependency-error

// DependencyError marks an unavailable collaborator (store, cache, classifier).
type DependencyError struct {
	Dep string
	Err error
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("dependency %s: %v", e.Dep, e.Err)
}

func (e *DependencyError) Unwrap() error { return e.Err }

// #endregion dependency-error

// #region guard-rejection

// GuardRejection is a deliberate no-op, not a failure: the collection-request
// guard refused generation (duplicate key or confidence below the floor).
type GuardRejection struct {
	Key    string
	Reason string
}

func (e *GuardRejection) Error() string {
	return fmt.Sprintf("guard rejected %s: %s", e.Key, e.Reason)
}

// #endregion guard-rejection

// #region helpers

// IsGuardRejection reports whether err is (or wraps) a GuardRejection.
func IsGuardRejection(err error) bool {
	var g *GuardRejection
	return errors.As(err, &g)
}

// IsDependencyError reports whether err is (or wraps) a DependencyError.
func IsDependencyError(err error) bool {
	var d *DependencyError
	return errors.As(err, &d)
}

// #endregion helpers
