package domain

import "fmt"

// NotFoundError represents a missing resource.
type NotFoundError struct {
	Resource string
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

// Is enables errors.Is matching on NotFoundError.
func (e NotFoundError) Is(target error) bool {
	_, ok := target.(NotFoundError)
	if ok {
		return true
	}
	_, ok = target.(*NotFoundError)
	return ok
}

// ErrNotFound is the sentinel error for missing resources.
var ErrNotFound = NotFoundError{}

// UnknownActionError reports an action kind with no catalog registration.
// Non-retryable: the catalog is configuration data, not transient state.
type UnknownActionError struct {
	Kind string
}

func (e UnknownActionError) Error() string {
	if e.Kind == "" {
		return "unknown action"
	}
	return fmt.Sprintf("unknown action %q", e.Kind)
}

func (e UnknownActionError) Is(target error) bool {
	_, ok := target.(UnknownActionError)
	if ok {
		return true
	}
	_, ok = target.(*UnknownActionError)
	return ok
}

// ErrUnknownAction is the sentinel error for unregistered action kinds.
var ErrUnknownAction = UnknownActionError{}

// DuplicateActionError reports a violated uniqueness rule. Benign from the
// caller's perspective: the first entry already exists and nothing was
// written.
type DuplicateActionError struct {
	Kind string
	User string
}

func (e DuplicateActionError) Error() string {
	if e.Kind == "" {
		return "duplicate action"
	}
	return fmt.Sprintf("duplicate action %q for user %s", e.Kind, e.User)
}

func (e DuplicateActionError) Is(target error) bool {
	_, ok := target.(DuplicateActionError)
	if ok {
		return true
	}
	_, ok = target.(*DuplicateActionError)
	return ok
}

// ErrDuplicateAction is the sentinel error for uniqueness violations.
var ErrDuplicateAction = DuplicateActionError{}

// ConflictError reports a transient concurrent-update failure. Callers
// retry the whole operation with backoff.
type ConflictError struct {
	Cause error
}

func (e ConflictError) Error() string {
	if e.Cause == nil {
		return "concurrent update conflict"
	}
	return fmt.Sprintf("concurrent update conflict: %v", e.Cause)
}

func (e ConflictError) Unwrap() error { return e.Cause }

func (e ConflictError) Is(target error) bool {
	_, ok := target.(ConflictError)
	if ok {
		return true
	}
	_, ok = target.(*ConflictError)
	return ok
}

// ErrConflict is the sentinel error for concurrent update conflicts.
var ErrConflict = ConflictError{}
