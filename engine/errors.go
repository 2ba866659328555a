package engine

import (
	"errors"
	"fmt"
)

// Error kinds the engine reports. Callers branch with errors.Is and map them
// to transport-level codes; none of them indicate a bug.
var (
	// ErrNotFound: missing project, party role, negotiation or meeting.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a non-cancelled negotiation already exists for the
	// (project, capital party) pair. The caller should branch to the
	// follow-up flow instead.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument: the request itself is bad, e.g. a meeting date
	// in the past.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrInvalidState: the negotiation exists but the operation is not
	// legal at its current stage.
	ErrInvalidState = errors.New("invalid state")
	// ErrDependencyFailure: an external collaborator (room provisioning)
	// failed; nothing was persisted.
	ErrDependencyFailure = errors.New("dependency failure")
)

func notFoundf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func conflictf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

func invalidArgumentf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidArgument)...)
}

func invalidStatef(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvalidState)...)
}

func dependencyFailuref(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrDependencyFailure)...)
}
