package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates that a requested resource does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource with the same identity
	// already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidArgument indicates that a caller-provided value violates
	// a precondition.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrConflict indicates that a mutation carried a stale concurrency
	// token; the caller must re-read and retry from a fresh state.
	ErrConflict = errors.New("conflict")
)

// TimeoutError reports that a readiness deadline elapsed before the
// threshold was met. LastSnapshot is the final observed fleet state so
// callers can report partial progress rather than a bare timeout.
type TimeoutError struct {
	Version      Version
	MinReady     int32
	LastSnapshot FleetSnapshot
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("fleet %s not ready in time: %d/%d ready, want at least %d",
		e.Version, e.LastSnapshot.ReadyReplicas, e.LastSnapshot.DesiredReplicas, e.MinReady)
}

// InvariantViolationError reports that the traffic selector was observed
// pointing at a fleet with zero ready replicas after a switch committed.
// This should never occur; when it does, automated rollback loops must
// halt rather than flap.
type InvariantViolationError struct {
	OperationID string
	Active      Version
	Snapshot    FleetSnapshot
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("invariant violation: active fleet %s has zero ready replicas (operation %s)",
		e.Active, e.OperationID)
}
