package domain

import "time"

// SwitchOutcome classifies how a switch attempt ended.
type SwitchOutcome string

const (
	// OutcomePending marks an operation that has been appended to the
	// log but not yet finalized.
	OutcomePending SwitchOutcome = "pending"
	// OutcomeSuccess means the traffic selector now points at To.
	OutcomeSuccess SwitchOutcome = "success"
	// OutcomeRejected means a precondition failed and nothing was mutated.
	OutcomeRejected SwitchOutcome = "rejected"
	// OutcomeFailed means an infrastructure error interrupted the attempt;
	// the previously active version remains authoritative.
	OutcomeFailed SwitchOutcome = "failed"
)

// Rejection reasons reported on OutcomeRejected operations.
const (
	ReasonAlreadyActive      = "already active"
	ReasonTargetNotReady     = "target not ready"
	ReasonNoSwitchHistory    = "no switch history"
	ReasonNoPreviousVersion  = "no previous version"
	ReasonInvariantViolation = "invariant violation"
)

// SwitchOperation is the audit record for a single cut-over attempt.
// One is appended at the start of every attempt and finalized at the
// end; records are never mutated afterwards.
type SwitchOperation struct {
	ID string
	// Seq is assigned by the log on append and totally orders
	// operations, which is what rollback target selection relies on.
	Seq         int64
	From        Version // empty when no version was active
	To          Version
	RequestedAt time.Time
	CompletedAt time.Time
	Outcome     SwitchOutcome
	// Reason is set on rejections.
	Reason string
	// Error is set on failures.
	Error string
	// Snapshot carries the target fleet's state for not-ready
	// rejections, so callers can report partial state.
	Snapshot *FleetSnapshot
}

// Committed reports whether the operation changed the active version.
func (op SwitchOperation) Committed() bool {
	return op.Outcome == OutcomeSuccess
}
