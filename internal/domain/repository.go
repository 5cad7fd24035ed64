package domain

import "context"

// TrafficStateRepository persists the single authoritative traffic
// state row across process restarts.
type TrafficStateRepository interface {
	// Get returns the persisted state, ErrNotFound when the store has
	// never been initialized.
	Get(ctx context.Context) (TrafficState, error)
	Put(ctx context.Context, state TrafficState) error
}

// SwitchOperationRepository is the append-only switch audit log.
// Implementations assign a monotonic Seq on append; the log is never
// rewritten, only appended to and finalized.
type SwitchOperationRepository interface {
	// Append records the start of an attempt and returns the operation
	// with its Seq assigned.
	Append(ctx context.Context, op SwitchOperation) (SwitchOperation, error)

	// Complete finalizes a previously appended operation by ID.
	Complete(ctx context.Context, op SwitchOperation) error

	// List returns operations newest-first. limit <= 0 means all.
	List(ctx context.Context, limit int) ([]SwitchOperation, error)

	// LastSuccess returns the most recently committed operation,
	// ErrNotFound when no switch has ever succeeded.
	LastSuccess(ctx context.Context) (SwitchOperation, error)
}
