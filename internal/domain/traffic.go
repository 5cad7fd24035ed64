package domain

import "time"

// TrafficState is the single source of truth for which fleet is active.
// It is owned by the TrafficSwitchController; every read of "current
// version" goes through it rather than re-deriving from pod labels.
type TrafficState struct {
	// ActiveVersion is empty when no fleet has ever received traffic.
	ActiveVersion  Version
	LastSwitchedAt time.Time
	// LastSwitchedBy is the ID of the SwitchOperation that committed
	// the current ActiveVersion, empty for derived initial state.
	LastSwitchedBy string
}

// HasActive reports whether any fleet currently receives traffic.
func (t TrafficState) HasActive() bool {
	return t.ActiveVersion != ""
}
