package domain

import (
	"time"

	"github.com/samber/lo"
)

// PodPhase mirrors the lifecycle phase a cluster reports for a replica pod.
type PodPhase string

const (
	PodPending   PodPhase = "Pending"
	PodRunning   PodPhase = "Running"
	PodSucceeded PodPhase = "Succeeded"
	PodFailed    PodPhase = "Failed"
	PodUnknown   PodPhase = "Unknown"
)

// PodStatus is the per-pod view used for readiness decisions. Ready is
// the health-check verdict; a Running pod may still be unready.
type PodStatus struct {
	Name  string
	Phase PodPhase
	Ready bool
}

// FleetInfo describes a fleet's declared spec as known to the cluster.
type FleetInfo struct {
	DesiredReplicas int32
	Image           string
}

// FleetSnapshot is an immutable point-in-time view of one fleet.
// Each query produces a fresh snapshot; snapshots are never mutated
// in place, so a half-updated view can never be observed.
type FleetSnapshot struct {
	Version         Version
	DesiredReplicas int32
	ReadyReplicas   int32
	Pods            []PodStatus
	ObservedAt      time.Time
}

// ReadyAtLeast reports whether the readiness threshold holds.
func (s FleetSnapshot) ReadyAtLeast(min int32) bool {
	return s.ReadyReplicas >= min
}

// PhaseCounts aggregates the snapshot's pods by phase, for status output.
func (s FleetSnapshot) PhaseCounts() map[PodPhase]int {
	return lo.CountValuesBy(s.Pods, func(p PodStatus) PodPhase { return p.Phase })
}
