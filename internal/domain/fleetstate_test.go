package domain_test

import (
	"context"
	"testing"
	"time"

	"github.com/vellankikoti/cutover/internal/domain"
	"github.com/vellankikoti/cutover/internal/infrastructure/fakecluster"
)

func TestSnapshotMissingFleet(t *testing.T) {
	observed := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	fleet := &domain.FleetState{
		Client: fakecluster.New(),
		Now:    func() time.Time { return observed },
	}

	snap, err := fleet.Snapshot(context.Background(), domain.VersionBlue)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Version != domain.VersionBlue {
		t.Errorf("Version = %q, want blue", snap.Version)
	}
	if snap.DesiredReplicas != 0 || snap.ReadyReplicas != 0 || len(snap.Pods) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
	if !snap.ObservedAt.Equal(observed) {
		t.Errorf("ObservedAt = %v, want %v", snap.ObservedAt, observed)
	}
}

func TestSnapshotCountsReadyPods(t *testing.T) {
	cluster := fakecluster.New()
	cluster.SetFleet(domain.VersionGreen, "app:v2", 4, 2)
	fleet := &domain.FleetState{Client: cluster}

	snap, err := fleet.Snapshot(context.Background(), domain.VersionGreen)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.DesiredReplicas != 4 {
		t.Errorf("DesiredReplicas = %d, want 4", snap.DesiredReplicas)
	}
	if snap.ReadyReplicas != 2 {
		t.Errorf("ReadyReplicas = %d, want 2", snap.ReadyReplicas)
	}
	if len(snap.Pods) != 4 {
		t.Errorf("Pods len = %d, want 4", len(snap.Pods))
	}

	counts := snap.PhaseCounts()
	if counts[domain.PodRunning] != 2 || counts[domain.PodPending] != 2 {
		t.Errorf("PhaseCounts = %v, want 2 Running and 2 Pending", counts)
	}
}

func TestReadyAtLeast(t *testing.T) {
	snap := domain.FleetSnapshot{ReadyReplicas: 2}
	if !snap.ReadyAtLeast(2) {
		t.Error("ReadyAtLeast(2) = false, want true")
	}
	if snap.ReadyAtLeast(3) {
		t.Error("ReadyAtLeast(3) = true, want false")
	}
}
