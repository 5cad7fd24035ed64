package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// FleetState projects live cluster data into immutable snapshots.
// It deliberately caches nothing: staleness is a correctness hazard for
// the switch safety check, so every snapshot reflects a fresh query.
type FleetState struct {
	Client ClusterClient
	Now    func() time.Time
}

// Snapshot returns a fresh point-in-time view of one fleet. A fleet
// that has never been deployed is reported as an empty snapshot rather
// than an error, so status can always show both colors.
func (f *FleetState) Snapshot(ctx context.Context, version Version) (FleetSnapshot, error) {
	snap := FleetSnapshot{Version: version, ObservedAt: f.now()}

	info, err := f.Client.GetFleet(ctx, version)
	if errors.Is(err, ErrNotFound) {
		return snap, nil
	}
	if err != nil {
		return FleetSnapshot{}, fmt.Errorf("get fleet %s: %w", version, err)
	}
	snap.DesiredReplicas = info.DesiredReplicas

	pods, err := f.Client.GetPods(ctx, version)
	if err != nil {
		return FleetSnapshot{}, fmt.Errorf("get pods for %s: %w", version, err)
	}
	snap.Pods = pods
	snap.ReadyReplicas = int32(lo.CountBy(pods, func(p PodStatus) bool { return p.Ready }))
	return snap, nil
}

func (f *FleetState) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}
