package domain

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultPollInterval matches the cadence the deploy tooling has
	// always used between readiness checks.
	DefaultPollInterval = 5 * time.Second
	// DefaultReadinessDeadline is 30 polls at the default interval.
	DefaultReadinessDeadline = 150 * time.Second
)

// ReadinessProber polls one fleet until a readiness threshold holds or
// a deadline elapses. The poll interval is fixed rather than backed
// off; a production variant would cap an exponential backoff instead.
type ReadinessProber struct {
	Fleet        *FleetState
	PollInterval time.Duration // DefaultPollInterval when zero
	Deadline     time.Duration // DefaultReadinessDeadline when zero
}

// WaitUntilReady blocks until the fleet has at least minReady ready
// replicas. The first check happens immediately, then once per
// interval. On deadline it returns a *TimeoutError carrying the last
// snapshot. Cancelling ctx aborts only the wait; no cluster state is
// touched either way.
func (p *ReadinessProber) WaitUntilReady(ctx context.Context, version Version, minReady int32) (FleetSnapshot, error) {
	interval := p.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := p.Deadline
	if deadline <= 0 {
		deadline = DefaultReadinessDeadline
	}
	if minReady < 1 {
		minReady = 1
	}

	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last FleetSnapshot
	for {
		snap, err := p.Fleet.Snapshot(ctx, version)
		if err != nil {
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return last, &TimeoutError{Version: version, MinReady: minReady, LastSnapshot: last}
			}
			return last, err
		}
		last = snap
		if snap.ReadyAtLeast(minReady) {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return last, &TimeoutError{Version: version, MinReady: minReady, LastSnapshot: last}
			}
			return last, ctx.Err()
		case <-ticker.C:
		}
	}
}
