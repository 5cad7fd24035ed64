package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultSwitchAttempts bounds compare-and-swap retries when the live
// selector moves underneath a switch.
const DefaultSwitchAttempts = 3

// TrafficSwitchController decides whether a cut-over is legal, performs
// it, and records the outcome. It owns TrafficState: mutation happens
// only here, under a single-writer lock, and the cluster-side selector
// patch carries a compare-and-swap token so a second uncoordinated
// process cannot race it either.
type TrafficSwitchController struct {
	Client  ClusterClient
	Fleet   *FleetState
	Traffic TrafficStateRepository
	Ops     SwitchOperationRepository

	// MinReady is the readiness threshold a target must meet before it
	// may receive traffic. Defaults to 1.
	MinReady int32
	// RequireAllReady raises the threshold to the target's desired
	// replica count, for stricter environments.
	RequireAllReady bool
	// MaxAttempts bounds CAS retries. Defaults to DefaultSwitchAttempts.
	MaxAttempts int

	Now   func() time.Time
	NewID func() string

	mu sync.Mutex
}

// CurrentState returns the authoritative traffic state, deriving and
// persisting it from the live selector the first time the store is used.
func (c *TrafficSwitchController) CurrentState(ctx context.Context) (TrafficState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentStateLocked(ctx)
}

// Switch attempts to repoint traffic at target. Rejections (already
// active, target not ready) finalize the operation and return a nil
// error; infrastructure failures return the operation alongside the
// cause. TrafficState is only updated after the cluster mutation is
// confirmed, and the success record is appended after that.
func (c *TrafficSwitchController) Switch(ctx context.Context, target Version) (SwitchOperation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	state, err := c.currentStateLocked(ctx)
	if err != nil {
		return SwitchOperation{}, err
	}

	op := SwitchOperation{
		ID:          c.newID(),
		From:        state.ActiveVersion,
		To:          target,
		RequestedAt: c.now(),
		Outcome:     OutcomePending,
	}
	op, err = c.Ops.Append(ctx, op)
	if err != nil {
		return SwitchOperation{}, fmt.Errorf("append switch operation: %w", err)
	}

	maxAttempts := c.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultSwitchAttempts
	}

	for attempt := 1; ; attempt++ {
		state, err = c.currentStateLocked(ctx)
		if err != nil {
			return c.fail(ctx, op, err)
		}
		op.From = state.ActiveVersion

		if state.ActiveVersion == target {
			return c.reject(ctx, op, ReasonAlreadyActive, nil)
		}

		snap, err := c.Fleet.Snapshot(ctx, target)
		if err != nil {
			return c.fail(ctx, op, err)
		}
		if !snap.ReadyAtLeast(c.threshold(snap)) {
			return c.reject(ctx, op, ReasonTargetNotReady, &snap)
		}

		sel, err := c.Client.GetService(ctx)
		if err != nil {
			return c.fail(ctx, op, err)
		}

		err = c.Client.PatchTrafficSelector(ctx, target, sel.ResourceVersion)
		if err == nil {
			break
		}
		if errors.Is(err, ErrConflict) && attempt < maxAttempts {
			// The selector moved under us; the precondition read in
			// this iteration is stale. Re-read and retry.
			continue
		}
		return c.fail(ctx, op, err)
	}

	// Cluster mutation confirmed: commit the state, then the record.
	if err := c.Traffic.Put(ctx, TrafficState{
		ActiveVersion:  target,
		LastSwitchedAt: c.now(),
		LastSwitchedBy: op.ID,
	}); err != nil {
		return c.fail(ctx, op, fmt.Errorf("persist traffic state: %w", err))
	}

	if post, err := c.Fleet.Snapshot(ctx, target); err == nil && post.ReadyReplicas == 0 {
		inv := &InvariantViolationError{OperationID: op.ID, Active: target, Snapshot: post}
		op.Outcome = OutcomeFailed
		op.Reason = ReasonInvariantViolation
		op.Error = inv.Error()
		op.Snapshot = &post
		op.CompletedAt = c.now()
		if cerr := c.Ops.Complete(ctx, op); cerr != nil {
			return op, errors.Join(inv, cerr)
		}
		return op, inv
	}

	op.Outcome = OutcomeSuccess
	op.CompletedAt = c.now()
	if err := c.Ops.Complete(ctx, op); err != nil {
		return op, fmt.Errorf("finalize switch operation: %w", err)
	}
	return op, nil
}

func (c *TrafficSwitchController) currentStateLocked(ctx context.Context) (TrafficState, error) {
	state, err := c.Traffic.Get(ctx)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return TrafficState{}, fmt.Errorf("read traffic state: %w", err)
	}

	// First use: seed the store from the live selector so restarts and
	// pre-existing clusters come up with the truth they already route.
	sel, err := c.Client.GetService(ctx)
	if err != nil {
		return TrafficState{}, fmt.Errorf("derive traffic state: %w", err)
	}
	state = TrafficState{ActiveVersion: sel.ActiveVersion}
	if err := c.Traffic.Put(ctx, state); err != nil {
		return TrafficState{}, fmt.Errorf("seed traffic state: %w", err)
	}
	return state, nil
}

// threshold resolves the readiness minimum for a given target snapshot.
func (c *TrafficSwitchController) threshold(snap FleetSnapshot) int32 {
	min := c.MinReady
	if min < 1 {
		min = 1
	}
	if c.RequireAllReady && snap.DesiredReplicas > min {
		min = snap.DesiredReplicas
	}
	return min
}

func (c *TrafficSwitchController) reject(ctx context.Context, op SwitchOperation, reason string, snap *FleetSnapshot) (SwitchOperation, error) {
	op.Outcome = OutcomeRejected
	op.Reason = reason
	op.Snapshot = snap
	op.CompletedAt = c.now()
	if err := c.Ops.Complete(ctx, op); err != nil {
		return op, fmt.Errorf("finalize rejected operation: %w", err)
	}
	return op, nil
}

func (c *TrafficSwitchController) fail(ctx context.Context, op SwitchOperation, cause error) (SwitchOperation, error) {
	op.Outcome = OutcomeFailed
	op.Error = cause.Error()
	op.CompletedAt = c.now()
	// Best effort: the cause takes precedence over a finalize error.
	_ = c.Ops.Complete(ctx, op)
	return op, cause
}

func (c *TrafficSwitchController) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *TrafficSwitchController) newID() string {
	if c.NewID != nil {
		return c.NewID()
	}
	return uuid.NewString()
}
