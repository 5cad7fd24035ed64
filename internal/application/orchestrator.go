// Package application wires the domain ports into the operations the
// CLI exposes: deploy, switch, status, rollback.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vellankikoti/cutover/internal/domain"
)

// StatusReport is the combined view of traffic routing, both fleets,
// and the tail of the operation log.
type StatusReport struct {
	Traffic          domain.TrafficState
	Blue             domain.FleetSnapshot
	Green            domain.FleetSnapshot
	RecentOperations []domain.SwitchOperation
}

// Active returns the snapshot of the fleet currently receiving traffic,
// or false when no version is active.
func (r StatusReport) Active() (domain.FleetSnapshot, bool) {
	switch r.Traffic.ActiveVersion {
	case domain.VersionBlue:
		return r.Blue, true
	case domain.VersionGreen:
		return r.Green, true
	}
	return domain.FleetSnapshot{}, false
}

// Orchestrator composes the deploy workflow, the switch controller,
// and the operation log behind the four lifecycle operations.
type Orchestrator struct {
	Fleet    *domain.FleetState
	Switcher *domain.TrafficSwitchController
	Ops      domain.SwitchOperationRepository
	Deploys  domain.DeployRunner

	Now func() time.Time
	Log zerolog.Logger
}

// Deploy creates or updates a fleet and waits for readiness. Traffic
// routing is untouched; a timed-out result is returned, not an error.
func (o *Orchestrator) Deploy(ctx context.Context, req domain.DeployRequest) (domain.DeployResult, error) {
	if err := req.Validate(); err != nil {
		return domain.DeployResult{}, err
	}

	o.Log.Info().
		Str("version", string(req.Version)).
		Str("image", req.Image).
		Int32("replicas", req.Replicas).
		Msg("starting deploy")

	handle, err := o.Deploys.Run(ctx, req)
	if err != nil {
		return domain.DeployResult{}, fmt.Errorf("start deploy workflow: %w", err)
	}
	result, err := handle.AwaitResult(ctx)
	if err != nil {
		return domain.DeployResult{}, fmt.Errorf("deploy workflow %s: %w", handle.WorkflowID(), err)
	}

	o.Log.Info().
		Str("version", string(req.Version)).
		Int32("ready", result.Snapshot.ReadyReplicas).
		Bool("timed_out", result.TimedOut).
		Msg("deploy finished")
	return result, nil
}

// SwitchTo cuts traffic over to target through the switch controller.
func (o *Orchestrator) SwitchTo(ctx context.Context, target domain.Version) (domain.SwitchOperation, error) {
	op, err := o.Switcher.Switch(ctx, target)
	o.logOperation(op, err)
	return op, err
}

// Rollback repoints traffic at the From version of the most recent
// successful switch. Without a usable history the rejection is reported
// on a non-persisted operation, since nothing was attempted against
// the cluster.
func (o *Orchestrator) Rollback(ctx context.Context) (domain.SwitchOperation, error) {
	recent, err := o.Ops.List(ctx, 0)
	if err != nil {
		return domain.SwitchOperation{}, fmt.Errorf("read operation log: %w", err)
	}
	// Newest first. A recorded invariant violation halts automated
	// rollback until a later switch commits successfully; rejected or
	// failed attempts in between do not clear it.
	for _, op := range recent {
		if op.Outcome == domain.OutcomeSuccess {
			break
		}
		if op.Outcome == domain.OutcomeFailed && op.Reason == domain.ReasonInvariantViolation {
			return domain.SwitchOperation{}, fmt.Errorf(
				"operation %s violated the readiness invariant; refusing automated rollback", op.ID)
		}
	}

	last, err := o.Ops.LastSuccess(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		return o.rejectedWithoutHistory(ctx, domain.ReasonNoSwitchHistory)
	}
	if err != nil {
		return domain.SwitchOperation{}, fmt.Errorf("read last successful switch: %w", err)
	}
	if last.From == "" {
		return o.rejectedWithoutHistory(ctx, domain.ReasonNoPreviousVersion)
	}

	o.Log.Info().
		Str("operation", last.ID).
		Str("target", string(last.From)).
		Msg("rolling back to previous version")
	return o.SwitchTo(ctx, last.From)
}

// Status assembles the current traffic state, both fleet snapshots,
// and the most recent operations.
func (o *Orchestrator) Status(ctx context.Context) (StatusReport, error) {
	state, err := o.Switcher.CurrentState(ctx)
	if err != nil {
		return StatusReport{}, err
	}

	report := StatusReport{Traffic: state}
	for _, v := range domain.Versions() {
		snap, err := o.Fleet.Snapshot(ctx, v)
		if err != nil {
			return StatusReport{}, fmt.Errorf("snapshot %s fleet: %w", v, err)
		}
		if v == domain.VersionBlue {
			report.Blue = snap
		} else {
			report.Green = snap
		}
	}

	report.RecentOperations, err = o.Ops.List(ctx, 10)
	if err != nil {
		return StatusReport{}, fmt.Errorf("list operations: %w", err)
	}
	return report, nil
}

// rejectedWithoutHistory builds a rejected operation that is reported
// to the caller but never persisted: no cluster mutation was attempted
// and there is no real switch to record.
func (o *Orchestrator) rejectedWithoutHistory(ctx context.Context, reason string) (domain.SwitchOperation, error) {
	state, err := o.Switcher.CurrentState(ctx)
	if err != nil {
		return domain.SwitchOperation{}, err
	}
	now := time.Now()
	if o.Now != nil {
		now = o.Now()
	}
	op := domain.SwitchOperation{
		ID:          uuid.NewString(),
		From:        state.ActiveVersion,
		RequestedAt: now,
		CompletedAt: now,
		Outcome:     domain.OutcomeRejected,
		Reason:      reason,
	}
	o.logOperation(op, nil)
	return op, nil
}

func (o *Orchestrator) logOperation(op domain.SwitchOperation, err error) {
	evt := o.Log.Info()
	if err != nil {
		evt = o.Log.Error().Err(err)
	}
	evt.Str("operation", op.ID).
		Str("from", string(op.From)).
		Str("to", string(op.To)).
		Str("outcome", string(op.Outcome)).
		Str("reason", op.Reason).
		Msg("switch operation finished")
}
