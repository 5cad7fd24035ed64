package domain

import (
	"context"
	"errors"
	"fmt"
)

// DeployRequest describes a fleet create-or-update.
type DeployRequest struct {
	Version  Version
	Image    string
	Replicas int32
}

// Validate checks the request before any cluster call is made.
func (r DeployRequest) Validate() error {
	if _, err := ParseVersion(string(r.Version)); err != nil {
		return err
	}
	if r.Image == "" {
		return fmt.Errorf("%w: image is required", ErrInvalidArgument)
	}
	if r.Replicas < 1 {
		return fmt.Errorf("%w: replicas must be at least 1", ErrInvalidArgument)
	}
	return nil
}

// DeployResult reports the post-deploy fleet state. A readiness
// timeout is data, not an error: the fleet exists and may simply need
// more time or operator attention before a switch.
type DeployResult struct {
	Snapshot FleetSnapshot
	TimedOut bool
}

// DeployWorkflow is the deploy pipeline: apply the fleet spec, then
// wait for readiness. It never touches the traffic selector; a freshly
// deployed fleet stays inactive until an explicit switch.
type DeployWorkflow struct {
	Client ClusterClient
	Prober *ReadinessProber
}

func (w *DeployWorkflow) Name() string { return "deploy-fleet" }

// ApplyFleet is the activity that creates or updates the fleet spec.
// Apply failures surface immediately; image and manifest errors are
// not transient, so there is no retry here.
func (w *DeployWorkflow) ApplyFleet() Activity[DeployRequest, struct{}] {
	return NewActivity("apply-fleet", func(ctx context.Context, req DeployRequest) (struct{}, error) {
		return struct{}{}, w.Client.ApplyFleet(ctx, req.Version, req.Image, req.Replicas)
	})
}

// AwaitReadiness is the activity that polls the fleet until every
// requested replica reports ready, or the probe deadline elapses.
func (w *DeployWorkflow) AwaitReadiness() Activity[DeployRequest, DeployResult] {
	return NewActivity("await-readiness", func(ctx context.Context, req DeployRequest) (DeployResult, error) {
		snap, err := w.Prober.WaitUntilReady(ctx, req.Version, req.Replicas)
		var timeout *TimeoutError
		if errors.As(err, &timeout) {
			return DeployResult{Snapshot: timeout.LastSnapshot, TimedOut: true}, nil
		}
		if err != nil {
			return DeployResult{}, err
		}
		return DeployResult{Snapshot: snap}, nil
	})
}

// Run executes the pipeline through the given runner.
func (w *DeployWorkflow) Run(runner DurableRunner, req DeployRequest) (DeployResult, error) {
	if _, err := RunActivity(runner, w.ApplyFleet(), req); err != nil {
		return DeployResult{}, fmt.Errorf("apply fleet: %w", err)
	}
	result, err := RunActivity(runner, w.AwaitReadiness(), req)
	if err != nil {
		return DeployResult{}, fmt.Errorf("await readiness: %w", err)
	}
	return result, nil
}
