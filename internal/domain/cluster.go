package domain

import "context"

// ServiceSelector is the live routing state read from the cluster.
type ServiceSelector struct {
	// ActiveVersion is empty when the selector routes to neither fleet.
	ActiveVersion Version
	// ResourceVersion is an opaque concurrency token for the selector
	// object; PatchTrafficSelector uses it as a compare-and-swap
	// precondition so uncoordinated writers cannot race.
	ResourceVersion string
}

// ClusterClient is the narrow capability surface through which the core
// queries and mutates fleet state. The real implementation talks to a
// Kubernetes namespace; tests use an in-memory fake.
type ClusterClient interface {
	// GetPods returns the current pod set of a fleet version.
	GetPods(ctx context.Context, version Version) ([]PodStatus, error)

	// GetFleet returns the fleet's declared spec. ErrNotFound when the
	// fleet has never been deployed.
	GetFleet(ctx context.Context, version Version) (FleetInfo, error)

	// GetService returns the live traffic selector state.
	GetService(ctx context.Context) (ServiceSelector, error)

	// PatchTrafficSelector atomically repoints traffic at the target
	// version in a single call. expectedResourceVersion comes from a
	// prior GetService; the call fails with ErrConflict when the
	// selector changed in between.
	PatchTrafficSelector(ctx context.Context, target Version, expectedResourceVersion string) error

	// ApplyFleet creates or updates a fleet's image and replica count.
	// It never touches the traffic selector.
	ApplyFleet(ctx context.Context, version Version, image string, replicas int32) error

	// ScaleFleet changes a fleet's desired replica count.
	ScaleFleet(ctx context.Context, version Version, replicas int32) error
}
