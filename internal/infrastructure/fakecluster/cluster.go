// Package fakecluster provides an in-memory [domain.ClusterClient] so
// the switch and deploy logic can be exercised without a live cluster.
package fakecluster

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/vellankikoti/cutover/internal/domain"
)

type fleet struct {
	image   string
	desired int32
	ready   int32
}

// Cluster is a mutable in-memory cluster fixture. The selector carries
// a resource version that increments on every selector write, so the
// compare-and-swap behavior of a real cluster can be simulated,
// including injected conflicts and failures.
type Cluster struct {
	mu              sync.Mutex
	fleets          map[domain.Version]*fleet
	selector        domain.Version
	resourceVersion int64

	// AutoReady makes applied and scaled fleets immediately report all
	// replicas ready, for tests that don't model pod startup.
	AutoReady bool

	readErr  error
	patchErr error
}

func New() *Cluster {
	return &Cluster{fleets: make(map[domain.Version]*fleet), resourceVersion: 1}
}

// SetFleet installs or replaces a fleet with explicit readiness.
func (c *Cluster) SetFleet(version domain.Version, image string, desired, ready int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fleets[version] = &fleet{image: image, desired: desired, ready: ready}
}

// SetReady adjusts the ready count of an existing fleet.
func (c *Cluster) SetReady(version domain.Version, ready int32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.fleets[version]; ok {
		f.ready = ready
	}
}

// SetSelector points the traffic selector without going through the
// client API, as if another operator had patched it.
func (c *Cluster) SetSelector(version domain.Version) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selector = version
	c.resourceVersion++
}

// FailReads makes all read operations return err until reset with nil.
func (c *Cluster) FailReads(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

// FailPatches makes PatchTrafficSelector return err until reset with nil.
func (c *Cluster) FailPatches(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patchErr = err
}

// Selector returns the current selector target for assertions.
func (c *Cluster) Selector() domain.Version {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selector
}

func (c *Cluster) GetPods(_ context.Context, version domain.Version) ([]domain.PodStatus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return nil, c.readErr
	}
	f, ok := c.fleets[version]
	if !ok {
		return nil, nil
	}

	pods := make([]domain.PodStatus, 0, f.desired)
	for i := int32(0); i < f.desired; i++ {
		p := domain.PodStatus{
			Name:  fmt.Sprintf("%s-%d", version, i),
			Phase: domain.PodPending,
		}
		if i < f.ready {
			p.Phase = domain.PodRunning
			p.Ready = true
		}
		pods = append(pods, p)
	}
	return pods, nil
}

func (c *Cluster) GetFleet(_ context.Context, version domain.Version) (domain.FleetInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return domain.FleetInfo{}, c.readErr
	}
	f, ok := c.fleets[version]
	if !ok {
		return domain.FleetInfo{}, fmt.Errorf("fleet %s: %w", version, domain.ErrNotFound)
	}
	return domain.FleetInfo{DesiredReplicas: f.desired, Image: f.image}, nil
}

func (c *Cluster) GetService(_ context.Context) (domain.ServiceSelector, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.readErr != nil {
		return domain.ServiceSelector{}, c.readErr
	}
	return domain.ServiceSelector{
		ActiveVersion:   c.selector,
		ResourceVersion: strconv.FormatInt(c.resourceVersion, 10),
	}, nil
}

func (c *Cluster) PatchTrafficSelector(_ context.Context, target domain.Version, expectedResourceVersion string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.patchErr != nil {
		return c.patchErr
	}
	if expectedResourceVersion != strconv.FormatInt(c.resourceVersion, 10) {
		return fmt.Errorf("selector resource version %q is stale: %w", expectedResourceVersion, domain.ErrConflict)
	}
	c.selector = target
	c.resourceVersion++
	return nil
}

func (c *Cluster) ApplyFleet(_ context.Context, version domain.Version, image string, replicas int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.fleets[version]
	if !ok {
		f = &fleet{}
		c.fleets[version] = f
	}
	f.image = image
	f.desired = replicas
	if c.AutoReady {
		f.ready = replicas
	} else if f.ready > replicas {
		f.ready = replicas
	}
	return nil
}

func (c *Cluster) ScaleFleet(_ context.Context, version domain.Version, replicas int32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	f, ok := c.fleets[version]
	if !ok {
		return fmt.Errorf("fleet %s: %w", version, domain.ErrNotFound)
	}
	f.desired = replicas
	if c.AutoReady {
		f.ready = replicas
	} else if f.ready > replicas {
		f.ready = replicas
	}
	return nil
}
