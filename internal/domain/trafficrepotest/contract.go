// Package trafficrepotest provides contract tests for
// [domain.TrafficStateRepository] implementations.
package trafficrepotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vellankikoti/cutover/internal/domain"
)

// Factory creates a fresh [domain.TrafficStateRepository] for each test
// invocation.
type Factory func(t *testing.T) domain.TrafficStateRepository

// Run exercises the [domain.TrafficStateRepository] contract.
func Run(t *testing.T, factory Factory) {
	switchedAt := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)

	t.Run("GetUninitialized", func(t *testing.T) {
		repo := factory(t)
		_, err := repo.Get(context.Background())
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Get: got %v, want ErrNotFound", err)
		}
	})

	t.Run("PutAndGet", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()

		state := domain.TrafficState{
			ActiveVersion:  domain.VersionGreen,
			LastSwitchedAt: switchedAt,
			LastSwitchedBy: "op-1",
		}
		if err := repo.Put(ctx, state); err != nil {
			t.Fatalf("Put: %v", err)
		}

		got, err := repo.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ActiveVersion != domain.VersionGreen {
			t.Errorf("ActiveVersion = %q, want %q", got.ActiveVersion, domain.VersionGreen)
		}
		if !got.LastSwitchedAt.Equal(switchedAt) {
			t.Errorf("LastSwitchedAt = %v, want %v", got.LastSwitchedAt, switchedAt)
		}
		if got.LastSwitchedBy != "op-1" {
			t.Errorf("LastSwitchedBy = %q, want %q", got.LastSwitchedBy, "op-1")
		}
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()

		if err := repo.Put(ctx, domain.TrafficState{ActiveVersion: domain.VersionBlue}); err != nil {
			t.Fatalf("first Put: %v", err)
		}
		if err := repo.Put(ctx, domain.TrafficState{
			ActiveVersion:  domain.VersionGreen,
			LastSwitchedAt: switchedAt,
			LastSwitchedBy: "op-2",
		}); err != nil {
			t.Fatalf("second Put: %v", err)
		}

		got, err := repo.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.ActiveVersion != domain.VersionGreen {
			t.Errorf("ActiveVersion = %q, want %q", got.ActiveVersion, domain.VersionGreen)
		}
	})

	t.Run("PutEmptyActiveVersion", func(t *testing.T) {
		// Seeding from a cluster whose selector routes to neither
		// fleet stores an empty active version.
		repo := factory(t)
		ctx := context.Background()

		if err := repo.Put(ctx, domain.TrafficState{}); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, err := repo.Get(ctx)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.HasActive() {
			t.Errorf("HasActive() = true, want false (ActiveVersion %q)", got.ActiveVersion)
		}
	})
}
