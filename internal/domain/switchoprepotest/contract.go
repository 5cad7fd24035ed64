// Package switchoprepotest provides contract tests for
// [domain.SwitchOperationRepository] implementations.
package switchoprepotest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vellankikoti/cutover/internal/domain"
)

// Factory creates a fresh [domain.SwitchOperationRepository] for each
// test invocation.
type Factory func(t *testing.T) domain.SwitchOperationRepository

// Run exercises the [domain.SwitchOperationRepository] contract.
func Run(t *testing.T, factory Factory) {
	requested := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	completed := requested.Add(2 * time.Second)

	t.Run("AppendAssignsIncreasingSeq", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()

		first, err := repo.Append(ctx, domain.SwitchOperation{
			ID: "op-1", To: domain.VersionGreen, RequestedAt: requested, Outcome: domain.OutcomePending,
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		second, err := repo.Append(ctx, domain.SwitchOperation{
			ID: "op-2", To: domain.VersionBlue, RequestedAt: requested, Outcome: domain.OutcomePending,
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}
		if second.Seq <= first.Seq {
			t.Errorf("Seq not increasing: first %d, second %d", first.Seq, second.Seq)
		}
	})

	t.Run("AppendDuplicateID", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()
		op := domain.SwitchOperation{ID: "op-1", To: domain.VersionGreen, RequestedAt: requested, Outcome: domain.OutcomePending}

		if _, err := repo.Append(ctx, op); err != nil {
			t.Fatalf("first Append: %v", err)
		}
		_, err := repo.Append(ctx, op)
		if !errors.Is(err, domain.ErrAlreadyExists) {
			t.Fatalf("second Append: got %v, want ErrAlreadyExists", err)
		}
	})

	t.Run("CompleteFinalizes", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()

		op, err := repo.Append(ctx, domain.SwitchOperation{
			ID: "op-1", From: domain.VersionBlue, To: domain.VersionGreen,
			RequestedAt: requested, Outcome: domain.OutcomePending,
		})
		if err != nil {
			t.Fatalf("Append: %v", err)
		}

		op.Outcome = domain.OutcomeRejected
		op.Reason = domain.ReasonTargetNotReady
		op.CompletedAt = completed
		op.Snapshot = &domain.FleetSnapshot{
			Version:         domain.VersionGreen,
			DesiredReplicas: 3,
			ReadyReplicas:   1,
			ObservedAt:      completed,
		}
		if err := repo.Complete(ctx, op); err != nil {
			t.Fatalf("Complete: %v", err)
		}

		ops, err := repo.List(ctx, 0)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(ops) != 1 {
			t.Fatalf("List: got %d operations, want 1", len(ops))
		}
		got := ops[0]
		if got.Outcome != domain.OutcomeRejected {
			t.Errorf("Outcome = %q, want %q", got.Outcome, domain.OutcomeRejected)
		}
		if got.Reason != domain.ReasonTargetNotReady {
			t.Errorf("Reason = %q, want %q", got.Reason, domain.ReasonTargetNotReady)
		}
		if !got.CompletedAt.Equal(completed) {
			t.Errorf("CompletedAt = %v, want %v", got.CompletedAt, completed)
		}
		if got.Snapshot == nil {
			t.Fatal("Snapshot not persisted")
		}
		if got.Snapshot.ReadyReplicas != 1 || got.Snapshot.DesiredReplicas != 3 {
			t.Errorf("Snapshot = %d/%d ready, want 1/3", got.Snapshot.ReadyReplicas, got.Snapshot.DesiredReplicas)
		}
	})

	t.Run("CompleteNotFound", func(t *testing.T) {
		repo := factory(t)
		err := repo.Complete(context.Background(), domain.SwitchOperation{ID: "nonexistent", Outcome: domain.OutcomeSuccess})
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("Complete: got %v, want ErrNotFound", err)
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()

		for _, id := range []string{"op-1", "op-2", "op-3"} {
			if _, err := repo.Append(ctx, domain.SwitchOperation{
				ID: id, To: domain.VersionGreen, RequestedAt: requested, Outcome: domain.OutcomePending,
			}); err != nil {
				t.Fatalf("Append %s: %v", id, err)
			}
		}

		ops, err := repo.List(ctx, 2)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if len(ops) != 2 {
			t.Fatalf("List: got %d operations, want 2", len(ops))
		}
		if ops[0].ID != "op-3" || ops[1].ID != "op-2" {
			t.Errorf("List order = [%s %s], want [op-3 op-2]", ops[0].ID, ops[1].ID)
		}
	})

	t.Run("LastSuccess", func(t *testing.T) {
		repo := factory(t)
		ctx := context.Background()

		appendFinalized := func(id string, from, to domain.Version, outcome domain.SwitchOutcome) {
			t.Helper()
			op, err := repo.Append(ctx, domain.SwitchOperation{
				ID: id, From: from, To: to, RequestedAt: requested, Outcome: domain.OutcomePending,
			})
			if err != nil {
				t.Fatalf("Append %s: %v", id, err)
			}
			op.Outcome = outcome
			op.CompletedAt = completed
			if err := repo.Complete(ctx, op); err != nil {
				t.Fatalf("Complete %s: %v", id, err)
			}
		}

		appendFinalized("op-1", domain.VersionBlue, domain.VersionGreen, domain.OutcomeSuccess)
		appendFinalized("op-2", domain.VersionGreen, domain.VersionBlue, domain.OutcomeSuccess)
		appendFinalized("op-3", domain.VersionBlue, domain.VersionGreen, domain.OutcomeRejected)

		last, err := repo.LastSuccess(ctx)
		if err != nil {
			t.Fatalf("LastSuccess: %v", err)
		}
		if last.ID != "op-2" {
			t.Errorf("LastSuccess = %s, want op-2", last.ID)
		}
		if last.From != domain.VersionGreen {
			t.Errorf("From = %q, want %q", last.From, domain.VersionGreen)
		}
	})

	t.Run("LastSuccessEmpty", func(t *testing.T) {
		repo := factory(t)
		_, err := repo.LastSuccess(context.Background())
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("LastSuccess: got %v, want ErrNotFound", err)
		}
	})
}
