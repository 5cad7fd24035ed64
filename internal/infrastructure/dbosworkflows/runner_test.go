package dbosworkflows_test

import (
	"context"
	"testing"
	"time"

	"github.com/dbos-inc/dbos-transact-golang/dbos"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/vellankikoti/cutover/internal/domain"
	"github.com/vellankikoti/cutover/internal/infrastructure/dbosworkflows"
	"github.com/vellankikoti/cutover/internal/infrastructure/fakecluster"
)

func startPostgres(t *testing.T) string {
	t.Helper()

	// Ryuk (the reaper) requires a Docker bridge network that does not
	// exist on Podman. We handle cleanup via t.Cleanup instead.
	t.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("cutover_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := ctr.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get postgres connection string: %v", err)
	}
	return connStr
}

func TestDeploy_DBOS(t *testing.T) {
	connStr := startPostgres(t)

	ctx := context.Background()

	dbosCtx, err := dbos.NewDBOSContext(ctx, dbos.Config{
		AppName:     "cutover-dbos-test",
		DatabaseURL: connStr,
	})
	if err != nil {
		t.Fatalf("NewDBOSContext: %v", err)
	}

	cluster := fakecluster.New()
	cluster.AutoReady = true
	fleet := &domain.FleetState{Client: cluster}

	wf := &domain.DeployWorkflow{
		Client: cluster,
		Prober: &domain.ReadinessProber{
			Fleet:        fleet,
			PollInterval: 10 * time.Millisecond,
			Deadline:     time.Second,
		},
	}

	engine := &dbosworkflows.Engine{DBOSCtx: dbosCtx}
	runner, err := engine.DeployRunner(wf)
	if err != nil {
		t.Fatalf("DeployRunner: %v", err)
	}

	if err := dbos.Launch(dbosCtx); err != nil {
		t.Fatalf("dbos.Launch: %v", err)
	}
	t.Cleanup(func() { dbos.Shutdown(dbosCtx, 5*time.Second) })

	handle, err := runner.Run(ctx, domain.DeployRequest{
		Version: domain.VersionBlue, Image: "app:v1", Replicas: 2,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	result, err := handle.AwaitResult(ctx)
	if err != nil {
		t.Fatalf("AwaitResult: %v", err)
	}
	if result.TimedOut {
		t.Fatal("TimedOut = true, want false")
	}
	if result.Snapshot.ReadyReplicas != 2 {
		t.Errorf("ReadyReplicas = %d, want 2", result.Snapshot.ReadyReplicas)
	}

	info, err := cluster.GetFleet(ctx, domain.VersionBlue)
	if err != nil {
		t.Fatalf("GetFleet: %v", err)
	}
	if info.Image != "app:v1" {
		t.Errorf("Image = %q, want %q", info.Image, "app:v1")
	}
}
