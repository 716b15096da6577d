package surrealstore

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/auriga-os/emonk/internal/jobstore"
	"github.com/auriga-os/emonk/internal/models"
	surreal "github.com/surrealdb/surrealdb.go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	containerOnce sync.Once
	containerAddr string
	containerErr  error
)

// startSurrealDB starts one shared SurrealDB container for the whole test
// binary run, mirroring the teacher's tests/common.StartSurrealDB pattern.
func startSurrealDB(t *testing.T) string {
	t.Helper()
	if os.Getenv("EMONK_TEST_SURREALDB") != "true" {
		t.Skip("SurrealDB integration tests disabled (set EMONK_TEST_SURREALDB=true to enable)")
	}

	containerOnce.Do(func() {
		ctx := context.Background()
		req := testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v3.0.0",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--user", "root", "--pass", "root"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("8000/tcp"),
				wait.ForLog("Started web server"),
			).WithDeadline(60 * time.Second),
		}
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			containerErr = fmt.Errorf("start SurrealDB container: %w", err)
			return
		}
		host, err := container.Host(ctx)
		if err != nil {
			containerErr = fmt.Errorf("get SurrealDB host: %w", err)
			return
		}
		port, err := container.MappedPort(ctx, "8000/tcp")
		if err != nil {
			containerErr = fmt.Errorf("get SurrealDB port: %w", err)
			return
		}
		containerAddr = fmt.Sprintf("ws://%s:%s/rpc", host, port.Port())
	})
	if containerErr != nil {
		t.Fatalf("SurrealDB container failed: %v", containerErr)
	}
	return containerAddr
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	addr := startSurrealDB(t)
	ctx := context.Background()

	db, err := surreal.New(addr)
	require.NoError(t, err)

	_, err = db.SignIn(ctx, map[string]interface{}{"user": "root", "pass": "root"})
	require.NoError(t, err)

	sanitized := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dbName := fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%100000)
	require.NoError(t, db.Use(ctx, "emonk_test", dbName))

	_, err = surreal.Query[any](ctx, db, "DEFINE TABLE IF NOT EXISTS scheduler_jobs SCHEMALESS", nil)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close(context.Background()) })

	return New(db)
}

func TestSurrealClaimAndFinalize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	job := &models.Job{ID: "j1", Kind: "noop", Status: models.JobStatusPending, NextRunAt: now, MaxAttempts: 3, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Put(ctx, job))

	claimed, err := s.Claim(ctx, "j1", "replica-a", now, 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, models.JobStatusRunning, claimed.Status)
	require.Equal(t, "replica-a", claimed.LeaseOwner)

	_, err = s.Claim(ctx, "j1", "replica-b", now, 5*time.Minute)
	require.ErrorIs(t, err, jobstore.ErrLost, "a second claim against a live lease must be Lost")

	require.NoError(t, s.Finalize(ctx, "j1", "replica-a", now, jobstore.Completed()))

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, models.JobStatusCompleted, got.Status)
}

func TestSurrealClaimExpiredLease(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	job := &models.Job{
		ID: "j2", Kind: "noop", Status: models.JobStatusRunning,
		LeaseOwner: "A", LeaseUntil: now.Add(-time.Second),
		Attempts: 1, MaxAttempts: 3, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, s.Put(ctx, job))

	claimed, err := s.Claim(ctx, "j2", "B", now, 5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, "B", claimed.LeaseOwner)
	require.Equal(t, 2, claimed.Attempts)
}

func TestSurrealListDue(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Put(ctx, &models.Job{ID: "due", Status: models.JobStatusPending, NextRunAt: now.Add(-time.Minute), MaxAttempts: 3, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.Put(ctx, &models.Job{ID: "future", Status: models.JobStatusPending, NextRunAt: now.Add(time.Hour), MaxAttempts: 3, CreatedAt: now, UpdatedAt: now}))

	ids, err := s.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Equal(t, []string{"due"}, ids)
}
