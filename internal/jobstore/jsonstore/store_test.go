package jsonstore

import (
	"context"
	"testing"
	"time"

	"github.com/auriga-os/emonk/internal/jobstore"
	"github.com/auriga-os/emonk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestClaimPendingJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	job := &models.Job{ID: "j1", Kind: "noop", Status: models.JobStatusPending, NextRunAt: now, MaxAttempts: 3, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Put(ctx, job))

	claimed, err := s.Claim(ctx, "j1", "replica-a", now, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, claimed.Status)
	assert.Equal(t, "replica-a", claimed.LeaseOwner)
	assert.Equal(t, 1, claimed.Attempts)
	assert.True(t, claimed.LeaseUntil.Equal(now.Add(5*time.Minute)))
}

func TestClaimLiveLeaseLost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	job := &models.Job{ID: "j1", Status: models.JobStatusRunning, LeaseOwner: "A", LeaseUntil: now.Add(time.Minute), MaxAttempts: 3, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Put(ctx, job))

	_, err := s.Claim(ctx, "j1", "B", now, 5*time.Minute)
	assert.ErrorIs(t, err, jobstore.ErrLost)
}

func TestClaimExpiredLeaseReclaimable(t *testing.T) {
	// Scenario 4 (lease steal): an expired lease is reclaimable by any replica.
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	job := &models.Job{ID: "j1", Status: models.JobStatusRunning, LeaseOwner: "A", LeaseUntil: now.Add(-time.Second), Attempts: 1, MaxAttempts: 3, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Put(ctx, job))

	claimed, err := s.Claim(ctx, "j1", "B", now, 5*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "B", claimed.LeaseOwner)
	assert.Equal(t, 2, claimed.Attempts)
}

func TestFinalizeCompleted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	job := &models.Job{ID: "j1", Status: models.JobStatusPending, NextRunAt: now, MaxAttempts: 3, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Put(ctx, job))
	_, err := s.Claim(ctx, "j1", "A", now, 5*time.Minute)
	require.NoError(t, err)

	require.NoError(t, s.Finalize(ctx, "j1", "A", now, jobstore.Completed()))

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Empty(t, got.LeaseOwner)
	assert.True(t, got.LeaseUntil.IsZero())
}

func TestFinalizeOwnerMismatchLost(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	job := &models.Job{ID: "j1", Status: models.JobStatusPending, NextRunAt: now, MaxAttempts: 3, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Put(ctx, job))
	_, err := s.Claim(ctx, "j1", "A", now, 5*time.Minute)
	require.NoError(t, err)

	err = s.Finalize(ctx, "j1", "someone-else", now, jobstore.Completed())
	assert.ErrorIs(t, err, jobstore.ErrLost)

	got, getErr := s.Get(ctx, "j1")
	require.NoError(t, getErr)
	assert.Equal(t, models.JobStatusRunning, got.Status, "a lost finalize must not mutate the record")
}

func TestFinalizeFailedRetryReentersPending(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	job := &models.Job{ID: "j1", Status: models.JobStatusPending, NextRunAt: now, MaxAttempts: 3, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.Put(ctx, job))
	_, err := s.Claim(ctx, "j1", "A", now, 5*time.Minute)
	require.NoError(t, err)

	retryAt := now.Add(30 * time.Second)
	require.NoError(t, s.Finalize(ctx, "j1", "A", now, jobstore.FailedRetry(retryAt, "boom")))

	got, err := s.Get(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, 1, got.Attempts, "attempts is preserved across a retry transition")
	assert.Equal(t, "boom", got.LastError)
	assert.True(t, got.NextRunAt.Equal(retryAt))
}

func TestListDueOrderedAndFiltersStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Put(ctx, &models.Job{ID: "late", Status: models.JobStatusPending, NextRunAt: now.Add(2 * time.Minute), MaxAttempts: 3, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.Put(ctx, &models.Job{ID: "early", Status: models.JobStatusPending, NextRunAt: now.Add(-time.Minute), MaxAttempts: 3, CreatedAt: now, UpdatedAt: now}))
	require.NoError(t, s.Put(ctx, &models.Job{ID: "cancelled", Status: models.JobStatusCancelled, NextRunAt: now.Add(-time.Hour), MaxAttempts: 3, CreatedAt: now, UpdatedAt: now}))

	ids, err := s.ListDue(ctx, now, 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"early"}, ids, "only the due, pending job should be returned (late isn't due, cancelled is excluded)")
}
