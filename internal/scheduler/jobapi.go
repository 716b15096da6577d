package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/auriga-os/emonk/internal/jobstore"
	"github.com/auriga-os/emonk/internal/models"
)

// CancelResult reports the outcome of Cancel, per spec.md §4.3.
type CancelResult string

const (
	CancelResultCancelled      CancelResult = "cancelled"
	CancelResultNotFound       CancelResult = "not-found"
	CancelResultAlreadyTerminal CancelResult = "already-terminal"
	CancelResultRunning        CancelResult = "running"
)

// JobAPI is the operator/application-facing surface for creating, listing
// and cancelling jobs. It never touches lease state — that's Scheduler's job.
type JobAPI struct {
	Store    jobstore.Store
	Registry *Registry
	Clock    interface{ Now() time.Time }
}

// NewJobAPI constructs a JobAPI bound to store/registry/clock.
func NewJobAPI(store jobstore.Store, registry *Registry, clk interface{ Now() time.Time }) *JobAPI {
	return &JobAPI{Store: store, Registry: registry, Clock: clk}
}

// Schedule validates kind and schedule, computes the initial next_run_at,
// and persists a new pending job record. Returns the new job's id.
func (a *JobAPI) Schedule(ctx context.Context, kind string, payload []byte, sched models.Schedule, maxAttempts int) (string, error) {
	if !a.Registry.Has(kind) {
		return "", fmt.Errorf("scheduler: unknown kind %q", kind)
	}
	if err := ValidateSchedule(sched); err != nil {
		return "", err
	}

	now := a.Clock.Now()
	nextRunAt, err := InitialNextRunAt(sched, now)
	if err != nil {
		return "", err
	}
	if maxAttempts <= 0 {
		maxAttempts = models.DefaultMaxAttempts
	}

	job := &models.Job{
		ID:          uuid.NewString(),
		Kind:        kind,
		Payload:     payload,
		Schedule:    sched,
		NextRunAt:   nextRunAt,
		Status:      models.JobStatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := a.Store.Put(ctx, job); err != nil {
		return "", fmt.Errorf("scheduler: persist job: %w", err)
	}
	return job.ID, nil
}

// Cancel transitions a pending job to cancelled. Running jobs are not
// interrupted: Cancel reports CancelResultRunning and the caller may retry
// once the in-flight attempt finalizes (it will observe the lease expiry and
// try again, or the operator can poll List).
//
// The mutation goes through Store.Cancel rather than a Get-then-Put here,
// because a Get-then-Put can't rule out a Claim landing in the gap between
// the two calls: Store.Cancel conditions the write on status=pending at
// write time, the same compare-and-swap Claim itself uses, so cancel and
// claim can never both succeed against one record.
func (a *JobAPI) Cancel(ctx context.Context, id string) (CancelResult, error) {
	job, err := a.Store.Cancel(ctx, id, a.Clock.Now())
	if err != nil {
		if err == jobstore.ErrNotFound {
			return CancelResultNotFound, nil
		}
		return "", fmt.Errorf("scheduler: persist cancellation: %w", err)
	}

	switch job.Status {
	case models.JobStatusCancelled:
		return CancelResultCancelled, nil
	case models.JobStatusRunning:
		return CancelResultRunning, nil
	default:
		return CancelResultAlreadyTerminal, nil
	}
}

// List returns job records matching filter, for operator inspection.
func (a *JobAPI) List(ctx context.Context, filter jobstore.Filter) ([]*models.Job, error) {
	return a.Store.List(ctx, filter)
}

// Get returns a single job record by id.
func (a *JobAPI) Get(ctx context.Context, id string) (*models.Job, error) {
	return a.Store.Get(ctx, id)
}
