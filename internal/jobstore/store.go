// Package jobstore defines the durable Job Record contract the scheduler
// core runs against. Two backends implement it: jsonstore (local file, single
// writer) and surrealstore (document database, per-document transactions).
package jobstore

import (
	"context"
	"errors"
	"time"

	"github.com/auriga-os/emonk/internal/models"
)

// ErrNotFound is returned by Get when no record exists for the given id.
var ErrNotFound = errors.New("jobstore: record not found")

// ErrLost is returned by Claim and Finalize when the caller's view of the
// record's lease no longer holds — another replica claimed it, it was
// cancelled, or a finalize raced a lease steal. Never an application error:
// callers log it at info and move on without further mutation.
var ErrLost = errors.New("jobstore: lease lost")

// Transition describes the write Finalize applies to a leased record.
// Exactly one of the constructors below should be used to build one.
type Transition struct {
	kind string

	// completed: no extra fields.
	// reschedule-recurring:
	next time.Time
	// failed-retry:
	retryNext time.Time
	// failed-terminal / failed-retry:
	lastError string
}

const (
	transitionCompleted  = "completed"
	transitionRecurring  = "reschedule-recurring"
	transitionRetry      = "failed-retry"
	transitionTerminal   = "failed-terminal"
)

// Completed marks a one-shot job done.
func Completed() Transition { return Transition{kind: transitionCompleted} }

// RescheduleRecurring returns a cron/every job to pending at the next fire time.
func RescheduleRecurring(next time.Time) Transition {
	return Transition{kind: transitionRecurring, next: next}
}

// FailedRetry re-enters pending with a backed-off next_run_at, preserving attempts.
func FailedRetry(nextRunAt time.Time, lastError string) Transition {
	return Transition{kind: transitionRetry, retryNext: nextRunAt, lastError: lastError}
}

// FailedTerminal marks the job permanently failed; attempts has reached max_attempts.
func FailedTerminal(lastError string) Transition {
	return Transition{kind: transitionTerminal, lastError: lastError}
}

// Kind exposes the transition's discriminator for backend implementations.
func (t Transition) Kind() string { return t.kind }

// Next returns the reschedule-recurring target time.
func (t Transition) Next() time.Time { return t.next }

// RetryNext returns the failed-retry target time.
func (t Transition) RetryNext() time.Time { return t.retryNext }

// LastError returns the error message carried by failed-retry/failed-terminal.
func (t Transition) LastError() string { return t.lastError }

// Store is the durable contract the scheduler core and Job API run against.
// Every method must be safe for concurrent use by multiple goroutines and,
// for production backends, multiple processes.
type Store interface {
	// Put creates or fully replaces a record. Used only by the Job API
	// (schedule/cancel) and by store-internal finalize bookkeeping.
	Put(ctx context.Context, job *models.Job) error

	// Get is a point read by id. Returns ErrNotFound if absent.
	Get(ctx context.Context, id string) (*models.Job, error)

	// ListDue returns up to limit ids with status=pending and
	// next_run_at<=now, ordered by next_run_at ascending. Stale reads are
	// acceptable — Claim is the authority.
	ListDue(ctx context.Context, now time.Time, limit int) ([]string, error)

	// Claim atomically attempts to transition id into running under owner's
	// lease. Succeeds if status=pending, or status=running with an expired
	// lease. On success returns the claimed record with attempts
	// incremented. Returns ErrLost if another replica holds a live lease,
	// the job doesn't exist, or it is no longer pending (e.g. cancelled).
	Claim(ctx context.Context, id, owner string, now time.Time, leaseDuration time.Duration) (*models.Job, error)

	// Finalize atomically verifies lease_owner=owner, then applies t,
	// clearing lease_owner/lease_until unless the job remains running (it
	// never does — every Transition leaves running). Returns ErrLost
	// without mutation if the owner check fails.
	Finalize(ctx context.Context, id, owner string, now time.Time, t Transition) error

	// Cancel atomically transitions id from pending to cancelled, the same
	// compare-and-swap style Claim uses: the mutation is conditioned on
	// status=pending at write time, not on a status observed by an earlier
	// read, so a concurrent Claim and Cancel against the same record can
	// never both succeed. Returns the record as it stands after the
	// attempt — Status is cancelled if the cancel applied, or whatever
	// status pre-empted it (running or a terminal state) if it didn't.
	// Returns ErrNotFound if no record exists for id.
	Cancel(ctx context.Context, id string, now time.Time) (*models.Job, error)

	// List returns records matching filter, for operator inspection.
	List(ctx context.Context, filter Filter) ([]*models.Job, error)

	// Close releases backend resources.
	Close() error
}

// Filter bounds a List query. Zero-value Filter matches every record.
type Filter struct {
	Status string // empty matches all statuses
	Kind   string // empty matches all kinds
	Limit  int    // 0 means unbounded
}
