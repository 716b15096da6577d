// Package surrealstore implements jobstore.Store against SurrealDB. Claim and
// Finalize are expressed as a candidate SELECT followed by a conditional
// UPDATE whose WHERE clause re-checks the expected prior state — the same
// two-step pattern the teacher's JobQueueStore.Dequeue uses, which gives the
// UPDATE its atomicity: only one concurrent UPDATE with a matching WHERE
// clause can affect the row, so the SELECT is advisory and the UPDATE is the
// single authoritative decision point.
package surrealstore

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/auriga-os/emonk/internal/jobstore"
	"github.com/auriga-os/emonk/internal/models"
	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

const table = "scheduler_jobs"

const selectFields = "id, kind, payload, schedule, next_run_at, status, attempts, max_attempts, " +
	"lease_owner, lease_until, last_error, created_at, updated_at"

// Store is a jobstore.Store backed by SurrealDB.
type Store struct {
	db *surrealdb.DB
}

// New wraps an already-connected, signed-in SurrealDB handle. Bootstrap
// (DEFINE TABLE / DEFINE INDEX) is the caller's responsibility — see
// internal/storage/surrealdb.Bootstrap, shared with the conversation store.
func New(db *surrealdb.DB) *Store {
	return &Store{db: db}
}

func rid(id string) surrealmodels.RecordID {
	return surrealmodels.NewRecordID(table, id)
}

func (s *Store) Put(ctx context.Context, job *models.Job) error {
	sql := `UPSERT $rid CONTENT $job`
	vars := map[string]any{
		"rid": rid(job.ID),
		"job": job,
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("surrealstore: put %s: %w", job.ID, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.Job, error) {
	job, err := surrealdb.Select[models.Job](ctx, s.db, rid(id))
	if err != nil {
		return nil, fmt.Errorf("surrealstore: get %s: %w", id, err)
	}
	if job == nil {
		return nil, jobstore.ErrNotFound
	}
	return job, nil
}

func (s *Store) ListDue(ctx context.Context, now time.Time, limit int) ([]string, error) {
	sql := "SELECT " + selectFields + " FROM " + table +
		" WHERE status = $pending AND next_run_at <= $now ORDER BY next_run_at ASC LIMIT $limit"
	vars := map[string]any{
		"pending": models.JobStatusPending,
		"now":     now,
		"limit":   limit,
	}
	rows, err := surrealdb.Query[[]models.Job](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("surrealstore: list_due: %w", err)
	}
	var jobs []models.Job
	if rows != nil && len(*rows) > 0 {
		jobs = (*rows)[0].Result
	}
	sort.Slice(jobs, func(i, k int) bool { return jobs[i].NextRunAt.Before(jobs[k].NextRunAt) })
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.ID
	}
	return ids, nil
}

// Claim: candidate SELECT, then a conditional UPDATE re-checking the expected
// prior status in its WHERE clause. If the UPDATE affects zero rows, the
// candidate was claimed or cancelled by someone else between the SELECT and
// the UPDATE — Lost.
func (s *Store) Claim(ctx context.Context, id, owner string, now time.Time, leaseDuration time.Duration) (*models.Job, error) {
	selectSQL := "SELECT " + selectFields + " FROM $rid"
	selected, err := surrealdb.Query[[]models.Job](ctx, s.db, selectSQL, map[string]any{"rid": rid(id)})
	if err != nil {
		return nil, fmt.Errorf("surrealstore: claim select %s: %w", id, err)
	}
	if selected == nil || len(*selected) == 0 || len((*selected)[0].Result) == 0 {
		return nil, jobstore.ErrLost
	}
	candidate := (*selected)[0].Result[0]
	eligible := candidate.Status == models.JobStatusPending ||
		(candidate.Status == models.JobStatusRunning && candidate.LeaseUntil.Before(now))
	if !eligible {
		return nil, jobstore.ErrLost
	}

	leaseUntil := now.Add(leaseDuration)
	updateSQL := `UPDATE $rid SET status = $running, lease_owner = $owner, lease_until = $lease_until,
		attempts = attempts + 1, updated_at = $now
		WHERE status = $pending OR (status = $running_prev AND lease_until < $now)`
	vars := map[string]any{
		"rid":          rid(id),
		"running":      models.JobStatusRunning,
		"owner":        owner,
		"lease_until":  leaseUntil,
		"now":          now,
		"pending":      models.JobStatusPending,
		"running_prev": models.JobStatusRunning,
	}
	updated, err := surrealdb.Query[[]models.Job](ctx, s.db, updateSQL, vars)
	if err != nil {
		return nil, fmt.Errorf("surrealstore: claim update %s: %w", id, err)
	}
	if updated == nil || len(*updated) == 0 || len((*updated)[0].Result) == 0 {
		return nil, jobstore.ErrLost
	}
	claimed := (*updated)[0].Result[0]
	return &claimed, nil
}

// Finalize verifies lease_owner = owner in the UPDATE's WHERE clause; an
// affected-row count of zero means the owner check failed (lease stolen).
func (s *Store) Finalize(ctx context.Context, id, owner string, now time.Time, t jobstore.Transition) error {
	set, vars := transitionSQL(t)
	vars["rid"] = rid(id)
	vars["owner"] = owner
	vars["now"] = now

	sql := "UPDATE $rid SET " + set + ", lease_owner = NONE, lease_until = NONE, updated_at = $now WHERE lease_owner = $owner"
	updated, err := surrealdb.Query[[]models.Job](ctx, s.db, sql, vars)
	if err != nil {
		return fmt.Errorf("surrealstore: finalize %s: %w", id, err)
	}
	if updated == nil || len(*updated) == 0 || len((*updated)[0].Result) == 0 {
		return jobstore.ErrLost
	}
	return nil
}

func transitionSQL(t jobstore.Transition) (string, map[string]any) {
	switch t.Kind() {
	case "completed":
		return "status = $status, last_error = ''", map[string]any{"status": models.JobStatusCompleted}
	case "reschedule-recurring":
		return "status = $status, attempts = 0, next_run_at = $next, last_error = ''", map[string]any{
			"status": models.JobStatusPending,
			"next":   t.Next(),
		}
	case "failed-retry":
		return "status = $status, next_run_at = $next, last_error = $last_error", map[string]any{
			"status":     models.JobStatusPending,
			"next":       t.RetryNext(),
			"last_error": t.LastError(),
		}
	default: // failed-terminal
		return "status = $status, last_error = $last_error", map[string]any{
			"status":     models.JobStatusFailed,
			"last_error": t.LastError(),
		}
	}
}

// Cancel: a conditional UPDATE whose WHERE clause requires status=pending,
// the same CAS pattern Claim's UPDATE uses — a concurrent Claim and Cancel
// race to be the one UPDATE whose WHERE clause still matches, and only one
// of them can affect the row. If this UPDATE affects zero rows, the record
// was claimed (or already terminal) first; fall back to a read to report
// why, with no mutation applied.
func (s *Store) Cancel(ctx context.Context, id string, now time.Time) (*models.Job, error) {
	updateSQL := "UPDATE $rid SET status = $cancelled, updated_at = $now WHERE status = $pending"
	vars := map[string]any{
		"rid":       rid(id),
		"cancelled": models.JobStatusCancelled,
		"now":       now,
		"pending":   models.JobStatusPending,
	}
	updated, err := surrealdb.Query[[]models.Job](ctx, s.db, updateSQL, vars)
	if err != nil {
		return nil, fmt.Errorf("surrealstore: cancel %s: %w", id, err)
	}
	if updated != nil && len(*updated) > 0 && len((*updated)[0].Result) > 0 {
		cancelled := (*updated)[0].Result[0]
		return &cancelled, nil
	}
	return s.Get(ctx, id)
}

func (s *Store) List(ctx context.Context, filter jobstore.Filter) ([]*models.Job, error) {
	sql := "SELECT " + selectFields + " FROM " + table
	vars := map[string]any{}
	clauses := ""
	if filter.Status != "" {
		clauses += " WHERE status = $status"
		vars["status"] = filter.Status
		if filter.Kind != "" {
			clauses += " AND kind = $kind"
			vars["kind"] = filter.Kind
		}
	} else if filter.Kind != "" {
		clauses += " WHERE kind = $kind"
		vars["kind"] = filter.Kind
	}
	sql += clauses + " ORDER BY next_run_at ASC"
	if filter.Limit > 0 {
		sql += " LIMIT $limit"
		vars["limit"] = filter.Limit
	}
	rows, err := surrealdb.Query[[]models.Job](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("surrealstore: list: %w", err)
	}
	var jobs []models.Job
	if rows != nil && len(*rows) > 0 {
		jobs = (*rows)[0].Result
	}
	result := make([]*models.Job, len(jobs))
	for i := range jobs {
		result[i] = &jobs[i]
	}
	return result, nil
}

func (s *Store) Close() error {
	return s.db.Close(context.Background())
}

var _ jobstore.Store = (*Store)(nil)
