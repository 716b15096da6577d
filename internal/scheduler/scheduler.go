// Package scheduler implements the stateless scheduler core: given a clock,
// a jobstore.Store, and a Registry, Tick performs one scan -> claim ->
// execute -> finalize cycle.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/auriga-os/emonk/internal/clock"
	"github.com/auriga-os/emonk/internal/common"
	"github.com/auriga-os/emonk/internal/jobstore"
	"github.com/auriga-os/emonk/internal/models"
)

// DefaultConcurrency bounds per-tick parallelism (spec.md §4.2/§5).
const DefaultConcurrency = 8

// DefaultSafetyMargin is subtracted from lease_until to compute a handler's
// deadline, leaving headroom for finalize to run before the lease expires.
const DefaultSafetyMargin = 10 * time.Second

// Budget caps one tick's wall-clock time and number of jobs considered.
type Budget struct {
	MaxDuration time.Duration // default 60s
	Limit       int           // default 100
}

// DefaultBudget returns spec.md's default tick budget.
func DefaultBudget() Budget {
	return Budget{MaxDuration: 60 * time.Second, Limit: 100}
}

// TickReport summarizes one tick for observability. Never carries a per-job
// error — only a global precondition failure surfaces as an error from Tick.
type TickReport struct {
	Checked    int           `json:"checked"`
	Claimed    int           `json:"claimed"`
	Succeeded  int           `json:"succeeded"`
	Failed     int           `json:"failed"`
	Retried    int           `json:"retried"`
	Skipped    int           `json:"skipped"`
	DurationMS int64         `json:"duration_ms"`
	OwnerID    string        `json:"owner_id"`
	Duration   time.Duration `json:"-"`
}

// Scheduler orchestrates ticks against one Store and one Registry.
type Scheduler struct {
	Store         jobstore.Store
	Registry      *Registry
	Clock         clock.Clock
	OwnerID       string
	Logger        *common.Logger
	Concurrency   int
	SafetyMargin  time.Duration
	HandlerTimeout time.Duration // default per-job timeout used to derive lease_duration
	Backoff       BackoffPolicy
}

// New returns a Scheduler with spec.md defaults filled in for zero fields.
func New(store jobstore.Store, registry *Registry, clk clock.Clock, ownerID string, logger *common.Logger) *Scheduler {
	return &Scheduler{
		Store:          store,
		Registry:       registry,
		Clock:          clk,
		OwnerID:        ownerID,
		Logger:         logger,
		Concurrency:    DefaultConcurrency,
		SafetyMargin:   DefaultSafetyMargin,
		HandlerTimeout: 5 * time.Minute,
		Backoff:        NewBackoffPolicy(),
	}
}

// leaseDuration is max(handler timeout * 1.5, 5 min) per spec.md §4.2.
func (s *Scheduler) leaseDuration() time.Duration {
	candidate := time.Duration(float64(s.HandlerTimeout) * 1.5)
	if candidate < 5*time.Minute {
		return 5 * time.Minute
	}
	return candidate
}

// Tick runs one scan -> claim -> execute -> finalize cycle. Only a global
// precondition failure (store unreachable) is returned as an error; per-job
// faults are reflected in the TickReport.
func (s *Scheduler) Tick(ctx context.Context, budget Budget) (*TickReport, error) {
	if budget.MaxDuration <= 0 {
		budget = DefaultBudget()
	}
	start := s.Clock.Now()
	tickCtx, cancel := context.WithTimeout(ctx, budget.MaxDuration)
	defer cancel()

	ids, err := s.Store.ListDue(tickCtx, start, budget.Limit)
	if err != nil {
		return nil, fmt.Errorf("scheduler: list_due: %w", err)
	}

	report := &TickReport{OwnerID: s.OwnerID, Checked: len(ids)}

	concurrency := s.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	sem := make(chan struct{}, concurrency)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, id := range ids {
		id := id
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					s.Logger.Error().
						Str("job_id", id).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(debug.Stack())).
						Msg("recovered from panic in tick worker")
				}
			}()
			outcome := s.processOne(tickCtx, id, start)
			mu.Lock()
			applyOutcome(report, outcome)
			mu.Unlock()
		}()
	}
	wg.Wait()

	report.Duration = s.Clock.Now().Sub(start)
	report.DurationMS = report.Duration.Milliseconds()
	return report, nil
}

type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeSucceeded
	outcomeRetried
	outcomeFailed
)

func applyOutcome(r *TickReport, o outcome) {
	switch o {
	case outcomeSkipped:
		r.Skipped++
	case outcomeSucceeded:
		r.Claimed++
		r.Succeeded++
	case outcomeRetried:
		r.Claimed++
		r.Retried++
	case outcomeFailed:
		r.Claimed++
		r.Failed++
	}
}

// processOne claims id, dispatches to its handler, and finalizes the result.
func (s *Scheduler) processOne(ctx context.Context, id string, now time.Time) outcome {
	job, err := s.Store.Claim(ctx, id, s.OwnerID, now, s.leaseDuration())
	if err != nil {
		if err != jobstore.ErrLost {
			s.Logger.Warn().Str("job_id", id).Err(err).Msg("claim failed with a non-lease error")
		}
		return outcomeSkipped
	}

	handler, lookupErr := s.Registry.Lookup(job.Kind)
	if lookupErr != nil {
		return s.finalizeFailure(ctx, job, now, ErrUnknownKindMessage, true)
	}

	deadline := job.LeaseUntil.Add(-s.SafetyMargin)
	handlerCtx, cancel := context.WithDeadline(ctx, deadline)
	runErr := s.invoke(handlerCtx, handler, job.Payload)
	cancel()

	if runErr == nil {
		return s.finalizeSuccess(ctx, job, now)
	}

	lastError := runErr.Error()
	if handlerCtx.Err() == context.DeadlineExceeded {
		lastError = "timeout"
	}
	terminal := job.Attempts >= job.MaxAttempts
	return s.finalizeFailure(ctx, job, now, lastError, terminal)
}

// invoke runs handler, converting a panic into a transient error so one
// faulty handler never takes down a tick.
func (s *Scheduler) invoke(ctx context.Context, h Handler, payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return h(ctx, payload)
}

func (s *Scheduler) finalizeSuccess(ctx context.Context, job *models.Job, now time.Time) outcome {
	var t jobstore.Transition
	if job.Schedule.Kind == models.ScheduleAt {
		t = jobstore.Completed()
	} else {
		next, err := AdvanceRecurring(job.Schedule, now)
		if err != nil {
			s.Logger.Error().Str("job_id", job.ID).Err(err).Msg("failed to compute recurring advance; marking completed")
			t = jobstore.Completed()
		} else {
			t = jobstore.RescheduleRecurring(next)
		}
	}
	if err := s.Store.Finalize(ctx, job.ID, s.OwnerID, now, t); err != nil {
		s.Logger.Info().Str("job_id", job.ID).Msg("finalize lost lease after success; another replica owns this job now")
		return outcomeSkipped
	}
	return outcomeSucceeded
}

func (s *Scheduler) finalizeFailure(ctx context.Context, job *models.Job, now time.Time, lastError string, terminal bool) outcome {
	var t jobstore.Transition
	result := outcomeRetried
	if terminal {
		t = jobstore.FailedTerminal(lastError)
		result = outcomeFailed
	} else {
		next := now.Add(s.Backoff.Delay(job.Attempts))
		t = jobstore.FailedRetry(next, lastError)
	}
	if err := s.Store.Finalize(ctx, job.ID, s.OwnerID, now, t); err != nil {
		s.Logger.Info().Str("job_id", job.ID).Msg("finalize lost lease after failure; another replica owns this job now")
		return outcomeSkipped
	}
	return result
}
