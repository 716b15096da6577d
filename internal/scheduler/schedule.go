package scheduler

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/auriga-os/emonk/internal/models"
	"github.com/auriga-os/emonk/internal/scheduler/cronexpr"
)

// Default backoff parameters (spec.md §4.2): base=30s, cap=15min.
const (
	DefaultBackoffBase = 30 * time.Second
	DefaultBackoffCap  = 15 * time.Minute
)

// BackoffPolicy computes the delay before a retried job re-enters pending.
type BackoffPolicy struct {
	Base time.Duration
	Cap  time.Duration
	// rand, if non-nil, is used instead of the package-level source; tests
	// substitute a deterministic source to pin jitter.
	rand *rand.Rand
}

// NewBackoffPolicy returns a policy with spec.md's default base/cap.
func NewBackoffPolicy() BackoffPolicy {
	return BackoffPolicy{Base: DefaultBackoffBase, Cap: DefaultBackoffCap}
}

// Delay returns backoff(n) = min(cap, base*2^(n-1)) * U(0.5, 1.5) for the
// n-th failed attempt (n >= 1).
func (p BackoffPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	base := p.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	cap := p.Cap
	if cap <= 0 {
		cap = DefaultBackoffCap
	}

	// base * 2^(n-1), saturating rather than overflowing for large n.
	raw := base
	for i := 1; i < attempt && raw < cap; i++ {
		raw *= 2
	}
	if raw > cap {
		raw = cap
	}

	jitter := 0.5 + p.source().Float64() // U(0.5, 1.5)
	return time.Duration(float64(raw) * jitter)
}

func (p BackoffPolicy) source() *rand.Rand {
	if p.rand != nil {
		return p.rand
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// ValidateSchedule checks that a Schedule is well-formed without computing
// next_run_at. Used by the Job API's schedule() precondition check.
func ValidateSchedule(s models.Schedule) error {
	switch s.Kind {
	case models.ScheduleAt:
		if s.At.IsZero() {
			return fmt.Errorf("scheduler: at() requires a non-zero time")
		}
		return nil
	case models.ScheduleCron:
		if s.Timezone == "" {
			return fmt.Errorf("scheduler: cron() requires a timezone")
		}
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("scheduler: cron() invalid timezone %q: %w", s.Timezone, err)
		}
		if _, err := cronexpr.Parse(s.CronExpr); err != nil {
			return fmt.Errorf("scheduler: malformed cron expression: %w", err)
		}
		return nil
	case models.ScheduleEvery:
		if s.Every <= 0 {
			return fmt.Errorf("scheduler: every() requires a positive duration")
		}
		return nil
	default:
		return fmt.Errorf("scheduler: unknown schedule kind %q", s.Kind)
	}
}

// InitialNextRunAt computes the first next_run_at for a freshly scheduled job.
func InitialNextRunAt(s models.Schedule, now time.Time) (time.Time, error) {
	switch s.Kind {
	case models.ScheduleAt:
		return s.At, nil
	case models.ScheduleEvery:
		return now.Add(s.Every), nil
	case models.ScheduleCron:
		loc, err := time.LoadLocation(s.Timezone)
		if err != nil {
			return time.Time{}, err
		}
		expr, err := cronexpr.Parse(s.CronExpr)
		if err != nil {
			return time.Time{}, err
		}
		return expr.Next(now, loc).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("scheduler: unknown schedule kind %q", s.Kind)
	}
}

// AdvanceRecurring computes the next fire time strictly after executionStart
// for a recurring (cron or every) schedule. Callers must not call this for
// ScheduleAt — one-shot jobs complete rather than advance.
func AdvanceRecurring(s models.Schedule, executionStart time.Time) (time.Time, error) {
	switch s.Kind {
	case models.ScheduleEvery:
		return executionStart.Add(s.Every), nil
	case models.ScheduleCron:
		loc, err := time.LoadLocation(s.Timezone)
		if err != nil {
			return time.Time{}, err
		}
		expr, err := cronexpr.Parse(s.CronExpr)
		if err != nil {
			return time.Time{}, err
		}
		return expr.Next(executionStart, loc).UTC(), nil
	default:
		return time.Time{}, fmt.Errorf("scheduler: %q is not a recurring schedule", s.Kind)
	}
}
