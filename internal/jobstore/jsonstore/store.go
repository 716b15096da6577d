// Package jsonstore implements jobstore.Store as a single jobs.json file
// under a data directory, guarded by an advisory file lock and rewritten
// atomically (write-to-temp + rename), matching the teacher's FileStore
// write-temp-then-rename idiom. Suitable for single-process development and
// for the scheduler's property tests; not safe for multiple processes
// sharing one data directory beyond the advisory lock's platform guarantees.
package jsonstore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/auriga-os/emonk/internal/jobstore"
	"github.com/auriga-os/emonk/internal/models"
	"golang.org/x/sys/unix"
)

const jobsFileName = "jobs.json"

// Store is a jobstore.Store backed by one JSON file on disk.
type Store struct {
	path string

	// mu excludes concurrent operations within this process; lockFile
	// additionally excludes other processes touching the same file via
	// flock, matching spec.md's "file lock held for the duration of each
	// atomic operation".
	mu       sync.Mutex
	lockFile *os.File
}

// New opens (creating if absent) a jobs.json under dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonstore: create data dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, jobsFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := atomicWrite(path, []models.Job{}); err != nil {
			return nil, fmt.Errorf("jsonstore: init %s: %w", path, err)
		}
	}
	lockPath := path + ".lock"
	lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("jsonstore: open lock file %s: %w", lockPath, err)
	}
	return &Store{path: path, lockFile: lockFile}, nil
}

// withLock serializes the operation against this process's own goroutines
// (mu) and, on POSIX, against other processes (flock on lockFile).
func (s *Store) withLock(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := unix.Flock(int(s.lockFile.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("jsonstore: flock: %w", err)
	}
	defer unix.Flock(int(s.lockFile.Fd()), unix.LOCK_UN)

	return fn()
}

func (s *Store) readAll() ([]models.Job, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("jsonstore: read %s: %w", s.path, err)
	}
	var jobs []models.Job
	if len(data) > 0 {
		if err := json.Unmarshal(data, &jobs); err != nil {
			return nil, fmt.Errorf("jsonstore: unmarshal %s: %w", s.path, err)
		}
	}
	return jobs, nil
}

func atomicWrite(path string, jobs []models.Job) error {
	dir := filepath.Dir(path)
	data, err := json.MarshalIndent(jobs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	tmpFile, err := os.CreateTemp(dir, ".tmp-jobs-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *Store) Put(_ context.Context, job *models.Job) error {
	return s.withLock(func() error {
		jobs, err := s.readAll()
		if err != nil {
			return err
		}
		replaced := false
		for i := range jobs {
			if jobs[i].ID == job.ID {
				jobs[i] = *job.Clone()
				replaced = true
				break
			}
		}
		if !replaced {
			jobs = append(jobs, *job.Clone())
		}
		return atomicWrite(s.path, jobs)
	})
}

func (s *Store) Get(_ context.Context, id string) (*models.Job, error) {
	var found *models.Job
	err := s.withLock(func() error {
		jobs, err := s.readAll()
		if err != nil {
			return err
		}
		for i := range jobs {
			if jobs[i].ID == id {
				found = jobs[i].Clone()
				return nil
			}
		}
		return jobstore.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}

func (s *Store) ListDue(_ context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	err := s.withLock(func() error {
		jobs, err := s.readAll()
		if err != nil {
			return err
		}
		due := make([]models.Job, 0, len(jobs))
		for _, j := range jobs {
			if j.Status == models.JobStatusPending && !j.NextRunAt.After(now) {
				due = append(due, j)
			}
		}
		sort.Slice(due, func(i, k int) bool { return due[i].NextRunAt.Before(due[k].NextRunAt) })
		if limit > 0 && len(due) > limit {
			due = due[:limit]
		}
		ids = make([]string, len(due))
		for i, j := range due {
			ids[i] = j.ID
		}
		return nil
	})
	return ids, err
}

func (s *Store) Claim(_ context.Context, id, owner string, now time.Time, leaseDuration time.Duration) (*models.Job, error) {
	var claimed *models.Job
	err := s.withLock(func() error {
		jobs, err := s.readAll()
		if err != nil {
			return err
		}
		for i := range jobs {
			if jobs[i].ID != id {
				continue
			}
			j := &jobs[i]
			eligible := j.Status == models.JobStatusPending ||
				(j.Status == models.JobStatusRunning && j.LeaseUntil.Before(now))
			if !eligible {
				return jobstore.ErrLost
			}
			j.Status = models.JobStatusRunning
			j.LeaseOwner = owner
			j.LeaseUntil = now.Add(leaseDuration)
			j.Attempts++
			j.UpdatedAt = now
			if err := atomicWrite(s.path, jobs); err != nil {
				return err
			}
			claimed = j.Clone()
			return nil
		}
		return jobstore.ErrLost
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (s *Store) Finalize(_ context.Context, id, owner string, now time.Time, t jobstore.Transition) error {
	return s.withLock(func() error {
		jobs, err := s.readAll()
		if err != nil {
			return err
		}
		for i := range jobs {
			if jobs[i].ID != id {
				continue
			}
			j := &jobs[i]
			if j.LeaseOwner != owner {
				return jobstore.ErrLost
			}
			applyTransition(j, t, now)
			return atomicWrite(s.path, jobs)
		}
		return jobstore.ErrLost
	})
}

func applyTransition(j *models.Job, t jobstore.Transition, now time.Time) {
	j.LeaseOwner = ""
	j.LeaseUntil = time.Time{}
	j.UpdatedAt = now

	switch t.Kind() {
	case "completed":
		j.Status = models.JobStatusCompleted
		j.LastError = ""
	case "reschedule-recurring":
		j.Status = models.JobStatusPending
		j.Attempts = 0
		j.NextRunAt = t.Next()
		j.LastError = ""
	case "failed-retry":
		j.Status = models.JobStatusPending
		j.NextRunAt = t.RetryNext()
		j.LastError = t.LastError()
	case "failed-terminal":
		j.Status = models.JobStatusFailed
		j.LastError = t.LastError()
	}
}

// Cancel runs under the same withLock as Claim, so the read-check-write is
// serialized against any concurrent Claim on this process (and, via flock,
// any other process) — there is no gap between observing status=pending and
// writing status=cancelled for a racing Claim to land in.
func (s *Store) Cancel(_ context.Context, id string, now time.Time) (*models.Job, error) {
	var result *models.Job
	err := s.withLock(func() error {
		jobs, err := s.readAll()
		if err != nil {
			return err
		}
		for i := range jobs {
			if jobs[i].ID != id {
				continue
			}
			j := &jobs[i]
			if j.Status != models.JobStatusPending {
				result = j.Clone()
				return nil
			}
			j.Status = models.JobStatusCancelled
			j.UpdatedAt = now
			if err := atomicWrite(s.path, jobs); err != nil {
				return err
			}
			result = j.Clone()
			return nil
		}
		return jobstore.ErrNotFound
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) List(_ context.Context, filter jobstore.Filter) ([]*models.Job, error) {
	var result []*models.Job
	err := s.withLock(func() error {
		jobs, err := s.readAll()
		if err != nil {
			return err
		}
		for i := range jobs {
			j := &jobs[i]
			if filter.Status != "" && j.Status != filter.Status {
				continue
			}
			if filter.Kind != "" && j.Kind != filter.Kind {
				continue
			}
			result = append(result, j.Clone())
			if filter.Limit > 0 && len(result) >= filter.Limit {
				break
			}
		}
		return nil
	})
	return result, err
}

func (s *Store) Close() error {
	return s.lockFile.Close()
}

var _ jobstore.Store = (*Store)(nil)
