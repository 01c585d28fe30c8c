// Package job implements the background phone-verification engine: the
// per-caller job registry, the worker loop and the start/stop/status
// control surface.
package job

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/contact-verifier/internal/resolver"
)

// ErrJobExists is returned when a job entry already exists for a caller.
var ErrJobExists = errors.New("a job entry already exists for this caller")

// Job is the volatile, in-memory state of one background verification run.
// At most one exists per caller; its presence in the registry is the single
// source of truth for "a job is running".
type Job struct {
	OwnerID       string
	IsRunning     bool
	Total         int
	Checked       int
	Found         int
	LastUpdate    time.Time
	NextBatchTime *time.Time
	BatchSize     int
	Delay         time.Duration

	session resolver.Session   // attached once the worker connects
	cancel  context.CancelFunc // aborts the worker on shutdown
}

// Status is the caller-visible snapshot of a job.
type Status struct {
	IsRunning          bool       `json:"isRunning"`
	Total              int        `json:"total"`
	Checked            int        `json:"checked"`
	Found              int        `json:"found"`
	LastUpdate         *time.Time `json:"lastUpdate,omitempty"`
	NextBatchTime      *time.Time `json:"nextBatchTime,omitempty"`
	TimeUntilNextBatch int64      `json:"timeUntilNextBatch"`
}

// Registry is the process-wide table of active verification jobs, keyed by
// caller id. All access goes through its methods; the mutex keeps the
// controller and the worker loops consistent without distinct callers ever
// blocking one another for long.
type Registry struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewRegistry creates an empty job registry
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Job)}
}

// Create inserts a job entry. It fails with ErrJobExists if the caller
// already has one; this is what makes a second concurrent start impossible.
func (r *Registry) Create(job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.OwnerID]; exists {
		return ErrJobExists
	}
	r.jobs[job.OwnerID] = job
	return nil
}

// Exists reports whether a job entry exists for the caller
func (r *Registry) Exists(ownerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.jobs[ownerID]
	return exists
}

// Running reports whether the caller's job exists and is still flagged running
func (r *Registry) Running(ownerID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[ownerID]
	return exists && job.IsRunning
}

// NextBatchTime returns the caller's next-permitted-batch time, if any
func (r *Registry) NextBatchTime(ownerID string) (*time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[ownerID]
	if !exists {
		return nil, false
	}
	return job.NextBatchTime, true
}

// AttachSession stores the worker's open network session on the job entry.
// It returns false if the entry is already gone (stopped before the worker
// finished connecting); the caller then owns the session and must close it.
func (r *Registry) AttachSession(ownerID string, sess resolver.Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[ownerID]
	if !exists {
		return false
	}
	job.session = sess
	return true
}

// RecordProgress applies one completed batch to the caller's job entry.
// A no-op if the entry has been removed in the meantime.
func (r *Registry) RecordProgress(ownerID string, checked, found int, next *time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[ownerID]
	if !exists {
		return
	}
	job.Checked += checked
	job.Found += found
	job.LastUpdate = time.Now()
	job.NextBatchTime = next
}

// Snapshot returns the caller-visible status of a job. The second return is
// false when no entry exists.
func (r *Registry) Snapshot(ownerID string, now time.Time) (Status, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[ownerID]
	if !exists {
		return Status{}, false
	}

	status := Status{
		IsRunning:     job.IsRunning,
		Total:         job.Total,
		Checked:       job.Checked,
		Found:         job.Found,
		NextBatchTime: job.NextBatchTime,
	}
	if !job.LastUpdate.IsZero() {
		t := job.LastUpdate
		status.LastUpdate = &t
	}
	if job.NextBatchTime != nil {
		if wait := job.NextBatchTime.Sub(now).Milliseconds(); wait > 0 {
			status.TimeUntilNextBatch = wait
		}
	}
	return status, true
}

// Remove deletes the caller's job entry and returns it for teardown.
// The explicit-stop and worker-exit paths race here by design: whichever
// runs first gets the entry, the other sees ok=false and does nothing.
func (r *Registry) Remove(ownerID string) (*Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, exists := r.jobs[ownerID]
	if !exists {
		return nil, false
	}
	delete(r.jobs, ownerID)
	return job, true
}

// Owners returns the callers that currently have a job entry
func (r *Registry) Owners() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	owners := make([]string, 0, len(r.jobs))
	for owner := range r.jobs {
		owners = append(owners, owner)
	}
	return owners
}

// Len returns the number of active job entries
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.jobs)
}
