package jobs

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Multi-day historical queries walk the provider one day at a time with
// throttle delays, so they can take many seconds. The Runner lets a caller
// (chat bot, dashboard) acknowledge immediately and poll for the result.

// Status is the lifecycle of one background query.
type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Job is the observable state of one background query.
type Job struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	Submitted time.Time `json:"submitted"`
	Finished  time.Time `json:"finished,omitzero"`
}

// Runner executes queries in the background and retains finished jobs for a
// bounded time so results can be collected.
type Runner struct {
	mu        sync.Mutex
	jobs      map[string]*Job
	retention time.Duration
}

// NewRunner creates a Runner. retention bounds how long finished jobs stay
// collectible; <= 0 means one hour.
func NewRunner(retention time.Duration) *Runner {
	if retention <= 0 {
		retention = time.Hour
	}
	return &Runner{
		jobs:      make(map[string]*Job),
		retention: retention,
	}
}

// Submit starts fn in the background and returns the job ID immediately.
func (r *Runner) Submit(fn func() (string, error)) string {
	id := uuid.NewString()
	job := &Job{
		ID:        id,
		Status:    StatusRunning,
		Submitted: time.Now(),
	}

	r.mu.Lock()
	r.prune()
	r.jobs[id] = job
	r.mu.Unlock()

	go func() {
		result, err := fn()

		r.mu.Lock()
		defer r.mu.Unlock()
		job.Finished = time.Now()
		if err != nil {
			log.Printf("job %s failed: %v", id, err)
			job.Status = StatusFailed
			job.Error = err.Error()
			return
		}
		job.Status = StatusDone
		job.Result = result
	}()

	return id
}

// Get returns a copy of the job state.
func (r *Runner) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// prune drops finished jobs older than the retention window. Caller holds
// the lock.
func (r *Runner) prune() {
	cutoff := time.Now().Add(-r.retention)
	for id, job := range r.jobs {
		if job.Status != StatusRunning && !job.Finished.IsZero() && job.Finished.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}
