package gateway

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"speechplan/internal/message"
)

// jobRetention is how long a terminal job stays visible to pollers before
// the registry drops it.
const jobRetention = 15 * time.Minute

// JobRegistry tracks asynchronous transcription jobs. Jobs are created
// pending and move to exactly one terminal status; callers only ever see
// copies. Terminal jobs are evicted after a retention window so a long-lived
// daemon does not accumulate them.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]jobEntry
	ttl  time.Duration
	now  func() time.Time
}

// jobEntry pairs a job with the time it reached a terminal status.
type jobEntry struct {
	job    message.TranscriptionJob
	doneAt time.Time
}

// NewJobRegistry creates an empty registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{
		jobs: make(map[string]jobEntry),
		ttl:  jobRetention,
		now:  time.Now,
	}
}

// Create registers a new pending job and returns it. Expired terminal jobs
// are swept on the way in.
func (r *JobRegistry) Create() message.TranscriptionJob {
	job := message.TranscriptionJob{
		ID:        uuid.NewString(),
		Status:    message.JobPending,
		CreatedAt: r.now(),
	}

	r.mu.Lock()
	r.evictLocked()
	r.jobs[job.ID] = jobEntry{job: job}
	r.mu.Unlock()
	return job
}

// evictLocked drops terminal jobs older than the retention window. Pending
// jobs are never evicted.
func (r *JobRegistry) evictLocked() {
	cutoff := r.now().Add(-r.ttl)
	for id, e := range r.jobs {
		if !e.doneAt.IsZero() && e.doneAt.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}

// Get returns the job with the given id.
func (r *JobRegistry) Get(id string) (message.TranscriptionJob, bool) {
	r.mu.RLock()
	e, ok := r.jobs[id]
	r.mu.RUnlock()
	return e.job, ok
}

// Complete marks a job completed with its transcription result. Terminal
// jobs are left untouched.
func (r *JobRegistry) Complete(id, transcription string) {
	r.update(id, func(j *message.TranscriptionJob) {
		j.Status = message.JobCompleted
		j.Transcription = transcription
	})
}

// Fail marks a job failed with an error message. Terminal jobs are left
// untouched.
func (r *JobRegistry) Fail(id, errMsg string) {
	r.update(id, func(j *message.TranscriptionJob) {
		j.Status = message.JobError
		j.Error = errMsg
	})
}

func (r *JobRegistry) update(id string, fn func(*message.TranscriptionJob)) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.jobs[id]
	if !ok || e.job.Terminal() {
		return
	}
	fn(&e.job)
	if e.job.Terminal() {
		e.doneAt = r.now()
	}
	r.jobs[id] = e
}
