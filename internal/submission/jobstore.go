package submission

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quarterly-dev/quarterly/internal/aggregate"
	"github.com/quarterly-dev/quarterly/internal/category"
	"github.com/quarterly-dev/quarterly/internal/classify"
	"github.com/quarterly-dev/quarterly/internal/period"
)

// JobStatus tracks an async submission's lifecycle.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Job is one async submission run.
type Job struct {
	ID           string
	Status       JobStatus
	BusinessType category.BusinessType
	Period       period.Period
	CreatedAt    time.Time
	Completed    int
	Total        int
	Percentage   float64
	Result       *classify.BatchResult
	Report       *aggregate.Report
	Error        string
}

// NewJob creates a pending job for a submission.
func NewJob(bt category.BusinessType, p period.Period, total int) *Job {
	return &Job{
		ID:           uuid.NewString(),
		Status:       JobPending,
		BusinessType: bt,
		Period:       p,
		CreatedAt:    time.Now(),
		Total:        total,
	}
}

// JobStore manages in-memory async submission jobs with TTL cleanup.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
	ttl  time.Duration
	done chan struct{}
}

// NewJobStore creates a job store with background cleanup.
func NewJobStore(ttl time.Duration) *JobStore {
	js := &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
		done: make(chan struct{}),
	}
	go js.cleanup()
	return js
}

// Create stores a new job.
func (js *JobStore) Create(job *Job) error {
	if job.ID == "" {
		return fmt.Errorf("job ID is required")
	}
	js.mu.Lock()
	defer js.mu.Unlock()
	js.jobs[job.ID] = job
	return nil
}

// Get retrieves a copy of a job by ID.
func (js *JobStore) Get(id string) (*Job, error) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	job, ok := js.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	copied := *job
	return &copied, nil
}

// Update applies fn to the stored job under the write lock.
func (js *JobStore) Update(id string, fn func(*Job)) error {
	js.mu.Lock()
	defer js.mu.Unlock()
	job, ok := js.jobs[id]
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}
	fn(job)
	return nil
}

// Stop signals the background cleanup goroutine to exit.
func (js *JobStore) Stop() {
	close(js.done)
}

func (js *JobStore) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-js.done:
			return
		case <-ticker.C:
			js.mu.Lock()
			now := time.Now()
			for id, job := range js.jobs {
				if now.Sub(job.CreatedAt) > js.ttl {
					delete(js.jobs, id)
				}
			}
			js.mu.Unlock()
		}
	}
}
