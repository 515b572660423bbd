package jobs

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of an aggregation job.
// PENDING -> RUNNING -> {COMPLETED | FAILED}; terminal states never move.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Result is the COMPLETED payload of an aggregation run.
type Result struct {
	TotalCustomers int   `json:"totalCustomers"`
	NewCount       int   `json:"newCount"`
	UpdatedCount   int   `json:"updatedCount"`
	UnchangedCount int   `json:"unchangedCount"`
	DurationMs     int64 `json:"durationMs"`
}

// Record is the polled job-status document. Created by the trigger call,
// mutated only by the worker executing the job.
type Record struct {
	JobID           string     `json:"jobId"`
	Status          Status     `json:"status"`
	Source          string     `json:"source"`
	CurrentStep     string     `json:"currentStep,omitempty"`
	ProgressPercent int        `json:"progressPercent"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	Result          *Result    `json:"result,omitempty"`
	ErrorMessage    string     `json:"errorMessage,omitempty"`
}

const (
	// Eviction kicks in only past this many records and only removes
	// terminal jobs older than retention, so polls never lose a live job.
	evictThreshold = 1000
	retention      = 24 * time.Hour
)

// Registry is the in-memory job-id -> record map shared across requests.
// All transitions go through guarded methods: a transition is applied only
// from the expected prior status, which makes the worker the single
// effective writer per job.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*Record
	now  func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]*Record), now: time.Now}
}

// Create adds a PENDING record and returns its id.
func (r *Registry) Create(source string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evictLocked()
	id := uuid.New().String()
	r.jobs[id] = &Record{
		JobID:     id,
		Status:    StatusPending,
		Source:    source,
		CreatedAt: r.now().UTC(),
	}
	return id
}

// Get returns a copy of the record, reporting absence rather than erroring.
func (r *Registry) Get(id string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.jobs[id]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// MarkRunning transitions PENDING -> RUNNING. Returns false when the job
// is unknown or already claimed, so double submission runs nothing twice.
func (r *Registry) MarkRunning(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[id]
	if !ok || rec.Status != StatusPending {
		return false
	}
	now := r.now().UTC()
	rec.Status = StatusRunning
	rec.StartedAt = &now
	return true
}

// SetProgress records a coarse milestone on a RUNNING job.
func (r *Registry) SetProgress(id, step string, percent int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[id]
	if !ok || rec.Status != StatusRunning {
		return
	}
	rec.CurrentStep = step
	rec.ProgressPercent = percent
}

// Complete transitions RUNNING -> COMPLETED with the result payload.
func (r *Registry) Complete(id string, res Result) bool {
	return r.finish(id, StatusCompleted, &res, "")
}

// Fail transitions RUNNING -> FAILED with the error message; the
// previously persisted summaries stay untouched.
func (r *Registry) Fail(id, errMsg string) bool {
	return r.finish(id, StatusFailed, nil, errMsg)
}

func (r *Registry) finish(id string, status Status, res *Result, errMsg string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.jobs[id]
	if !ok || rec.Status != StatusRunning {
		return false
	}
	now := r.now().UTC()
	rec.Status = status
	rec.CompletedAt = &now
	rec.Result = res
	rec.ErrorMessage = errMsg
	rec.ProgressPercent = 100
	rec.CurrentStep = ""
	return true
}

// evictLocked bounds memory: once the map is large, terminal records past
// the retention window are dropped. Callers hold the write lock.
func (r *Registry) evictLocked() {
	if len(r.jobs) < evictThreshold {
		return
	}
	cutoff := r.now().UTC().Add(-retention)
	for id, rec := range r.jobs {
		if rec.Status.Terminal() && rec.CompletedAt != nil && rec.CompletedAt.Before(cutoff) {
			delete(r.jobs, id)
		}
	}
}
