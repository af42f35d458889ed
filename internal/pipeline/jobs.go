package pipeline

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/dgallion1/notegest/internal/document"
	"github.com/google/uuid"
)

// JobStatus represents the state of a notes compilation job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusSplitting  JobStatus = "splitting"
	StatusParsing    JobStatus = "parsing"
	StatusPublishing JobStatus = "publishing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
)

// Done reports whether the status is terminal.
func (s JobStatus) Done() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial:
		return true
	}
	return false
}

// Job tracks the state of a single notes file.
type Job struct {
	mu sync.Mutex

	ID     string `json:"job_id"`
	DocID  string `json:"doc_id"`
	UserID string `json:"user_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`

	Progress Progress `json:"progress"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	result   *document.Document
	errors   []string
}

// Progress tracks processing progress.
type Progress struct {
	TotalBlocks       int      `json:"total_blocks"`
	SectionsParsed    int      `json:"sections_parsed"`
	SectionsPublished int      `json:"sections_published"`
	LinksPublished    int      `json:"links_published"`
	Errors            []string `json:"errors"`
}

// NewJob returns a queued job for one uploaded file. An empty docID is
// derived from the file content.
func NewJob(userID, docID, filename, title string, data []byte) *Job {
	if docID == "" {
		docID = ContentHashHex(data)[:16]
	}
	now := time.Now()
	return &Job{
		ID:        uuid.New().String(),
		DocID:     docID,
		UserID:    userID,
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Len returns the number of tracked jobs.
func (s *JobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// SetTotalBlocks records how many blocks the file was split into.
func (j *Job) SetTotalBlocks(n int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.TotalBlocks = n
	j.UpdatedAt = time.Now()
}

// SetResult stores the compiled document and its section count.
func (j *Job) SetResult(doc *document.Document) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.result = doc
	j.Progress.SectionsParsed = len(doc.Sections)
	j.UpdatedAt = time.Now()
}

// AddPublished records published section and link counts.
func (j *Job) AddPublished(sections, links int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Progress.SectionsPublished += sections
	j.Progress.LinksPublished += links
	j.UpdatedAt = time.Now()
}

// Result returns the compiled document, or nil before compilation finished.
func (j *Job) Result() *document.Document {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseFileData drops the upload once it has been split.
func (j *Job) releaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID        string    `json:"job_id"`
	DocID     string    `json:"doc_id"`
	UserID    string    `json:"user_id"`
	Status    JobStatus `json:"status"`
	Phase     string    `json:"phase"`
	Filename  string    `json:"filename"`
	Title     string    `json:"title"`
	Progress  Progress  `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	errs := append([]string{}, j.Progress.Errors...)
	p := j.Progress
	p.Errors = errs
	return JobSnapshot{
		ID:        j.ID,
		DocID:     j.DocID,
		UserID:    j.UserID,
		Status:    j.Status,
		Phase:     j.Phase,
		Filename:  j.Filename,
		Title:     j.Title,
		Progress:  p,
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
