package download

import (
	"context"
	"sync"
	"time"

	"vidfetch-backend/pkg/models"

	"github.com/rs/zerolog/log"
)

const (
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"

	jobTTL           = 24 * time.Hour
	jobSweepInterval = time.Hour
)

type job struct {
	url          string
	kind         models.Kind
	createdAt    time.Time
	status       string
	progress     float64
	filename     string
	errorMessage string
}

// JobManager tracks the progress of downloads by request ID.
// It provides thread-safe storage and retrieval of job state.
type JobManager struct {
	jobs map[string]*job
	mu   sync.RWMutex
	now  func() time.Time
}

func NewJobManager() *JobManager {
	return &JobManager{
		jobs: make(map[string]*job),
		now:  time.Now,
	}
}

// StartCleanup removes finished jobs older than a day, once an hour, until ctx is done
func (jm *JobManager) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(jobSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := jm.sweep(); removed > 0 {
				log.Debug().Str("op", "download/jobs").Int("removed", removed).Msg("expired jobs removed")
			}
		}
	}
}

func (jm *JobManager) sweep() int {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	now := jm.now()
	removed := 0
	for jobID, j := range jm.jobs {
		if j.status == JobStatusProcessing {
			continue
		}
		if now.Sub(j.createdAt) > jobTTL {
			delete(jm.jobs, jobID)
			removed++
		}
	}
	return removed
}

// Store starts tracking a job. It reports false when the ID is empty or
// already belongs to a job that is still processing.
func (jm *JobManager) Store(jobID, url string, kind models.Kind) bool {
	if jobID == "" {
		return false
	}
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if j, exists := jm.jobs[jobID]; exists && j.status == JobStatusProcessing {
		return false
	}
	jm.jobs[jobID] = &job{
		url:       url,
		kind:      kind,
		createdAt: jm.now(),
		status:    JobStatusProcessing,
	}
	return true
}

func (jm *JobManager) UpdateProgress(jobID string, percent float64) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if j, exists := jm.jobs[jobID]; exists && j.status == JobStatusProcessing {
		j.progress = percent
	}
}

func (jm *JobManager) MarkCompleted(jobID, filename string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if j, exists := jm.jobs[jobID]; exists {
		j.status = JobStatusCompleted
		j.filename = filename
		j.progress = 100
	}
}

func (jm *JobManager) MarkFailed(jobID, errorMessage string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	if j, exists := jm.jobs[jobID]; exists {
		j.status = JobStatusFailed
		j.errorMessage = errorMessage
	}
}

// Get returns a snapshot of the job
func (jm *JobManager) Get(jobID string) (JobStatusResponse, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	j, exists := jm.jobs[jobID]
	if !exists {
		return JobStatusResponse{}, false
	}
	return JobStatusResponse{
		JobID:    jobID,
		Status:   j.status,
		Progress: j.progress,
		URL:      j.url,
		Kind:     j.kind.String(),
		Filename: j.filename,
		Error:    j.errorMessage,
	}, true
}

// ActiveCount returns the number of jobs still processing
func (jm *JobManager) ActiveCount() int {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	count := 0
	for _, j := range jm.jobs {
		if j.status == JobStatusProcessing {
			count++
		}
	}
	return count
}
