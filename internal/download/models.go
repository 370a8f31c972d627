package download

import "time"

// DownloadRequest is the body of POST /download
type DownloadRequest struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

// DownloadResult is returned for every orchestration outcome
type DownloadResult struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Filename string `json:"filename,omitempty"`
}

type JobStatusResponse struct {
	JobID    string  `json:"job_id"`
	Status   string  `json:"status"`
	Progress float64 `json:"progress"`
	URL      string  `json:"url"`
	Kind     string  `json:"kind"`
	Filename string  `json:"filename,omitempty"`
	Error    string  `json:"error,omitempty"`
}

type HealthResponse struct {
	Status     string    `json:"status"`
	ActiveJobs int       `json:"active_jobs"`
	Files      int       `json:"files"`
	Bytes      int64     `json:"bytes"`
	Timestamp  time.Time `json:"timestamp"`
}

// Options holds the settings that shape every extraction run
type Options struct {
	DownloadsDir  string
	UserAgent     string
	AudioFormat   string // container extension, e.g. "mp3"
	AudioQuality  string // e.g. "192K"
	Timeout       time.Duration
	MaxConcurrent int
}
