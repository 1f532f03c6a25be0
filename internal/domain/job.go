package domain

import "time"

// JobStatus represents the status of a scrape job.
// Values include JobStatusPending, JobStatusRunning, JobStatusReady, JobStatusFailed and JobStatusTimedOut.
type JobStatus string

const (
	JobStatusPending  JobStatus = "pending"
	JobStatusRunning  JobStatus = "running"
	JobStatusReady    JobStatus = "ready"
	JobStatusFailed   JobStatus = "failed"
	JobStatusTimedOut JobStatus = "timed_out"
)

// IsTerminal reports whether no further transition may leave this status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusReady, JobStatusFailed, JobStatusTimedOut:
		return true
	default:
		return false
	}
}

// ScrapeJob tracks one in-flight profile scrape for the lifetime of a single request.
type ScrapeJob struct {
	SourceURL  string     `json:"source_url"`
	JobID      string     `json:"job_id,omitempty"`
	Status     JobStatus  `json:"status"`
	Attempts   int        `json:"attempts"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// JobEvent is emitted on every status transition of a ScrapeJob.
type JobEvent struct {
	SourceURL string    `json:"source_url"`
	JobID     string    `json:"job_id,omitempty"`
	From      JobStatus `json:"from,omitempty"`
	To        JobStatus `json:"to"`
	Attempt   int       `json:"attempt"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}
