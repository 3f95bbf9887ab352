// package models defines the data model for the playlist crawler
package models

import (
	"fmt"
	"time"
)

// DefaultMaxRetries is the retry bound applied to jobs created without one.
const DefaultMaxRetries = 3

// JobStatus is the lifecycle state of a [PlaylistJob].
type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// ParseJobStatus converts a persisted status string into a [JobStatus].
func ParseJobStatus(s string) (JobStatus, error) {
	switch st := JobStatus(s); st {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown job status %q", s)
	}
}

// Terminal reports whether no further transitions leave this status.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s JobStatus) String() string { return string(s) }

// PlaylistJob is a unit of work: one page address to crawl.
type PlaylistJob struct {
	ID           string
	Sequence     int
	URL          string
	Status       JobStatus
	RetryCount   int
	MaxRetries   int
	ErrorMessage string
	OwnerID      string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	ProcessedAt  *time.Time
}

// NewPlaylistJob creates a pending job for url. A non-positive maxRetries falls back to [DefaultMaxRetries].
func NewPlaylistJob(url, ownerID string, maxRetries int) *PlaylistJob {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	now := time.Now()
	return &PlaylistJob{
		URL:        url,
		Status:     StatusPending,
		MaxRetries: maxRetries,
		OwnerID:    ownerID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Validate checks the job's invariants.
func (j *PlaylistJob) Validate() error {
	if j.URL == "" {
		return fmt.Errorf("job url is required")
	}
	if _, err := ParseJobStatus(string(j.Status)); err != nil {
		return err
	}
	if j.RetryCount < 0 {
		return fmt.Errorf("retry count must not be negative")
	}
	if j.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive")
	}
	return nil
}

// StatusUpdate is a partial mutation of a job. Nil fields are left unchanged.
type StatusUpdate struct {
	Status       JobStatus
	ErrorMessage *string
	RetryCount   *int
}

// Processing builds the update that claims a job for the current pass.
func Processing() StatusUpdate {
	return StatusUpdate{Status: StatusProcessing}
}

// Completed builds the update for a successful job.
func Completed() StatusUpdate {
	return StatusUpdate{Status: StatusCompleted}
}

// Retry builds a failure update that moves the job to pending or failed depending on whether retries remain.
//
// retryCount is the job's count before this failure; the returned update carries retryCount+1.
func Retry(retryCount, maxRetries int, cause error) StatusUpdate {
	next := retryCount + 1
	msg := cause.Error()
	status := StatusPending
	if next >= maxRetries {
		status = StatusFailed
	}
	return StatusUpdate{Status: status, ErrorMessage: &msg, RetryCount: &next}
}

// Fail builds a terminal failure update that leaves the retry count untouched.
func Fail(cause error) StatusUpdate {
	msg := cause.Error()
	return StatusUpdate{Status: StatusFailed, ErrorMessage: &msg}
}
