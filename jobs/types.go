package jobs

import (
	"context"
	"errors"
	"time"

	"go-recon/models"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	JobStatusQueued    JobStatus = "queued"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

var (
	// ErrJobNotFound is returned for unknown or expired job IDs.
	ErrJobNotFound = errors.New("job not found")
	// ErrClosed is returned by Submit once the manager is shutting down.
	ErrClosed = errors.New("job manager closed")
)

// Scanner is the scan contract a job executes.
type Scanner interface {
	Scan(ctx context.Context, rawDomain string, limit int) (*models.ScanReport, error)
}

// Job represents a scan job with its full lifecycle state
type Job struct {
	ID        string             `json:"id"`
	Domain    string             `json:"domain"`
	Limit     int                `json:"limit,omitempty"`
	Status    JobStatus          `json:"status"`
	Report    *models.ScanReport `json:"report,omitempty"`
	Error     string             `json:"error,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	StartedAt *time.Time         `json:"started_at,omitempty"`
	EndedAt   *time.Time         `json:"ended_at,omitempty"`
}

// Finished reports whether the job reached a terminal state.
func (j *Job) Finished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// Stats summarizes the queue.
type Stats struct {
	Running       int `json:"running"`
	Queued        int `json:"queued"`
	MaxConcurrent int `json:"max_concurrent"`
}
