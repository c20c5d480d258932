package job

import (
	"context"
	"encoding/json"
	"time"
)

// JobType represents the kind of job
type JobType string

const (
	JobExport JobType = "export"
)

// JobStatus represents the current state of a job
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

// Finished reports whether the job reached a terminal state.
func (s JobStatus) Finished() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Job represents a queued task belonging to a project
type Job struct {
	ID          string          `json:"id"`
	Type        JobType         `json:"type"`
	Status      JobStatus       `json:"status"`
	ProjectID   string          `json:"project_id"`
	Params      json.RawMessage `json:"params"`
	Progress    float64         `json:"progress"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedBy   int64           `json:"created_by"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// ExportParams are parameters for an export job
type ExportParams struct {
	Format   string `json:"format"`             // "docx", "srt", "vtt", "html", "project"
	Strategy string `json:"strategy,omitempty"` // docx only: "rebuild" or "patch"
}

// ExportResult is the output of a successful export
type ExportResult struct {
	Path     string  `json:"path"` // relative to the export directory
	Name     string  `json:"name"`
	Size     int     `json:"size"`
	Missing  []int64 `json:"missing,omitempty"` // segments whose anchor was not found
	Duration float64 `json:"duration"`          // processing time in seconds
}

// JobHandler processes a job and returns a JSON-encodable result.
type JobHandler func(ctx context.Context, job *Job, updateProgress func(float64)) (interface{}, error)
