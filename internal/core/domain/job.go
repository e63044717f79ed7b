package domain

import (
	"fmt"
	"time"
)

// JobType identifies one kind of asynchronous work. Closed set; Enqueue
// rejects anything else.
type JobType string

const (
	JobParseScan        JobType = "parse_scan"
	JobMLAnalysis       JobType = "ml_analysis"
	JobJiraCreation     JobType = "jira_creation"
	JobReportGeneration JobType = "report_generation"
)

// JobTypes returns all valid job types in a fixed order.
func JobTypes() []JobType {
	return []JobType{JobParseScan, JobMLAnalysis, JobJiraCreation, JobReportGeneration}
}

// Valid reports whether t belongs to the closed job type set.
func (t JobType) Valid() bool {
	switch t {
	case JobParseScan, JobMLAnalysis, JobJiraCreation, JobReportGeneration:
		return true
	}
	return false
}

// JobStatus is the job state machine: pending -> running -> terminal.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether s is a final state.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Job records one unit of asynchronous work. At most one non-terminal Job
// exists per (ScanID, Type) at any time.
type Job struct {
	ID     string  `json:"id"`
	ScanID string  `json:"scan_id"`
	UserID string  `json:"user_id"`
	Type   JobType `json:"job_type"`

	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"` // 0-100

	ErrorMessage string         `json:"error_message,omitempty"`
	Result       map[string]any `json:"result,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// JobPayload is the message published on a job-type delivery channel.
// It is encoded as plain JSON: decoding a payload must never be able to
// execute anything.
type JobPayload struct {
	JobID          string            `json:"job_id"`
	JobType        JobType           `json:"job_type"`
	ScanID         string            `json:"scan_id"`
	UserID         string            `json:"user_id"`
	FilePath       string            `json:"file_path"` // relative to the upload root
	IdempotencyKey string            `json:"idempotency_key"`
	CreatedAt      time.Time         `json:"created_at"`
	RetryCount     int               `json:"retry_count"`
	Meta           map[string]string `json:"meta,omitempty"`
}

// IdempotencyKey derives the duplicate-suppression key for (scan, job type).
func IdempotencyKey(scanID string, t JobType) string {
	return fmt.Sprintf("scan:%s:%s", scanID, t)
}
