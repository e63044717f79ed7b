package domain

import "time"

// Scan statuses. A scan stays "queued" until a parse job completes, so a
// failed job is distinguishable from success and can be retried.
const (
	ScanQueued    = "queued"
	ScanProcessed = "processed"
)

// Scan is one uploaded scanner output file with its processing lifecycle.
type Scan struct {
	ID       string         `json:"id"`
	UserID   string         `json:"user_id"`
	FilePath string         `json:"file_path"` // relative to the upload root
	Source   string         `json:"source,omitempty"`
	Status   string         `json:"status"`
	Metadata map[string]any `json:"metadata,omitempty"`

	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
