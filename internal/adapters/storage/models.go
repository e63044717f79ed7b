package storage

import "time"

// GORM row models. Domain conversion lives in converter.go; map-valued
// fields are stored as JSON text so the schema stays portable across SQLite
// deployments.

// ScanModel is the GORM model for uploaded scans.
type ScanModel struct {
	ID          string `gorm:"primaryKey;size:36"`
	UserID      string `gorm:"size:36;index"`
	FilePath    string `gorm:"size:512"`
	Source      string `gorm:"size:128"`
	Status      string `gorm:"size:32"`
	Metadata    string `gorm:"type:text"`
	ProcessedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// AssetModel is the GORM model for assets. The natural key is
// (user_id, identifier).
type AssetModel struct {
	ID         string `gorm:"primaryKey;size:36"`
	UserID     string `gorm:"size:36;uniqueIndex:idx_assets_user_identifier"`
	Identifier string `gorm:"size:255;uniqueIndex:idx_assets_user_identifier"`
	Type       string `gorm:"size:32"`
	Metadata   string `gorm:"type:text"`
	FirstSeen  time.Time
	LastSeen   time.Time
}

// VulnerabilityModel is the GORM model for findings.
type VulnerabilityModel struct {
	ID      string `gorm:"primaryKey;size:36"`
	UserID  string `gorm:"size:36;index:idx_vulns_dedup"`
	ScanID  string `gorm:"size:36;index"`
	AssetID string `gorm:"size:36;index:idx_vulns_dedup"`

	PluginID string `gorm:"size:64;index"`
	CVEID    string `gorm:"size:64;index"`

	Title       string `gorm:"size:512"`
	Description string `gorm:"type:text"`
	Remediation string `gorm:"type:text"`

	Severity   string `gorm:"size:16"`
	CVSSScore  float64
	CVSSVector string `gorm:"size:128"`

	Port     int    `gorm:"index:idx_vulns_dedup"`
	Protocol string `gorm:"size:16"`

	Status  string `gorm:"size:32"`
	RawData string `gorm:"type:text"`

	FirstSeen time.Time
	LastSeen  time.Time
	ClosedAt  *time.Time
}

// JobModel is the GORM model for asynchronous jobs. The composite index
// backs the active-job idempotency lookup.
type JobModel struct {
	ID     string `gorm:"primaryKey;size:36"`
	ScanID string `gorm:"size:36;index:idx_jobs_scan_type"`
	UserID string `gorm:"size:36;index"`
	Type   string `gorm:"column:job_type;size:32;index:idx_jobs_scan_type"`

	Status   string `gorm:"size:16;index"`
	Progress int

	ErrorMessage string `gorm:"type:text"`
	ResultData   string `gorm:"type:text"`

	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}
