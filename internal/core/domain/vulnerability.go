package domain

import "time"

// VulnStatus is the lifecycle of a persisted vulnerability.
type VulnStatus string

const (
	VulnOpen          VulnStatus = "open"
	VulnFixed         VulnStatus = "fixed"
	VulnIgnored       VulnStatus = "ignored"
	VulnFalsePositive VulnStatus = "false_positive"
)

// Vulnerability is a persisted security finding tied to one asset.
// ScanID always references the scan that most recently reported it.
type Vulnerability struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	ScanID  string `json:"scan_id"`
	AssetID string `json:"asset_id"`

	PluginID string `json:"plugin_id,omitempty"`
	CVEID    string `json:"cve_id,omitempty"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Remediation string `json:"remediation,omitempty"`

	Severity   Severity `json:"severity,omitempty"`
	CVSSScore  float64  `json:"cvss_score,omitempty"`
	CVSSVector string   `json:"cvss_vector,omitempty"`

	Port     int    `json:"port,omitempty"`
	Protocol string `json:"protocol,omitempty"`

	Status  VulnStatus     `json:"status"`
	RawData map[string]any `json:"raw_data,omitempty"`

	FirstSeen time.Time  `json:"first_seen"`
	LastSeen  time.Time  `json:"last_seen"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}
