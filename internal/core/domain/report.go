package domain

import "time"

// ReportFinding is one row in a scan report's top-findings table.
type ReportFinding struct {
	Title     string   `json:"title"`
	Severity  Severity `json:"severity,omitempty"`
	CVSSScore float64  `json:"cvss_score,omitempty"`
	CVEID     string   `json:"cve_id,omitempty"`
	Asset     string   `json:"asset"`
}

// ScanReport is the aggregated view of one scan's findings, rendered by the
// report_generation job.
type ScanReport struct {
	ScanID      string    `json:"scan_id"`
	UserID      string    `json:"user_id"`
	GeneratedAt time.Time `json:"generated_at"`

	TotalFindings int `json:"total_findings"`
	OpenFindings  int `json:"open_findings"`

	// Counts per normalized severity; findings with no severity are counted
	// under Unscored.
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
	Unscored int `json:"unscored"`

	TopFindings []ReportFinding `json:"top_findings,omitempty"`
}
