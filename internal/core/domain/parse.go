package domain

// ParsedVulnerability is one finding extracted from a scanner output file.
// It is the format-agnostic intermediate representation: parsers produce it,
// the reconciliation worker consumes it, and it is never persisted as-is.
type ParsedVulnerability struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Remediation string `json:"remediation,omitempty"`

	PluginID string `json:"plugin_id,omitempty"`
	CVEID    string `json:"cve_id,omitempty"`

	// ScannerSeverity is already normalized by NormalizeSeverity.
	// Empty means the scanner reported no severity at all.
	ScannerSeverity Severity `json:"scanner_severity,omitempty"`

	CVSSScore  float64 `json:"cvss_score,omitempty"` // 0 = not reported
	CVSSVector string  `json:"cvss_vector,omitempty"`

	Port     int    `json:"port,omitempty"` // 0 = not reported
	Protocol string `json:"protocol,omitempty"`

	AssetIdentifier string    `json:"asset_identifier"`
	AssetType       AssetType `json:"asset_type"`

	// RawData carries the scanner's own record for audit, opaque to the pipeline.
	RawData map[string]any `json:"raw_data,omitempty"`
}

// DiscriminatorField names which tier of the dedup key a finding matched on.
type DiscriminatorField string

const (
	DiscriminatorPluginID DiscriminatorField = "plugin_id"
	DiscriminatorCVEID    DiscriminatorField = "cve_id"
	DiscriminatorTitle    DiscriminatorField = "title"
)

// Discriminator is the identity portion of a vulnerability's dedup key.
// Exactly one tier applies per finding: plugin id when present, else CVE id,
// else title.
type Discriminator struct {
	Field DiscriminatorField
	Value string
}

// Discriminator returns the single dedup discriminator for this finding.
func (v ParsedVulnerability) Discriminator() Discriminator {
	switch {
	case v.PluginID != "":
		return Discriminator{Field: DiscriminatorPluginID, Value: v.PluginID}
	case v.CVEID != "":
		return Discriminator{Field: DiscriminatorCVEID, Value: v.CVEID}
	default:
		return Discriminator{Field: DiscriminatorTitle, Value: v.Title}
	}
}

// ParsedAsset is one scan target (host, package, container, code artifact)
// discovered in a scanner output file, deduplicated within that file.
type ParsedAsset struct {
	Identifier string         `json:"asset_identifier"`
	Type       AssetType      `json:"asset_type"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// ParseMetadata is scan-level information attached to a ParseResult.
type ParseMetadata struct {
	Parser               string `json:"parser"`
	TotalVulnerabilities int    `json:"total_vulnerabilities"`
	TotalAssets          int    `json:"total_assets"`
	ReportFormat         string `json:"report_format,omitempty"`
}

// ParseResult is the complete output of one parser invocation.
type ParseResult struct {
	Vulnerabilities []ParsedVulnerability
	Assets          []ParsedAsset
	Metadata        ParseMetadata
}
