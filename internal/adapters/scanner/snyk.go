package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
)

// SnykParser parses Snyk JSON reports (dependency, code and container scans).
type SnykParser struct{}

type snykReport struct {
	ProjectName       string      `json:"projectName"`
	DisplayTargetFile string      `json:"displayTargetFile"`
	Vulnerabilities   []snykIssue `json:"vulnerabilities"`
}

type snykIssue struct {
	Title          string         `json:"title"`
	Type           string         `json:"type"`
	Severity       string         `json:"severity"`
	Description    string         `json:"description"`
	Remediation    string         `json:"remediation"`
	From           []string       `json:"from"`
	CVEs           []any          `json:"cves"` // entries are strings or {"id": ...} objects
	CVSSScore      any            `json:"cvssScore"`
	PackageVersion string         `json:"packageVersion"`
	UpgradePath    []any          `json:"upgradePath"`
	Identifiers    map[string]any `json:"identifiers"`
}

func (p *SnykParser) Name() string { return "snyk" }

func (p *SnykParser) Parse(path string) (*domain.ParseResult, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFileNotFound, path, err)
	}

	var report snykReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", domain.ErrInvalidFormat, err)
	}

	var (
		vulns  []domain.ParsedVulnerability
		assets []domain.ParsedAsset
		seen   = map[string]bool{}
	)

	for _, issue := range report.Vulnerabilities {
		pkg := snykPackage(issue.From)

		if !seen[pkg] {
			assets = append(assets, domain.ParsedAsset{
				Identifier: pkg,
				Type:       snykAssetType(issue, pkg),
				Metadata: map[string]any{
					"projectName":       report.ProjectName,
					"displayTargetFile": report.DisplayTargetFile,
					"introducedBy":      issue.From,
				},
			})
			seen[pkg] = true
		}

		if v, ok := parseSnykIssue(issue, pkg); ok {
			vulns = append(vulns, v)
		}
	}

	return &domain.ParseResult{
		Vulnerabilities: vulns,
		Assets:          assets,
		Metadata: domain.ParseMetadata{
			Parser:               p.Name(),
			TotalVulnerabilities: len(vulns),
			TotalAssets:          len(assets),
			ReportFormat:         "json",
		},
	}, nil
}

// snykPackage resolves the vulnerable package from the dependency path.
// The first element is the project itself, so the second is the package
// when present.
func snykPackage(from []string) string {
	switch {
	case len(from) > 1:
		return from[1]
	case len(from) == 1:
		return from[0]
	default:
		return "unknown"
	}
}

func parseSnykIssue(issue snykIssue, pkg string) (domain.ParsedVulnerability, bool) {
	if issue.Title == "" {
		return domain.ParsedVulnerability{}, false
	}
	// License findings are not vulnerabilities.
	if issue.Type == "license" {
		return domain.ParsedVulnerability{}, false
	}

	cveID := snykCVE(issue.CVEs)

	severity := issue.Severity
	if severity == "" {
		severity = "medium"
	}
	sev, _ := domain.NormalizeSeverity(severity)

	description := issue.Description
	if description == "" && issue.Remediation != "" {
		description = "Remediation: " + issue.Remediation
	}

	remediation := issue.Remediation
	if remediation == "" && len(issue.UpgradePath) > 1 {
		if upgrade := anyToString(issue.UpgradePath[1]); upgrade != "" {
			remediation = "Upgrade to " + upgrade
		}
	}

	return domain.ParsedVulnerability{
		Title:           issue.Title,
		Description:     description,
		Remediation:     remediation,
		CVEID:           cveID,
		ScannerSeverity: sev,
		CVSSScore:       anyToFloat(issue.CVSSScore),
		AssetIdentifier: pkg,
		AssetType:       snykAssetType(issue, pkg),
		RawData: map[string]any{
			"title":          issue.Title,
			"issueType":      issue.Type,
			"severity":       severity,
			"cves":           cveID,
			"packageVersion": issue.PackageVersion,
			"identifiers":    issue.Identifiers,
		},
	}, true
}

// snykCVE extracts the first CVE, whether entries are bare strings or
// {"id": "..."} objects.
func snykCVE(cves []any) string {
	if len(cves) == 0 {
		return ""
	}
	switch first := cves[0].(type) {
	case string:
		return first
	case map[string]any:
		return anyToString(first["id"])
	}
	return ""
}

func snykAssetType(issue snykIssue, pkg string) domain.AssetType {
	if strings.Contains(strings.ToLower(issue.Type), "container") {
		return domain.AssetContainer
	}
	if strings.Contains(pkg, "@") || strings.Contains(pkg, "/") {
		return domain.AssetDependency
	}
	return domain.AssetCode
}

var _ ports.ScanParser = (*SnykParser)(nil)
