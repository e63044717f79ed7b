package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
)

// TrivyParser parses Aqua Trivy reports, both the native JSON format and the
// SARIF variant (.sarif).
type TrivyParser struct{}

type trivyEnvelope struct {
	Results []trivyResult `json:"Results"`
}

type trivyResult struct {
	Target          string      `json:"Target"`
	ArtifactName    string      `json:"ArtifactName"`
	Type            string      `json:"Type"`
	Vulnerabilities []trivyVuln `json:"Vulnerabilities"`
}

type trivyVuln struct {
	VulnerabilityID  string               `json:"VulnerabilityID"`
	Title            string               `json:"Title"`
	Description      string               `json:"Description"`
	Severity         string               `json:"Severity"`
	PkgName          string               `json:"PkgName"`
	InstalledVersion string               `json:"InstalledVersion"`
	FixedVersion     string               `json:"FixedVersion"`
	References       []string             `json:"References"`
	CVSS             map[string]trivyCVSS `json:"CVSS"`
}

type trivyCVSS struct {
	V3Score  float64 `json:"V3Score"`
	V3Vector string  `json:"V3Vector"`
}

var cvePattern = regexp.MustCompile(`(?i)CVE-\d+-\d+`)

func (p *TrivyParser) Name() string { return "trivy" }

func (p *TrivyParser) Parse(path string) (*domain.ParseResult, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}
	if strings.HasSuffix(strings.ToLower(path), ".sarif") {
		return p.parseSARIF(path)
	}
	return p.parseJSON(path)
}

func (p *TrivyParser) parseJSON(path string) (*domain.ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFileNotFound, path, err)
	}

	results, err := trivyResults(data)
	if err != nil {
		return nil, err
	}

	var (
		vulns  []domain.ParsedVulnerability
		assets []domain.ParsedAsset
		seen   = map[string]bool{}
	)

	for _, result := range results {
		identifier := result.Target
		if identifier == "" {
			identifier = result.ArtifactName
		}
		if identifier == "" {
			// Both Target and ArtifactName were empty.
			identifier = result.Type + ":unknown-artifact"
		}
		assetType := trivyAssetType(result.Type)

		if !seen[identifier] {
			assets = append(assets, domain.ParsedAsset{
				Identifier: identifier,
				Type:       assetType,
				Metadata: map[string]any{
					"artifactName": result.ArtifactName,
					"artifactType": result.Type,
					"target":       result.Target,
				},
			})
			seen[identifier] = true
		}

		for _, tv := range result.Vulnerabilities {
			vulns = append(vulns, parseTrivyVuln(tv, identifier, assetType))
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

// trivyResults tolerates the three report shapes Trivy emits: a bare array
// of results, an envelope with a Results key, or a single result object.
func trivyResults(data []byte) ([]trivyResult, error) {
	var asList []trivyResult
	if err := json.Unmarshal(data, &asList); err == nil {
		return asList, nil
	}

	var envelope trivyEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", domain.ErrInvalidFormat, err)
	}
	if envelope.Results != nil {
		return envelope.Results, nil
	}

	var single trivyResult
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", domain.ErrInvalidFormat, err)
	}
	return []trivyResult{single}, nil
}

func parseTrivyVuln(tv trivyVuln, identifier string, assetType domain.AssetType) domain.ParsedVulnerability {
	title := tv.Title
	if title == "" {
		title = tv.VulnerabilityID
	}
	if title == "" {
		title = "Unknown Vulnerability"
	}

	severity := tv.Severity
	if severity == "" {
		severity = "medium"
	}
	sev, _ := domain.NormalizeSeverity(severity)

	var score float64
	var vector string
	if nvd, ok := tv.CVSS["nvd"]; ok && nvd.V3Score > 0 {
		score, vector = nvd.V3Score, nvd.V3Vector
	} else if ghsa, ok := tv.CVSS["ghsa"]; ok && ghsa.V3Score > 0 {
		score, vector = ghsa.V3Score, ghsa.V3Vector
	}

	var remediation string
	if tv.FixedVersion != "" {
		remediation = fmt.Sprintf("Update %s to %s", tv.PkgName, tv.FixedVersion)
	}

	return domain.ParsedVulnerability{
		Title:           title,
		Description:     tv.Description,
		Remediation:     remediation,
		CVEID:           trivyCVE(tv),
		ScannerSeverity: sev,
		CVSSScore:       score,
		CVSSVector:      vector,
		AssetIdentifier: identifier,
		AssetType:       assetType,
		RawData: map[string]any{
			"vulnerabilityID":  tv.VulnerabilityID,
			"title":            title,
			"severity":         severity,
			"packageName":      tv.PkgName,
			"installedVersion": tv.InstalledVersion,
			"fixedVersion":     tv.FixedVersion,
		},
	}
}

// trivyCVE prefers a CVE id found in the references, falling back to the
// scanner's own vulnerability id (which is usually a CVE anyway).
func trivyCVE(tv trivyVuln) string {
	for _, ref := range tv.References {
		if match := cvePattern.FindString(ref); match != "" {
			return strings.ToUpper(match)
		}
	}
	return tv.VulnerabilityID
}

func trivyAssetType(artifactType string) domain.AssetType {
	t := strings.ToLower(artifactType)
	switch {
	case strings.Contains(t, "image"), strings.Contains(t, "container"):
		return domain.AssetContainer
	case strings.Contains(t, "fs"), strings.Contains(t, "filesystem"), strings.Contains(t, "dir"):
		return domain.AssetCode
	case strings.Contains(t, "repo"), strings.Contains(t, "git"):
		return domain.AssetCode
	case strings.Contains(t, "package"), strings.Contains(t, "library"),
		strings.Contains(t, "npm"), strings.Contains(t, "pip"),
		strings.Contains(t, "gem"), strings.Contains(t, "pkg"):
		return domain.AssetDependency
	default:
		return domain.AssetCode
	}
}

var _ ports.ScanParser = (*TrivyParser)(nil)
