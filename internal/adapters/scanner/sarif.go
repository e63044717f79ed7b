package scanner

import (
	"encoding/json"
	"fmt"
	"os"

	"vulnbridge/internal/core/domain"
)

// SARIF variant of the Trivy parser. Only the subset Trivy emits is read:
// runs[].results[] with level, message and the first location's artifact URI.

type sarifFile struct {
	Runs []sarifRun `json:"runs"`
}

type sarifRun struct {
	Results []sarifResult `json:"results"`
}

type sarifResult struct {
	Level   string `json:"level"`
	Message struct {
		Text string `json:"text"`
	} `json:"message"`
	Locations  []sarifLocation `json:"locations"`
	Properties map[string]any  `json:"properties"`
}

type sarifLocation struct {
	ArtifactLocation struct {
		URI string `json:"uri"`
	} `json:"artifactLocation"`
}

func (p *TrivyParser) parseSARIF(path string) (*domain.ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFileNotFound, path, err)
	}

	var file sarifFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: invalid SARIF JSON: %v", domain.ErrInvalidFormat, err)
	}

	var (
		vulns  []domain.ParsedVulnerability
		assets []domain.ParsedAsset
		seen   = map[string]bool{}
	)

	for _, run := range file.Runs {
		for _, result := range run.Results {
			identifier := "unknown"
			if len(result.Locations) > 0 && result.Locations[0].ArtifactLocation.URI != "" {
				identifier = result.Locations[0].ArtifactLocation.URI
			}

			if !seen[identifier] {
				assets = append(assets, domain.ParsedAsset{
					Identifier: identifier,
					Type:       domain.AssetCode,
					Metadata:   map[string]any{"format": "sarif"},
				})
				seen[identifier] = true
			}

			vulns = append(vulns, parseSARIFResult(result, identifier))
		}
	}

	return &domain.ParseResult{
		Vulnerabilities: vulns,
		Assets:          assets,
		Metadata: domain.ParseMetadata{
			Parser:               p.Name(),
			TotalVulnerabilities: len(vulns),
			TotalAssets:          len(assets),
			ReportFormat:         "sarif",
		},
	}, nil
}

func parseSARIFResult(result sarifResult, identifier string) domain.ParsedVulnerability {
	title := result.Message.Text
	if title == "" {
		title = "Unknown Vulnerability"
	}

	sev, _ := domain.NormalizeSeverity(sarifSeverity(result.Level))

	var description, cveID string
	var score float64
	if result.Properties != nil {
		description = anyToString(result.Properties["description"])
		cveID = anyToString(result.Properties["cve"])
		score = anyToFloat(result.Properties["cvss_score"])
	}

	return domain.ParsedVulnerability{
		Title:           title,
		Description:     description,
		CVEID:           cveID,
		ScannerSeverity: sev,
		CVSSScore:       score,
		AssetIdentifier: identifier,
		AssetType:       domain.AssetCode,
		RawData:         result.Properties,
	}
}

// sarifSeverity maps SARIF result levels onto scanner severities.
func sarifSeverity(level string) string {
	switch level {
	case "error":
		return "critical"
	case "warning":
		return "high"
	case "note":
		return "medium"
	case "none":
		return "info"
	default:
		return "medium"
	}
}
