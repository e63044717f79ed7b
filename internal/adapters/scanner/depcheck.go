package scanner

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"strings"

	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
)

// DependencyCheckParser parses OWASP Dependency-Check reports in both the
// XML and JSON schemas. Every asset it emits is a dependency.
type DependencyCheckParser struct{}

type depcheckXMLFile struct {
	Dependencies []depcheckXMLDep `xml:"dependencies>dependency"`
}

type depcheckXMLDep struct {
	FileName        string            `xml:"fileName"`
	PackageName     string            `xml:"packageName"`
	PackageVersion  string            `xml:"packageVersion"`
	Vulnerabilities []depcheckXMLVuln `xml:"vulnerabilities>vulnerability"`
}

type depcheckXMLVuln struct {
	Name        string   `xml:"name"`
	CVEs        []string `xml:"cve"`
	CVSSScore   string   `xml:"cvssScore"`
	CVSSVector  string   `xml:"cvssVector"`
	Severity    string   `xml:"severity"`
	Description string   `xml:"description"`
	Notes       string   `xml:"notes"`
	Solution    string   `xml:"solution"`
}

type depcheckJSONFile struct {
	Dependencies []depcheckJSONDep `json:"dependencies"`
}

type depcheckJSONDep struct {
	FileName        string             `json:"fileName"`
	PackageName     string             `json:"packageName"`
	PackageVersion  string             `json:"packageVersion"`
	Vulnerabilities []depcheckJSONVuln `json:"vulnerabilities"`
}

type depcheckJSONVuln struct {
	Name        string `json:"name"`
	CVE         string `json:"cve"`
	CVSSScore   any    `json:"cvssScore"`
	CVSSVector  string `json:"cvssVector"`
	Severity    string `json:"severity"`
	Description string `json:"description"`
	Solution    string `json:"solution"`
}

func (p *DependencyCheckParser) Name() string { return "dependency_check" }

func (p *DependencyCheckParser) Parse(path string) (*domain.ParseResult, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}
	if strings.HasSuffix(strings.ToLower(path), ".json") {
		return p.parseJSON(path)
	}
	return p.parseXML(path)
}

func (p *DependencyCheckParser) parseXML(path string) (*domain.ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFileNotFound, path, err)
	}

	var file depcheckXMLFile
	if err := xml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: invalid XML: %v", domain.ErrInvalidFormat, err)
	}

	var (
		vulns  []domain.ParsedVulnerability
		assets []domain.ParsedAsset
		seen   = map[string]bool{}
	)

	for _, dep := range file.Dependencies {
		identifier := depcheckIdentifier(dep.PackageName, dep.FileName)

		if !seen[identifier] {
			assets = append(assets, depcheckAsset(identifier, dep.FileName, dep.PackageName, dep.PackageVersion))
			seen[identifier] = true
		}

		for _, dv := range dep.Vulnerabilities {
			if dv.Name == "" {
				continue
			}

			var cveID string
			if len(dv.CVEs) > 0 {
				cveID = dv.CVEs[0]
			}

			description := dv.Description
			if description == "" {
				description = dv.Notes
			}

			sev, _ := domain.NormalizeSeverity(dv.Severity)
			vulns = append(vulns, domain.ParsedVulnerability{
				Title:           dv.Name,
				Description:     description,
				Remediation:     dv.Solution,
				CVEID:           cveID,
				ScannerSeverity: sev,
				CVSSScore:       parseFloat(dv.CVSSScore),
				CVSSVector:      dv.CVSSVector,
				AssetIdentifier: identifier,
				AssetType:       domain.AssetDependency,
				RawData: map[string]any{
					"name":       dv.Name,
					"cve":        cveID,
					"severity":   dv.Severity,
					"cvss_score": dv.CVSSScore,
				},
			})
		}
	}

	return &domain.ParseResult{
		Vulnerabilities: vulns,
		Assets:          assets,
		Metadata: domain.ParseMetadata{
			Parser:               p.Name(),
			TotalVulnerabilities: len(vulns),
			TotalAssets:          len(assets),
			ReportFormat:         "xml",
		},
	}, nil
}

func (p *DependencyCheckParser) parseJSON(path string) (*domain.ParseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFileNotFound, path, err)
	}

	var file depcheckJSONFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", domain.ErrInvalidFormat, err)
	}

	var (
		vulns  []domain.ParsedVulnerability
		assets []domain.ParsedAsset
		seen   = map[string]bool{}
	)

	for _, dep := range file.Dependencies {
		identifier := depcheckIdentifier(dep.PackageName, dep.FileName)

		if !seen[identifier] {
			assets = append(assets, depcheckAsset(identifier, dep.FileName, dep.PackageName, dep.PackageVersion))
			seen[identifier] = true
		}

		for _, dv := range dep.Vulnerabilities {
			if dv.Name == "" {
				continue
			}

			sev, _ := domain.NormalizeSeverity(dv.Severity)
			vulns = append(vulns, domain.ParsedVulnerability{
				Title:           dv.Name,
				Description:     dv.Description,
				Remediation:     dv.Solution,
				CVEID:           dv.CVE,
				ScannerSeverity: sev,
				CVSSScore:       anyToFloat(dv.CVSSScore),
				CVSSVector:      dv.CVSSVector,
				AssetIdentifier: identifier,
				AssetType:       domain.AssetDependency,
				RawData: map[string]any{
					"name":       dv.Name,
					"cve":        dv.CVE,
					"severity":   dv.Severity,
					"cvss_score": dv.CVSSScore,
				},
			})
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

func depcheckIdentifier(packageName, fileName string) string {
	if packageName != "" {
		return packageName
	}
	if fileName != "" {
		return fileName
	}
	return "unknown"
}

func depcheckAsset(identifier, fileName, packageName, packageVersion string) domain.ParsedAsset {
	return domain.ParsedAsset{
		Identifier: identifier,
		Type:       domain.AssetDependency,
		Metadata: map[string]any{
			"fileName":       fileName,
			"packageName":    packageName,
			"packageVersion": packageVersion,
		},
	}
}

var _ ports.ScanParser = (*DependencyCheckParser)(nil)
