package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vulnbridge/internal/core/domain"
)

const snykFixture = `{
  "projectName": "billing-service",
  "displayTargetFile": "package-lock.json",
  "vulnerabilities": [
    {
      "title": "Prototype Pollution",
      "severity": "high",
      "description": "lodash is vulnerable to prototype pollution.",
      "from": ["billing-service@1.0.0", "lodash@4.17.15"],
      "cves": ["CVE-2020-8203"],
      "cvssScore": 7.4,
      "packageVersion": "4.17.15",
      "upgradePath": [false, "lodash@4.17.19"]
    },
    {
      "title": "Regular Expression Denial of Service",
      "from": ["billing-service@1.0.0", "minimatch@3.0.0"],
      "cves": [{"id": "CVE-2022-3517"}],
      "cvssScore": "5.3",
      "upgradePath": [false, "minimatch@3.0.5"]
    },
    {
      "title": "GPL License Issue",
      "type": "license",
      "severity": "medium",
      "from": ["billing-service@1.0.0", "some-gpl-lib@2.0.0"]
    }
  ]
}`

func TestSnykParse(t *testing.T) {
	path := writeFixture(t, "snyk.json", snykFixture)

	parser := &SnykParser{}
	result, err := parser.Parse(path)
	require.NoError(t, err)

	// License findings are skipped; their asset is still recorded
	require.Len(t, result.Vulnerabilities, 2)
	require.Len(t, result.Assets, 3)

	lodash := result.Vulnerabilities[0]
	assert.Equal(t, "Prototype Pollution", lodash.Title)
	assert.Equal(t, "CVE-2020-8203", lodash.CVEID)
	assert.Equal(t, domain.SeverityHigh, lodash.ScannerSeverity)
	assert.Equal(t, 7.4, lodash.CVSSScore)
	assert.Equal(t, "lodash@4.17.15", lodash.AssetIdentifier)
	assert.Equal(t, domain.AssetDependency, lodash.AssetType)

	minimatch := result.Vulnerabilities[1]
	// Missing severity defaults to medium
	assert.Equal(t, domain.SeverityMedium, minimatch.ScannerSeverity)
	// CVE extracted from object-shaped entry, score from numeric string
	assert.Equal(t, "CVE-2022-3517", minimatch.CVEID)
	assert.Equal(t, 5.3, minimatch.CVSSScore)
	// Remediation derived from the upgrade path
	assert.Equal(t, "Upgrade to minimatch@3.0.5", minimatch.Remediation)

	assert.Equal(t, "snyk", result.Metadata.Parser)
	assert.Equal(t, "billing-service", result.Assets[0].Metadata["projectName"])
}

func TestSnykParseEmptyReport(t *testing.T) {
	path := writeFixture(t, "snyk.json", `{"projectName": "empty", "vulnerabilities": []}`)

	parser := &SnykParser{}
	result, err := parser.Parse(path)
	require.NoError(t, err)

	assert.Empty(t, result.Vulnerabilities)
	assert.Empty(t, result.Assets)
	assert.Equal(t, 0, result.Metadata.TotalVulnerabilities)
}

func TestSnykParseInvalidJSON(t *testing.T) {
	path := writeFixture(t, "snyk.json", `{"vulnerabilities": [`)
	parser := &SnykParser{}
	_, err := parser.Parse(path)
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}
