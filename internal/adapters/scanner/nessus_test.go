package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vulnbridge/internal/core/domain"
)

const nessusFixture = `<?xml version="1.0" ?>
<NessusClientData_v2>
  <Report name="weekly">
    <ReportHost name="192.168.1.10">
      <HostProperties>
        <tag name="operating-system">Linux Kernel 5.15</tag>
        <tag name="host-fqdn">web01.example.com</tag>
      </HostProperties>
      <ReportItem pluginID="51192" severity="3" port="443" protocol="tcp" pluginName="SSL Certificate Cannot Be Trusted">
        <description>The server's X.509 certificate cannot be trusted.</description>
        <solution>Purchase or generate a proper SSL certificate.</solution>
        <cve>CVE-2021-1234</cve>
        <cvss_base_score>7.5</cvss_base_score>
        <cvss_vector>CVSS2#AV:N/AC:L/Au:N/C:P/I:P/A:P</cvss_vector>
      </ReportItem>
      <ReportItem pluginID="10107" severity="0" port="80" protocol="tcp" pluginName="HTTP Server Type and Version">
        <description>Informational banner grab.</description>
      </ReportItem>
    </ReportHost>
    <ReportHost name="10.0.0.5">
      <HostProperties>
        <tag name="operating-system">Cisco IOS Router</tag>
      </HostProperties>
      <ReportItem pluginID="42873" severity="2" port="22" protocol="tcp" pluginName="SSH Weak MAC Algorithms">
        <solution>Disable weak MAC algorithms.</solution>
      </ReportItem>
    </ReportHost>
  </Report>
</NessusClientData_v2>`

func writeFixture(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestNessusParse(t *testing.T) {
	path := writeFixture(t, "scan.nessus", nessusFixture)

	parser := &NessusParser{}
	result, err := parser.Parse(path)
	require.NoError(t, err)

	// Severity-0 items are dropped
	require.Len(t, result.Vulnerabilities, 2)
	require.Len(t, result.Assets, 2)

	ssl := result.Vulnerabilities[0]
	assert.Equal(t, "SSL Certificate Cannot Be Trusted", ssl.Title)
	assert.Equal(t, "51192", ssl.PluginID)
	assert.Equal(t, "CVE-2021-1234", ssl.CVEID)
	assert.Equal(t, domain.SeverityHigh, ssl.ScannerSeverity)
	assert.Equal(t, 7.5, ssl.CVSSScore)
	assert.Equal(t, 443, ssl.Port)
	assert.Equal(t, "tcp", ssl.Protocol)
	assert.Equal(t, "192.168.1.10", ssl.AssetIdentifier)
	assert.Equal(t, domain.AssetServer, ssl.AssetType)
	assert.Equal(t, "Purchase or generate a proper SSL certificate.", ssl.Remediation)

	ssh := result.Vulnerabilities[1]
	assert.Equal(t, domain.SeverityMedium, ssh.ScannerSeverity)
	assert.Equal(t, "10.0.0.5", ssh.AssetIdentifier)
	assert.Equal(t, domain.AssetNetworkDevice, ssh.AssetType)

	assert.Equal(t, "nessus", result.Metadata.Parser)
	assert.Equal(t, 2, result.Metadata.TotalVulnerabilities)
	assert.Equal(t, 2, result.Metadata.TotalAssets)

	// Host properties travel with the asset
	assert.Equal(t, "Linux Kernel 5.15", result.Assets[0].Metadata["operating-system"])
}

func TestNessusParseDeterministic(t *testing.T) {
	path := writeFixture(t, "scan.nessus", nessusFixture)
	parser := &NessusParser{}

	first, err := parser.Parse(path)
	require.NoError(t, err)
	second, err := parser.Parse(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestNessusParseMissingFile(t *testing.T) {
	parser := &NessusParser{}
	_, err := parser.Parse(filepath.Join(t.TempDir(), "nope.nessus"))
	assert.ErrorIs(t, err, domain.ErrFileNotFound)
}

func TestNessusParseInvalidXML(t *testing.T) {
	path := writeFixture(t, "broken.nessus", "<NessusClientData_v2><Report>")
	parser := &NessusParser{}
	_, err := parser.Parse(path)
	assert.ErrorIs(t, err, domain.ErrInvalidFormat)
}
