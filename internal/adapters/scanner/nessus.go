package scanner

import (
	"encoding/xml"
	"fmt"
	"os"
	"strconv"
	"strings"

	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
)

// NessusParser parses Tenable Nessus .nessus XML exports.
//
// Layout:
//
//	<NessusClientData_v2>
//	  <Report>
//	    <ReportHost name="192.168.1.1">
//	      <HostProperties><tag name="operating-system">...</tag></HostProperties>
//	      <ReportItem pluginID="123" severity="3" port="443" protocol="tcp">
//	        <plugin_name>...</plugin_name>
//	        <description>...</description>
//	        <solution>...</solution>
//	        <cve>CVE-2021-1234</cve>
//	        <cvss_base_score>7.5</cvss_base_score>
//	      </ReportItem>
//	    </ReportHost>
//	  </Report>
//	</NessusClientData_v2>
type NessusParser struct{}

type nessusFile struct {
	Reports []nessusReport `xml:"Report"`
}

type nessusReport struct {
	Hosts []nessusHost `xml:"ReportHost"`
}

type nessusHost struct {
	Name  string       `xml:"name,attr"`
	Tags  []nessusTag  `xml:"HostProperties>tag"`
	Items []nessusItem `xml:"ReportItem"`
}

type nessusTag struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type nessusItem struct {
	PluginID       string   `xml:"pluginID,attr"`
	PluginNameAttr string   `xml:"pluginName,attr"`
	Severity       string   `xml:"severity,attr"`
	Port           string   `xml:"port,attr"`
	Protocol       string   `xml:"protocol,attr"`
	PluginName     string   `xml:"plugin_name"`
	Description    string   `xml:"description"`
	Solution       string   `xml:"solution"`
	CVEs           []string `xml:"cve"`
	CVSSBaseScore  string   `xml:"cvss_base_score"`
	CVSSVector     string   `xml:"cvss_vector"`
}

func (p *NessusParser) Name() string { return "nessus" }

func (p *NessusParser) Parse(path string) (*domain.ParseResult, error) {
	if err := checkFile(path); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrFileNotFound, path, err)
	}

	var report nessusFile
	if err := xml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("%w: invalid XML: %v", domain.ErrInvalidFormat, err)
	}

	var (
		vulns  []domain.ParsedVulnerability
		assets []domain.ParsedAsset
		seen   = map[string]bool{}
	)

	for _, rep := range report.Reports {
		for _, host := range rep.Hosts {
			hostName := host.Name
			if hostName == "" {
				hostName = "unknown"
			}

			props := map[string]any{}
			for _, tag := range host.Tags {
				if tag.Name != "" {
					props[tag.Name] = tag.Value
				}
			}
			assetType := nessusAssetType(host.Tags)

			if !seen[hostName] {
				assets = append(assets, domain.ParsedAsset{
					Identifier: hostName,
					Type:       assetType,
					Metadata:   props,
				})
				seen[hostName] = true
			}

			for _, item := range host.Items {
				if v, ok := parseNessusItem(item, hostName, assetType); ok {
					vulns = append(vulns, v)
				}
			}
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

// parseNessusItem converts one ReportItem. Informational items (severity "0")
// and items without a plugin name are dropped.
func parseNessusItem(item nessusItem, hostName string, assetType domain.AssetType) (domain.ParsedVulnerability, bool) {
	severity := item.Severity
	if severity == "" {
		severity = "0"
	}
	if severity == "0" {
		return domain.ParsedVulnerability{}, false
	}

	title := item.PluginNameAttr
	if title == "" {
		title = item.PluginName
	}
	if title == "" {
		return domain.ParsedVulnerability{}, false
	}

	var cveID string
	if len(item.CVEs) > 0 {
		cveID = item.CVEs[0]
	}

	port := 0
	if n, err := strconv.Atoi(item.Port); err == nil {
		port = n
	}

	sev, _ := domain.NormalizeSeverity(severity)

	return domain.ParsedVulnerability{
		Title:           title,
		Description:     item.Description,
		Remediation:     item.Solution,
		PluginID:        item.PluginID,
		CVEID:           cveID,
		ScannerSeverity: sev,
		CVSSScore:       parseFloat(item.CVSSBaseScore),
		CVSSVector:      item.CVSSVector,
		Port:            port,
		Protocol:        item.Protocol,
		AssetIdentifier: hostName,
		AssetType:       assetType,
		RawData: map[string]any{
			"plugin_id": item.PluginID,
			"severity":  severity,
			"port":      port,
			"protocol":  item.Protocol,
		},
	}, true
}

// nessusAssetType classifies a host from its reported properties.
func nessusAssetType(tags []nessusTag) domain.AssetType {
	var osInfo, fqdn string
	for _, tag := range tags {
		switch tag.Name {
		case "operating-system":
			osInfo = strings.ToLower(tag.Value)
		case "host-fqdn":
			fqdn = strings.ToLower(tag.Value)
		}
	}

	switch {
	case strings.Contains(osInfo, "router"), strings.Contains(osInfo, "switch"):
		return domain.AssetNetworkDevice
	case strings.Contains(osInfo, "load") && strings.Contains(osInfo, "balanc"):
		return domain.AssetLoadBalancer
	case strings.Contains(fqdn, "api"):
		return domain.AssetAPI
	}
	return domain.AssetServer
}

var _ ports.ScanParser = (*NessusParser)(nil)
