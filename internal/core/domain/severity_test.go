package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSeverity(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   Severity
		wantOK bool
	}{
		{"critical", "critical", SeverityCritical, true},
		{"high", "high", SeverityHigh, true},
		{"medium", "medium", SeverityMedium, true},
		{"med abbreviation", "med", SeverityMedium, true},
		{"moderate", "moderate", SeverityMedium, true},
		{"low", "low", SeverityLow, true},
		{"info", "info", SeverityInfo, true},
		{"informational", "informational", SeverityInfo, true},
		{"none", "none", SeverityInfo, true},
		{"uppercase", "HIGH", SeverityHigh, true},
		{"mixed case", "Critical", SeverityCritical, true},
		{"whitespace", "  low  ", SeverityLow, true},
		{"nessus 4", "4", SeverityCritical, true},
		{"nessus 3", "3", SeverityHigh, true},
		{"nessus 2", "2", SeverityMedium, true},
		{"nessus 1", "1", SeverityLow, true},
		{"nessus 0", "0", SeverityInfo, true},
		{"numeric out of range", "9", SeverityInfo, true},
		{"unrecognized string", "catastrophic", SeverityInfo, true},
		{"empty", "", "", false},
		{"whitespace only", "   ", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := NormalizeSeverity(tt.input)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDiscriminatorTiers(t *testing.T) {
	t.Run("plugin id wins", func(t *testing.T) {
		v := ParsedVulnerability{PluginID: "12345", CVEID: "CVE-2024-1", Title: "Something"}
		d := v.Discriminator()
		assert.Equal(t, DiscriminatorPluginID, d.Field)
		assert.Equal(t, "12345", d.Value)
	})

	t.Run("cve id when no plugin", func(t *testing.T) {
		v := ParsedVulnerability{CVEID: "CVE-2024-1", Title: "Something"}
		d := v.Discriminator()
		assert.Equal(t, DiscriminatorCVEID, d.Field)
		assert.Equal(t, "CVE-2024-1", d.Value)
	})

	t.Run("title as last resort", func(t *testing.T) {
		v := ParsedVulnerability{Title: "Something"}
		d := v.Discriminator()
		assert.Equal(t, DiscriminatorTitle, d.Field)
		assert.Equal(t, "Something", d.Value)
	})
}
