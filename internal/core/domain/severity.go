package domain

import "strings"

// Severity is the normalized severity scale shared by every parser.
// Persisted vulnerabilities only ever carry one of these values (or none).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// NormalizeSeverity maps a raw scanner severity string onto the closed
// Severity set. It understands the common string spellings and the numeric
// 0-4 convention used by Nessus. Unrecognized non-empty input defaults to
// SeverityInfo. ok is false when the input is empty or whitespace; callers
// must treat "unset" distinctly from SeverityInfo.
func NormalizeSeverity(raw string) (sev Severity, ok bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return "", false
	}

	switch s {
	case "critical":
		return SeverityCritical, true
	case "high":
		return SeverityHigh, true
	case "medium", "med", "moderate":
		return SeverityMedium, true
	case "low":
		return SeverityLow, true
	case "info", "informational", "information", "none":
		return SeverityInfo, true
	}

	// Nessus numeric convention: 4=critical .. 0=info.
	if isDigits(s) {
		switch s {
		case "4":
			return SeverityCritical, true
		case "3":
			return SeverityHigh, true
		case "2":
			return SeverityMedium, true
		case "1":
			return SeverityLow, true
		default:
			return SeverityInfo, true
		}
	}

	return SeverityInfo, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
