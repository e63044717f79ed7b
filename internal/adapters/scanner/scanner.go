// Package scanner contains the format-specific parsers for vulnerability
// scanner output files (Nessus, Snyk, Trivy, OWASP Dependency-Check) and the
// registry that resolves a file to the right parser.
package scanner

import (
	"fmt"
	"os"
	"strconv"

	"vulnbridge/internal/core/domain"
)

// checkFile verifies the path exists before a parser touches it.
func checkFile(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", domain.ErrFileNotFound, path)
		}
		return fmt.Errorf("%w: %s: %v", domain.ErrFileNotFound, path, err)
	}
	return nil
}

// parseFloat converts a numeric string, tolerating empty/garbage input.
func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

// anyToFloat extracts a score from JSON fields that scanners emit as either
// a number or a numeric string.
func anyToFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case string:
		return parseFloat(n)
	}
	return 0
}

// anyToString returns v as a string when it is one.
func anyToString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
