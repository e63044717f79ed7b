package ports

import "vulnbridge/internal/core/domain"

// ScanParser consumes one scanner's native output format and emits the
// canonical ParseResult. Parsing must be deterministic: the same file always
// yields the same result.
type ScanParser interface {
	// Name identifies the parser in scan metadata and job results.
	Name() string

	// Parse reads the file and extracts vulnerabilities and assets.
	// Fails with domain.ErrFileNotFound when the path does not exist and
	// domain.ErrInvalidFormat when the content cannot be decoded.
	Parse(path string) (*domain.ParseResult, error)
}

// ReportExporter renders a scan report into a downloadable document.
type ReportExporter interface {
	Export(report *domain.ScanReport) ([]byte, error)
}
