// Package reporting renders scan reports to distributable formats.
package reporting

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"

	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
)

// PDFExporter exports scan reports to PDF format
type PDFExporter struct{}

// NewPDFExporter creates a new PDF exporter instance
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Export generates a PDF document from a scan report
func (e *PDFExporter) Export(report *domain.ScanReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	e.addHeader(pdf, report)
	e.addSeverityBreakdown(pdf, report)
	e.addTopFindings(pdf, report)
	e.addFooter(pdf, report)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// addHeader adds the report title block
func (e *PDFExporter) addHeader(pdf *gofpdf.Fpdf, report *domain.ScanReport) {
	pdf.SetFont("Arial", "B", 24)
	pdf.SetTextColor(0, 51, 102) // Dark blue
	pdf.CellFormat(0, 15, "Vulnerability Scan Report", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pdf.SetFont("Arial", "", 10)
	pdf.SetTextColor(120, 120, 120)
	pdf.CellFormat(0, 6, fmt.Sprintf("Scan: %s", report.ScanID), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format("2006-01-02 15:04")), "", 1, "L", false, 0, "")
	pdf.Ln(8)
}

// addSeverityBreakdown adds the per-severity finding counts
func (e *PDFExporter) addSeverityBreakdown(pdf *gofpdf.Fpdf, report *domain.ScanReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Findings Overview", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	rows := []struct {
		label string
		value int
		color []int
	}{
		{"Total Findings", report.TotalFindings, []int{0, 102, 204}},
		{"Open Findings", report.OpenFindings, []int{0, 102, 204}},
		{"Critical", report.Critical, []int{220, 53, 69}},
		{"High", report.High, []int{255, 149, 0}},
		{"Medium", report.Medium, []int{255, 204, 0}},
		{"Low", report.Low, []int{52, 199, 89}},
		{"Info", report.Info, []int{100, 100, 100}},
		{"Unscored", report.Unscored, []int{150, 150, 150}},
	}

	// Two-column layout
	colWidth := 85.0
	for i, row := range rows {
		x := 20.0
		if i%2 == 1 {
			x = 105.0
		}
		pdf.SetXY(x, pdf.GetY())

		pdf.SetFont("Arial", "", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(50, 7, row.label+":", "", 0, "L", false, 0, "")

		pdf.SetFont("Arial", "B", 11)
		pdf.SetTextColor(row.color[0], row.color[1], row.color[2])
		pdf.CellFormat(colWidth-50, 7, fmt.Sprintf("%d", row.value), "", 0, "R", false, 0, "")

		if i%2 == 1 {
			pdf.Ln(7)
		}
	}

	pdf.Ln(10)
}

// addTopFindings adds the top findings table
func (e *PDFExporter) addTopFindings(pdf *gofpdf.Fpdf, report *domain.ScanReport) {
	pdf.SetFont("Arial", "B", 14)
	pdf.SetTextColor(0, 51, 102)
	pdf.CellFormat(0, 10, "Top Findings", "", 1, "L", false, 0, "")
	pdf.Ln(2)

	if len(report.TopFindings) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.SetTextColor(100, 100, 100)
		pdf.CellFormat(0, 7, "No findings recorded for this scan", "", 1, "L", false, 0, "")
		pdf.Ln(5)
		return
	}

	// Table header
	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 10)
	pdf.SetTextColor(60, 60, 60)

	pdf.CellFormat(70, 8, "Title", "1", 0, "L", true, 0, "")
	pdf.CellFormat(22, 8, "Severity", "1", 0, "C", true, 0, "")
	pdf.CellFormat(18, 8, "CVSS", "1", 0, "C", true, 0, "")
	pdf.CellFormat(60, 8, "Asset", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 9)
	for _, finding := range report.TopFindings {
		if pdf.GetY() > 260 {
			pdf.AddPage()
		}

		title := finding.Title
		if len(title) > 45 {
			title = title[:42] + "..."
		}
		pdf.SetTextColor(60, 60, 60)
		pdf.CellFormat(70, 7, title, "1", 0, "L", false, 0, "")

		r, g, b := e.severityColor(finding.Severity)
		pdf.SetTextColor(r, g, b)
		pdf.CellFormat(22, 7, string(finding.Severity), "1", 0, "C", false, 0, "")

		pdf.SetTextColor(60, 60, 60)
		cvss := "-"
		if finding.CVSSScore > 0 {
			cvss = fmt.Sprintf("%.1f", finding.CVSSScore)
		}
		pdf.CellFormat(18, 7, cvss, "1", 0, "C", false, 0, "")

		asset := finding.Asset
		if len(asset) > 38 {
			asset = asset[:35] + "..."
		}
		pdf.CellFormat(60, 7, asset, "1", 1, "L", false, 0, "")
	}

	pdf.Ln(8)
}

// severityColor returns RGB color for a normalized severity
func (e *PDFExporter) severityColor(severity domain.Severity) (r, g, b int) {
	switch severity {
	case domain.SeverityCritical:
		return 220, 53, 69 // Red
	case domain.SeverityHigh:
		return 255, 149, 0 // Orange
	case domain.SeverityMedium:
		return 255, 204, 0 // Yellow
	case domain.SeverityLow:
		return 52, 199, 89 // Green
	default:
		return 150, 150, 150 // Gray
	}
}

// addFooter adds the report footer
func (e *PDFExporter) addFooter(pdf *gofpdf.Fpdf, report *domain.ScanReport) {
	pdf.SetY(-20)

	pdf.SetDrawColor(200, 200, 200)
	pdf.Line(20, pdf.GetY(), 190, pdf.GetY())
	pdf.Ln(3)

	pdf.SetFont("Arial", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	footer := fmt.Sprintf("Generated by vulnbridge | Scan ID: %s", report.ScanID)
	pdf.CellFormat(0, 5, footer, "", 1, "C", false, 0, "")
}

// Ensure interface compliance
var _ ports.ReportExporter = (*PDFExporter)(nil)
