// Package report implements the report_generation job: aggregate a processed
// scan's findings and render them to a PDF on disk.
package report

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
	"vulnbridge/internal/core/services/jobs"
	"vulnbridge/internal/telemetry"
)

// topFindingsLimit bounds the findings table in the rendered report.
const topFindingsLimit = 10

// Generator builds and renders scan reports.
type Generator struct {
	store     ports.Store
	exporter  ports.ReportExporter
	reportDir string
}

// NewGenerator creates a report_generation processor writing into reportDir.
func NewGenerator(store ports.Store, exporter ports.ReportExporter, reportDir string) *Generator {
	return &Generator{store: store, exporter: exporter, reportDir: reportDir}
}

// Process handles one report_generation payload.
func (g *Generator) Process(ctx context.Context, payload *domain.JobPayload) error {
	if err := jobs.UpdateStatus(ctx, g.store, payload.JobID, domain.JobRunning, 0, "", nil); err != nil {
		if ctx.Err() != nil {
			return g.markCancelled(ctx, payload)
		}
		return err
	}

	result, err := g.run(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			return g.markCancelled(ctx, payload)
		}
		telemetry.JobsProcessed.WithLabelValues(string(payload.JobType), string(domain.JobFailed)).Inc()
		return jobs.UpdateStatus(ctx, g.store, payload.JobID, domain.JobFailed, jobs.KeepProgress,
			fmt.Sprintf("%s: %v", domain.ErrorClass(err), err), nil)
	}

	telemetry.JobsProcessed.WithLabelValues(string(payload.JobType), string(domain.JobCompleted)).Inc()
	return jobs.UpdateStatus(ctx, g.store, payload.JobID, domain.JobCompleted, 100, "", result)
}

// markCancelled writes the terminal status on a detached context; a consumed
// payload whose job row never leaves pending would block re-enqueueing.
func (g *Generator) markCancelled(ctx context.Context, payload *domain.JobPayload) error {
	telemetry.JobsProcessed.WithLabelValues(string(payload.JobType), string(domain.JobCancelled)).Inc()
	return jobs.UpdateStatus(context.WithoutCancel(ctx), g.store, payload.JobID, domain.JobCancelled,
		jobs.KeepProgress, "cancelled: worker shutdown interrupted processing", nil)
}

func (g *Generator) run(ctx context.Context, payload *domain.JobPayload) (map[string]any, error) {
	scan, err := g.store.GetScan(ctx, payload.ScanID)
	if err != nil {
		return nil, err
	}
	if scan == nil {
		return nil, fmt.Errorf("scan %s not found", payload.ScanID)
	}

	report, err := g.Build(ctx, scan)
	if err != nil {
		return nil, err
	}

	data, err := g.exporter.Export(report)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(g.reportDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report directory: %w", err)
	}
	path := filepath.Join(g.reportDir, fmt.Sprintf("scan-%s.pdf", scan.ID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write report: %w", err)
	}

	log.Printf("[REPORT] Wrote %s (%d findings, %d bytes)", path, report.TotalFindings, len(data))

	return map[string]any{
		"report_path":    path,
		"total_findings": report.TotalFindings,
		"open_findings":  report.OpenFindings,
		"generated_at":   report.GeneratedAt.Format(time.RFC3339),
		"status":         "success",
	}, nil
}

// Build aggregates a scan's persisted findings into a ScanReport.
func (g *Generator) Build(ctx context.Context, scan *domain.Scan) (*domain.ScanReport, error) {
	vulns, err := g.store.ListVulnerabilitiesByScan(ctx, scan.ID)
	if err != nil {
		return nil, err
	}

	report := &domain.ScanReport{
		ScanID:      scan.ID,
		UserID:      scan.UserID,
		GeneratedAt: time.Now().UTC(),
	}

	for _, v := range vulns {
		report.TotalFindings++
		if v.Status == domain.VulnOpen {
			report.OpenFindings++
		}
		switch v.Severity {
		case domain.SeverityCritical:
			report.Critical++
		case domain.SeverityHigh:
			report.High++
		case domain.SeverityMedium:
			report.Medium++
		case domain.SeverityLow:
			report.Low++
		case domain.SeverityInfo:
			report.Info++
		default:
			report.Unscored++
		}
	}

	report.TopFindings = g.topFindings(ctx, vulns)
	return report, nil
}

// topFindings picks the highest-impact findings, ordered by CVSS score
// descending with title as the deterministic tiebreaker.
func (g *Generator) topFindings(ctx context.Context, vulns []domain.Vulnerability) []domain.ReportFinding {
	sorted := make([]domain.Vulnerability, len(vulns))
	copy(sorted, vulns)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].CVSSScore != sorted[j].CVSSScore {
			return sorted[i].CVSSScore > sorted[j].CVSSScore
		}
		return sorted[i].Title < sorted[j].Title
	})

	if len(sorted) > topFindingsLimit {
		sorted = sorted[:topFindingsLimit]
	}

	// Asset identifiers are resolved per finding; a handful of lookups for
	// the top slice, not one per stored row.
	identifiers := make(map[string]string)
	findings := make([]domain.ReportFinding, 0, len(sorted))
	for _, v := range sorted {
		identifier, ok := identifiers[v.AssetID]
		if !ok {
			identifier = v.AssetID
			if asset, err := g.store.GetAsset(ctx, v.AssetID); err == nil && asset != nil {
				identifier = asset.Identifier
			}
			identifiers[v.AssetID] = identifier
		}
		findings = append(findings, domain.ReportFinding{
			Title:     v.Title,
			Severity:  v.Severity,
			CVSSScore: v.CVSSScore,
			CVEID:     v.CVEID,
			Asset:     identifier,
		})
	}
	return findings
}
