// Package ingest implements the parse_scan job: parse a scanner output file
// and reconcile its findings into the persisted asset and vulnerability
// inventory.
package ingest

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"vulnbridge/internal/adapters/scanner"
	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
	"vulnbridge/internal/core/services/jobs"
	"vulnbridge/internal/telemetry"
)

// Processor reconciles parsed scan files into the store.
type Processor struct {
	store      ports.Store
	uploadRoot string
	batchSize  int
}

// NewProcessor creates a parse_scan processor. batchSize bounds how many
// findings each merge transaction covers.
func NewProcessor(store ports.Store, uploadRoot string, batchSize int) *Processor {
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Processor{store: store, uploadRoot: uploadRoot, batchSize: batchSize}
}

// mergeStats accumulates per-run reconciliation counters.
type mergeStats struct {
	vulnsCreated int
	vulnsUpdated int
	assetsFound  int
}

// Process runs the full parse-and-merge lifecycle for one payload. Errors in
// the pipeline are recorded on the job row; the returned error is only for
// the worker loop's logging.
func (p *Processor) Process(ctx context.Context, payload *domain.JobPayload) error {
	tracer := otel.Tracer("vulnbridge/ingest")
	ctx, span := tracer.Start(ctx, "ingest.Process")
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("scan.id", payload.ScanID),
	)
	defer span.End()

	if err := jobs.UpdateStatus(ctx, p.store, payload.JobID, domain.JobRunning, 0, "", nil); err != nil {
		if ctx.Err() != nil {
			// Shutdown hit before the job started. The payload is already
			// consumed from the queue, so the row must still reach a
			// terminal status or enqueue idempotency would suppress any
			// retry of this scan forever.
			return p.markCancelled(ctx, payload)
		}
		return err
	}

	result, err := p.run(ctx, payload)
	if err != nil {
		if ctx.Err() != nil {
			return p.markCancelled(ctx, payload)
		}
		telemetry.JobsProcessed.WithLabelValues(string(payload.JobType), string(domain.JobFailed)).Inc()
		return jobs.UpdateStatus(ctx, p.store, payload.JobID, domain.JobFailed, jobs.KeepProgress,
			fmt.Sprintf("%s: %v", domain.ErrorClass(err), err), nil)
	}

	telemetry.JobsProcessed.WithLabelValues(string(payload.JobType), string(domain.JobCompleted)).Inc()
	return jobs.UpdateStatus(ctx, p.store, payload.JobID, domain.JobCompleted, 100, "", result)
}

// markCancelled records a shutdown interruption on a context detached from
// the cancellation, so the terminal write itself is not cancelled too. The
// last progress checkpoint stays on the row.
func (p *Processor) markCancelled(ctx context.Context, payload *domain.JobPayload) error {
	telemetry.JobsProcessed.WithLabelValues(string(payload.JobType), string(domain.JobCancelled)).Inc()
	return jobs.UpdateStatus(context.WithoutCancel(ctx), p.store, payload.JobID, domain.JobCancelled,
		jobs.KeepProgress, "cancelled: worker shutdown interrupted processing", nil)
}

// run executes the pipeline stages and returns the job result summary.
func (p *Processor) run(ctx context.Context, payload *domain.JobPayload) (map[string]any, error) {
	path := filepath.Join(p.uploadRoot, payload.FilePath)
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrFileNotFound, payload.FilePath)
	}

	if err := jobs.UpdateStatus(ctx, p.store, payload.JobID, domain.JobRunning, 10, "", nil); err != nil {
		return nil, err
	}

	parser, err := scanner.Detect(path)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	parsed, err := parser.Parse(path)
	if err != nil {
		return nil, err
	}
	telemetry.ParseDuration.WithLabelValues(parser.Name()).Observe(time.Since(start).Seconds())

	if err := jobs.UpdateStatus(ctx, p.store, payload.JobID, domain.JobRunning, 30, "", nil); err != nil {
		return nil, err
	}

	stats := &mergeStats{}
	assetIDs, err := p.mergeAssets(ctx, payload, parsed.Assets, stats)
	if err != nil {
		return nil, err
	}

	if err := jobs.UpdateStatus(ctx, p.store, payload.JobID, domain.JobRunning, 50, "", nil); err != nil {
		return nil, err
	}

	if err := p.mergeVulnerabilities(ctx, payload, parsed.Vulnerabilities, assetIDs, stats); err != nil {
		return nil, err
	}

	if err := p.markScanProcessed(ctx, payload.ScanID); err != nil {
		return nil, err
	}

	log.Printf("[INGEST] Scan %s processed: %d assets, %d created, %d updated",
		payload.ScanID, stats.assetsFound, stats.vulnsCreated, stats.vulnsUpdated)

	return map[string]any{
		"file_path":               payload.FilePath,
		"file_size_bytes":         info.Size(),
		"parser":                  parser.Name(),
		"assets_found":            stats.assetsFound,
		"vulnerabilities_created": stats.vulnsCreated,
		"vulnerabilities_updated": stats.vulnsUpdated,
		"processed_at":            time.Now().UTC().Format(time.RFC3339),
		"status":                  "success",
	}, nil
}

// mergeAssets upserts every parsed asset by its (user, identifier) natural
// key and returns the identifier -> asset id mapping the vulnerability merge
// needs.
func (p *Processor) mergeAssets(ctx context.Context, payload *domain.JobPayload, assets []domain.ParsedAsset, stats *mergeStats) (map[string]string, error) {
	now := time.Now().UTC()
	ids := make(map[string]string, len(assets))

	for _, parsed := range assets {
		existing, err := p.store.GetAssetByIdentifier(ctx, payload.UserID, parsed.Identifier)
		if err != nil {
			return nil, err
		}

		if existing == nil {
			asset := &domain.Asset{
				ID:         uuid.NewString(),
				UserID:     payload.UserID,
				Identifier: parsed.Identifier,
				Type:       parsed.Type,
				Metadata:   parsed.Metadata,
				FirstSeen:  now,
				LastSeen:   now,
			}
			if err := p.store.SaveAsset(ctx, asset); err != nil {
				return nil, err
			}
			telemetry.AssetsMerged.WithLabelValues("created").Inc()
			ids[parsed.Identifier] = asset.ID
		} else {
			existing.LastSeen = now
			if len(parsed.Metadata) > 0 {
				existing.Metadata = parsed.Metadata
			}
			if err := p.store.SaveAsset(ctx, existing); err != nil {
				return nil, err
			}
			telemetry.AssetsMerged.WithLabelValues("updated").Inc()
			ids[parsed.Identifier] = existing.ID
		}
		stats.assetsFound++
	}

	return ids, nil
}

// mergeVulnerabilities reconciles parsed findings in transactional batches,
// advancing job progress from 50 toward 90 as batches complete. Cancellation
// is honored between batches, never inside one.
func (p *Processor) mergeVulnerabilities(ctx context.Context, payload *domain.JobPayload, vulns []domain.ParsedVulnerability, assetIDs map[string]string, stats *mergeStats) error {
	for offset := 0; offset < len(vulns); offset += p.batchSize {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("merge interrupted: %w", err)
		}

		end := offset + p.batchSize
		if end > len(vulns) {
			end = len(vulns)
		}
		batch := vulns[offset:end]

		err := p.store.InTransaction(ctx, func(tx ports.Store) error {
			for _, parsed := range batch {
				if err := p.mergeOne(ctx, tx, payload, parsed, assetIDs, stats); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		progress := 50 + (offset+p.batchSize)/p.batchSize
		if progress > 90 {
			progress = 90
		}
		if err := jobs.UpdateStatus(ctx, p.store, payload.JobID, domain.JobRunning, progress, "", nil); err != nil {
			return err
		}
	}
	return nil
}

// mergeOne applies the dedup-and-merge rules to a single finding.
func (p *Processor) mergeOne(ctx context.Context, tx ports.Store, payload *domain.JobPayload, parsed domain.ParsedVulnerability, assetIDs map[string]string, stats *mergeStats) error {
	assetID, ok := assetIDs[parsed.AssetIdentifier]
	if !ok {
		// A parser bug; skip the orphan rather than failing the scan.
		log.Printf("[INGEST] Finding %q references unknown asset %q, skipping",
			parsed.Title, parsed.AssetIdentifier)
		return nil
	}

	now := time.Now().UTC()
	existing, err := tx.FindVulnerability(ctx, payload.UserID, assetID, parsed.Port, parsed.Discriminator())
	if err != nil {
		return err
	}

	if existing == nil {
		vuln := &domain.Vulnerability{
			ID:          uuid.NewString(),
			UserID:      payload.UserID,
			ScanID:      payload.ScanID,
			AssetID:     assetID,
			PluginID:    parsed.PluginID,
			CVEID:       parsed.CVEID,
			Title:       parsed.Title,
			Description: parsed.Description,
			Remediation: parsed.Remediation,
			Severity:    parsed.ScannerSeverity,
			CVSSScore:   parsed.CVSSScore,
			CVSSVector:  parsed.CVSSVector,
			Port:        parsed.Port,
			Protocol:    parsed.Protocol,
			Status:      domain.VulnOpen,
			RawData:     parsed.RawData,
			FirstSeen:   now,
			LastSeen:    now,
		}
		if err := tx.SaveVulnerability(ctx, vuln); err != nil {
			return err
		}
		telemetry.VulnerabilitiesMerged.WithLabelValues("created").Inc()
		stats.vulnsCreated++
		return nil
	}

	existing.LastSeen = now
	existing.ScanID = payload.ScanID

	// A scanner reporting the finding again means it is back (or still)
	// present: closed findings reopen. Ignored stays ignored.
	if existing.Status == domain.VulnFixed || existing.Status == domain.VulnFalsePositive {
		existing.Status = domain.VulnOpen
		existing.ClosedAt = nil
		telemetry.VulnerabilitiesMerged.WithLabelValues("reopened").Inc()
	}

	// Only non-empty parsed values overwrite stored ones, so a sparse
	// rescan never erases detail captured earlier.
	if parsed.Description != "" {
		existing.Description = parsed.Description
	}
	if parsed.Remediation != "" {
		existing.Remediation = parsed.Remediation
	}
	if parsed.ScannerSeverity != "" {
		existing.Severity = parsed.ScannerSeverity
	}
	if parsed.CVSSScore > 0 {
		existing.CVSSScore = parsed.CVSSScore
	}
	if parsed.CVSSVector != "" {
		existing.CVSSVector = parsed.CVSSVector
	}
	if len(parsed.RawData) > 0 {
		existing.RawData = parsed.RawData
	}

	if err := tx.SaveVulnerability(ctx, existing); err != nil {
		return err
	}
	telemetry.VulnerabilitiesMerged.WithLabelValues("updated").Inc()
	stats.vulnsUpdated++
	return nil
}

// markScanProcessed flips the scan to processed. Only reached on success, so
// a failed job leaves the scan queued and retriable.
func (p *Processor) markScanProcessed(ctx context.Context, scanID string) error {
	scan, err := p.store.GetScan(ctx, scanID)
	if err != nil {
		return err
	}
	if scan == nil {
		log.Printf("[INGEST] Scan %s not found, skipping status update", scanID)
		return nil
	}

	now := time.Now().UTC()
	scan.Status = domain.ScanProcessed
	scan.ProcessedAt = &now
	return p.store.SaveScan(ctx, scan)
}
