package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vulnbridge/internal/adapters/storage"
	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
)

const nessusFixture = `<?xml version="1.0" ?>
<NessusClientData_v2>
  <Report name="weekly">
    <ReportHost name="192.168.1.10">
      <HostProperties>
        <tag name="operating-system">Linux Kernel 5.15</tag>
      </HostProperties>
      <ReportItem pluginID="51192" severity="3" port="443" protocol="tcp" pluginName="SSL Certificate Cannot Be Trusted">
        <description>The server's X.509 certificate cannot be trusted.</description>
        <solution>Purchase or generate a proper SSL certificate.</solution>
        <cve>CVE-2021-1234</cve>
        <cvss_base_score>7.5</cvss_base_score>
      </ReportItem>
    </ReportHost>
    <ReportHost name="10.0.0.5">
      <ReportItem pluginID="42873" severity="2" port="22" protocol="tcp" pluginName="SSH Weak MAC Algorithms">
        <solution>Disable weak MAC algorithms.</solution>
      </ReportItem>
    </ReportHost>
  </Report>
</NessusClientData_v2>`

type fixture struct {
	store      *storage.SQLiteStore
	processor  *Processor
	uploadRoot string
	scan       *domain.Scan
	job        *domain.Job
	payload    *domain.JobPayload
}

func newFixture(t *testing.T, fileName, content string) *fixture {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	uploadRoot := t.TempDir()
	if content != "" {
		require.NoError(t, os.WriteFile(filepath.Join(uploadRoot, fileName), []byte(content), 0o644))
	}

	ctx := context.Background()
	scan := &domain.Scan{
		ID:        uuid.NewString(),
		UserID:    "user-1",
		FilePath:  fileName,
		Status:    domain.ScanQueued,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.SaveScan(ctx, scan))

	job := &domain.Job{
		ID:        uuid.NewString(),
		ScanID:    scan.ID,
		UserID:    scan.UserID,
		Type:      domain.JobParseScan,
		Status:    domain.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.CreateJob(ctx, job))

	return &fixture{
		store:      store,
		processor:  NewProcessor(store, uploadRoot, 100),
		uploadRoot: uploadRoot,
		scan:       scan,
		job:        job,
		payload: &domain.JobPayload{
			JobID:          job.ID,
			JobType:        job.Type,
			ScanID:         scan.ID,
			UserID:         scan.UserID,
			FilePath:       fileName,
			IdempotencyKey: domain.IdempotencyKey(scan.ID, job.Type),
			CreatedAt:      job.CreatedAt,
		},
	}
}

func TestProcessEndToEnd(t *testing.T) {
	f := newFixture(t, "weekly.nessus", nessusFixture)
	ctx := context.Background()

	require.NoError(t, f.processor.Process(ctx, f.payload))

	job, err := f.store.GetJob(ctx, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.StartedAt)
	require.NotNil(t, job.CompletedAt)
	assert.Equal(t, "nessus", job.Result["parser"])
	assert.Equal(t, float64(2), job.Result["assets_found"])
	assert.Equal(t, float64(2), job.Result["vulnerabilities_created"])
	assert.Equal(t, float64(0), job.Result["vulnerabilities_updated"])
	assert.Equal(t, "success", job.Result["status"])

	scan, err := f.store.GetScan(ctx, f.scan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanProcessed, scan.Status)
	require.NotNil(t, scan.ProcessedAt)

	asset, err := f.store.GetAssetByIdentifier(ctx, "user-1", "192.168.1.10")
	require.NoError(t, err)
	require.NotNil(t, asset)
	assert.Equal(t, domain.AssetServer, asset.Type)

	vuln, err := f.store.FindVulnerability(ctx, "user-1", asset.ID, 443,
		domain.Discriminator{Field: domain.DiscriminatorPluginID, Value: "51192"})
	require.NoError(t, err)
	require.NotNil(t, vuln)
	assert.Equal(t, domain.VulnOpen, vuln.Status)
	assert.Equal(t, domain.SeverityHigh, vuln.Severity)
	assert.Equal(t, 7.5, vuln.CVSSScore)
	assert.Equal(t, "CVE-2021-1234", vuln.CVEID)
	assert.Equal(t, f.scan.ID, vuln.ScanID)
}

func TestProcessSkipsInformationalButKeepsAsset(t *testing.T) {
	const fixture = `<?xml version="1.0" ?>
<NessusClientData_v2>
  <Report name="targeted">
    <ReportHost name="host-a">
      <ReportItem pluginID="51192" severity="3" port="443" protocol="tcp" pluginName="SSL Certificate Cannot Be Trusted">
        <cve>CVE-2021-1234</cve>
        <cvss_base_score>7.5</cvss_base_score>
      </ReportItem>
    </ReportHost>
    <ReportHost name="host-b">
      <ReportItem pluginID="10107" severity="0" port="80" protocol="tcp" pluginName="HTTP Server Type and Version"/>
    </ReportHost>
  </Report>
</NessusClientData_v2>`

	f := newFixture(t, "targeted.nessus", fixture)
	ctx := context.Background()

	require.NoError(t, f.processor.Process(ctx, f.payload))

	// Host B's only item is informational: both hosts become assets, but
	// exactly one vulnerability is recorded
	job, err := f.store.GetJob(ctx, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(2), job.Result["assets_found"])
	assert.Equal(t, float64(1), job.Result["vulnerabilities_created"])

	hostB, err := f.store.GetAssetByIdentifier(ctx, "user-1", "host-b")
	require.NoError(t, err)
	require.NotNil(t, hostB)

	hostA, err := f.store.GetAssetByIdentifier(ctx, "user-1", "host-a")
	require.NoError(t, err)
	vuln, err := f.store.FindVulnerability(ctx, "user-1", hostA.ID, 443,
		domain.Discriminator{Field: domain.DiscriminatorPluginID, Value: "51192"})
	require.NoError(t, err)
	require.NotNil(t, vuln)
	assert.Equal(t, domain.SeverityHigh, vuln.Severity)
	assert.Equal(t, 7.5, vuln.CVSSScore)
	assert.Equal(t, "tcp", vuln.Protocol)
}

func TestProcessIsIdempotentAcrossReruns(t *testing.T) {
	f := newFixture(t, "weekly.nessus", nessusFixture)
	ctx := context.Background()

	require.NoError(t, f.processor.Process(ctx, f.payload))

	// Second delivery of the same scan updates instead of duplicating
	rerun := &domain.Job{
		ID:        uuid.NewString(),
		ScanID:    f.scan.ID,
		UserID:    f.scan.UserID,
		Type:      domain.JobParseScan,
		Status:    domain.JobPending,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.store.CreateJob(ctx, rerun))
	payload := *f.payload
	payload.JobID = rerun.ID
	require.NoError(t, f.processor.Process(ctx, &payload))

	job, err := f.store.GetJob(ctx, rerun.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, float64(0), job.Result["vulnerabilities_created"])
	assert.Equal(t, float64(2), job.Result["vulnerabilities_updated"])

	vulns, err := f.store.ListVulnerabilitiesByScan(ctx, f.scan.ID)
	require.NoError(t, err)
	assert.Len(t, vulns, 2)
}

func TestProcessReopensClosedFindings(t *testing.T) {
	f := newFixture(t, "weekly.nessus", nessusFixture)
	ctx := context.Background()

	require.NoError(t, f.processor.Process(ctx, f.payload))

	asset, err := f.store.GetAssetByIdentifier(ctx, "user-1", "192.168.1.10")
	require.NoError(t, err)
	vuln, err := f.store.FindVulnerability(ctx, "user-1", asset.ID, 443,
		domain.Discriminator{Field: domain.DiscriminatorPluginID, Value: "51192"})
	require.NoError(t, err)

	// An analyst closed it, then the scanner reported it again
	closed := time.Now().UTC()
	vuln.Status = domain.VulnFixed
	vuln.ClosedAt = &closed
	require.NoError(t, f.store.SaveVulnerability(ctx, vuln))

	rerun := &domain.Job{
		ID: uuid.NewString(), ScanID: f.scan.ID, UserID: f.scan.UserID,
		Type: domain.JobParseScan, Status: domain.JobPending, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.store.CreateJob(ctx, rerun))
	payload := *f.payload
	payload.JobID = rerun.ID
	require.NoError(t, f.processor.Process(ctx, &payload))

	reopened, err := f.store.FindVulnerability(ctx, "user-1", asset.ID, 443,
		domain.Discriminator{Field: domain.DiscriminatorPluginID, Value: "51192"})
	require.NoError(t, err)
	assert.Equal(t, domain.VulnOpen, reopened.Status)
	assert.Nil(t, reopened.ClosedAt)
}

func TestProcessIgnoredStaysIgnored(t *testing.T) {
	f := newFixture(t, "weekly.nessus", nessusFixture)
	ctx := context.Background()

	require.NoError(t, f.processor.Process(ctx, f.payload))

	asset, err := f.store.GetAssetByIdentifier(ctx, "user-1", "192.168.1.10")
	require.NoError(t, err)
	vuln, err := f.store.FindVulnerability(ctx, "user-1", asset.ID, 443,
		domain.Discriminator{Field: domain.DiscriminatorPluginID, Value: "51192"})
	require.NoError(t, err)
	vuln.Status = domain.VulnIgnored
	require.NoError(t, f.store.SaveVulnerability(ctx, vuln))

	rerun := &domain.Job{
		ID: uuid.NewString(), ScanID: f.scan.ID, UserID: f.scan.UserID,
		Type: domain.JobParseScan, Status: domain.JobPending, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.store.CreateJob(ctx, rerun))
	payload := *f.payload
	payload.JobID = rerun.ID
	require.NoError(t, f.processor.Process(ctx, &payload))

	still, err := f.store.FindVulnerability(ctx, "user-1", asset.ID, 443,
		domain.Discriminator{Field: domain.DiscriminatorPluginID, Value: "51192"})
	require.NoError(t, err)
	assert.Equal(t, domain.VulnIgnored, still.Status)
}

func TestProcessMissingFileFailsJobLeavesScanQueued(t *testing.T) {
	f := newFixture(t, "missing.nessus", "")
	ctx := context.Background()

	require.NoError(t, f.processor.Process(ctx, f.payload))

	job, err := f.store.GetJob(ctx, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "file_not_found:")
	require.NotNil(t, job.CompletedAt)

	scan, err := f.store.GetScan(ctx, f.scan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanQueued, scan.Status)
	assert.Nil(t, scan.ProcessedAt)
}

func TestProcessInvalidContentFailsWithClass(t *testing.T) {
	f := newFixture(t, "broken.nessus", "<NessusClientData_v2><Report>")
	ctx := context.Background()

	require.NoError(t, f.processor.Process(ctx, f.payload))

	job, err := f.store.GetJob(ctx, f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, job.Status)
	assert.Contains(t, job.ErrorMessage, "invalid_format:")
	// The checkpoint reached before the parse failed stays on the row
	assert.Equal(t, 10, job.Progress)
}

func TestProcessCancelledBeforeStartStillTerminatesJob(t *testing.T) {
	f := newFixture(t, "weekly.nessus", nessusFixture)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, f.processor.Process(ctx, f.payload))

	// The payload was already consumed from the queue. If the row stayed
	// pending, enqueue idempotency would suppress every retry of this scan.
	job, err := f.store.GetJob(context.Background(), f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCancelled, job.Status)
	assert.Contains(t, job.ErrorMessage, "cancelled:")
	require.NotNil(t, job.CompletedAt)

	scan, err := f.store.GetScan(context.Background(), f.scan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanQueued, scan.Status)
}

// cancelAfterBatchStore cancels the worker context once the first merge
// transaction commits, simulating a shutdown landing mid-merge.
type cancelAfterBatchStore struct {
	ports.Store
	cancel context.CancelFunc
	once   sync.Once
}

func (s *cancelAfterBatchStore) InTransaction(ctx context.Context, fn func(ports.Store) error) error {
	err := s.Store.InTransaction(ctx, fn)
	s.once.Do(s.cancel)
	return err
}

func TestProcessCancelledMidMergePreservesProgress(t *testing.T) {
	f := newFixture(t, "weekly.nessus", nessusFixture)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	store := &cancelAfterBatchStore{Store: f.store, cancel: cancel}
	processor := NewProcessor(store, f.uploadRoot, 1)

	require.NoError(t, processor.Process(ctx, f.payload))

	job, err := f.store.GetJob(context.Background(), f.job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobCancelled, job.Status)
	assert.Contains(t, job.ErrorMessage, "cancelled:")
	// The checkpoint reached before the interruption survives the transition
	assert.Equal(t, 50, job.Progress)
	require.NotNil(t, job.CompletedAt)

	// Only the first batch landed, and the scan stays queued and retriable
	vulns, err := f.store.ListVulnerabilitiesByScan(context.Background(), f.scan.ID)
	require.NoError(t, err)
	assert.Len(t, vulns, 1)

	scan, err := f.store.GetScan(context.Background(), f.scan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ScanQueued, scan.Status)
}

func TestProcessNonEmptyOverwriteOnly(t *testing.T) {
	f := newFixture(t, "weekly.nessus", nessusFixture)
	ctx := context.Background()
	require.NoError(t, f.processor.Process(ctx, f.payload))

	asset, err := f.store.GetAssetByIdentifier(ctx, "user-1", "10.0.0.5")
	require.NoError(t, err)
	vuln, err := f.store.FindVulnerability(ctx, "user-1", asset.ID, 22,
		domain.Discriminator{Field: domain.DiscriminatorPluginID, Value: "42873"})
	require.NoError(t, err)

	// Enrich the stored row with detail the scanner does not report
	vuln.Description = "Manually researched description"
	vuln.CVSSScore = 4.3
	require.NoError(t, f.store.SaveVulnerability(ctx, vuln))

	rerun := &domain.Job{
		ID: uuid.NewString(), ScanID: f.scan.ID, UserID: f.scan.UserID,
		Type: domain.JobParseScan, Status: domain.JobPending, CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, f.store.CreateJob(ctx, rerun))
	payload := *f.payload
	payload.JobID = rerun.ID
	require.NoError(t, f.processor.Process(ctx, &payload))

	// The sparse rescan (no description, no CVSS for this item) must not
	// erase the enrichment
	after, err := f.store.FindVulnerability(ctx, "user-1", asset.ID, 22,
		domain.Discriminator{Field: domain.DiscriminatorPluginID, Value: "42873"})
	require.NoError(t, err)
	assert.Equal(t, "Manually researched description", after.Description)
	assert.Equal(t, 4.3, after.CVSSScore)
	// Non-empty fields still refresh
	assert.Equal(t, "Disable weak MAC algorithms.", after.Remediation)
}
