package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vulnbridge/internal/adapters/storage"
	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/mock"
)

func newTestService(t *testing.T) (*Service, *storage.SQLiteStore, *mock.Broker) {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	broker := mock.NewBroker()
	return NewService(store, broker), store, broker
}

func TestEnqueueCreatesJobAndPayload(t *testing.T) {
	service, store, broker := newTestService(t)
	ctx := context.Background()

	job, err := service.Enqueue(ctx, EnqueueRequest{
		JobType:  domain.JobParseScan,
		ScanID:   "scan-1",
		UserID:   "user-1",
		FilePath: "scans/report.nessus",
	})
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, domain.JobPending, job.Status)
	assert.Equal(t, 0, job.Progress)

	stored, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)

	payload, err := broker.Pop(ctx, domain.JobParseScan, time.Second)
	require.NoError(t, err)
	require.NotNil(t, payload)
	assert.Equal(t, job.ID, payload.JobID)
	assert.Equal(t, "scans/report.nessus", payload.FilePath)
	assert.Equal(t, "scan:scan-1:parse_scan", payload.IdempotencyKey)
}

func TestEnqueueIsIdempotentPerScanAndType(t *testing.T) {
	service, _, broker := newTestService(t)
	ctx := context.Background()

	first, err := service.Enqueue(ctx, EnqueueRequest{
		JobType: domain.JobParseScan, ScanID: "scan-1", UserID: "user-1", FilePath: "f.nessus",
	})
	require.NoError(t, err)

	second, err := service.Enqueue(ctx, EnqueueRequest{
		JobType: domain.JobParseScan, ScanID: "scan-1", UserID: "user-1", FilePath: "f.nessus",
	})
	require.NoError(t, err)

	// Same job returned, only one payload ever published
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, broker.PublishedCount(domain.JobParseScan))

	// A different job type for the same scan is its own job
	report, err := service.Enqueue(ctx, EnqueueRequest{
		JobType: domain.JobReportGeneration, ScanID: "scan-1", UserID: "user-1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, report.ID)
	assert.Equal(t, 1, broker.PublishedCount(domain.JobReportGeneration))
}

func TestEnqueueAfterTerminalJobCreatesNew(t *testing.T) {
	service, store, broker := newTestService(t)
	ctx := context.Background()

	first, err := service.Enqueue(ctx, EnqueueRequest{
		JobType: domain.JobParseScan, ScanID: "scan-1", UserID: "user-1", FilePath: "f.nessus",
	})
	require.NoError(t, err)

	require.NoError(t, UpdateStatus(ctx, store, first.ID, domain.JobFailed, 0, "file_not_found: gone", nil))

	second, err := service.Enqueue(ctx, EnqueueRequest{
		JobType: domain.JobParseScan, ScanID: "scan-1", UserID: "user-1", FilePath: "f.nessus",
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 2, broker.PublishedCount(domain.JobParseScan))
}

func TestEnqueueRejectsInvalidJobType(t *testing.T) {
	service, _, broker := newTestService(t)

	_, err := service.Enqueue(context.Background(), EnqueueRequest{
		JobType: domain.JobType("cryptomining"), ScanID: "scan-1", UserID: "user-1",
	})
	require.ErrorIs(t, err, domain.ErrInvalidJobType)
	assert.Equal(t, 0, broker.PublishedCount(domain.JobType("cryptomining")))
}

func TestQueueStatusCoversAllJobTypes(t *testing.T) {
	service, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := service.Enqueue(ctx, EnqueueRequest{
		JobType: domain.JobParseScan, ScanID: "scan-1", UserID: "user-1", FilePath: "f.nessus",
	})
	require.NoError(t, err)

	status, err := service.QueueStatus(ctx)
	require.NoError(t, err)
	require.Len(t, status, len(domain.JobTypes()))
	assert.Equal(t, int64(1), status[domain.JobParseScan])
	assert.Equal(t, int64(0), status[domain.JobReportGeneration])
}

func TestUpdateStatusTimestamps(t *testing.T) {
	service, store, _ := newTestService(t)
	ctx := context.Background()

	job, err := service.Enqueue(ctx, EnqueueRequest{
		JobType: domain.JobParseScan, ScanID: "scan-1", UserID: "user-1", FilePath: "f.nessus",
	})
	require.NoError(t, err)

	require.NoError(t, UpdateStatus(ctx, store, job.ID, domain.JobRunning, 10, "", nil))
	running, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, running.StartedAt)
	assert.Nil(t, running.CompletedAt)
	started := *running.StartedAt

	// StartedAt is set once, not on every running update
	require.NoError(t, UpdateStatus(ctx, store, job.ID, domain.JobRunning, 50, "", nil))
	running, err = store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, started, *running.StartedAt)

	require.NoError(t, UpdateStatus(ctx, store, job.ID, domain.JobCompleted, 100, "", map[string]any{"status": "success"}))
	done, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)
	assert.Equal(t, 100, done.Progress)
	assert.Equal(t, "success", done.Result["status"])
}

func TestUpdateStatusKeepProgress(t *testing.T) {
	service, store, _ := newTestService(t)
	ctx := context.Background()

	job, err := service.Enqueue(ctx, EnqueueRequest{
		JobType: domain.JobParseScan, ScanID: "scan-1", UserID: "user-1", FilePath: "f.nessus",
	})
	require.NoError(t, err)

	require.NoError(t, UpdateStatus(ctx, store, job.ID, domain.JobRunning, 50, "", nil))
	require.NoError(t, UpdateStatus(ctx, store, job.ID, domain.JobFailed, KeepProgress, "parse_failure: truncated file", nil))

	failed, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobFailed, failed.Status)
	// The failure transition must not erase the last checkpoint reached
	assert.Equal(t, 50, failed.Progress)
}

func TestUpdateStatusMissingJobIsIgnored(t *testing.T) {
	_, store, _ := newTestService(t)
	err := UpdateStatus(context.Background(), store, "no-such-job", domain.JobRunning, 0, "", nil)
	assert.NoError(t, err)
}
