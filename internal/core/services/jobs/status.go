package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
)

// KeepProgress leaves a job's recorded progress untouched, so a terminal
// transition does not erase the last checkpoint the job reached.
const KeepProgress = -1

// UpdateStatus applies a status transition to a job row. A negative progress
// (KeepProgress) leaves the recorded progress as it was. StartedAt is set on
// the first transition to running, CompletedAt on any terminal status.
// A missing job is logged and ignored so a stale payload cannot crash a
// handler mid-run.
func UpdateStatus(ctx context.Context, store ports.Store, jobID string, status domain.JobStatus, progress int, errMsg string, result map[string]any) error {
	job, err := store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %s: %w", jobID, err)
	}
	if job == nil {
		log.Printf("[JOBS] Job %s not found, skipping status update to %s", jobID, status)
		return nil
	}

	now := time.Now().UTC()
	job.Status = status
	if progress >= 0 {
		job.Progress = progress
	}
	if errMsg != "" {
		job.ErrorMessage = errMsg
	}
	if result != nil {
		job.Result = result
	}
	if status == domain.JobRunning && job.StartedAt == nil {
		job.StartedAt = &now
	}
	if status.Terminal() {
		job.CompletedAt = &now
	}

	if err := store.SaveJob(ctx, job); err != nil {
		return fmt.Errorf("failed to update job %s: %w", jobID, err)
	}
	return nil
}
