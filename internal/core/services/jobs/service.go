// Package jobs implements job creation with duplicate suppression and the
// shared job status transitions used by every job handler.
package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
	"vulnbridge/internal/telemetry"
)

// Service coordinates job rows in the store with payloads on the broker.
type Service struct {
	store  ports.Store
	broker ports.Broker
}

// NewService creates a job service.
func NewService(store ports.Store, broker ports.Broker) *Service {
	return &Service{store: store, broker: broker}
}

// EnqueueRequest carries everything needed to start an asynchronous job.
type EnqueueRequest struct {
	JobType  domain.JobType
	ScanID   string
	UserID   string
	FilePath string // relative to the upload root
	Meta     map[string]string
}

// Enqueue creates a job row and publishes its payload. If a non-terminal job
// already exists for (scan, job type), the existing job is returned and
// nothing is published: enqueueing is idempotent per scan and type.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*domain.Job, error) {
	if !req.JobType.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidJobType, req.JobType)
	}

	existing, err := s.store.FindActiveJob(ctx, req.ScanID, req.JobType)
	if err != nil {
		return nil, fmt.Errorf("failed to check for active job: %w", err)
	}
	if existing != nil {
		log.Printf("[JOBS] Duplicate enqueue suppressed for scan=%s type=%s (job=%s)",
			req.ScanID, req.JobType, existing.ID)
		return existing, nil
	}

	job := &domain.Job{
		ID:        uuid.NewString(),
		ScanID:    req.ScanID,
		UserID:    req.UserID,
		Type:      req.JobType,
		Status:    domain.JobPending,
		Progress:  0,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	payload := domain.JobPayload{
		JobID:          job.ID,
		JobType:        job.Type,
		ScanID:         job.ScanID,
		UserID:         job.UserID,
		FilePath:       req.FilePath,
		IdempotencyKey: domain.IdempotencyKey(job.ScanID, job.Type),
		CreatedAt:      job.CreatedAt,
		Meta:           req.Meta,
	}
	if err := s.broker.Publish(ctx, payload); err != nil {
		return nil, fmt.Errorf("failed to publish job %s: %w", job.ID, err)
	}

	return job, nil
}

// QueueStatus reports the queue depth for every job type and refreshes the
// queue depth gauges as a side effect.
func (s *Service) QueueStatus(ctx context.Context) (map[domain.JobType]int64, error) {
	status := make(map[domain.JobType]int64, len(domain.JobTypes()))
	for _, t := range domain.JobTypes() {
		n, err := s.broker.Len(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("failed to read queue %s: %w", t, err)
		}
		status[t] = n
		telemetry.QueueDepth.WithLabelValues(string(t)).Set(float64(n))
	}
	return status, nil
}
