package ports

import (
	"context"
	"time"

	"vulnbridge/internal/core/domain"
)

// Broker is the job delivery channel. One FIFO queue per job type; Pop must
// be atomic across concurrent consumers so that no two workers receive the
// same payload.
type Broker interface {
	// Publish appends a payload to its job type's queue.
	Publish(ctx context.Context, payload domain.JobPayload) error

	// Pop blocks up to timeout for the next payload on the job type's queue.
	// Returns (nil, nil) when the queue stayed empty.
	Pop(ctx context.Context, jobType domain.JobType, timeout time.Duration) (*domain.JobPayload, error)

	// Len returns the number of undelivered payloads for the job type.
	Len(ctx context.Context, jobType domain.JobType) (int64, error)

	Close() error
}
