// Package mock provides in-memory stand-ins for external infrastructure,
// used by tests and by mock mode (running without a Redis instance).
package mock

import (
	"context"
	"sync"
	"time"

	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
)

// Broker is an in-memory ports.Broker with per-job-type FIFO queues.
type Broker struct {
	mu     sync.Mutex
	queues map[domain.JobType][]domain.JobPayload

	// Published counts every accepted payload per job type, useful for
	// asserting idempotency in tests.
	published map[domain.JobType]int
}

// NewBroker creates an empty in-memory broker.
func NewBroker() *Broker {
	return &Broker{
		queues:    make(map[domain.JobType][]domain.JobPayload),
		published: make(map[domain.JobType]int),
	}
}

func (b *Broker) Publish(ctx context.Context, payload domain.JobPayload) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.queues[payload.JobType] = append(b.queues[payload.JobType], payload)
	b.published[payload.JobType]++
	return nil
}

// Pop returns the next payload or (nil, nil) when the queue is empty.
// An empty queue waits out a fraction of the timeout so worker loops do not
// spin hot in mock mode.
func (b *Broker) Pop(ctx context.Context, jobType domain.JobType, timeout time.Duration) (*domain.JobPayload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	queue := b.queues[jobType]
	if len(queue) == 0 {
		b.mu.Unlock()
		wait := timeout / 10
		if wait <= 0 || wait > 100*time.Millisecond {
			wait = 100 * time.Millisecond
		}
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
		return nil, nil
	}
	payload := queue[0]
	b.queues[jobType] = queue[1:]
	b.mu.Unlock()
	return &payload, nil
}

func (b *Broker) Len(ctx context.Context, jobType domain.JobType) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.queues[jobType])), nil
}

// PublishedCount reports how many payloads were ever published for the type.
func (b *Broker) PublishedCount(jobType domain.JobType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[jobType]
}

func (b *Broker) Close() error { return nil }

// Ensure interface compliance
var _ ports.Broker = (*Broker)(nil)
