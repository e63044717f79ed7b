// Package queue implements the job delivery channel on Redis lists.
// One list per job type; payloads are plain JSON so a malformed or
// adversarial message can never execute anything when decoded.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"vulnbridge/internal/core/domain"
	"vulnbridge/internal/core/ports"
)

// RedisBroker implements ports.Broker on a Redis connection.
type RedisBroker struct {
	client *redis.Client
}

// NewRedisBroker connects to Redis using a redis:// URL and verifies the
// connection with a ping.
func NewRedisBroker(ctx context.Context, url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis unreachable: %w", err)
	}

	return &RedisBroker{client: client}, nil
}

// queueKey names the delivery list for a job type.
func queueKey(t domain.JobType) string {
	return "queue:" + string(t)
}

// Publish appends the payload to its job type's list.
func (b *RedisBroker) Publish(ctx context.Context, payload domain.JobPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}
	if err := b.client.RPush(ctx, queueKey(payload.JobType), data).Err(); err != nil {
		return fmt.Errorf("failed to publish payload: %w", err)
	}
	return nil
}

// Pop blocks up to timeout for the next payload. BLPOP is atomic across
// consumers, so concurrent workers never receive the same payload.
func (b *RedisBroker) Pop(ctx context.Context, jobType domain.JobType, timeout time.Duration) (*domain.JobPayload, error) {
	res, err := b.client.BLPop(ctx, timeout, queueKey(jobType)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to pop payload: %w", err)
	}

	// res[0] is the list key, res[1] the payload
	var payload domain.JobPayload
	if err := json.Unmarshal([]byte(res[1]), &payload); err != nil {
		return nil, fmt.Errorf("malformed payload on %s: %w", queueKey(jobType), err)
	}
	return &payload, nil
}

// Len returns the number of undelivered payloads for the job type.
func (b *RedisBroker) Len(ctx context.Context, jobType domain.JobType) (int64, error) {
	n, err := b.client.LLen(ctx, queueKey(jobType)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue length: %w", err)
	}
	return n, nil
}

// Close releases the Redis connection.
func (b *RedisBroker) Close() error {
	return b.client.Close()
}

// Ensure interface compliance
var _ ports.Broker = (*RedisBroker)(nil)
