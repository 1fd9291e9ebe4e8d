// Package messaging provides the Redis Streams job queue adapters.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"github.com/pretzelai/email-use/core/port/out"
)

// Stream names
const (
	StreamDiscovery    = "discovery:user"
	StreamEmailProcess = "email:process"
)

// RedisProducer implements out.JobProducer using Redis Streams.
type RedisProducer struct {
	client *redis.Client
}

// NewRedisProducer creates a new RedisProducer.
func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

// PublishDiscovery publishes a per-user inbox discovery job.
func (p *RedisProducer) PublishDiscovery(ctx context.Context, job *out.DiscoveryJob) error {
	return p.publish(ctx, StreamDiscovery, job)
}

// PublishEmailProcess publishes a single-email processing job.
func (p *RedisProducer) PublishEmailProcess(ctx context.Context, job *out.EmailProcessJob) error {
	return p.publish(ctx, StreamEmailProcess, job)
}

func (p *RedisProducer) publish(ctx context.Context, stream string, job interface{}) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	err = p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		ID:     "*",
		Values: map[string]interface{}{
			"data": string(data),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	return nil
}

var _ out.JobProducer = (*RedisProducer)(nil)
