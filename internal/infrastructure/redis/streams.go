package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cassiomorais/creditshop/internal/domain/outbox"
	"github.com/redis/go-redis/v9"
)

// StreamPublisher appends relayed outbox entries to Redis Streams.
type StreamPublisher struct {
	client redis.Cmdable
	maxLen int64
}

// NewStreamPublisher trims each stream to roughly maxLen entries; 0 disables trimming.
func NewStreamPublisher(client redis.Cmdable, maxLen int64) *StreamPublisher {
	return &StreamPublisher{client: client, maxLen: maxLen}
}

// Publish appends entry to stream and returns the stream message id.
func (p *StreamPublisher) Publish(ctx context.Context, stream string, entry *outbox.Entry) (string, error) {
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal event payload: %w", err)
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"event_id":       entry.ID.String(),
			"event_type":     entry.EventType,
			"aggregate_type": entry.AggregateType,
			"aggregate_id":   entry.AggregateID.String(),
			"payload":        string(payload),
			"occurred_at":    entry.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}

	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("publish %s to %s: %w", entry.EventType, stream, err)
	}
	return id, nil
}
