package queue

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// RedisBroker keeps each topic in a Redis list. Producers LPUSH onto the head
// and consumers BRPOP from the tail, so every topic is FIFO.
type RedisBroker struct {
	client *redis.Client
	logger *slog.Logger
}

func NewRedisBroker(client *redis.Client, logger *slog.Logger) *RedisBroker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBroker{
		client: client,
		logger: logger,
	}
}

func (b *RedisBroker) Push(ctx context.Context, topic string, payload []byte) error {
	if err := b.client.LPush(ctx, topic, payload).Err(); err != nil {
		return fmt.Errorf("lpush (topic=%s): %w", topic, err)
	}

	b.logger.DebugContext(ctx, "pushed message", "topic", topic, "bytes", len(payload))
	return nil
}

// PushAll wraps the pushes in MULTI/EXEC so a batch of tasks lands together.
func (b *RedisBroker) PushAll(ctx context.Context, envelopes []Envelope) error {
	if len(envelopes) == 0 {
		return nil
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, env := range envelopes {
			pipe.LPush(ctx, env.Topic, env.Payload)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("lpush transaction (%d messages): %w", len(envelopes), err)
	}

	b.logger.DebugContext(ctx, "pushed messages", "count", len(envelopes))
	return nil
}

func (b *RedisBroker) Close() error {
	return b.client.Close()
}

// Depth reports how many messages are waiting on topic.
func (b *RedisBroker) Depth(ctx context.Context, topic string) (int64, error) {
	n, err := b.client.LLen(ctx, topic).Result()
	if err != nil {
		return 0, fmt.Errorf("llen (topic=%s): %w", topic, err)
	}
	return n, nil
}
