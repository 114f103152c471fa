package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pop blocks on BRPOP for at most block. Redis only accepts whole seconds, and
// a zero timeout would block forever, so block is rounded up to at least 1s.
// Callers loop on ErrEmpty, which keeps the wait cancellable through ctx.
func (b *RedisBroker) Pop(ctx context.Context, topic string, block time.Duration) ([]byte, error) {
	if block <= 0 {
		block = DefaultBlock
	}
	if block < time.Second {
		block = time.Second
	}

	res, err := b.client.BRPop(ctx, block, topic).Result()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, redis.Nil) {
			return nil, ErrEmpty
		}
		if errors.Is(err, redis.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("brpop (topic=%s): %w", topic, err)
	}

	// BRPOP replies with [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("brpop (topic=%s): unexpected reply length %d", topic, len(res))
	}
	return []byte(res[1]), nil
}
