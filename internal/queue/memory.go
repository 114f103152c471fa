package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryBroker is an in-process Broker for tests and single-process runs.
type MemoryBroker struct {
	mu     sync.Mutex
	topics map[string][][]byte
	wake   map[string]chan struct{}
	closed bool
}

func NewMemoryBroker() *MemoryBroker {
	return &MemoryBroker{
		topics: make(map[string][][]byte),
		wake:   make(map[string]chan struct{}),
	}
}

func (b *MemoryBroker) Push(ctx context.Context, topic string, payload []byte) error {
	return b.PushAll(ctx, []Envelope{{Topic: topic, Payload: payload}})
}

func (b *MemoryBroker) PushAll(ctx context.Context, envelopes []Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}
	for _, env := range envelopes {
		payload := append([]byte(nil), env.Payload...)
		b.topics[env.Topic] = append(b.topics[env.Topic], payload)
		if ch, ok := b.wake[env.Topic]; ok {
			close(ch)
			delete(b.wake, env.Topic)
		}
	}
	return nil
}

func (b *MemoryBroker) Pop(ctx context.Context, topic string, block time.Duration) ([]byte, error) {
	if block <= 0 {
		block = DefaultBlock
	}
	timer := time.NewTimer(block)
	defer timer.Stop()

	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}
		if items := b.topics[topic]; len(items) > 0 {
			head := items[0]
			b.topics[topic] = items[1:]
			b.mu.Unlock()
			return head, nil
		}
		ch, ok := b.wake[topic]
		if !ok {
			ch = make(chan struct{})
			b.wake[topic] = ch
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, ErrEmpty
		case <-ch:
		}
	}
}

// Len reports how many messages are waiting on topic.
func (b *MemoryBroker) Len(topic string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.topics[topic])
}

func (b *MemoryBroker) Depth(_ context.Context, topic string) (int64, error) {
	return int64(b.Len(topic)), nil
}

func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for topic, ch := range b.wake {
		close(ch)
		delete(b.wake, topic)
	}
	return nil
}
