package queue

import (
	"context"
	"errors"
	"time"

	"basegraph.app/refactor/internal/model"
)

// DefaultResultTopic is the single topic every worker posts its outcome to.
const DefaultResultTopic = "orchestrator_tasks"

// DefaultBlock is how long one Pop call waits before reporting ErrEmpty.
const DefaultBlock = 5 * time.Second

// ErrEmpty is returned by Pop when nothing arrived within the block window.
var ErrEmpty = errors.New("queue empty")

// ErrClosed is returned by a broker that has been closed.
var ErrClosed = errors.New("broker closed")

// Envelope is a payload addressed to a topic.
type Envelope struct {
	Topic   string
	Payload []byte
}

// Broker is a set of named FIFO queues.
type Broker interface {
	// Push appends payload to the tail of topic.
	Push(ctx context.Context, topic string, payload []byte) error
	// PushAll appends every envelope or none of them.
	PushAll(ctx context.Context, envelopes []Envelope) error
	// Pop removes the head of topic, waiting up to block for one to arrive.
	Pop(ctx context.Context, topic string, block time.Duration) ([]byte, error)
	Close() error
}

// TaskTopic is the queue a capability's workers pull tasks from.
func TaskTopic(c model.Capability) string {
	return string(c) + "_tasks"
}
