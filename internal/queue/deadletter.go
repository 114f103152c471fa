package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

type deadLetter struct {
	SourceTopic string    `json:"source_topic"`
	Reason      string    `json:"reason"`
	Payload     string    `json:"payload"`
	DroppedAt   time.Time `json:"dropped_at"`
}

// SendDeadLetter parks a dropped payload on topic for later inspection.
// An empty topic means dropped messages are only logged.
func SendDeadLetter(ctx context.Context, broker Broker, topic, sourceTopic string, payload []byte, reason string) error {
	if topic == "" {
		return nil
	}

	data, err := json.Marshal(deadLetter{
		SourceTopic: sourceTopic,
		Reason:      reason,
		Payload:     string(payload),
		DroppedAt:   time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encoding dead letter: %w", err)
	}

	if err := broker.Push(ctx, topic, data); err != nil {
		return fmt.Errorf("dead letter (topic=%s): %w", topic, err)
	}

	slog.WarnContext(ctx, "message sent to dead letter topic",
		"dead_letter_topic", topic,
		"source_topic", sourceTopic,
		"reason", reason)
	return nil
}
