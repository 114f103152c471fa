package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"basegraph.app/refactor/internal/model"
)

// ErrMalformedMessage marks a payload that does not decode into the expected
// message contract. Such messages are dropped where they are received.
var ErrMalformedMessage = errors.New("malformed message")

// taskMessage is the wire form of a TaskDescriptor.
type taskMessage struct {
	TaskID    string `json:"task_id"`
	FileName  string `json:"file_name"`
	AgentType string `json:"agent_type"`
	CreatedAt string `json:"created_at"`
}

// Workers written against naive UTC timestamps omit the zone suffix.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
}

func EncodeTask(task model.TaskDescriptor) ([]byte, error) {
	msg := taskMessage{
		TaskID:    task.BatchID,
		FileName:  task.FileName,
		AgentType: string(task.Capability),
		CreatedAt: task.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding task: %w", err)
	}
	return data, nil
}

func ParseTask(raw []byte) (model.TaskDescriptor, error) {
	var msg taskMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.TaskDescriptor{}, malformed("decoding task: %v", err)
	}

	if msg.TaskID == "" {
		return model.TaskDescriptor{}, malformed("missing task_id")
	}
	if msg.FileName == "" {
		return model.TaskDescriptor{}, malformed("missing file_name")
	}
	capability := model.Capability(msg.AgentType)
	if !capability.Valid() {
		return model.TaskDescriptor{}, malformed("unknown agent_type %q", msg.AgentType)
	}

	var createdAt time.Time
	if msg.CreatedAt != "" {
		ts, err := parseTimestamp(msg.CreatedAt)
		if err != nil {
			return model.TaskDescriptor{}, malformed("parsing created_at: %v", err)
		}
		createdAt = ts
	}

	return model.TaskDescriptor{
		BatchID:    msg.TaskID,
		FileName:   msg.FileName,
		Capability: capability,
		CreatedAt:  createdAt,
	}, nil
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMessage, fmt.Sprintf(format, args...))
}
