package queue

import (
	"encoding/json"
	"fmt"

	"basegraph.app/refactor/internal/model"
)

// resultMessage is the wire form of a CapabilityResult. Optional fields are
// encoded as null when absent.
type resultMessage struct {
	TaskID      string  `json:"task_id"`
	AgentType   string  `json:"agent_type"`
	Status      string  `json:"status"`
	Diff        *string `json:"diff"`
	Explanation *string `json:"explanation"`
	Error       *string `json:"error"`
}

func EncodeResult(result model.CapabilityResult) ([]byte, error) {
	msg := resultMessage{
		TaskID:      result.BatchID,
		AgentType:   string(result.Capability),
		Status:      string(result.Status),
		Diff:        result.Diff,
		Explanation: result.Explanation,
		Error:       result.Error,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return data, nil
}

func ParseResult(raw []byte) (model.CapabilityResult, error) {
	var msg resultMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return model.CapabilityResult{}, malformed("decoding result: %v", err)
	}

	if msg.TaskID == "" {
		return model.CapabilityResult{}, malformed("missing task_id")
	}
	capability := model.Capability(msg.AgentType)
	if !capability.Valid() {
		return model.CapabilityResult{}, malformed("unknown agent_type %q", msg.AgentType)
	}
	status := model.Status(msg.Status)
	if !status.Valid() {
		return model.CapabilityResult{}, malformed("unknown status %q", msg.Status)
	}

	return model.CapabilityResult{
		BatchID:     msg.TaskID,
		Capability:  capability,
		Status:      status,
		Diff:        msg.Diff,
		Explanation: msg.Explanation,
		Error:       msg.Error,
	}, nil
}
