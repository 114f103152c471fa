package model

import "time"

type RunStatus string

const (
	RunStatusRunning    RunStatus = "running"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusIncomplete RunStatus = "incomplete"
	RunStatusFailed     RunStatus = "failed"
)

// Run is the persisted record of one batch.
type Run struct {
	ID                int64              `json:"id"`
	BatchID           string             `json:"batch_id"`
	FileName          string             `json:"file_name"`
	Capabilities      []Capability       `json:"capabilities"`
	PrecedenceVersion string             `json:"precedence_version"`
	Status            RunStatus          `json:"status"`
	FinalDiff         *string            `json:"final_diff,omitempty"`
	Results           []CapabilityResult `json:"results,omitempty"`
	Error             *string            `json:"error,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	FinishedAt        *time.Time         `json:"finished_at,omitempty"`
}
