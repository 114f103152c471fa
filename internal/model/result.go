package model

import "strings"

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// CapabilityResult is one capability's outcome for one task.
type CapabilityResult struct {
	BatchID     string     `json:"batch_id"`
	Capability  Capability `json:"capability"`
	Status      Status     `json:"status"`
	Diff        *string    `json:"diff,omitempty"`
	Explanation *string    `json:"explanation,omitempty"`
	Error       *string    `json:"error,omitempty"`
}

// ProposedDiff is the diff to feed into consolidation. A failed result never
// proposes a diff, whatever its Diff field holds.
func (r CapabilityResult) ProposedDiff() string {
	if r.Status == StatusFailed || r.Diff == nil {
		return ""
	}
	return *r.Diff
}

// HasChange reports whether the result proposes a non-blank diff.
func (r CapabilityResult) HasChange() bool {
	return strings.TrimSpace(r.ProposedDiff()) != ""
}

func CompletedResult(task TaskDescriptor, diff, explanation string) CapabilityResult {
	return CapabilityResult{
		BatchID:     task.BatchID,
		Capability:  task.Capability,
		Status:      StatusCompleted,
		Diff:        &diff,
		Explanation: &explanation,
	}
}

func FailedResult(task TaskDescriptor, err error) CapabilityResult {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return CapabilityResult{
		BatchID:    task.BatchID,
		Capability: task.Capability,
		Status:     StatusFailed,
		Error:      &msg,
	}
}

// RefactorOutput is what a refactor capability proposes for one file.
type RefactorOutput struct {
	Diff        string `json:"diff"`
	Explanation string `json:"explanation"`
}

// SynthesisRequest is the input to the final merge step. OrderedResults is
// sorted highest precedence first.
type SynthesisRequest struct {
	OriginalFilePath string
	OriginalContent  string
	OrderedResults   []CapabilityResult
}

type SynthesisResult struct {
	FinalDiff string `json:"final_diff"`
}
