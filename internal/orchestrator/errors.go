package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"basegraph.app/refactor/internal/model"
)

var (
	// ErrEnqueueFailure means the tasks of a batch could not be posted.
	ErrEnqueueFailure = errors.New("enqueue failure")
	// ErrPrecedenceMismatch means a capability has no rank in the configured
	// precedence order. This is a configuration bug, never a runtime condition.
	ErrPrecedenceMismatch = errors.New("precedence mismatch")
	// ErrSynthesisFailed means the synthesis capability failed or returned
	// unusable output.
	ErrSynthesisFailed = errors.New("synthesis failed")
	// ErrIncomplete means collection stopped before every capability reported.
	ErrIncomplete = errors.New("batch incomplete")
	// ErrCapabilityFailure means every capability of a batch reported failed,
	// so no diff could be produced.
	ErrCapabilityFailure = errors.New("capability failure")
)

type EnqueueError struct {
	BatchID      string
	Capabilities []model.Capability
	Err          error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("enqueue batch %s (%s): %v", e.BatchID, joinCapabilities(e.Capabilities), e.Err)
}

func (e *EnqueueError) Is(target error) bool { return target == ErrEnqueueFailure }
func (e *EnqueueError) Unwrap() error        { return e.Err }

type PrecedenceMismatchError struct {
	Capability model.Capability
	Precedence model.Precedence
}

func (e *PrecedenceMismatchError) Error() string {
	return fmt.Sprintf("capability %q has no rank in precedence %s (%s)",
		e.Capability, e.Precedence.Version(), e.Precedence)
}

func (e *PrecedenceMismatchError) Is(target error) bool { return target == ErrPrecedenceMismatch }

// IncompleteError carries the capabilities that never reported so a stalled
// batch can be diagnosed.
type IncompleteError struct {
	BatchID string
	Missing []model.Capability
	Cause   error
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("batch %s incomplete, missing %s: %v", e.BatchID, joinCapabilities(e.Missing), e.Cause)
}

func (e *IncompleteError) Is(target error) bool { return target == ErrIncomplete }
func (e *IncompleteError) Unwrap() error        { return e.Cause }

type SynthesisError struct {
	BatchID string
	Cause   error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("synthesis for batch %s: %v", e.BatchID, e.Cause)
}

func (e *SynthesisError) Is(target error) bool { return target == ErrSynthesisFailed }
func (e *SynthesisError) Unwrap() error        { return e.Cause }

// CapabilityFailure is one capability that reported status=failed and why.
type CapabilityFailure struct {
	Capability model.Capability
	Reason     string
}

func (f CapabilityFailure) String() string {
	return fmt.Sprintf("%s: %s", f.Capability, f.Reason)
}

type CapabilityFailureError struct {
	BatchID  string
	Failures []CapabilityFailure
}

func (e *CapabilityFailureError) Error() string {
	return fmt.Sprintf("batch %s: every capability failed (%s)", e.BatchID, joinFailures(e.Failures))
}

func (e *CapabilityFailureError) Is(target error) bool { return target == ErrCapabilityFailure }

// failuresOf lists the failed results in arrival order.
func failuresOf(results []model.CapabilityResult) []CapabilityFailure {
	var failures []CapabilityFailure
	for _, r := range results {
		if r.Status != model.StatusFailed {
			continue
		}
		reason := "no error reported"
		if r.Error != nil && *r.Error != "" {
			reason = *r.Error
		}
		failures = append(failures, CapabilityFailure{Capability: r.Capability, Reason: reason})
	}
	return failures
}

func joinFailures(failures []CapabilityFailure) string {
	parts := make([]string, len(failures))
	for i, f := range failures {
		parts[i] = f.String()
	}
	return strings.Join(parts, "; ")
}

func joinCapabilities(caps []model.Capability) string {
	if len(caps) == 0 {
		return "none"
	}
	return strings.Join(model.CapabilityStrings(caps), ",")
}
