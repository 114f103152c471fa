package logger

import "context"

type contextKey string

const logFieldsKey contextKey = "log_fields"

// LogFields contains structured fields automatically added to all logs within a context.
// Fields flow through context enrichment, so batch and capability identifiers
// reach every log statement without being passed around explicitly.
type LogFields struct {
	BatchID    *string // Batch correlation ID shared by every task of one dispatch
	Capability *string // Specialist capability (e.g., "architecture", "style")
	FileName   *string // Source file under refactor
	Topic      *string // Queue topic a message came from
	RunID      *int64  // Persisted run record ID
	Component  string  // Component name (OTel semantic convention style, e.g., "refactor.orchestrator.collector")
}

// WithLogFields enriches context with structured log fields.
// Multiple calls merge fields, with newer non-nil/non-empty values taking precedence.
func WithLogFields(ctx context.Context, fields LogFields) context.Context {
	existing := GetLogFields(ctx)
	merged := mergeFields(existing, fields)
	return context.WithValue(ctx, logFieldsKey, merged)
}

// GetLogFields retrieves log fields from context.
// Returns empty LogFields if none are set.
func GetLogFields(ctx context.Context) LogFields {
	if fields, ok := ctx.Value(logFieldsKey).(LogFields); ok {
		return fields
	}
	return LogFields{}
}

func mergeFields(existing, next LogFields) LogFields {
	result := existing

	if next.BatchID != nil {
		result.BatchID = next.BatchID
	}
	if next.Capability != nil {
		result.Capability = next.Capability
	}
	if next.FileName != nil {
		result.FileName = next.FileName
	}
	if next.Topic != nil {
		result.Topic = next.Topic
	}
	if next.RunID != nil {
		result.RunID = next.RunID
	}
	if next.Component != "" {
		result.Component = next.Component
	}

	return result
}

// Ptr is a helper to create a pointer from a value.
// Useful for setting LogFields inline: logger.WithLogFields(ctx, logger.LogFields{BatchID: logger.Ptr(id)})
func Ptr[T any](v T) *T {
	return &v
}

// Truncate truncates a string to maxLen bytes, appending "..." if truncated.
// Useful for logging diffs and model output.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
