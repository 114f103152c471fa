package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/invopop/jsonschema"
	"github.com/kaptinlin/jsonrepair"
	"github.com/openai/openai-go"
)

const defaultMaxTokens = 4096

// ErrInvalidResponse marks a reply that arrived but could not be decoded into
// the requested schema.
var ErrInvalidResponse = errors.New("invalid llm response")

// GenerateSchema reflects a strict JSON schema (no additional properties, no
// $refs) from T for structured responses.
func GenerateSchema[T any]() any {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}

func Temp(t float64) *float64 {
	return &t
}

// ExtractJSON returns the outermost JSON object in s, tolerating markdown
// fences and prose around it.
func ExtractJSON(s string) (string, error) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", fmt.Errorf("%w: no JSON object in %q", ErrInvalidResponse, truncate(s, 200))
	}
	return s[start : end+1], nil
}

// Decode unmarshals a model reply into result. Replies that are not clean JSON
// are narrowed to their outermost object and, failing that, repaired (trailing
// commas, unescaped newlines, truncated closers).
func Decode(raw string, result any) error {
	if err := json.Unmarshal([]byte(raw), result); err == nil {
		return nil
	}

	payload, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), result); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(payload)
	if err != nil {
		return fmt.Errorf("%w: repair response: %v", ErrInvalidResponse, err)
	}
	if err := json.Unmarshal([]byte(repaired), result); err != nil {
		return fmt.Errorf("%w: unmarshal response: %v", ErrInvalidResponse, err)
	}
	return nil
}

func IsRetryable(ctx context.Context, err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		slog.DebugContext(ctx, "llm error not retryable: context cancelled or deadline exceeded")
		return false
	}

	if errors.Is(err, ErrInvalidResponse) {
		slog.WarnContext(ctx, "llm returned unparseable output, will retry", "error", err)
		return true
	}

	status := 0
	var openaiErr *openai.Error
	var anthropicErr *anthropic.Error
	switch {
	case errors.As(err, &openaiErr):
		status = openaiErr.StatusCode
	case errors.As(err, &anthropicErr):
		status = anthropicErr.StatusCode
	default:
		// Network errors (no API response) are generally retryable
		slog.WarnContext(ctx, "llm network error, will retry", "error", err)
		return true
	}

	switch {
	case status == 429:
		slog.WarnContext(ctx, "llm rate limited, will retry", "status_code", status)
		return true
	case status >= 500:
		slog.WarnContext(ctx, "llm server error, will retry", "status_code", status)
		return true
	default:
		slog.ErrorContext(ctx, "llm client error, not retryable", "status_code", status)
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
