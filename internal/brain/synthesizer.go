package brain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/refactor/common/llm"
	"basegraph.app/refactor/internal/model"
)

// ErrEmptySynthesis is returned when the model reports no final diff even
// though at least one proposal carried a change.
var ErrEmptySynthesis = errors.New("synthesis returned an empty diff")

type SynthesisResponse struct {
	FinalDiff string `json:"final_diff" jsonschema_description:"Single unified diff merging every proposal against the original file"`
}

var synthesisSchema = llm.GenerateSchema[SynthesisResponse]()

// Synthesizer merges precedence-ordered proposals with an LLM.
type Synthesizer struct {
	llm       llm.Client
	maxTokens int
}

func NewSynthesizer(client llm.Client, maxTokens int) *Synthesizer {
	return &Synthesizer{llm: client, maxTokens: maxTokens}
}

func (s *Synthesizer) Synthesize(ctx context.Context, req model.SynthesisRequest) (model.SynthesisResult, error) {
	var response SynthesisResponse
	start := time.Now()

	resp, err := s.llm.Chat(ctx, llm.Request{
		SystemPrompt: synthesisSystemPrompt,
		UserPrompt:   buildSynthesisPrompt(req),
		SchemaName:   "synthesis_response",
		Schema:       synthesisSchema,
		MaxTokens:    s.maxTokens,
		Temperature:  llm.Temp(0),
	}, &response)
	if err != nil {
		return model.SynthesisResult{}, fmt.Errorf("synthesis: %w", err)
	}

	if strings.TrimSpace(response.FinalDiff) == "" {
		return model.SynthesisResult{}, ErrEmptySynthesis
	}

	attrs := []any{
		"model", s.llm.Model(),
		"prompt_version", synthesisPromptVersion,
		"proposals", len(req.OrderedResults),
		"latency_ms", time.Since(start).Milliseconds(),
	}
	if resp != nil {
		attrs = append(attrs, "prompt_tokens", resp.PromptTokens, "completion_tokens", resp.CompletionTokens)
	}
	slog.DebugContext(ctx, "synthesis response received", attrs...)

	return model.SynthesisResult{FinalDiff: stripFences(response.FinalDiff)}, nil
}

func buildSynthesisPrompt(req model.SynthesisRequest) string {
	var sb strings.Builder

	sb.WriteString("## Original file\n")
	sb.WriteString(req.OriginalFilePath)
	sb.WriteString("\n\n## Original content\n")
	sb.WriteString(req.OriginalContent)
	if !strings.HasSuffix(req.OriginalContent, "\n") {
		sb.WriteString("\n")
	}

	sb.WriteString("\n## Proposals (highest precedence first)\n")
	for i, r := range req.OrderedResults {
		fmt.Fprintf(&sb, "\n### %d. %s\n", i+1, r.Capability)
		if r.Explanation != nil && *r.Explanation != "" {
			sb.WriteString("Explanation: ")
			sb.WriteString(*r.Explanation)
			sb.WriteString("\n")
		}
		sb.WriteString("Diff:\n")
		sb.WriteString(r.ProposedDiff())
		if !strings.HasSuffix(r.ProposedDiff(), "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}
