package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/refactor/common/llm"
	"basegraph.app/refactor/internal/model"
)

type RefactorResponse struct {
	Diff        string `json:"diff" jsonschema_description:"Unified diff against the original file, empty when no change is proposed"`
	Explanation string `json:"explanation" jsonschema_description:"Short summary of the proposed changes"`
}

var refactorSchema = llm.GenerateSchema[RefactorResponse]()

// Refactorer asks an LLM for one capability's diff.
type Refactorer struct {
	llm       llm.Client
	maxTokens int
}

func NewRefactorer(client llm.Client, maxTokens int) *Refactorer {
	return &Refactorer{llm: client, maxTokens: maxTokens}
}

func (r *Refactorer) Refactor(ctx context.Context, source string, task model.TaskDescriptor) (model.RefactorOutput, error) {
	system, ok := refactorSystemPrompt(task.Capability)
	if !ok {
		return model.RefactorOutput{}, fmt.Errorf("no prompt for capability %q", task.Capability)
	}

	var response RefactorResponse
	start := time.Now()
	resp, err := r.llm.Chat(ctx, llm.Request{
		SystemPrompt: system,
		UserPrompt:   buildRefactorPrompt(source, task),
		SchemaName:   "refactor_response",
		Schema:       refactorSchema,
		MaxTokens:    r.maxTokens,
		Temperature:  llm.Temp(0),
	}, &response)
	if err != nil {
		return model.RefactorOutput{}, fmt.Errorf("%s refactor: %w", task.Capability, err)
	}

	attrs := []any{
		"model", r.llm.Model(),
		"prompt_version", refactorPromptVersion,
		"latency_ms", time.Since(start).Milliseconds(),
		"proposes_change", strings.TrimSpace(response.Diff) != "",
	}
	if resp != nil {
		attrs = append(attrs, "prompt_tokens", resp.PromptTokens, "completion_tokens", resp.CompletionTokens)
	}
	slog.DebugContext(ctx, "refactor response received", attrs...)

	return model.RefactorOutput{
		Diff:        stripFences(response.Diff),
		Explanation: response.Explanation,
	}, nil
}

func buildRefactorPrompt(source string, task model.TaskDescriptor) string {
	var sb strings.Builder
	sb.WriteString("## File\n")
	sb.WriteString(task.FileName)
	sb.WriteString("\n\n## Code\n")
	sb.WriteString(source)
	if !strings.HasSuffix(source, "\n") {
		sb.WriteString("\n")
	}
	return sb.String()
}

// stripFences removes a surrounding ``` block some models add despite the
// instructions.
func stripFences(diff string) string {
	trimmed := strings.TrimSpace(diff)
	if !strings.HasPrefix(trimmed, "```") {
		return diff
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		trimmed = trimmed[nl+1:]
	} else {
		trimmed = ""
	}
	trimmed = strings.TrimSuffix(strings.TrimRight(trimmed, "\n "), "```")
	return strings.TrimRight(trimmed, "\n") + "\n"
}
