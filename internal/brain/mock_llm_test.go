package brain_test

import (
	"context"

	"basegraph.app/refactor/common/llm"
)

type mockLLM struct {
	chatFn      func(ctx context.Context, req llm.Request, result any) (*llm.Response, error)
	callCount   int
	lastRequest llm.Request
}

func (m *mockLLM) Chat(ctx context.Context, req llm.Request, result any) (*llm.Response, error) {
	m.callCount++
	m.lastRequest = req
	if m.chatFn != nil {
		return m.chatFn(ctx, req, result)
	}
	return &llm.Response{}, nil
}

func (m *mockLLM) Model() string { return "mock-model" }
