package orchestrator_test

import (
	"context"
	"sync"

	. "github.com/onsi/gomega"

	"basegraph.app/refactor/internal/model"
	"basegraph.app/refactor/internal/queue"
)

type mockSynthesizer struct {
	synthesizeFn func(ctx context.Context, req model.SynthesisRequest) (model.SynthesisResult, error)
	callCount    int
	lastRequest  model.SynthesisRequest
}

func (m *mockSynthesizer) Synthesize(ctx context.Context, req model.SynthesisRequest) (model.SynthesisResult, error) {
	m.callCount++
	m.lastRequest = req
	if m.synthesizeFn != nil {
		return m.synthesizeFn(ctx, req)
	}
	return model.SynthesisResult{FinalDiff: "merged"}, nil
}

type mockLoader struct {
	loadFn    func(ctx context.Context, name string) (string, error)
	callCount int
}

func (m *mockLoader) Load(ctx context.Context, name string) (string, error) {
	m.callCount++
	if m.loadFn != nil {
		return m.loadFn(ctx, name)
	}
	return "def main():\n    pass\n", nil
}

type mockRecorder struct {
	mu          sync.Mutex
	createFn    func(ctx context.Context, run *model.Run) error
	finishFn    func(ctx context.Context, run *model.Run) error
	createCount int
	finishCount int
	finished    []model.Run
}

func (m *mockRecorder) Create(ctx context.Context, run *model.Run) error {
	m.mu.Lock()
	m.createCount++
	m.mu.Unlock()
	if m.createFn != nil {
		return m.createFn(ctx, run)
	}
	return nil
}

func (m *mockRecorder) Finish(ctx context.Context, run *model.Run) error {
	m.mu.Lock()
	m.finishCount++
	m.finished = append(m.finished, *run)
	m.mu.Unlock()
	if m.finishFn != nil {
		return m.finishFn(ctx, run)
	}
	return nil
}

// failingBroker rejects PushAll and delegates everything else.
type failingBroker struct {
	*queue.MemoryBroker
	pushAllErr error
}

func (b *failingBroker) PushAll(ctx context.Context, envelopes []queue.Envelope) error {
	return b.pushAllErr
}

func strPtr(s string) *string { return &s }

func completed(batchID string, c model.Capability, diff string) model.CapabilityResult {
	return model.CompletedResult(model.TaskDescriptor{BatchID: batchID, Capability: c}, diff, "because "+string(c))
}

func pushResult(broker queue.Broker, r model.CapabilityResult) {
	raw, err := queue.EncodeResult(r)
	Expect(err).NotTo(HaveOccurred())
	Expect(broker.Push(context.Background(), queue.DefaultResultTopic, raw)).To(Succeed())
}

func mustPrecedence(order ...model.Capability) model.Precedence {
	p, err := model.NewPrecedence("v2", order)
	Expect(err).NotTo(HaveOccurred())
	return p
}
