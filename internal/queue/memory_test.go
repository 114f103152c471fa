package queue_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/refactor/internal/queue"
)

var _ = Describe("MemoryBroker", func() {
	var (
		broker *queue.MemoryBroker
		ctx    context.Context
	)

	BeforeEach(func() {
		broker = queue.NewMemoryBroker()
		ctx = context.Background()
	})

	It("delivers in FIFO order per topic", func() {
		Expect(broker.Push(ctx, "style_tasks", []byte("1"))).To(Succeed())
		Expect(broker.Push(ctx, "style_tasks", []byte("2"))).To(Succeed())
		Expect(broker.Push(ctx, "security_tasks", []byte("x"))).To(Succeed())

		first, err := broker.Pop(ctx, "style_tasks", time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(first)).To(Equal("1"))

		second, err := broker.Pop(ctx, "style_tasks", time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(second)).To(Equal("2"))

		Expect(broker.Len("security_tasks")).To(Equal(1))
	})

	It("pushes every envelope of a batch", func() {
		Expect(broker.PushAll(ctx, []queue.Envelope{
			{Topic: "architecture_tasks", Payload: []byte("a")},
			{Topic: "style_tasks", Payload: []byte("s")},
		})).To(Succeed())

		depth, err := broker.Depth(ctx, "architecture_tasks")
		Expect(err).NotTo(HaveOccurred())
		Expect(depth).To(Equal(int64(1)))
		Expect(broker.Len("style_tasks")).To(Equal(1))
	})

	It("reports ErrEmpty when nothing arrives in the window", func() {
		_, err := broker.Pop(ctx, "style_tasks", 20*time.Millisecond)
		Expect(err).To(MatchError(queue.ErrEmpty))
	})

	It("wakes a blocked Pop when a message arrives", func() {
		got := make(chan string, 1)
		go func() {
			defer GinkgoRecover()
			payload, err := broker.Pop(ctx, "orchestrator_tasks", 5*time.Second)
			Expect(err).NotTo(HaveOccurred())
			got <- string(payload)
		}()

		time.Sleep(20 * time.Millisecond)
		Expect(broker.Push(ctx, "orchestrator_tasks", []byte("result"))).To(Succeed())
		Eventually(got).Should(Receive(Equal("result")))
	})

	It("returns the context error when cancelled", func() {
		cctx, cancel := context.WithCancel(ctx)
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		_, err := broker.Pop(cctx, "style_tasks", 5*time.Second)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("releases waiters and refuses pushes after Close", func() {
		errCh := make(chan error, 1)
		go func() {
			_, err := broker.Pop(ctx, "style_tasks", 5*time.Second)
			errCh <- err
		}()

		time.Sleep(20 * time.Millisecond)
		Expect(broker.Close()).To(Succeed())
		Eventually(errCh).Should(Receive(MatchError(queue.ErrClosed)))
		Expect(broker.Push(ctx, "style_tasks", []byte("late"))).To(MatchError(queue.ErrClosed))
	})
})
