package orchestrator_test

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/refactor/internal/model"
	"basegraph.app/refactor/internal/orchestrator"
	"basegraph.app/refactor/internal/queue"
)

var _ = Describe("Dispatcher", func() {
	var (
		broker     *queue.MemoryBroker
		dispatcher *orchestrator.Dispatcher
		ctx        context.Context
		caps       []model.Capability
	)

	BeforeEach(func() {
		broker = queue.NewMemoryBroker()
		dispatcher = orchestrator.NewDispatcher(broker, nil)
		ctx = context.Background()
		caps = []model.Capability{
			model.CapabilityArchitecture,
			model.CapabilityPerformance,
			model.CapabilityStyle,
		}
	})

	It("posts one task per capability on its own topic", func() {
		batch, err := dispatcher.Dispatch(ctx, "shared/test_file.py", caps)
		Expect(err).NotTo(HaveOccurred())
		Expect(batch.Expected()).To(Equal(3))
		Expect(batch.FileName).To(Equal("shared/test_file.py"))
		_, err = uuid.Parse(batch.ID)
		Expect(err).NotTo(HaveOccurred())

		for _, c := range caps {
			raw, err := broker.Pop(ctx, queue.TaskTopic(c), 10*time.Millisecond)
			Expect(err).NotTo(HaveOccurred())

			task, err := queue.ParseTask(raw)
			Expect(err).NotTo(HaveOccurred())
			Expect(task.BatchID).To(Equal(batch.ID))
			Expect(task.Capability).To(Equal(c))
			Expect(task.FileName).To(Equal("shared/test_file.py"))
		}
		Expect(broker.Len(queue.TaskTopic(model.CapabilitySecurity))).To(BeZero())
	})

	It("stamps a fresh batch id on every dispatch", func() {
		first, err := dispatcher.Dispatch(ctx, "a.py", caps)
		Expect(err).NotTo(HaveOccurred())
		second, err := dispatcher.Dispatch(ctx, "a.py", caps)
		Expect(err).NotTo(HaveOccurred())
		Expect(first.ID).NotTo(Equal(second.ID))
	})

	It("reports an enqueue failure and leaves nothing behind", func() {
		failing := &failingBroker{MemoryBroker: broker, pushAllErr: errors.New("connection refused")}
		dispatcher = orchestrator.NewDispatcher(failing, nil)

		_, err := dispatcher.Dispatch(ctx, "a.py", caps)
		Expect(err).To(MatchError(orchestrator.ErrEnqueueFailure))

		var enqueueErr *orchestrator.EnqueueError
		Expect(errors.As(err, &enqueueErr)).To(BeTrue())
		Expect(enqueueErr.Capabilities).To(Equal(caps))
		Expect(enqueueErr.Err).To(MatchError("connection refused"))

		for _, c := range caps {
			Expect(broker.Len(queue.TaskTopic(c))).To(BeZero())
		}
	})

	It("fails on a closed broker", func() {
		Expect(broker.Close()).To(Succeed())
		_, err := dispatcher.Dispatch(ctx, "a.py", caps)
		Expect(err).To(MatchError(orchestrator.ErrEnqueueFailure))
		Expect(err).To(MatchError(queue.ErrClosed))
	})

	DescribeTable("rejects invalid input",
		func(fileName string, capabilities []model.Capability) {
			_, err := dispatcher.Dispatch(ctx, fileName, capabilities)
			Expect(err).To(HaveOccurred())
			Expect(err).NotTo(MatchError(orchestrator.ErrEnqueueFailure))
		},
		Entry("empty file name", "", []model.Capability{model.CapabilityStyle}),
		Entry("no capabilities", "a.py", nil),
		Entry("unknown capability", "a.py", []model.Capability{"docs"}),
		Entry("duplicate capability", "a.py", []model.Capability{model.CapabilityStyle, model.CapabilityStyle}),
	)
})
