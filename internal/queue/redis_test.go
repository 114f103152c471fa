package queue_test

import (
	"context"
	"encoding/json"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/redis/go-redis/v9"

	"basegraph.app/refactor/internal/queue"
)

var _ = Describe("RedisBroker", func() {
	var (
		mr     *miniredis.Miniredis
		client *redis.Client
		broker *queue.RedisBroker
		ctx    context.Context
	)

	BeforeEach(func() {
		mr = miniredis.RunT(GinkgoT())
		client = redis.NewClient(&redis.Options{Addr: mr.Addr()})
		broker = queue.NewRedisBroker(client, nil)
		ctx = context.Background()
	})

	AfterEach(func() {
		_ = client.Close()
	})

	It("LPUSHes onto the head of the list", func() {
		Expect(broker.Push(ctx, "style_tasks", []byte("1"))).To(Succeed())
		Expect(broker.Push(ctx, "style_tasks", []byte("2"))).To(Succeed())

		list, err := mr.List("style_tasks")
		Expect(err).NotTo(HaveOccurred())
		Expect(list).To(Equal([]string{"2", "1"}))
	})

	It("pops from the tail so each topic is FIFO", func() {
		Expect(broker.Push(ctx, "style_tasks", []byte("first"))).To(Succeed())
		Expect(broker.Push(ctx, "style_tasks", []byte("second"))).To(Succeed())

		payload, err := broker.Pop(ctx, "style_tasks", time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(payload)).To(Equal("first"))
	})

	It("reads messages other producers pushed with LPUSH", func() {
		mr.Lpush("orchestrator_tasks", `{"task_id":"b","agent_type":"style","status":"completed"}`)

		payload, err := broker.Pop(ctx, "orchestrator_tasks", time.Second)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(payload)).To(ContainSubstring(`"agent_type":"style"`))
	})

	It("pushes a batch to several topics in one transaction", func() {
		Expect(broker.PushAll(ctx, []queue.Envelope{
			{Topic: "architecture_tasks", Payload: []byte("a")},
			{Topic: "performance_tasks", Payload: []byte("p")},
			{Topic: "style_tasks", Payload: []byte("s")},
		})).To(Succeed())

		for _, topic := range []string{"architecture_tasks", "performance_tasks", "style_tasks"} {
			depth, err := broker.Depth(ctx, topic)
			Expect(err).NotTo(HaveOccurred())
			Expect(depth).To(Equal(int64(1)), topic)
		}
	})

	It("enqueues nothing when the transaction fails", func() {
		mr.SetError("READONLY You can't write against a read only replica")
		err := broker.PushAll(ctx, []queue.Envelope{
			{Topic: "architecture_tasks", Payload: []byte("a")},
			{Topic: "style_tasks", Payload: []byte("s")},
		})
		Expect(err).To(HaveOccurred())
		mr.SetError("")

		Expect(mr.Exists("architecture_tasks")).To(BeFalse())
		Expect(mr.Exists("style_tasks")).To(BeFalse())
	})

	It("reports ErrEmpty after the block window", func() {
		_, err := broker.Pop(ctx, "security_tasks", time.Second)
		Expect(err).To(MatchError(queue.ErrEmpty))
	})

	It("stops waiting when the context is cancelled", func() {
		cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		_, err := broker.Pop(cctx, "security_tasks", time.Second)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("reports ErrClosed once the client is closed", func() {
		Expect(broker.Close()).To(Succeed())
		_, err := broker.Pop(ctx, "style_tasks", time.Second)
		Expect(err).To(MatchError(queue.ErrClosed))
	})

	Describe("SendDeadLetter", func() {
		It("parks the dropped payload with its reason", func() {
			Expect(queue.SendDeadLetter(ctx, broker, "refactor_dlq", "orchestrator_tasks", []byte("garbage"), "malformed")).To(Succeed())

			raw, err := broker.Pop(ctx, "refactor_dlq", time.Second)
			Expect(err).NotTo(HaveOccurred())

			var letter map[string]any
			Expect(json.Unmarshal(raw, &letter)).To(Succeed())
			Expect(letter["source_topic"]).To(Equal("orchestrator_tasks"))
			Expect(letter["reason"]).To(Equal("malformed"))
			Expect(letter["payload"]).To(Equal("garbage"))
		})

		It("only logs when no topic is configured", func() {
			Expect(queue.SendDeadLetter(ctx, broker, "", "orchestrator_tasks", []byte("garbage"), "malformed")).To(Succeed())
			Expect(mr.Keys()).To(BeEmpty())
		})
	})
})
