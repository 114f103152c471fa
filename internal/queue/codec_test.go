package queue_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/refactor/internal/model"
	"basegraph.app/refactor/internal/queue"
)

var _ = Describe("task messages", func() {
	It("uses the task_id/file_name/agent_type contract", func() {
		raw, err := queue.EncodeTask(model.TaskDescriptor{
			BatchID:    "b-1",
			FileName:   "shared/test_file.py",
			Capability: model.CapabilityStyle,
			CreatedAt:  time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		})
		Expect(err).NotTo(HaveOccurred())

		var fields map[string]any
		Expect(json.Unmarshal(raw, &fields)).To(Succeed())
		Expect(fields).To(Equal(map[string]any{
			"task_id":    "b-1",
			"file_name":  "shared/test_file.py",
			"agent_type": "style",
			"created_at": "2026-03-04T05:06:07Z",
		}))
	})

	It("accepts naive timestamps from other producers", func() {
		task, err := queue.ParseTask([]byte(`{"task_id":"b-2","file_name":"a.py","agent_type":"security","created_at":"2026-03-04T05:06:07.123456"}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(task.Capability).To(Equal(model.CapabilitySecurity))
		Expect(task.CreatedAt).To(BeTemporally("==", time.Date(2026, 3, 4, 5, 6, 7, 123456000, time.UTC)))
	})

	DescribeTable("rejects malformed tasks",
		func(raw string) {
			_, err := queue.ParseTask([]byte(raw))
			Expect(err).To(MatchError(queue.ErrMalformedMessage))
		},
		Entry("not json", `{"task_id":`),
		Entry("missing task_id", `{"file_name":"a.py","agent_type":"style"}`),
		Entry("missing file_name", `{"task_id":"b","agent_type":"style"}`),
		Entry("unknown agent_type", `{"task_id":"b","file_name":"a.py","agent_type":"docs"}`),
		Entry("bad created_at", `{"task_id":"b","file_name":"a.py","agent_type":"style","created_at":"yesterday"}`),
	)
})

var _ = Describe("result messages", func() {
	It("encodes absent fields as null", func() {
		raw, err := queue.EncodeResult(model.FailedResult(model.TaskDescriptor{
			BatchID:    "b-3",
			Capability: model.CapabilityArchitecture,
		}, nil))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(raw)).To(MatchJSON(`{
			"task_id": "b-3",
			"agent_type": "architecture",
			"status": "failed",
			"diff": null,
			"explanation": null,
			"error": "unknown error"
		}`))
	})

	It("parses a completed result", func() {
		r, err := queue.ParseResult([]byte(`{"task_id":"b-4","agent_type":"performance","status":"completed","diff":"--- a/x\n","explanation":"faster","error":null}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(r.BatchID).To(Equal("b-4"))
		Expect(r.Capability).To(Equal(model.CapabilityPerformance))
		Expect(r.Status).To(Equal(model.StatusCompleted))
		Expect(r.ProposedDiff()).To(Equal("--- a/x\n"))
		Expect(r.Error).To(BeNil())
	})

	DescribeTable("rejects malformed results",
		func(raw string) {
			_, err := queue.ParseResult([]byte(raw))
			Expect(err).To(MatchError(queue.ErrMalformedMessage))
		},
		Entry("not json", `[]`),
		Entry("missing task_id", `{"agent_type":"style","status":"completed"}`),
		Entry("unknown agent_type", `{"task_id":"b","agent_type":"lint","status":"completed"}`),
		Entry("unknown status", `{"task_id":"b","agent_type":"style","status":"done"}`),
	)
})
