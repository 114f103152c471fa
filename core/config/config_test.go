package config_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/refactor/core/config"
	"basegraph.app/refactor/internal/model"
)

var _ = Describe("Load", func() {
	BeforeEach(func() {
		GinkgoT().Setenv("REFACTOR_ENV", "test")
		GinkgoT().Setenv("SYNTHESIS_LLM_API_KEY", "synth-key")
		GinkgoT().Setenv("REFACTOR_LLM_API_KEY", "refactor-key")
	})

	It("defaults to the v2 precedence over three capabilities", func() {
		cfg, err := config.Load(config.ServiceTypeOrchestrator)
		Expect(err).NotTo(HaveOccurred())

		Expect(cfg.Batch.Precedence.Version()).To(Equal("v2"))
		Expect(cfg.Batch.Capabilities).To(Equal([]model.Capability{
			model.CapabilityArchitecture,
			model.CapabilityPerformance,
			model.CapabilityStyle,
		}))
		Expect(cfg.Batch.CollectTimeout).To(BeZero())
		Expect(cfg.Queue.ResultTopic).To(Equal("orchestrator_tasks"))
		Expect(cfg.Queue.DeadLetterTopic).To(BeEmpty())
		Expect(cfg.Queue.Block).To(Equal(5 * time.Second))
		Expect(cfg.Worker.Capabilities).To(Equal(cfg.Batch.Capabilities))
		Expect(cfg.OTel.SampleRatio).To(Equal(1.0))
	})

	It("reads queue and batch settings", func() {
		GinkgoT().Setenv("RESULT_TOPIC", "results")
		GinkgoT().Setenv("DLQ_TOPIC", "refactor_dlq")
		GinkgoT().Setenv("QUEUE_BLOCK", "2s")
		GinkgoT().Setenv("COLLECT_TIMEOUT", "90s")
		GinkgoT().Setenv("FALLBACK_UNMERGED", "true")
		GinkgoT().Setenv("OTEL_TRACES_SAMPLER_ARG", " 0.25")

		cfg, err := config.Load(config.ServiceTypeOrchestrator)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Queue.ResultTopic).To(Equal("results"))
		Expect(cfg.Queue.DeadLetterTopic).To(Equal("refactor_dlq"))
		Expect(cfg.Queue.Block).To(Equal(2 * time.Second))
		Expect(cfg.Batch.CollectTimeout).To(Equal(90 * time.Second))
		Expect(cfg.Batch.FallbackUnmerged).To(BeTrue())
		Expect(cfg.OTel.SampleRatio).To(Equal(0.25))
	})

	It("accepts a four capability precedence", func() {
		GinkgoT().Setenv("PRECEDENCE", "security, architecture, performance, style")
		GinkgoT().Setenv("PRECEDENCE_VERSION", "v3")

		cfg, err := config.Load(config.ServiceTypeOrchestrator)
		Expect(err).NotTo(HaveOccurred())
		rank, ok := cfg.Batch.Precedence.Rank(model.CapabilitySecurity)
		Expect(ok).To(BeTrue())
		Expect(rank).To(BeZero())
		Expect(cfg.Batch.Capabilities).To(HaveLen(4))
	})

	DescribeTable("fails fast on an inconsistent order",
		func(env map[string]string) {
			for k, v := range env {
				GinkgoT().Setenv(k, v)
			}
			_, err := config.Load(config.ServiceTypeOrchestrator)
			Expect(err).To(HaveOccurred())
		},
		Entry("unknown capability", map[string]string{"PRECEDENCE": "architecture,docs"}),
		Entry("duplicate entry", map[string]string{"PRECEDENCE": "style,style"}),
		Entry("active capability without rank", map[string]string{"CAPABILITIES": "architecture,performance,style,security"}),
		Entry("ranked capability not active", map[string]string{"CAPABILITIES": "architecture,style"}),
	)

	It("requires the synthesis key for the orchestrator", func() {
		GinkgoT().Setenv("SYNTHESIS_LLM_API_KEY", "")
		_, err := config.Load(config.ServiceTypeOrchestrator)
		Expect(err).To(MatchError("SYNTHESIS_LLM_API_KEY is required"))
	})

	It("requires the refactor key for workers", func() {
		GinkgoT().Setenv("REFACTOR_LLM_API_KEY", "")
		_, err := config.Load(config.ServiceTypeWorker)
		Expect(err).To(MatchError("REFACTOR_LLM_API_KEY is required"))
	})

	It("lets a worker process serve a subset of capabilities", func() {
		GinkgoT().Setenv("WORKER_CAPABILITIES", "style")
		cfg, err := config.Load(config.ServiceTypeWorker)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Worker.Capabilities).To(Equal([]model.Capability{model.CapabilityStyle}))
	})

	It("prefers the precedence file when one is configured", func() {
		path := filepath.Join(GinkgoT().TempDir(), "precedence.yaml")
		Expect(os.WriteFile(path, []byte("version: v5\norder: [style, architecture]\n"), 0o644)).To(Succeed())
		GinkgoT().Setenv("PRECEDENCE_FILE", path)
		GinkgoT().Setenv("PRECEDENCE", "architecture")

		cfg, err := config.Load(config.ServiceTypeOrchestrator)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Batch.Precedence.Version()).To(Equal("v5"))
		Expect(cfg.Batch.Precedence.Order()).To(Equal([]model.Capability{
			model.CapabilityStyle,
			model.CapabilityArchitecture,
		}))
	})
})

var _ = Describe("LoadPrecedenceFile", func() {
	write := func(content string) string {
		path := filepath.Join(GinkgoT().TempDir(), "precedence.yaml")
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	It("reads a versioned order", func() {
		p, err := config.LoadPrecedenceFile(write("version: v2\norder:\n  - architecture\n  - performance\n  - style\n"))
		Expect(err).NotTo(HaveOccurred())
		Expect(p.String()).To(Equal("architecture > performance > style"))
	})

	DescribeTable("rejects bad files",
		func(content string) {
			_, err := config.LoadPrecedenceFile(write(content))
			Expect(err).To(HaveOccurred())
		},
		Entry("no version", "order: [style]\n"),
		Entry("unknown capability", "version: v2\norder: [style, docs]\n"),
		Entry("duplicate", "version: v2\norder: [style, style]\n"),
		Entry("empty order", "version: v2\norder: []\n"),
		Entry("not yaml", "version: [\n"),
	)

	It("reports a missing file", func() {
		_, err := config.LoadPrecedenceFile(filepath.Join(GinkgoT().TempDir(), "nope.yaml"))
		Expect(err).To(MatchError(os.ErrNotExist))
	})
})
