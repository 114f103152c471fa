package model_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/refactor/internal/model"
)

var _ = Describe("Precedence", func() {
	var precedence model.Precedence

	BeforeEach(func() {
		var err error
		precedence, err = model.NewPrecedence("v2", []model.Capability{
			model.CapabilityArchitecture,
			model.CapabilityPerformance,
			model.CapabilityStyle,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("ranks capabilities by position", func() {
		rank, ok := precedence.Rank(model.CapabilityArchitecture)
		Expect(ok).To(BeTrue())
		Expect(rank).To(Equal(0))

		rank, ok = precedence.Rank(model.CapabilityStyle)
		Expect(ok).To(BeTrue())
		Expect(rank).To(Equal(2))
	})

	It("has no rank for a capability outside the order", func() {
		_, ok := precedence.Rank(model.CapabilitySecurity)
		Expect(ok).To(BeFalse())
	})

	It("carries its version and renders the order", func() {
		Expect(precedence.Version()).To(Equal("v2"))
		Expect(precedence.String()).To(Equal("architecture > performance > style"))
	})

	It("returns a copy of the order", func() {
		order := precedence.Order()
		order[0] = model.CapabilitySecurity
		Expect(precedence.Order()[0]).To(Equal(model.CapabilityArchitecture))
	})

	Describe("NewPrecedence", func() {
		DescribeTable("rejects orders that are not total",
			func(order []model.Capability, msg string) {
				_, err := model.NewPrecedence("v9", order)
				Expect(err).To(MatchError(ContainSubstring(msg)))
			},
			Entry("empty", []model.Capability{}, "empty order"),
			Entry("duplicate", []model.Capability{model.CapabilityStyle, model.CapabilityStyle}, "ranked twice"),
			Entry("unknown", []model.Capability{model.Capability("docs")}, "unknown capability"),
		)
	})

	Describe("Covers", func() {
		It("accepts exactly the ranked set in any order", func() {
			Expect(precedence.Covers([]model.Capability{
				model.CapabilityStyle,
				model.CapabilityArchitecture,
				model.CapabilityPerformance,
			})).To(Succeed())
		})

		It("rejects an active capability without a rank", func() {
			err := precedence.Covers([]model.Capability{
				model.CapabilityArchitecture,
				model.CapabilityPerformance,
				model.CapabilityStyle,
				model.CapabilitySecurity,
			})
			Expect(err).To(MatchError(ContainSubstring(`"security" has no rank`)))
		})

		It("rejects a ranked capability that is not active", func() {
			err := precedence.Covers([]model.Capability{model.CapabilityArchitecture, model.CapabilityStyle})
			Expect(err).To(MatchError(ContainSubstring("not an active capability")))
		})
	})
})
