package orchestrator

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"basegraph.app/refactor/common/logger"
	"basegraph.app/refactor/internal/model"
)

// Synthesizer merges precedence-ordered diffs into one final diff. Earlier
// entries win conflicting lines.
type Synthesizer interface {
	Synthesize(ctx context.Context, req model.SynthesisRequest) (model.SynthesisResult, error)
}

type Consolidation struct {
	// Ordered holds the results that propose a change, highest precedence first.
	Ordered []model.CapabilityResult
	// FinalDiff is the synthesis output, passed through untouched.
	FinalDiff string
	// Synthesized is false when synthesis was skipped because nothing changed.
	Synthesized bool
}

// Unmerged concatenates the ordered diffs, highest precedence first. It is the
// fallback artifact when synthesis fails.
func (c Consolidation) Unmerged() string {
	var sb strings.Builder
	for _, r := range c.Ordered {
		sb.WriteString("# capability: ")
		sb.WriteString(string(r.Capability))
		sb.WriteString("\n")
		diff := r.ProposedDiff()
		sb.WriteString(diff)
		if !strings.HasSuffix(diff, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// OrderByPrecedence keeps only results that propose a change and stable-sorts
// them by precedence. Every result, including ones without a diff, must have a
// rank; otherwise the call fails with *PrecedenceMismatchError.
func OrderByPrecedence(results []model.CapabilityResult, precedence model.Precedence) ([]model.CapabilityResult, error) {
	for _, r := range results {
		if _, ok := precedence.Rank(r.Capability); !ok {
			return nil, &PrecedenceMismatchError{Capability: r.Capability, Precedence: precedence}
		}
	}

	ordered := make([]model.CapabilityResult, 0, len(results))
	for _, r := range results {
		if r.HasChange() {
			ordered = append(ordered, r)
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		ri, _ := precedence.Rank(ordered[i].Capability)
		rj, _ := precedence.Rank(ordered[j].Capability)
		return ri < rj
	})
	return ordered, nil
}

type Consolidator struct {
	synth   Synthesizer
	metrics *Metrics
}

func NewConsolidator(synth Synthesizer, metrics *Metrics) *Consolidator {
	return &Consolidator{
		synth:   synth,
		metrics: metrics,
	}
}

// Consolidate orders results by precedence and hands them to the synthesis
// capability. When no result proposes a change, synthesis is skipped and the
// final diff is empty.
//
// On synthesis failure the returned Consolidation still carries Ordered so the
// caller can fall back to the unmerged diffs; the error is a *SynthesisError.
func (c *Consolidator) Consolidate(ctx context.Context, results []model.CapabilityResult, filePath, originalContent string, precedence model.Precedence) (Consolidation, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		FileName:  &filePath,
		Component: "refactor.orchestrator.consolidator",
	})

	ordered, err := OrderByPrecedence(results, precedence)
	if err != nil {
		slog.ErrorContext(ctx, "results do not match precedence", "error", err)
		return Consolidation{}, err
	}

	out := Consolidation{Ordered: ordered}
	if len(ordered) == 0 {
		slog.InfoContext(ctx, "no capability proposed a change, skipping synthesis",
			"results", len(results))
		return out, nil
	}

	batchID := ordered[0].BatchID
	slog.InfoContext(ctx, "synthesizing final diff",
		"order", orderedCapabilities(ordered),
		"precedence_version", precedence.Version())

	start := time.Now()
	synthesized, err := c.synth.Synthesize(ctx, model.SynthesisRequest{
		OriginalFilePath: filePath,
		OriginalContent:  originalContent,
		OrderedResults:   ordered,
	})
	c.metrics.observeStage("consolidate", start)
	if err != nil {
		slog.ErrorContext(ctx, "synthesis failed", "error", err)
		return out, &SynthesisError{BatchID: batchID, Cause: err}
	}

	out.FinalDiff = synthesized.FinalDiff
	out.Synthesized = true

	slog.InfoContext(ctx, "final diff synthesized",
		"diff_bytes", len(out.FinalDiff),
		"latency_ms", time.Since(start).Milliseconds())
	return out, nil
}

func orderedCapabilities(results []model.CapabilityResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = string(r.Capability)
	}
	return out
}
