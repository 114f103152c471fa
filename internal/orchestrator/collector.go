package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/refactor/common/logger"
	"basegraph.app/refactor/internal/model"
	"basegraph.app/refactor/internal/queue"
)

type CollectorConfig struct {
	ResultTopic     string        // shared topic every worker posts to
	DeadLetterTopic string        // where dropped messages are parked; empty = log only
	Block           time.Duration // single Pop window; bounds how long cancellation takes to notice
	Timeout         time.Duration // 0 = wait until every capability reports
	RetryDelay      time.Duration // pause after a broker error
}

// Collector drains the result topic until every capability of a batch has
// reported. Results are matched by batch ID, so arrival order and relative
// worker speed do not matter.
type Collector struct {
	broker  queue.Broker
	cfg     CollectorConfig
	metrics *Metrics
}

func NewCollector(broker queue.Broker, cfg CollectorConfig, metrics *Metrics) *Collector {
	if cfg.ResultTopic == "" {
		cfg.ResultTopic = queue.DefaultResultTopic
	}
	if cfg.Block <= 0 {
		cfg.Block = queue.DefaultBlock
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	return &Collector{
		broker:  broker,
		cfg:     cfg,
		metrics: metrics,
	}
}

// Collect blocks until batch.Expected() distinct capabilities have reported
// for batch.ID and returns their results in arrival order.
//
// Messages that fail to parse, belong to another batch, name a capability that
// was not dispatched, or repeat a capability already collected are dropped and
// never counted. When ctx ends or the configured timeout passes first, the
// partial results are returned together with an *IncompleteError.
func (c *Collector) Collect(ctx context.Context, batch model.Batch) ([]model.CapabilityResult, error) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		BatchID:   &batch.ID,
		Topic:     &c.cfg.ResultTopic,
		Component: "refactor.orchestrator.collector",
	})

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	defer c.metrics.observeStage("collect", start)

	expected := batch.Expected()
	results := make([]model.CapabilityResult, 0, expected)
	collected := make(map[model.Capability]struct{}, expected)

	for len(results) < expected {
		raw, err := c.broker.Pop(ctx, c.cfg.ResultTopic, c.cfg.Block)
		if err != nil {
			if ctx.Err() != nil {
				return results, c.incomplete(ctx, batch, results, ctx.Err())
			}
			if errors.Is(err, queue.ErrEmpty) {
				continue
			}
			if errors.Is(err, queue.ErrClosed) {
				return results, c.incomplete(ctx, batch, results, err)
			}
			slog.ErrorContext(ctx, "reading result topic failed", "error", err)
			if waitErr := sleepCtx(ctx, c.cfg.RetryDelay); waitErr != nil {
				return results, c.incomplete(ctx, batch, results, waitErr)
			}
			continue
		}

		result, err := queue.ParseResult(raw)
		if err != nil {
			c.drop(ctx, raw, "malformed", err.Error())
			continue
		}

		switch {
		case result.BatchID != batch.ID:
			c.drop(ctx, raw, "foreign_batch", fmt.Sprintf("result for batch %s (%s)", result.BatchID, result.Capability))
			continue
		case !batch.Includes(result.Capability):
			c.drop(ctx, raw, "unexpected_capability", fmt.Sprintf("capability %s was not dispatched", result.Capability))
			continue
		}
		if _, dup := collected[result.Capability]; dup {
			c.drop(ctx, raw, "duplicate", fmt.Sprintf("second result for %s", result.Capability))
			continue
		}

		collected[result.Capability] = struct{}{}
		results = append(results, result)
		c.metrics.resultCollected(string(result.Capability), string(result.Status))

		if result.Status == model.StatusFailed {
			slog.WarnContext(ctx, "capability reported failure",
				"capability", result.Capability,
				"error", derefString(result.Error))
		}
		slog.InfoContext(ctx, "result collected",
			"capability", result.Capability,
			"status", result.Status,
			"collected", len(results),
			"expected", expected)
	}

	return results, nil
}

func (c *Collector) incomplete(ctx context.Context, batch model.Batch, results []model.CapabilityResult, cause error) error {
	missing := batch.Missing(results)
	slog.ErrorContext(ctx, "collection stopped before batch completed",
		"missing", model.CapabilityStrings(missing),
		"collected", len(results),
		"expected", batch.Expected(),
		"cause", cause)
	return &IncompleteError{BatchID: batch.ID, Missing: missing, Cause: cause}
}

func (c *Collector) drop(ctx context.Context, raw []byte, reason, detail string) {
	c.metrics.messageDropped(reason)
	slog.WarnContext(ctx, "dropping result message",
		"reason", reason,
		"detail", detail,
		"payload", logger.Truncate(string(raw), 256))

	if err := queue.SendDeadLetter(ctx, c.broker, c.cfg.DeadLetterTopic, c.cfg.ResultTopic, raw, reason+": "+detail); err != nil {
		slog.ErrorContext(ctx, "failed to park dropped message", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
