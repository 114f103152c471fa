package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"basegraph.app/refactor/common/logger"
	"basegraph.app/refactor/internal/model"
	"basegraph.app/refactor/internal/queue"
)

// SourceLoader resolves a file name to the content the capabilities will see.
type SourceLoader interface {
	Load(ctx context.Context, name string) (string, error)
}

// Recorder persists the lifecycle of a batch. Create is called once the batch
// is dispatched, Finish once it reaches a terminal status.
type Recorder interface {
	Create(ctx context.Context, run *model.Run) error
	Finish(ctx context.Context, run *model.Run) error
}

type Config struct {
	Capabilities []model.Capability
	Precedence   model.Precedence
	Collector    CollectorConfig
}

// Outcome is everything known about a batch when Run returns. It is populated
// as far as the batch got, so callers can inspect partial results on error.
type Outcome struct {
	Batch         model.Batch
	Results       []model.CapabilityResult
	Consolidation Consolidation
	Status        model.RunStatus
	// Failed lists the capabilities that reported status=failed.
	Failed []CapabilityFailure
}

// FinalDiff is the synthesized diff, empty when no capability proposed a change.
func (o Outcome) FinalDiff() string {
	return o.Consolidation.FinalDiff
}

type Orchestrator struct {
	cfg          Config
	loader       SourceLoader
	dispatcher   *Dispatcher
	collector    *Collector
	consolidator *Consolidator
	recorder     Recorder
	metrics      *Metrics

	// Batches share one result topic and are collected by batch ID, so only
	// one may be in flight per Orchestrator.
	mu sync.Mutex
}

// New validates that the precedence order covers exactly the configured
// capabilities. recorder and metrics may be nil.
func New(cfg Config, broker queue.Broker, loader SourceLoader, synth Synthesizer, recorder Recorder, metrics *Metrics) (*Orchestrator, error) {
	if len(cfg.Capabilities) == 0 {
		return nil, fmt.Errorf("orchestrator: no capabilities configured")
	}
	if err := cfg.Precedence.Covers(cfg.Capabilities); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrecedenceMismatch, err)
	}
	if broker == nil || loader == nil || synth == nil {
		return nil, fmt.Errorf("orchestrator: broker, loader and synthesizer are required")
	}

	return &Orchestrator{
		cfg:          cfg,
		loader:       loader,
		dispatcher:   NewDispatcher(broker, metrics),
		collector:    NewCollector(broker, cfg.Collector, metrics),
		consolidator: NewConsolidator(synth, metrics),
		recorder:     recorder,
		metrics:      metrics,
	}, nil
}

// Run takes one file through dispatch, collection and consolidation.
//
// Errors are *EnqueueError, *IncompleteError, *CapabilityFailureError,
// *PrecedenceMismatchError or *SynthesisError; on SynthesisError the Outcome
// still carries the precedence-ordered diffs. A batch where only some
// capabilities failed completes, with the failures listed in Outcome.Failed.
func (o *Orchestrator) Run(ctx context.Context, fileName string) (Outcome, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		FileName:  &fileName,
		Component: "refactor.orchestrator",
	})

	sc := logger.StartSpan(ctx, "orchestrator.run")
	defer sc.End()
	ctx = sc.Context()

	content, err := o.loader.Load(ctx, fileName)
	if err != nil {
		sc.RecordError(err)
		o.metrics.batchFinished("failed")
		return Outcome{Status: model.RunStatusFailed}, fmt.Errorf("loading %s: %w", fileName, err)
	}

	out := Outcome{Status: model.RunStatusRunning}

	dispatchSpan := logger.StartSpan(ctx, "orchestrator.dispatch")
	batch, err := o.dispatcher.Dispatch(dispatchSpan.Context(), fileName, o.cfg.Capabilities)
	dispatchSpan.RecordError(err)
	dispatchSpan.End()
	if err != nil {
		sc.RecordError(err)
		o.metrics.batchFinished("failed")
		out.Status = model.RunStatusFailed
		return out, err
	}
	out.Batch = batch

	ctx = logger.WithLogFields(ctx, logger.LogFields{BatchID: &batch.ID})
	run := o.startRun(ctx, batch)

	collectSpan := logger.StartSpan(ctx, "orchestrator.collect")
	results, err := o.collector.Collect(collectSpan.Context(), batch)
	collectSpan.RecordError(err)
	collectSpan.End()
	out.Results = results
	out.Failed = failuresOf(results)
	if err != nil {
		return o.finish(ctx, sc, run, out, model.RunStatusIncomplete, err)
	}
	if len(out.Failed) == len(results) {
		return o.finish(ctx, sc, run, out, model.RunStatusFailed,
			&CapabilityFailureError{BatchID: batch.ID, Failures: out.Failed})
	}

	consolidateSpan := logger.StartSpan(ctx, "orchestrator.consolidate")
	consolidation, err := o.consolidator.Consolidate(consolidateSpan.Context(), results, fileName, content, o.cfg.Precedence)
	consolidateSpan.RecordError(err)
	consolidateSpan.End()
	out.Consolidation = consolidation
	if err != nil {
		return o.finish(ctx, sc, run, out, model.RunStatusFailed, err)
	}

	return o.finish(ctx, sc, run, out, model.RunStatusCompleted, nil)
}

func (o *Orchestrator) startRun(ctx context.Context, batch model.Batch) *model.Run {
	if o.recorder == nil {
		return nil
	}
	run := &model.Run{
		BatchID:           batch.ID,
		FileName:          batch.FileName,
		Capabilities:      batch.Capabilities,
		PrecedenceVersion: o.cfg.Precedence.Version(),
		Status:            model.RunStatusRunning,
		CreatedAt:         batch.DispatchedAt,
	}
	if err := o.recorder.Create(ctx, run); err != nil {
		slog.WarnContext(ctx, "failed to record run start", "error", err)
		return nil
	}
	return run
}

func (o *Orchestrator) finish(ctx context.Context, sc *logger.SpanContext, run *model.Run, out Outcome, status model.RunStatus, runErr error) (Outcome, error) {
	out.Status = status
	o.metrics.batchFinished(string(status))

	if runErr != nil {
		sc.RecordError(runErr)
		slog.ErrorContext(ctx, "batch finished with error",
			"status", status,
			"error", runErr)
	} else {
		if len(out.Failed) > 0 {
			slog.WarnContext(ctx, "some capabilities failed",
				"failed", joinFailures(out.Failed))
		}
		slog.InfoContext(ctx, "batch finished",
			"status", status,
			"synthesized", out.Consolidation.Synthesized,
			"changed_by", orderedCapabilities(out.Consolidation.Ordered))
	}

	if run != nil {
		finishedAt := time.Now().UTC()
		run.Status = status
		run.Results = out.Results
		run.FinishedAt = &finishedAt
		if status == model.RunStatusCompleted {
			diff := out.Consolidation.FinalDiff
			run.FinalDiff = &diff
		}
		switch {
		case runErr != nil:
			msg := runErr.Error()
			run.Error = &msg
		case len(out.Failed) > 0:
			msg := "capability failures: " + joinFailures(out.Failed)
			run.Error = &msg
		}
		// The batch outcome does not depend on bookkeeping.
		recordCtx := context.WithoutCancel(ctx)
		if err := o.recorder.Finish(recordCtx, run); err != nil {
			slog.WarnContext(ctx, "failed to record run finish", "error", err)
		}
	}

	return out, runErr
}

// IsIncomplete reports whether err came from a batch that stopped collecting
// before every capability reported.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncomplete)
}
