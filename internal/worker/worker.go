package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"basegraph.app/refactor/common/logger"
	"basegraph.app/refactor/internal/model"
	"basegraph.app/refactor/internal/queue"
)

const pushAttempts = 3

type Config struct {
	Capability      model.Capability
	ResultTopic     string
	DeadLetterTopic string
	Block           time.Duration
	ErrorBackoff    time.Duration // pause after a broker error
	PushTimeout     time.Duration // bound on delivering a result once the task is done
}

// Worker serves one capability: pull a task, process it, post one result.
type Worker struct {
	broker    queue.Broker
	processor *Processor
	cfg       Config

	started   atomic.Bool
	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

// ErrAlreadyStarted is returned when Run is called more than once.
var ErrAlreadyStarted = errors.New("worker already started")

func New(broker queue.Broker, processor *Processor, cfg Config) *Worker {
	if cfg.ResultTopic == "" {
		cfg.ResultTopic = queue.DefaultResultTopic
	}
	if cfg.Block <= 0 {
		cfg.Block = queue.DefaultBlock
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	if cfg.PushTimeout <= 0 {
		cfg.PushTimeout = 10 * time.Second
	}
	return &Worker{
		broker:    broker,
		processor: processor,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

func (w *Worker) Topic() string {
	return queue.TaskTopic(w.cfg.Capability)
}

// Run blocks until ctx ends, Stop is called, or the broker is closed. A worker
// runs at most once.
func (w *Worker) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	defer close(w.stoppedCh)

	topic := w.Topic()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Capability: logger.Ptr(string(w.cfg.Capability)),
		Topic:      &topic,
		Component:  "refactor.worker",
	})

	slog.InfoContext(ctx, "worker started", "result_topic", w.cfg.ResultTopic)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
		}

		raw, err := w.broker.Pop(ctx, topic, w.cfg.Block)
		switch {
		case err == nil:
			w.handle(ctx, raw)
		case errors.Is(err, queue.ErrEmpty):
		case errors.Is(err, queue.ErrClosed):
			slog.InfoContext(ctx, "broker closed, worker exiting")
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		default:
			slog.ErrorContext(ctx, "reading task topic failed", "error", err)
			if err := sleepCtx(ctx, w.cfg.ErrorBackoff); err != nil {
				return err
			}
		}
	}
}

// Stop signals Run to return and waits for it. On a worker that was never
// started it returns immediately, and a later Run exits without serving.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	if !w.started.Load() {
		return
	}
	<-w.stoppedCh
}

func (w *Worker) handle(ctx context.Context, raw []byte) {
	task, err := queue.ParseTask(raw)
	if err != nil {
		slog.WarnContext(ctx, "dropping malformed task",
			"error", err,
			"payload", logger.Truncate(string(raw), 256))
		if dlqErr := queue.SendDeadLetter(ctx, w.broker, w.cfg.DeadLetterTopic, w.Topic(), raw, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to park malformed task", "error", dlqErr)
		}
		return
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		BatchID:  &task.BatchID,
		FileName: &task.FileName,
	})
	slog.InfoContext(ctx, "processing task")

	var result model.CapabilityResult
	if task.Capability != w.cfg.Capability {
		slog.ErrorContext(ctx, "task routed to wrong capability", "task_capability", task.Capability)
		result = model.FailedResult(task, fmt.Errorf("task for %s delivered to %s worker", task.Capability, w.cfg.Capability))
	} else {
		result = w.processSafe(ctx, task)
	}

	if err := w.publish(ctx, result); err != nil {
		slog.ErrorContext(ctx, "failed to publish result", "error", err, "status", result.Status)
		return
	}
	slog.InfoContext(ctx, "result published", "status", result.Status)
}

func (w *Worker) processSafe(ctx context.Context, task model.TaskDescriptor) (result model.CapabilityResult) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in task processing", "panic", r)
			result = model.FailedResult(task, fmt.Errorf("panic: %v", r))
		}
	}()
	return w.processor.Process(ctx, task)
}

// publish delivers result even when ctx was cancelled mid-task, so the
// orchestrator is not left waiting for a capability that already finished.
func (w *Worker) publish(ctx context.Context, result model.CapabilityResult) error {
	payload, err := queue.EncodeResult(result)
	if err != nil {
		return err
	}

	pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.PushTimeout)
	defer cancel()

	var lastErr error
	for attempt := 1; attempt <= pushAttempts; attempt++ {
		if lastErr = w.broker.Push(pushCtx, w.cfg.ResultTopic, payload); lastErr == nil {
			return nil
		}
		if errors.Is(lastErr, queue.ErrClosed) {
			break
		}
		slog.WarnContext(ctx, "push result failed", "attempt", attempt, "error", lastErr)
		if err := sleepCtx(pushCtx, w.cfg.ErrorBackoff); err != nil {
			break
		}
	}

	if dlqErr := queue.SendDeadLetter(pushCtx, w.broker, w.cfg.DeadLetterTopic, w.cfg.ResultTopic, payload, lastErr.Error()); dlqErr != nil {
		slog.ErrorContext(ctx, "failed to park undelivered result", "error", dlqErr)
	}
	return fmt.Errorf("pushing result to %s: %w", w.cfg.ResultTopic, lastErr)
}
