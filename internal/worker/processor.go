package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/refactor/common/llm"
	"basegraph.app/refactor/internal/model"
)

type ProcessorConfig struct {
	MaxAttempts  int           // refactor attempts per task, at least 1
	RetryBackoff time.Duration // first retry delay, doubled on each attempt
}

// Processor turns one task into one result. It never returns an error: every
// failure becomes a result with status failed so the batch can still complete.
type Processor struct {
	loader     Loader
	refactorer Refactorer
	cfg        ProcessorConfig
	sleep      func(ctx context.Context, d time.Duration) error
}

func NewProcessor(loader Loader, refactorer Refactorer, cfg ProcessorConfig) *Processor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = time.Second
	}
	return &Processor{
		loader:     loader,
		refactorer: refactorer,
		cfg:        cfg,
		sleep:      sleepCtx,
	}
}

func (p *Processor) Process(ctx context.Context, task model.TaskDescriptor) model.CapabilityResult {
	source, err := p.loader.Load(ctx, task.FileName)
	if err != nil {
		slog.WarnContext(ctx, "failed to read task file", "error", err)
		return model.FailedResult(task, fmt.Errorf("reading %s: %w", task.FileName, err))
	}

	out, err := p.refactorWithRetry(ctx, source, task)
	if err != nil {
		return model.FailedResult(task, err)
	}

	// The result is addressed by the task, whatever the refactorer echoed back.
	return model.CompletedResult(task, out.Diff, out.Explanation)
}

// refactorWithRetry retries on rate limits, provider 5xx and network errors
// with exponential backoff (1s, 2s, 4s, ...).
func (p *Processor) refactorWithRetry(ctx context.Context, source string, task model.TaskDescriptor) (model.RefactorOutput, error) {
	var lastErr error
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		start := time.Now()
		out, err := p.refactorer.Refactor(ctx, source, task)
		if err == nil {
			slog.InfoContext(ctx, "refactor completed",
				"attempt", attempt,
				"diff_bytes", len(out.Diff),
				"latency_ms", time.Since(start).Milliseconds())
			return out, nil
		}
		lastErr = err

		if !llm.IsRetryable(ctx, err) || attempt == p.cfg.MaxAttempts {
			break
		}

		backoff := p.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
		slog.WarnContext(ctx, "refactor failed, retrying",
			"attempt", attempt,
			"max_attempts", p.cfg.MaxAttempts,
			"backoff", backoff,
			"error", err)
		if err := p.sleep(ctx, backoff); err != nil {
			return model.RefactorOutput{}, fmt.Errorf("refactor: %w", err)
		}
	}

	slog.ErrorContext(ctx, "refactor failed", "error", lastErr)
	return model.RefactorOutput{}, fmt.Errorf("refactor: %w", lastErr)
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
