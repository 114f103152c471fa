package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"basegraph.app/refactor/common/id"
	"basegraph.app/refactor/common/logger"
	"basegraph.app/refactor/internal/model"
	"basegraph.app/refactor/internal/queue"
)

// Dispatcher fans one file out to one task per capability.
type Dispatcher struct {
	broker  queue.Broker
	metrics *Metrics
	newID   func() string
	now     func() time.Time
}

func NewDispatcher(broker queue.Broker, metrics *Metrics) *Dispatcher {
	return &Dispatcher{
		broker:  broker,
		metrics: metrics,
		newID:   id.NewBatchID,
		now:     time.Now,
	}
}

// Dispatch stamps a fresh batch ID on one task per capability and enqueues each
// on its capability's topic. The pushes are all-or-nothing: on failure no task
// of the batch is left behind to be picked up by a worker.
func (d *Dispatcher) Dispatch(ctx context.Context, fileName string, capabilities []model.Capability) (model.Batch, error) {
	if fileName == "" {
		return model.Batch{}, fmt.Errorf("dispatch: empty file name")
	}
	if len(capabilities) == 0 {
		return model.Batch{}, fmt.Errorf("dispatch %s: no capabilities", fileName)
	}

	batch := model.Batch{
		ID:           d.newID(),
		FileName:     fileName,
		Capabilities: append([]model.Capability(nil), capabilities...),
		DispatchedAt: d.now().UTC(),
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{
		BatchID:   &batch.ID,
		FileName:  &batch.FileName,
		Component: "refactor.orchestrator.dispatcher",
	})

	envelopes := make([]queue.Envelope, 0, len(capabilities))
	seen := make(map[model.Capability]struct{}, len(capabilities))
	for _, c := range capabilities {
		if !c.Valid() {
			return model.Batch{}, fmt.Errorf("dispatch %s: unknown capability %q", fileName, c)
		}
		if _, dup := seen[c]; dup {
			return model.Batch{}, fmt.Errorf("dispatch %s: capability %q listed twice", fileName, c)
		}
		seen[c] = struct{}{}

		payload, err := queue.EncodeTask(model.TaskDescriptor{
			BatchID:    batch.ID,
			FileName:   fileName,
			Capability: c,
			CreatedAt:  batch.DispatchedAt,
		})
		if err != nil {
			return model.Batch{}, fmt.Errorf("dispatch %s: %w", fileName, err)
		}
		envelopes = append(envelopes, queue.Envelope{Topic: queue.TaskTopic(c), Payload: payload})
	}

	start := time.Now()
	if err := d.broker.PushAll(ctx, envelopes); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue batch", "error", err)
		return model.Batch{}, &EnqueueError{BatchID: batch.ID, Capabilities: batch.Capabilities, Err: err}
	}
	d.metrics.observeStage("dispatch", start)

	slog.InfoContext(ctx, "batch dispatched",
		"capabilities", model.CapabilityStrings(batch.Capabilities))

	return batch, nil
}
