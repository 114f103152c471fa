package store

import (
	"context"
	"errors"

	"basegraph.app/refactor/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// RunStore defines the contract for batch run records
type RunStore interface {
	Create(ctx context.Context, run *model.Run) error
	Finish(ctx context.Context, run *model.Run) error
	GetByBatchID(ctx context.Context, batchID string) (*model.Run, error)
	ListByFile(ctx context.Context, fileName string, limit int32) ([]model.Run, error)
}
