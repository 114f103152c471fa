package worker

import (
	"context"

	"basegraph.app/refactor/internal/model"
)

// Refactorer proposes a diff for one file from one capability's point of view.
// An empty diff means no change is proposed.
type Refactorer interface {
	Refactor(ctx context.Context, source string, task model.TaskDescriptor) (model.RefactorOutput, error)
}

// Loader reads the file a task names.
type Loader interface {
	Load(ctx context.Context, name string) (string, error)
}
