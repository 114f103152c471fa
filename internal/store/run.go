package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"basegraph.app/refactor/common/id"
	"basegraph.app/refactor/core/db"
	"basegraph.app/refactor/internal/model"
)

type runStore struct {
	db db.DBTX
}

func NewRunStore(conn db.DBTX) RunStore {
	return &runStore{db: conn}
}

const runColumns = `id, batch_id, file_name, capabilities, precedence_version, status,
	final_diff, results, error, created_at, finished_at`

// Create inserts run in status running. A zero ID is filled from the snowflake
// generator.
func (s *runStore) Create(ctx context.Context, run *model.Run) error {
	if run.ID == 0 {
		runID, err := id.NewChecked()
		if err != nil {
			return fmt.Errorf("allocating run id: %w", err)
		}
		run.ID = runID
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	if run.Status == "" {
		run.Status = model.RunStatusRunning
	}

	_, err := s.db.Exec(ctx, `
		INSERT INTO refactor_runs (id, batch_id, file_name, capabilities, precedence_version, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		run.ID,
		run.BatchID,
		run.FileName,
		model.CapabilityStrings(run.Capabilities),
		run.PrecedenceVersion,
		string(run.Status),
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting run %s: %w", run.BatchID, err)
	}
	return nil
}

func (s *runStore) Finish(ctx context.Context, run *model.Run) error {
	results, err := json.Marshal(run.Results)
	if err != nil {
		return fmt.Errorf("encoding results: %w", err)
	}

	finishedAt := time.Now().UTC()
	if run.FinishedAt != nil {
		finishedAt = *run.FinishedAt
	}

	tag, err := s.db.Exec(ctx, `
		UPDATE refactor_runs
		SET status = $2, final_diff = $3, results = $4, error = $5, finished_at = $6
		WHERE batch_id = $1`,
		run.BatchID,
		string(run.Status),
		run.FinalDiff,
		results,
		run.Error,
		finishedAt,
	)
	if err != nil {
		return fmt.Errorf("updating run %s: %w", run.BatchID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *runStore) GetByBatchID(ctx context.Context, batchID string) (*model.Run, error) {
	row := s.db.QueryRow(ctx, `SELECT `+runColumns+` FROM refactor_runs WHERE batch_id = $1`, batchID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return run, nil
}

func (s *runStore) ListByFile(ctx context.Context, fileName string, limit int32) ([]model.Run, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+runColumns+` FROM refactor_runs
		WHERE file_name = $1
		ORDER BY created_at DESC
		LIMIT $2`, fileName, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := make([]model.Run, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

func scanRun(row pgx.Row) (*model.Run, error) {
	var (
		run          model.Run
		capabilities []string
		status       string
		results      []byte
	)
	if err := row.Scan(
		&run.ID,
		&run.BatchID,
		&run.FileName,
		&capabilities,
		&run.PrecedenceVersion,
		&status,
		&run.FinalDiff,
		&results,
		&run.Error,
		&run.CreatedAt,
		&run.FinishedAt,
	); err != nil {
		return nil, err
	}

	run.Status = model.RunStatus(status)
	run.Capabilities = make([]model.Capability, len(capabilities))
	for i, c := range capabilities {
		run.Capabilities[i] = model.Capability(c)
	}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &run.Results); err != nil {
			return nil, fmt.Errorf("decoding results of run %s: %w", run.BatchID, err)
		}
	}
	return &run, nil
}
