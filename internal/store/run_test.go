package store_test

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/refactor/internal/model"
	"basegraph.app/refactor/internal/store"
)

type execCall struct {
	sql  string
	args []any
}

// fakeDB is a hand-written db.DBTX.
type fakeDB struct {
	execFn     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row
	execCalls  []execCall
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execCalls = append(f.execCalls, execCall{sql: sql, args: args})
	if f.execFn != nil {
		return f.execFn(ctx, sql, args...)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.queryRowFn(ctx, sql, args...)
}

type fakeRow struct {
	scanFn func(dest ...any) error
}

func (r fakeRow) Scan(dest ...any) error { return r.scanFn(dest...) }

var _ = Describe("RunStore", func() {
	var (
		db    *fakeDB
		runs  store.RunStore
		ctx   context.Context
		batch string
	)

	BeforeEach(func() {
		db = &fakeDB{}
		runs = store.NewRunStore(db)
		ctx = context.Background()
		batch = "5f0c6a2e-1111-4d7e-9c55-6a0e3f1d2b7a"
	})

	Describe("Create", func() {
		It("assigns an id and inserts the run as running", func() {
			run := &model.Run{
				BatchID:           batch,
				FileName:          "a.py",
				Capabilities:      []model.Capability{model.CapabilityArchitecture, model.CapabilityStyle},
				PrecedenceVersion: "v2",
			}

			Expect(runs.Create(ctx, run)).To(Succeed())
			Expect(run.ID).NotTo(BeZero())
			Expect(run.Status).To(Equal(model.RunStatusRunning))
			Expect(run.CreatedAt).NotTo(BeZero())

			Expect(db.execCalls).To(HaveLen(1))
			call := db.execCalls[0]
			Expect(call.sql).To(ContainSubstring("INSERT INTO refactor_runs"))
			Expect(call.args[1]).To(Equal(batch))
			Expect(call.args[3]).To(Equal([]string{"architecture", "style"}))
			Expect(call.args[5]).To(Equal("running"))
		})

		It("wraps database errors", func() {
			db.execFn = func(context.Context, string, ...any) (pgconn.CommandTag, error) {
				return pgconn.CommandTag{}, errors.New("duplicate key")
			}
			err := runs.Create(ctx, &model.Run{BatchID: batch})
			Expect(err).To(MatchError(ContainSubstring("duplicate key")))
		})
	})

	Describe("Finish", func() {
		It("stores the outcome with per-capability results", func() {
			db.execFn = func(context.Context, string, ...any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag("UPDATE 1"), nil
			}
			diff := "--- a/a.py\n"
			finished := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
			run := &model.Run{
				BatchID:    batch,
				Status:     model.RunStatusCompleted,
				FinalDiff:  &diff,
				FinishedAt: &finished,
				Results: []model.CapabilityResult{
					model.CompletedResult(model.TaskDescriptor{BatchID: batch, Capability: model.CapabilityStyle}, diff, "tidy"),
				},
			}

			Expect(runs.Finish(ctx, run)).To(Succeed())
			call := db.execCalls[0]
			Expect(call.sql).To(ContainSubstring("UPDATE refactor_runs"))
			Expect(call.args[0]).To(Equal(batch))
			Expect(call.args[1]).To(Equal("completed"))
			Expect(call.args[5]).To(Equal(finished))

			var results []model.CapabilityResult
			Expect(json.Unmarshal(call.args[3].([]byte), &results)).To(Succeed())
			Expect(results).To(HaveLen(1))
			Expect(results[0].Capability).To(Equal(model.CapabilityStyle))
		})

		It("reports a run that was never created", func() {
			db.execFn = func(context.Context, string, ...any) (pgconn.CommandTag, error) {
				return pgconn.NewCommandTag("UPDATE 0"), nil
			}
			err := runs.Finish(ctx, &model.Run{BatchID: batch, Status: model.RunStatusFailed})
			Expect(err).To(MatchError(store.ErrNotFound))
		})
	})

	Describe("GetByBatchID", func() {
		It("maps a missing row to ErrNotFound", func() {
			db.queryRowFn = func(context.Context, string, ...any) pgx.Row {
				return fakeRow{scanFn: func(...any) error { return pgx.ErrNoRows }}
			}
			_, err := runs.GetByBatchID(ctx, batch)
			Expect(err).To(MatchError(store.ErrNotFound))
		})

		It("decodes capabilities and results", func() {
			created := time.Date(2026, 5, 1, 11, 59, 0, 0, time.UTC)
			db.queryRowFn = func(_ context.Context, _ string, args ...any) pgx.Row {
				Expect(args).To(Equal([]any{batch}))
				return fakeRow{scanFn: func(dest ...any) error {
					*dest[0].(*int64) = 42
					*dest[1].(*string) = batch
					*dest[2].(*string) = "a.py"
					*dest[3].(*[]string) = []string{"architecture", "performance"}
					*dest[4].(*string) = "v2"
					*dest[5].(*string) = "incomplete"
					*dest[7].(*[]byte) = []byte(`[{"batch_id":"x","capability":"architecture","status":"completed"}]`)
					*dest[9].(*time.Time) = created
					return nil
				}}
			}

			run, err := runs.GetByBatchID(ctx, batch)
			Expect(err).NotTo(HaveOccurred())
			Expect(run.ID).To(Equal(int64(42)))
			Expect(run.Status).To(Equal(model.RunStatusIncomplete))
			Expect(run.Capabilities).To(Equal([]model.Capability{model.CapabilityArchitecture, model.CapabilityPerformance}))
			Expect(run.Results).To(HaveLen(1))
			Expect(run.FinalDiff).To(BeNil())
			Expect(run.FinishedAt).To(BeNil())
			Expect(run.CreatedAt).To(Equal(created))
		})
	})
})
