package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"basegraph.app/refactor/core/config"
	"basegraph.app/refactor/internal/orchestrator"
	"basegraph.app/refactor/internal/store"
)

// Exit codes for `run`: any batch that did not complete turns the whole
// invocation into a failure.
const (
	exitOK         = 0
	exitFailed     = 1
	exitIncomplete = 2
)

func main() {
	os.Exit(execute())
}

func execute() int {
	code := exitOK
	root := &cobra.Command{
		Use:           "refactor-orchestrator",
		Short:         "Fan a file out to refactor capabilities and merge their diffs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(&cobra.Command{
		Use:   "run FILE...",
		Short: "Refactor each file and write one merged diff per file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			code, err = runFiles(cmd.Context(), args)
			return err
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "show BATCH_ID",
		Short: "Print the stored record of a batch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showRun(cmd.Context(), args[0])
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		if code == exitOK {
			code = exitFailed
		}
	}
	return code
}

func runFiles(ctx context.Context, files []string) (int, error) {
	fmt.Printf("%s\n", banner)

	cfg, err := config.Load(config.ServiceTypeOrchestrator)
	if err != nil {
		return exitFailed, fmt.Errorf("loading config: %w", err)
	}

	app, err := newApp(ctx, cfg)
	if err != nil {
		return exitFailed, err
	}
	defer app.Close()

	g, gctx := errgroup.WithContext(ctx)
	opsCtx, stopOps := context.WithCancel(gctx)

	if app.ops != nil {
		g.Go(func() error {
			return app.ops.Run(opsCtx)
		})
	}

	code := exitOK
	g.Go(func() error {
		defer stopOps()
		for _, file := range files {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			code = worst(code, app.refactorFile(gctx, file))
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return exitFailed, err
	}
	if ctx.Err() != nil {
		slog.WarnContext(ctx, "interrupted before every file was processed")
		return worst(code, exitIncomplete), nil
	}
	return code, nil
}

// refactorFile runs one batch and writes its artifact. Failures are logged and
// mapped to an exit code so the remaining files still run.
func (a *app) refactorFile(ctx context.Context, file string) int {
	outcome, err := a.orchestrator.Run(ctx, file)

	var synthErr *orchestrator.SynthesisError
	var capErr *orchestrator.CapabilityFailureError
	switch {
	case err == nil:
		a.writeArtifact(ctx, outcome, outcome.FinalDiff())
		return exitOK
	case errors.As(err, &synthErr) && a.cfg.Batch.FallbackUnmerged:
		slog.WarnContext(ctx, "synthesis failed, writing unmerged diffs",
			"file_name", file,
			"batch_id", outcome.Batch.ID,
			"error", err)
		a.writeArtifact(ctx, outcome, outcome.Consolidation.Unmerged())
		return exitFailed
	case errors.As(err, &capErr):
		for _, f := range capErr.Failures {
			slog.ErrorContext(ctx, "capability failed",
				"file_name", file,
				"batch_id", capErr.BatchID,
				"capability", f.Capability,
				"reason", f.Reason)
		}
		return exitFailed
	case orchestrator.IsIncomplete(err):
		slog.ErrorContext(ctx, "batch incomplete", "file_name", file, "error", err)
		return exitIncomplete
	default:
		slog.ErrorContext(ctx, "batch failed", "file_name", file, "error", err)
		return exitFailed
	}
}

func (a *app) writeArtifact(ctx context.Context, outcome orchestrator.Outcome, diff string) {
	path, err := a.artifacts.Write(outcome.Batch.ID, outcome.Batch.FileName, diff)
	if err != nil {
		slog.ErrorContext(ctx, "failed to write artifact", "batch_id", outcome.Batch.ID, "error", err)
		return
	}
	slog.InfoContext(ctx, "artifact written",
		"batch_id", outcome.Batch.ID,
		"path", path,
		"empty", diff == "")
	fmt.Println(path)
}

func showRun(ctx context.Context, batchID string) error {
	cfg, err := config.Load(config.ServiceTypeOrchestrator)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.DB.Enabled() {
		return fmt.Errorf("DATABASE_URL is not set, no runs are recorded")
	}

	database, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	run, err := store.NewRunStore(database.Conn()).GetByBatchID(ctx, batchID)
	if err != nil {
		return fmt.Errorf("loading run %s: %w", batchID, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

func worst(a, b int) int {
	if b > a {
		return b
	}
	return a
}

const banner = `
██████╗ ███████╗███████╗ █████╗  ██████╗████████╗ ██████╗ ██████╗
██╔══██╗██╔════╝██╔════╝██╔══██╗██╔════╝╚══██╔══╝██╔═══██╗██╔══██╗
██████╔╝█████╗  █████╗  ███████║██║        ██║   ██║   ██║██████╔╝
██╔══██╗██╔══╝  ██╔══╝  ██╔══██║██║        ██║   ██║   ██║██╔══██╗
██║  ██║███████╗██║     ██║  ██║╚██████╗   ██║   ╚██████╔╝██║  ██║
╚═╝  ╚═╝╚══════╝╚═╝     ╚═╝  ╚═╝ ╚═════╝   ╚═╝    ╚═════╝ ╚═╝  ╚═╝
`
