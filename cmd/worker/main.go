package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"basegraph.app/refactor/common/llm"
	"basegraph.app/refactor/common/logger"
	"basegraph.app/refactor/common/otel"
	"basegraph.app/refactor/core/config"
	"basegraph.app/refactor/internal/brain"
	"basegraph.app/refactor/internal/model"
	"basegraph.app/refactor/internal/queue"
	"basegraph.app/refactor/internal/source"
	"basegraph.app/refactor/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel, otel.Identity{
		Component:    "worker",
		Capabilities: model.CapabilityStrings(cfg.Worker.Capabilities),
	})
	if err != nil {
		// Can't use slog yet, OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "refactor worker starting",
		"env", cfg.Env,
		"capabilities", cfg.Worker.Capabilities,
		"result_topic", cfg.Queue.ResultTopic)

	redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	broker := queue.NewRedisBroker(redisClient, slog.Default())
	defer broker.Close()
	slog.InfoContext(ctx, "redis connected")

	llmClient, err := llm.New(llm.Config{
		Provider: cfg.RefactorLLM.Provider,
		APIKey:   cfg.RefactorLLM.APIKey,
		BaseURL:  cfg.RefactorLLM.BaseURL,
		Model:    cfg.RefactorLLM.Model,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create llm client", "error", err)
		os.Exit(1)
	}

	processor := worker.NewProcessor(
		source.NewFileLoader(cfg.Batch.SourceRoot),
		brain.NewRefactorer(llmClient, cfg.RefactorLLM.MaxTokens),
		worker.ProcessorConfig{
			MaxAttempts:  cfg.Worker.MaxAttempts,
			RetryBackoff: cfg.Worker.RetryBackoff,
		},
	)

	workers := make([]*worker.Worker, 0, len(cfg.Worker.Capabilities))
	for _, capability := range cfg.Worker.Capabilities {
		workers = append(workers, worker.New(broker, processor, worker.Config{
			Capability:      capability,
			ResultTopic:     cfg.Queue.ResultTopic,
			DeadLetterTopic: cfg.Queue.DeadLetterTopic,
			Block:           cfg.Queue.Block,
		}))
	}

	runCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	for _, w := range workers {
		g.Go(func() error {
			return w.Run(gctx)
		})
	}

	slog.InfoContext(ctx, "workers initialized and running", "count", len(workers))

	<-gctx.Done()
	slog.InfoContext(ctx, "shutting down workers...")

	// A worker cancelled mid-task still publishes a failed result for it.
	done := make(chan error, 1)
	go func() {
		for _, w := range workers {
			w.Stop()
		}
		done <- g.Wait()
	}()

	select {
	case <-time.After(30 * time.Second):
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-done:
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

const banner = `
██████╗ ███████╗███████╗ █████╗  ██████╗████████╗ ██████╗ ██████╗     ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██╔══██╗██╔════╝██╔════╝██╔══██╗██╔════╝╚══██╔══╝██╔═══██╗██╔══██╗    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
██████╔╝█████╗  █████╗  ███████║██║        ██║   ██║   ██║██████╔╝    ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██╔══██╗██╔══╝  ██╔══╝  ██╔══██║██║        ██║   ██║   ██║██╔══██╗    ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
██║  ██║███████╗██║     ██║  ██║╚██████╗   ██║   ╚██████╔╝██║  ██║    ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
╚═╝  ╚═╝╚══════╝╚═╝     ╚═╝  ╚═╝ ╚═════╝   ╚═╝    ╚═════╝ ╚═╝  ╚═╝     ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
