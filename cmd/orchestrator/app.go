package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"basegraph.app/refactor/common/id"
	"basegraph.app/refactor/common/llm"
	"basegraph.app/refactor/common/logger"
	"basegraph.app/refactor/common/otel"
	"basegraph.app/refactor/core/config"
	"basegraph.app/refactor/core/db"
	"basegraph.app/refactor/internal/artifact"
	"basegraph.app/refactor/internal/brain"
	"basegraph.app/refactor/internal/http/handler"
	"basegraph.app/refactor/internal/http/middleware"
	httprouter "basegraph.app/refactor/internal/http/router"
	"basegraph.app/refactor/internal/orchestrator"
	"basegraph.app/refactor/internal/queue"
	"basegraph.app/refactor/internal/source"
	"basegraph.app/refactor/internal/store"
)

type app struct {
	cfg          config.Config
	orchestrator *orchestrator.Orchestrator
	artifacts    *artifact.Writer
	ops          *opsServer

	closers []func()
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	a := &app{cfg: cfg}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel, otel.Identity{Component: "orchestrator"})
	if err != nil {
		return nil, fmt.Errorf("initializing otel: %w", err)
	}
	logger.Setup(cfg)
	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
		a.onClose(func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := telemetry.Shutdown(shutdownCtx); err != nil {
				slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
			}
		})
	}

	slog.InfoContext(ctx, "refactor orchestrator starting",
		"env", cfg.Env,
		"capabilities", cfg.Batch.Capabilities,
		"precedence", cfg.Batch.Precedence.String(),
		"precedence_version", cfg.Batch.Precedence.Version())

	if err := id.Init(1); err != nil {
		a.Close()
		return nil, fmt.Errorf("initializing id generator: %w", err)
	}

	redisOpts, err := redis.ParseURL(cfg.Queue.RedisURL)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		a.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	broker := queue.NewRedisBroker(redisClient, slog.Default())
	a.onClose(func() { _ = broker.Close() })
	slog.InfoContext(ctx, "redis connected", "result_topic", cfg.Queue.ResultTopic)

	var (
		recorder orchestrator.Recorder
		runs     store.RunStore
	)
	if cfg.DB.Enabled() {
		database, err := openDB(ctx, cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.onClose(database.Close)
		runs = store.NewRunStore(database.Conn())
		recorder = runs
	} else {
		slog.InfoContext(ctx, "run store disabled (no DATABASE_URL)")
	}

	synthClient, err := llm.New(llm.Config{
		Provider: cfg.SynthesisLLM.Provider,
		APIKey:   cfg.SynthesisLLM.APIKey,
		BaseURL:  cfg.SynthesisLLM.BaseURL,
		Model:    cfg.SynthesisLLM.Model,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("creating synthesis llm client: %w", err)
	}

	metrics := orchestrator.DefaultMetrics()
	orch, err := orchestrator.New(orchestrator.Config{
		Capabilities: cfg.Batch.Capabilities,
		Precedence:   cfg.Batch.Precedence,
		Collector: orchestrator.CollectorConfig{
			ResultTopic:     cfg.Queue.ResultTopic,
			DeadLetterTopic: cfg.Queue.DeadLetterTopic,
			Block:           cfg.Queue.Block,
			Timeout:         cfg.Batch.CollectTimeout,
		},
	},
		broker,
		source.NewFileLoader(cfg.Batch.SourceRoot),
		brain.NewSynthesizer(synthClient, cfg.SynthesisLLM.MaxTokens),
		recorder,
		metrics,
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orchestrator = orch
	a.artifacts = artifact.NewWriter(cfg.Batch.OutputDir)

	if cfg.MetricsPort != "" {
		routes := httprouter.RouterConfig{
			Queues: handler.NewQueueHandler(broker, cfg.Batch.Capabilities, cfg.Queue.ResultTopic),
		}
		if runs != nil {
			routes.Runs = handler.NewRunHandler(runs)
		}
		a.ops = newOpsServer(cfg, routes)
	}

	return a, nil
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func openDB(ctx context.Context, cfg config.Config) (*db.DB, error) {
	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := database.EnsureSchema(ctx); err != nil {
		database.Close()
		return nil, err
	}
	slog.InfoContext(ctx, "database connected")
	return database, nil
}

type opsServer struct {
	server *http.Server
}

func newOpsServer(cfg config.Config, routes httprouter.RouterConfig) *opsServer {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())
	httprouter.SetupRoutes(router, routes)

	return &opsServer{
		server: &http.Server{
			Addr:              ":" + cfg.MetricsPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}
}

// Run serves until ctx ends, then shuts down gracefully.
func (s *opsServer) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "ops server starting", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "ops server error", "error", err)
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "ops server shutdown error", "error", err)
	}
	return nil
}
