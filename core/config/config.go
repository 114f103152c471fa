package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"basegraph.app/refactor/core/db"
	"basegraph.app/refactor/internal/model"
)

type Config struct {
	OTel         OTelConfig
	Queue        QueueConfig
	Batch        BatchConfig
	Worker       WorkerConfig
	RefactorLLM  LLMConfig
	SynthesisLLM LLMConfig
	Env          string
	MetricsPort  string
	DB           db.Config
}

type OTelConfig struct {
	Endpoint       string
	Headers        string
	ServiceName    string
	ServiceVersion string
	SampleRatio    float64 // fraction of batches traced, 1 keeps all
}

type QueueConfig struct {
	RedisURL        string
	ResultTopic     string
	DeadLetterTopic string        // empty = malformed messages are only logged
	Block           time.Duration // BRPOP window between cancellation checks
}

type BatchConfig struct {
	Capabilities     []model.Capability
	Precedence       model.Precedence
	CollectTimeout   time.Duration // 0 = wait indefinitely
	SourceRoot       string
	OutputDir        string
	FallbackUnmerged bool
}

type WorkerConfig struct {
	Capabilities []model.Capability // capabilities served by this worker process
	MaxAttempts  int
	RetryBackoff time.Duration
}

type LLMConfig struct {
	Provider  string // "openai" or "anthropic"
	APIKey    string
	BaseURL   string // Optional: OpenAI-compatible endpoint, e.g. Gemini's
	Model     string
	MaxTokens int
}

type ServiceType string

const (
	ServiceTypeOrchestrator ServiceType = "orchestrator"
	ServiceTypeWorker       ServiceType = "worker"
)

const (
	defaultPrecedence        = "architecture,performance,style"
	defaultPrecedenceVersion = "v2"
)

// Load loads configuration from environment variables.
// In development, it loads from service-specific .env files:
//   - .env.orchestrator for the orchestrator
//   - .env.worker for capability workers
//
// Falls back to .env if service-specific file doesn't exist.
func Load(serviceType ServiceType) (Config, error) {
	if getEnv("REFACTOR_ENV", "development") == "development" {
		envFile := fmt.Sprintf(".env.%s", serviceType)
		if err := godotenv.Load(envFile); err != nil {
			_ = godotenv.Load(".env")
		}
	}

	batch, err := loadBatchConfig()
	if err != nil {
		return Config{}, err
	}

	workerCaps := batch.Capabilities
	if raw := getEnv("WORKER_CAPABILITIES", ""); raw != "" {
		workerCaps, err = model.ParseCapabilities(raw)
		if err != nil {
			return Config{}, fmt.Errorf("WORKER_CAPABILITIES: %w", err)
		}
	}

	cfg := Config{
		Env:         getEnv("REFACTOR_ENV", "development"),
		MetricsPort: getEnv("METRICS_PORT", ""),
		DB: db.Config{
			DSN:      getEnv("DATABASE_URL", ""),
			MaxConns: getEnvInt32("DB_MAX_CONNS", 4),
			MinConns: getEnvInt32("DB_MIN_CONNS", 1),
		},
		OTel: OTelConfig{
			Endpoint:       getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			Headers:        getEnv("OTEL_EXPORTER_OTLP_HEADERS", ""),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "refactor-"+string(serviceType)),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "dev"),
			SampleRatio:    getEnvFloat("OTEL_TRACES_SAMPLER_ARG", 1),
		},
		Queue: QueueConfig{
			RedisURL:        getEnv("REDIS_URL", "redis://localhost:6379/0"),
			ResultTopic:     getEnv("RESULT_TOPIC", "orchestrator_tasks"),
			DeadLetterTopic: getEnv("DLQ_TOPIC", ""),
			Block:           getEnvDuration("QUEUE_BLOCK", 5*time.Second),
		},
		Batch: batch,
		Worker: WorkerConfig{
			Capabilities: workerCaps,
			MaxAttempts:  getEnvInt("WORKER_MAX_ATTEMPTS", 3),
			RetryBackoff: getEnvDuration("WORKER_RETRY_BACKOFF", time.Second),
		},
		RefactorLLM: LLMConfig{
			Provider:  getEnv("REFACTOR_LLM_PROVIDER", "openai"),
			APIKey:    getEnv("REFACTOR_LLM_API_KEY", ""),
			BaseURL:   getEnv("REFACTOR_LLM_BASE_URL", ""),
			Model:     getEnv("REFACTOR_LLM_MODEL", "gpt-4o-mini"),
			MaxTokens: getEnvInt("REFACTOR_LLM_MAX_TOKENS", 8192),
		},
		SynthesisLLM: LLMConfig{
			Provider:  getEnv("SYNTHESIS_LLM_PROVIDER", "openai"),
			APIKey:    getEnv("SYNTHESIS_LLM_API_KEY", ""),
			BaseURL:   getEnv("SYNTHESIS_LLM_BASE_URL", ""),
			Model:     getEnv("SYNTHESIS_LLM_MODEL", "gpt-4o"),
			MaxTokens: getEnvInt("SYNTHESIS_LLM_MAX_TOKENS", 16384),
		},
	}

	switch serviceType {
	case ServiceTypeOrchestrator:
		if !cfg.SynthesisLLM.Enabled() {
			return Config{}, fmt.Errorf("SYNTHESIS_LLM_API_KEY is required")
		}
	case ServiceTypeWorker:
		if !cfg.RefactorLLM.Enabled() {
			return Config{}, fmt.Errorf("REFACTOR_LLM_API_KEY is required")
		}
		if cfg.Worker.MaxAttempts < 1 {
			return Config{}, fmt.Errorf("WORKER_MAX_ATTEMPTS must be at least 1")
		}
	}

	return cfg, nil
}

// loadBatchConfig validates the precedence order against the active
// capability set. Any mismatch is a configuration bug and fails startup.
func loadBatchConfig() (BatchConfig, error) {
	var (
		precedence model.Precedence
		err        error
	)
	if path := getEnv("PRECEDENCE_FILE", ""); path != "" {
		precedence, err = LoadPrecedenceFile(path)
		if err != nil {
			return BatchConfig{}, fmt.Errorf("PRECEDENCE_FILE: %w", err)
		}
	} else {
		order, err := model.ParseCapabilities(getEnv("PRECEDENCE", defaultPrecedence))
		if err != nil {
			return BatchConfig{}, fmt.Errorf("PRECEDENCE: %w", err)
		}
		precedence, err = model.NewPrecedence(getEnv("PRECEDENCE_VERSION", defaultPrecedenceVersion), order)
		if err != nil {
			return BatchConfig{}, fmt.Errorf("PRECEDENCE: %w", err)
		}
	}
	order := precedence.Order()

	capabilities := order
	if raw := getEnv("CAPABILITIES", ""); raw != "" {
		capabilities, err = model.ParseCapabilities(raw)
		if err != nil {
			return BatchConfig{}, fmt.Errorf("CAPABILITIES: %w", err)
		}
	}
	if err := precedence.Covers(capabilities); err != nil {
		return BatchConfig{}, fmt.Errorf("PRECEDENCE does not match CAPABILITIES: %w", err)
	}

	return BatchConfig{
		Capabilities:     capabilities,
		Precedence:       precedence,
		CollectTimeout:   getEnvDuration("COLLECT_TIMEOUT", 0),
		SourceRoot:       getEnv("SOURCE_ROOT", ""),
		OutputDir:        getEnv("OUTPUT_DIR", ""),
		FallbackUnmerged: getEnvBool("FALLBACK_UNMERGED", false),
	}, nil
}

func (c Config) IsProduction() bool {
	return c.Env == "production"
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c OTelConfig) Enabled() bool {
	return c.Endpoint != ""
}

func (c LLMConfig) Enabled() bool {
	return c.APIKey != "" && (c.Provider == "openai" || c.Provider == "anthropic")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt32(key string, fallback int32) int32 {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(i)
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}
