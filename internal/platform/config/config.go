package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// File layout
	FeedsPath          string `env:"FEEDS_PATH" envDefault:"feeds.json"`
	StorePath          string `env:"STORE_PATH" envDefault:"data/sources.json"`
	OutDir             string `env:"OUT_DIR" envDefault:"out"`
	StylePath          string `env:"STYLE_PATH" envDefault:"config.yaml"`
	InteractionLogPath string `env:"INTERACTION_LOG_PATH" envDefault:"out/engagement_log.csv"`
	ModelPath          string `env:"RANKER_MODEL_PATH" envDefault:"out/ranker_model.json"`
	StoreBackups       int    `env:"STORE_BACKUPS" envDefault:"5"`

	// Ranking
	DigestTopK        int     `env:"DIGEST_TOP_K" envDefault:"10"`
	LogImpressions    bool    `env:"LOG_IMPRESSIONS" envDefault:"true"`
	TrainEpochs       int     `env:"TRAIN_EPOCHS" envDefault:"500"`
	TrainLearningRate float64 `env:"TRAIN_LEARNING_RATE" envDefault:"0.1"`

	// Themes
	ThemeMode            string        `env:"THEME_MODE" envDefault:"both"`
	ClusterKMin          int           `env:"CLUSTER_K_MIN" envDefault:"2"`
	ClusterKMax          int           `env:"CLUSTER_K_MAX" envDefault:"5"`
	ClusterSeed          int64         `env:"CLUSTER_SEED" envDefault:"0"`
	ClusterMaxIterations int           `env:"CLUSTER_MAX_ITERATIONS" envDefault:"10"`
	ThemeRefreshInterval time.Duration `env:"THEME_REFRESH_INTERVAL" envDefault:"24h"`
	HashedEmbeddingDim   int           `env:"HASHED_EMBEDDING_DIM" envDefault:"32"`
	EmbeddingModel       string        `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingsRemote     bool          `env:"EMBEDDINGS_REMOTE" envDefault:"true"`

	// LLM
	LLMAPIKey              string        `env:"LLM_API_KEY"`
	LLMBaseURL             string        `env:"LLM_BASE_URL" envDefault:"https://api.openai.com/v1"`
	LLMModel               string        `env:"LLM_MODEL" envDefault:"gpt-5-mini"`
	LLMTemperature         float32       `env:"LLM_TEMPERATURE" envDefault:"1.0"`
	LLMMaxCompletionTokens int           `env:"LLM_MAX_COMPLETION_TOKENS" envDefault:"1200"`
	LLMTimeout             time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`
	LLMRateLimitRPS        float64       `env:"LLM_RATE_LIMIT_RPS" envDefault:"1"`
	LLMRetries             int           `env:"LLM_RETRIES" envDefault:"2"`
	LLMCacheEnabled        bool          `env:"LLM_CACHE_ENABLED" envDefault:"true"`
	LLMCircuitThreshold    int           `env:"LLM_CIRCUIT_THRESHOLD" envDefault:"5"`
	LLMCircuitTimeout      time.Duration `env:"LLM_CIRCUIT_TIMEOUT" envDefault:"1m"`
	LLMSummaries           bool          `env:"LLM_SUMMARIES" envDefault:"false"`
	LLMImpacts             bool          `env:"LLM_IMPACTS" envDefault:"false"`
	FormatterEnabled       bool          `env:"FORMATTER_ENABLED" envDefault:"true"`

	// Ingestion
	FetchWorkers         int           `env:"FETCH_WORKERS" envDefault:"4"`
	FetchTimeout         time.Duration `env:"FETCH_TIMEOUT" envDefault:"10s"`
	UserAgent            string        `env:"FETCH_USER_AGENT" envDefault:"signal-digest/1.0"`
	FetchRetries         int           `env:"FETCH_RETRIES" envDefault:"3"`
	FetchHostRPS         float64       `env:"FETCH_HOST_RPS" envDefault:"1"`
	FeedItemLimit        int           `env:"FEED_ITEM_LIMIT" envDefault:"10"`
	ArxivMaxResults      int           `env:"ARXIV_MAX_RESULTS" envDefault:"25"`
	ArxivBaseURL         string        `env:"ARXIV_BASE_URL" envDefault:"https://export.arxiv.org/api/query"`
	GitHubAPIURL         string        `env:"GITHUB_API_URL" envDefault:"https://api.github.com"`
	GitHubToken          string        `env:"GITHUB_TOKEN"`
	GitHubRateLimitRPS   float64       `env:"GITHUB_RATE_LIMIT_RPS" envDefault:"2"`
	EnrichEmptySummaries bool          `env:"ENRICH_EMPTY_SUMMARIES" envDefault:"false"`

	// Delivery
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_CHAT_ID"`

	// Operations
	MetricsTextfile  string `env:"METRICS_TEXTFILE"`
	HealthPort       int    `env:"HEALTH_PORT" envDefault:"0"`
	Schedule         string `env:"DIGEST_SCHEDULE" envDefault:"0 7 * * *"`
	ScheduleTimezone string `env:"DIGEST_SCHEDULE_TZ" envDefault:"UTC"`
}

// TelegramEnabled reports whether digest delivery to Telegram is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	applyLegacyAliases(cfg)

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyLegacyAliases honours the variable names used by earlier deployments.
func applyLegacyAliases(cfg *Config) {
	if !hasEnv("LLM_API_KEY") {
		setStringFromEnv("OPENAI_API_KEY", &cfg.LLMAPIKey)
	}

	if !hasEnv("LLM_BASE_URL") {
		setStringFromEnv("OPENAI_BASE_URL", &cfg.LLMBaseURL)
	}

	if !hasEnv("LLM_MODEL") {
		setStringFromEnv("SIGNALAI_LLM_MODEL", &cfg.LLMModel)
	}

	if !hasEnv("LOG_LEVEL") {
		setStringFromEnv("SIGNALAI_LOG_LEVEL", &cfg.LogLevel)
	}

	if !hasEnv("FETCH_WORKERS") {
		setIntFromEnv("INGEST_WORKERS", &cfg.FetchWorkers)
	}
}

func validate(cfg *Config) error {
	if cfg.DigestTopK < 1 {
		return fmt.Errorf("%w: DIGEST_TOP_K must be >= 1", errInvalidConfig)
	}

	if cfg.ClusterKMin < 1 || cfg.ClusterKMax < cfg.ClusterKMin {
		return fmt.Errorf("%w: cluster k range [%d, %d]", errInvalidConfig, cfg.ClusterKMin, cfg.ClusterKMax)
	}

	switch cfg.ThemeMode {
	case ThemeModeKeyword, ThemeModeCluster, ThemeModeBoth:
	default:
		return fmt.Errorf("%w: THEME_MODE %q", errInvalidConfig, cfg.ThemeMode)
	}

	if cfg.FetchWorkers < 1 {
		cfg.FetchWorkers = 1
	}

	return nil
}

func hasEnv(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func setStringFromEnv(key string, target *string) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	val = strings.TrimSpace(val)
	if val == "" {
		return
	}

	*target = val
}

func setIntFromEnv(key string, target *int) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(val))
	if err != nil {
		return
	}

	*target = parsed
}
