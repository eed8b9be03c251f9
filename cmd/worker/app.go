package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"memorykeep/internal/client"
	"memorykeep/internal/llm"
	"memorykeep/internal/llm/gemini"
	"memorykeep/internal/llm/openai"
	"memorykeep/internal/notify"
	"memorykeep/internal/notify/telegram"
	"memorykeep/internal/worker"
	"memorykeep/modules/scheduledmessage"
	"memorykeep/modules/summarizer"
)

const (
	envConfigFile    = "MEMORYKEEP_WORKER_CONFIG"
	envAPIBaseURL    = "MEMORYKEEP_API_BASE_URL"
	envWhitelistPath = "MEMORYKEEP_WHITELIST"
	envSummaryAPIKey = "MEMORYKEEP_SUMMARY_API_KEY"

	defaultConfigFilePath = "config/worker.json"
	defaultAPIBaseURL     = "http://localhost:5000"
	defaultWhitelistPath  = "whitelist.txt"
	defaultRequestTimeout = 10 * time.Second
)

type appConfig struct {
	logLevel slog.Level

	apiBaseURL     string
	whitelistPath  string
	categories     []string
	pollInterval   time.Duration
	requestTimeout time.Duration
	handlerTimeout time.Duration

	summary  *summaryConfig
	telegram *telegram.Config
}

type summaryConfig struct {
	provider        string
	apiKey          string
	model           string
	maxOutputTokens int
}

type fileConfig struct {
	LogLevel       string              `json:"log_level"`
	APIBaseURL     string              `json:"api_base_url"`
	WhitelistPath  string              `json:"whitelist_path"`
	Categories     []string            `json:"categories"`
	PollInterval   string              `json:"poll_interval"`
	RequestTimeout string              `json:"request_timeout"`
	HandlerTimeout string              `json:"handler_timeout"`
	Summary        *fileSummaryConfig  `json:"summary"`
	Telegram       *fileTelegramConfig `json:"telegram"`
}

type fileSummaryConfig struct {
	Provider        string `json:"provider"`
	APIKey          string `json:"api_key"`
	Model           string `json:"model"`
	MaxOutputTokens int    `json:"max_output_tokens"`
}

type fileTelegramConfig struct {
	AppID       int    `json:"app_id"`
	AppHash     string `json:"app_hash"`
	SessionFile string `json:"session_file"`
}

func run() error {
	// A missing .env file is the common case, not an error.
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))
	slog.SetDefault(logger)

	memoryClient, err := client.New(cfg.apiBaseURL, cfg.requestTimeout)
	if err != nil {
		return fmt.Errorf("new memory client: %w", err)
	}

	handlers, err := buildHandlerRegistry(cfg, memoryClient, logger)
	if err != nil {
		return fmt.Errorf("build handler registry: %w", err)
	}

	automationWorker, err := worker.New(worker.Config{
		WhitelistPath:  cfg.whitelistPath,
		Client:         memoryClient,
		Handlers:       handlers,
		Categories:     cfg.categories,
		PollInterval:   cfg.pollInterval,
		HandlerTimeout: cfg.handlerTimeout,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("new worker: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := automationWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run worker: %w", err)
	}

	return nil
}

// buildHandlerRegistry registers every configured automation module.
//
// The scheduled-message handler is always present, delivering through
// Telegram when configured and through the structured log otherwise. The
// memory-summary handler is registered only when a summary provider is
// configured.
func buildHandlerRegistry(
	cfg appConfig,
	memoryClient *client.Client,
	logger *slog.Logger,
) (*worker.HandlerRegistry, error) {
	handlers := worker.NewHandlerRegistry()

	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.telegram != nil {
		telegramNotifier, err := telegram.New(*cfg.telegram)
		if err != nil {
			return nil, fmt.Errorf("new telegram notifier: %w", err)
		}
		notifier = telegramNotifier
	}

	scheduled, err := scheduledmessage.New(notifier, memoryClient, logger)
	if err != nil {
		return nil, err
	}
	if err := handlers.Register(scheduledmessage.ModuleType, scheduled); err != nil {
		return nil, err
	}

	if cfg.summary != nil {
		generator, err := buildGenerator(*cfg.summary)
		if err != nil {
			return nil, fmt.Errorf("new summary generator: %w", err)
		}
		summaryModule, err := summarizer.New(summarizer.Config{
			Generator:       generator,
			Client:          memoryClient,
			Model:           cfg.summary.model,
			MaxOutputTokens: cfg.summary.maxOutputTokens,
			Logger:          logger,
		})
		if err != nil {
			return nil, err
		}
		if err := handlers.Register(summarizer.ModuleType, summaryModule); err != nil {
			return nil, err
		}
	}

	return handlers, nil
}

func buildGenerator(cfg summaryConfig) (llm.Generator, error) {
	providerConfig := llm.Config{
		Provider: cfg.provider,
		APIKey:   cfg.apiKey,
	}
	if err := providerConfig.Validate(); err != nil {
		return nil, err
	}

	switch strings.ToLower(strings.TrimSpace(cfg.provider)) {
	case llm.ProviderOpenAI:
		return openai.New(providerConfig)
	case llm.ProviderGemini:
		return gemini.New(providerConfig)
	default:
		return nil, fmt.Errorf("unsupported summary provider %q", cfg.provider)
	}
}

func loadConfig() (appConfig, error) {
	cfg := appConfig{
		logLevel:       slog.LevelInfo,
		apiBaseURL:     defaultAPIBaseURL,
		whitelistPath:  defaultWhitelistPath,
		requestTimeout: defaultRequestTimeout,
	}

	if err := applyConfigFile(&cfg); err != nil {
		return appConfig{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.summary != nil {
		if strings.TrimSpace(cfg.summary.model) == "" {
			return appConfig{}, fmt.Errorf("summary: missing model")
		}
		if strings.TrimSpace(cfg.summary.apiKey) == "" {
			return appConfig{}, fmt.Errorf(
				"summary: missing api_key (set it in config or %s)", envSummaryAPIKey,
			)
		}
	}

	return cfg, nil
}

// applyConfigFile loads the optional JSON config file. The file is required
// only when its path was set explicitly through the environment.
func applyConfigFile(cfg *appConfig) error {
	path := strings.TrimSpace(os.Getenv(envConfigFile))
	required := path != ""
	if path == "" {
		path = defaultConfigFilePath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !required && errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}
	if baseURL := strings.TrimSpace(parsed.APIBaseURL); baseURL != "" {
		cfg.apiBaseURL = baseURL
	}
	if whitelist := strings.TrimSpace(parsed.WhitelistPath); whitelist != "" {
		cfg.whitelistPath = whitelist
	}
	for _, category := range parsed.Categories {
		category = strings.TrimSpace(category)
		if category == "" {
			return fmt.Errorf("parse categories: empty category")
		}
		cfg.categories = append(cfg.categories, category)
	}

	durations := []struct {
		name   string
		raw    string
		target *time.Duration
	}{
		{"poll_interval", parsed.PollInterval, &cfg.pollInterval},
		{"request_timeout", parsed.RequestTimeout, &cfg.requestTimeout},
		{"handler_timeout", parsed.HandlerTimeout, &cfg.handlerTimeout},
	}
	for _, entry := range durations {
		raw := strings.TrimSpace(entry.raw)
		if raw == "" {
			continue
		}
		value, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("parse %s: %w", entry.name, err)
		}
		if value <= 0 {
			return fmt.Errorf("parse %s: must be > 0", entry.name)
		}
		*entry.target = value
	}

	if parsed.Summary != nil {
		cfg.summary = &summaryConfig{
			provider:        strings.TrimSpace(parsed.Summary.Provider),
			apiKey:          strings.TrimSpace(parsed.Summary.APIKey),
			model:           strings.TrimSpace(parsed.Summary.Model),
			maxOutputTokens: parsed.Summary.MaxOutputTokens,
		}
	}
	if parsed.Telegram != nil {
		cfg.telegram = &telegram.Config{
			AppID:       parsed.Telegram.AppID,
			AppHash:     strings.TrimSpace(parsed.Telegram.AppHash),
			SessionFile: strings.TrimSpace(parsed.Telegram.SessionFile),
		}
	}

	return nil
}

func applyEnvOverrides(cfg *appConfig) {
	if baseURL := strings.TrimSpace(os.Getenv(envAPIBaseURL)); baseURL != "" {
		cfg.apiBaseURL = baseURL
	}
	if whitelist := strings.TrimSpace(os.Getenv(envWhitelistPath)); whitelist != "" {
		cfg.whitelistPath = whitelist
	}
	if apiKey := strings.TrimSpace(os.Getenv(envSummaryAPIKey)); apiKey != "" && cfg.summary != nil {
		cfg.summary.apiKey = apiKey
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported log level %q", raw)
	}
}
