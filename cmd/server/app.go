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

	"memorykeep/internal/httpapi"
	"memorykeep/internal/registry"
	"memorykeep/internal/store"
)

const (
	envConfigFile    = "MEMORYKEEP_SERVER_CONFIG"
	envListenAddr    = "MEMORYKEEP_ADDR"
	envWhitelistPath = "MEMORYKEEP_WHITELIST"
	envMemoryDir     = "MEMORYKEEP_MEMORY_DIR"

	defaultConfigFilePath  = "config/server.json"
	defaultListenAddr      = ":5000"
	defaultWhitelistPath   = "whitelist.txt"
	defaultMemoryDir       = "memory_data"
	defaultShutdownTimeout = 10 * time.Second
)

type appConfig struct {
	logLevel slog.Level

	listenAddr      string
	whitelistPath   string
	memoryDir       string
	shutdownTimeout time.Duration
}

type fileConfig struct {
	LogLevel        string `json:"log_level"`
	ListenAddr      string `json:"listen_addr"`
	WhitelistPath   string `json:"whitelist_path"`
	MemoryDir       string `json:"memory_dir"`
	ShutdownTimeout string `json:"shutdown_timeout"`
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

	keyRegistry := registry.Load(cfg.whitelistPath, logger)
	logger.Info("whitelist loaded", "path", cfg.whitelistPath, "tenants", keyRegistry.Len())

	memoryStore, err := store.New(cfg.memoryDir)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	server, err := httpapi.New(httpapi.Config{
		Addr:            cfg.listenAddr,
		Registry:        keyRegistry,
		Store:           memoryStore,
		Logger:          logger,
		ShutdownTimeout: cfg.shutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("new server: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run server: %w", err)
	}

	return nil
}

func loadConfig() (appConfig, error) {
	cfg := appConfig{
		logLevel:        slog.LevelInfo,
		listenAddr:      defaultListenAddr,
		whitelistPath:   defaultWhitelistPath,
		memoryDir:       defaultMemoryDir,
		shutdownTimeout: defaultShutdownTimeout,
	}

	if err := applyConfigFile(&cfg); err != nil {
		return appConfig{}, err
	}
	applyEnvOverrides(&cfg)

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
	if addr := strings.TrimSpace(parsed.ListenAddr); addr != "" {
		cfg.listenAddr = addr
	}
	if path := strings.TrimSpace(parsed.WhitelistPath); path != "" {
		cfg.whitelistPath = path
	}
	if dir := strings.TrimSpace(parsed.MemoryDir); dir != "" {
		cfg.memoryDir = dir
	}
	if rawTimeout := strings.TrimSpace(parsed.ShutdownTimeout); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return fmt.Errorf("parse shutdown_timeout: %w", err)
		}
		if timeout <= 0 {
			return fmt.Errorf("parse shutdown_timeout: must be > 0")
		}
		cfg.shutdownTimeout = timeout
	}

	return nil
}

func applyEnvOverrides(cfg *appConfig) {
	if addr := strings.TrimSpace(os.Getenv(envListenAddr)); addr != "" {
		cfg.listenAddr = addr
	}
	if path := strings.TrimSpace(os.Getenv(envWhitelistPath)); path != "" {
		cfg.whitelistPath = path
	}
	if dir := strings.TrimSpace(os.Getenv(envMemoryDir)); dir != "" {
		cfg.memoryDir = dir
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
