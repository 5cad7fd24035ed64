// Package config loads CLI configuration from defaults, an optional
// .env file, and CUTOVER_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/vellankikoti/cutover/internal/domain"
)

type Config struct {
	// Cluster access
	Kubeconfig string `env:"CUTOVER_KUBECONFIG"`
	Namespace  string `env:"CUTOVER_NAMESPACE"`
	App        string `env:"CUTOVER_APP"`

	// Local state
	DBPath string `env:"CUTOVER_DB_PATH"`

	// Readiness gating
	PollInterval      time.Duration `env:"CUTOVER_POLL_INTERVAL"`
	ReadinessDeadline time.Duration `env:"CUTOVER_READINESS_DEADLINE"`
	MinReady          int32         `env:"CUTOVER_MIN_READY"`
	RequireAllReady   bool          `env:"CUTOVER_REQUIRE_ALL_READY"`

	// Workflow engine: sync, durable, or dbos.
	Engine      string `env:"CUTOVER_ENGINE"`
	WorkflowDB  string `env:"CUTOVER_WORKFLOW_DB"`
	DatabaseURL string `env:"CUTOVER_DATABASE_URL"`

	LogLevel string `env:"CUTOVER_LOG_LEVEL"`
}

const (
	EngineSync    = "sync"
	EngineDurable = "durable"
	EngineDBOS    = "dbos"
)

// Load builds a Config from defaults, envFile (when non-empty), and
// environment variables.
func Load(envFile string) (*Config, error) {
	cfg := DefaultConfig()

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		Kubeconfig:        filepath.Join(home, ".kube", "config"),
		Namespace:         "default",
		App:               "app",
		DBPath:            filepath.Join(home, ".cutover", "cutover.db"),
		PollInterval:      domain.DefaultPollInterval,
		ReadinessDeadline: domain.DefaultReadinessDeadline,
		MinReady:          1,
		RequireAllReady:   false,
		Engine:            EngineSync,
		WorkflowDB:        "",
		DatabaseURL:       "",
		LogLevel:          "info",
	}
}

func loadFromEnv(cfg *Config) {
	if v := os.Getenv("CUTOVER_KUBECONFIG"); v != "" {
		cfg.Kubeconfig = v
	}
	if v := os.Getenv("CUTOVER_NAMESPACE"); v != "" {
		cfg.Namespace = v
	}
	if v := os.Getenv("CUTOVER_APP"); v != "" {
		cfg.App = v
	}
	if v := os.Getenv("CUTOVER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CUTOVER_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PollInterval = d
		}
	}
	if v := os.Getenv("CUTOVER_READINESS_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReadinessDeadline = d
		}
	}
	if v := os.Getenv("CUTOVER_MIN_READY"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			cfg.MinReady = int32(n)
		}
	}
	if v := os.Getenv("CUTOVER_REQUIRE_ALL_READY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RequireAllReady = b
		}
	}
	if v := os.Getenv("CUTOVER_ENGINE"); v != "" {
		cfg.Engine = v
	}
	if v := os.Getenv("CUTOVER_WORKFLOW_DB"); v != "" {
		cfg.WorkflowDB = v
	}
	if v := os.Getenv("CUTOVER_DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("CUTOVER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func (c *Config) Validate() error {
	if c.App == "" {
		return fmt.Errorf("app is required")
	}
	if c.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.ReadinessDeadline <= 0 {
		return fmt.Errorf("readiness_deadline must be positive")
	}
	if c.MinReady < 1 {
		return fmt.Errorf("min_ready must be at least 1")
	}
	switch c.Engine {
	case EngineSync, EngineDurable:
	case EngineDBOS:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the dbos engine")
		}
	default:
		return fmt.Errorf("engine must be one of: %s, %s, %s", EngineSync, EngineDurable, EngineDBOS)
	}
	return nil
}
