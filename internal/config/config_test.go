package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vellankikoti/cutover/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.Namespace)
	assert.Equal(t, config.EngineSync, cfg.Engine)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 150*time.Second, cfg.ReadinessDeadline)
	assert.Equal(t, int32(1), cfg.MinReady)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CUTOVER_NAMESPACE", "shop-prod")
	t.Setenv("CUTOVER_APP", "shop")
	t.Setenv("CUTOVER_POLL_INTERVAL", "2s")
	t.Setenv("CUTOVER_MIN_READY", "3")
	t.Setenv("CUTOVER_REQUIRE_ALL_READY", "true")
	t.Setenv("CUTOVER_LOG_LEVEL", "debug")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "shop-prod", cfg.Namespace)
	assert.Equal(t, "shop", cfg.App)
	assert.Equal(t, 2*time.Second, cfg.PollInterval)
	assert.Equal(t, int32(3), cfg.MinReady)
	assert.True(t, cfg.RequireAllReady)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("CUTOVER_APP=checkout\nCUTOVER_ENGINE=durable\n"), 0o600))

	cfg, err := config.Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, "checkout", cfg.App)
	assert.Equal(t, config.EngineDurable, cfg.Engine)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"empty app", func(c *config.Config) { c.App = "" }},
		{"zero poll interval", func(c *config.Config) { c.PollInterval = 0 }},
		{"zero min ready", func(c *config.Config) { c.MinReady = 0 }},
		{"unknown engine", func(c *config.Config) { c.Engine = "temporal" }},
		{"dbos without database url", func(c *config.Config) { c.Engine = config.EngineDBOS }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
