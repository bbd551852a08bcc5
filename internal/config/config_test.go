package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 50*time.Millisecond, cfg.Workflow.PollInterval)
	assert.Equal(t, "P", cfg.Workflow.Right)
	assert.Contains(t, cfg.Workflow.BenignSet(), 2104)
}

func TestLoadYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "optionboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
gateway:
  mode: ws
  url: ws://example.test/ws
  codec: msgpack
workflow:
  symbol: msft
  horizon_weeks: 2
  poll_interval: 20ms
http:
  enabled: true
`), 0o644))

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, "ws", cfg.Gateway.Mode)
	assert.Equal(t, "msgpack", cfg.Gateway.Codec)
	assert.Equal(t, 2, cfg.Workflow.HorizonWeeks)
	assert.Equal(t, 20*time.Millisecond, cfg.Workflow.PollInterval)
	assert.True(t, cfg.HTTP.Enabled)
	// untouched sections keep their defaults
	assert.Equal(t, 45.0, cfg.Gateway.RateLimit)
	assert.Equal(t, "All", cfg.Account.Group)
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := Load(missing, false)
	assert.NoError(t, err)
	_, err = Load(missing, true)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"OPTIONBOARD_SYMBOL":        "AAPL",
		"OPTIONBOARD_HORIZON_WEEKS": "6",
		"OPTIONBOARD_HTTP_ENABLED":  "true",
		"OPTIONBOARD_GATEWAY_CODEC": "msgpack",
		"OPTIONBOARD_POLL_INTERVAL": "10ms",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))
	assert.Equal(t, "AAPL", cfg.Workflow.Symbol)
	assert.Equal(t, 6, cfg.Workflow.HorizonWeeks)
	assert.True(t, cfg.HTTP.Enabled)
	assert.Equal(t, "msgpack", cfg.Gateway.Codec)
	assert.Equal(t, 10*time.Millisecond, cfg.Workflow.PollInterval)

	env["OPTIONBOARD_HORIZON_WEEKS"] = "many"
	assert.Error(t, cfg.ApplyEnv(lookup))
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"horizon zero", func(c *Config) { c.Workflow.HorizonWeeks = 0 }},
		{"horizon eleven", func(c *Config) { c.Workflow.HorizonWeeks = 11 }},
		{"bad right", func(c *Config) { c.Workflow.Right = "X" }},
		{"bad mode", func(c *Config) { c.Gateway.Mode = "tcp" }},
		{"bad codec", func(c *Config) { c.Gateway.Codec = "xml" }},
		{"ws without url", func(c *Config) { c.Gateway.Mode = "ws"; c.Gateway.URL = "" }},
		{"bad annualization", func(c *Config) { c.Workflow.Annualization = "monthly" }},
		{"zero poll", func(c *Config) { c.Workflow.PollInterval = 0 }},
		{"account without tags", func(c *Config) { c.Account.Tags = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
