// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/hlsplay/internal/recovery"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_DefaultsWithoutFile(t *testing.T) {
	cfg, err := NewLoader("", "v1.2.3").Load()
	require.NoError(t, err)

	assert.Equal(t, Defaults(), cfg.Player)
	assert.Equal(t, "v1.2.3", cfg.Version)
	assert.Equal(t, "v1.2.3", cfg.Telemetry.ServiceVersion)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
logLevel: debug
player:
  lowLatencyMode: true
  maxNetworkRetries: 5
  retryDelayMs: 250
`)
	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Player.LowLatencyMode)
	assert.Equal(t, 5, cfg.Player.MaxNetworkRetries)
	assert.Equal(t, 250, cfg.Player.RetryDelayMs)
	// untouched keys keep their defaults
	assert.True(t, cfg.Player.AutoStartLoad)
	assert.Equal(t, 2, cfg.Player.MaxMediaRetries)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "config.yml", "player:\n  maxMediaRetries: 4\n")
	t.Setenv("HLSPLAY_MAX_MEDIA_RETRIES", "1")
	t.Setenv("HLSPLAY_PREFER_NATIVE", "false")

	l := NewLoader(path, "")
	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, 1, cfg.Player.MaxMediaRetries)
	assert.False(t, cfg.Player.PreferNative)
	assert.Contains(t, l.ConsumedEnvKeys, "HLSPLAY_MAX_MEDIA_RETRIES")
}

func TestLoad_UnknownKeyFails(t *testing.T) {
	path := writeConfig(t, "config.yaml", "player:\n  maxRetries: 3\n")

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_InvalidTypeFails(t *testing.T) {
	path := writeConfig(t, "config.yaml", "player:\n  maxNetworkRetries: many\n")

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownConfigField)
}

func TestLoad_TrailingDocumentFails(t *testing.T) {
	path := writeConfig(t, "config.yaml", "logLevel: info\n---\nlogLevel: debug\n")

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "multiple documents")
}

func TestLoad_EmptyFileKeepsDefaults(t *testing.T) {
	path := writeConfig(t, "config.yaml", "")

	cfg, err := NewLoader(path, "").Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg.Player)
}

func TestLoad_RejectsNonYAML(t *testing.T) {
	path := writeConfig(t, "config.json", "{}")

	_, err := NewLoader(path, "").Load()
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoad_ValidationFails(t *testing.T) {
	path := writeConfig(t, "config.yaml", "player:\n  retryBackoffFactor: 0.5\n")

	_, err := NewLoader(path, "").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retryBackoffFactor")
}

func TestPlayer_EngineConfig(t *testing.T) {
	p := Defaults()
	p.LowLatencyMode = true
	p.RequestTimeoutMs = 1500

	c := p.EngineConfig()
	assert.Equal(t, -1, c.StartLevel)
	assert.True(t, c.LowLatencyMode)
	assert.Equal(t, 30*time.Second, c.MaxBufferLength)
	assert.Equal(t, 600*time.Second, c.MaxMaxBufferLength)
	assert.Equal(t, 1, c.ManifestLoadMaxRetry)
	assert.Equal(t, 1, c.LevelLoadMaxRetry)
	assert.Equal(t, 1, c.FragLoadMaxRetry)
	assert.Equal(t, 1500*time.Millisecond, c.RequestTimeout)
}

func TestPlayer_Policy(t *testing.T) {
	got := Defaults().Policy()
	assert.Equal(t, recovery.Policy{
		MaxNetworkRetries: 3,
		MaxMediaRetries:   2,
		BaseDelay:         time.Second,
		BackoffFactor:     2,
		StormThreshold:    10,
		StormWindow:       5 * time.Second,
	}, got)
	assert.Equal(t, recovery.DefaultPolicy(), got)
}
