// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader handles configuration loading with precedence
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a new configuration loader. An empty path skips the file.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

func (l *Loader) envString(key, defaultVal string) string {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, defaultVal)
}

func (l *Loader) envBool(key string, defaultVal bool) bool {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, defaultVal)
}

func (l *Loader) envInt(key string, defaultVal int) int {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, defaultVal)
}

func (l *Loader) envFloat(key string, defaultVal float64) float64 {
	key = EnvPrefix + key
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, defaultVal)
}

// Load loads configuration with precedence: ENV > File > Defaults,
// then validates the result.
func (l *Loader) Load() (App, error) {
	cfg := DefaultApp()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version
	cfg.Telemetry.ServiceVersion = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFile decodes a YAML file over cfg with STRICT parsing.
// Keys absent from the file keep their current values.
func (l *Loader) loadFile(path string, cfg *App) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s (only YAML supported)", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("strict config parse error: %w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("config file contains multiple documents or trailing content")
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *App) {
	cfg.LogLevel = l.envString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogService = l.envString("LOG_SERVICE", cfg.LogService)
	cfg.MetricsAddr = l.envString("METRICS_ADDR", cfg.MetricsAddr)

	p := &cfg.Player
	p.Debug = l.envBool("DEBUG", p.Debug)
	p.AutoStartLoad = l.envBool("AUTO_START_LOAD", p.AutoStartLoad)
	p.StartPosition = l.envFloat("START_POSITION", p.StartPosition)
	p.LowLatencyMode = l.envBool("LOW_LATENCY_MODE", p.LowLatencyMode)
	p.MaxBufferLength = l.envFloat("MAX_BUFFER_LENGTH", p.MaxBufferLength)
	p.MaxMaxBufferLength = l.envFloat("MAX_MAX_BUFFER_LENGTH", p.MaxMaxBufferLength)
	p.BackBufferLength = l.envFloat("BACK_BUFFER_LENGTH", p.BackBufferLength)
	p.EnableWorker = l.envBool("ENABLE_WORKER", p.EnableWorker)
	p.MaxNetworkRetries = l.envInt("MAX_NETWORK_RETRIES", p.MaxNetworkRetries)
	p.MaxMediaRetries = l.envInt("MAX_MEDIA_RETRIES", p.MaxMediaRetries)
	p.RetryDelayMs = l.envInt("RETRY_DELAY_MS", p.RetryDelayMs)
	p.RetryBackoffFactor = l.envFloat("RETRY_BACKOFF_FACTOR", p.RetryBackoffFactor)
	p.PreferNative = l.envBool("PREFER_NATIVE", p.PreferNative)
	p.ErrorStormThreshold = l.envInt("ERROR_STORM_THRESHOLD", p.ErrorStormThreshold)
	p.ErrorStormWindowMs = l.envInt("ERROR_STORM_WINDOW_MS", p.ErrorStormWindowMs)
	p.ABRSafetyFactor = l.envFloat("ABR_SAFETY_FACTOR", p.ABRSafetyFactor)
	p.RequestTimeoutMs = l.envInt("REQUEST_TIMEOUT_MS", p.RequestTimeoutMs)

	t := &cfg.Telemetry
	t.Enabled = l.envBool("TELEMETRY_ENABLED", t.Enabled)
	t.Environment = l.envString("TELEMETRY_ENVIRONMENT", t.Environment)
	t.ExporterType = l.envString("TELEMETRY_EXPORTER", t.ExporterType)
	t.Endpoint = l.envString("TELEMETRY_ENDPOINT", t.Endpoint)
	t.SamplingRate = l.envFloat("TELEMETRY_SAMPLING_RATE", t.SamplingRate)
}
