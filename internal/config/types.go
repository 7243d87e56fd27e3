// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"time"

	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/quality"
	"github.com/ManuGH/hlsplay/internal/recovery"
	"github.com/ManuGH/hlsplay/internal/telemetry"
)

// Player holds the options a host passes to the playback plugin.
// Buffer lengths are in seconds.
type Player struct {
	Debug              bool    `yaml:"debug"`
	AutoStartLoad      bool    `yaml:"autoStartLoad"`
	StartPosition      float64 `yaml:"startPosition"`
	LowLatencyMode     bool    `yaml:"lowLatencyMode"`
	MaxBufferLength    float64 `yaml:"maxBufferLength"`
	MaxMaxBufferLength float64 `yaml:"maxMaxBufferLength"`
	BackBufferLength   float64 `yaml:"backBufferLength"`
	EnableWorker       bool    `yaml:"enableWorker"`

	MaxNetworkRetries  int     `yaml:"maxNetworkRetries"`
	MaxMediaRetries    int     `yaml:"maxMediaRetries"`
	RetryDelayMs       int     `yaml:"retryDelayMs"`
	RetryBackoffFactor float64 `yaml:"retryBackoffFactor"`

	PreferNative        bool    `yaml:"preferNative"`
	ErrorStormThreshold int     `yaml:"errorStormThreshold"`
	ErrorStormWindowMs  int     `yaml:"errorStormWindowMs"`
	ABRSafetyFactor     float64 `yaml:"abrSafetyFactor"`
	RequestTimeoutMs    int     `yaml:"requestTimeoutMs"`
}

// App is the CLI configuration.
type App struct {
	LogLevel    string           `yaml:"logLevel"`
	LogService  string           `yaml:"logService"`
	MetricsAddr string           `yaml:"metricsAddr"`
	Player      Player           `yaml:"player"`
	Telemetry   telemetry.Config `yaml:"telemetry"`

	Version string `yaml:"-"`
}

// Defaults returns the stock player options.
func Defaults() Player {
	return Player{
		AutoStartLoad:      true,
		StartPosition:      -1,
		MaxBufferLength:    30,
		MaxMaxBufferLength: 600,
		BackBufferLength:   30,
		EnableWorker:       true,

		MaxNetworkRetries:  3,
		MaxMediaRetries:    2,
		RetryDelayMs:       1000,
		RetryBackoffFactor: 2,

		PreferNative:        true,
		ErrorStormThreshold: 10,
		ErrorStormWindowMs:  5000,
		ABRSafetyFactor:     quality.DefaultSafetyFactor,
	}
}

// DefaultApp returns the stock CLI configuration.
func DefaultApp() App {
	return App{
		LogLevel:    "info",
		LogService:  "hlsplay",
		MetricsAddr: ":9464",
		Player:      Defaults(),
		Telemetry: telemetry.Config{
			ServiceName:  "hlsplay",
			ExporterType: "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 1,
		},
	}
}

// Engine retry settings: one internal attempt per request so the recovery
// coordinator owns all retry decisions.
const (
	engineMaxRetry   = 1
	engineRetryDelay = 500 * time.Millisecond
)

// EngineConfig maps the options onto the fixed engine configuration used by
// the engine backend.
func (p Player) EngineConfig() engine.Config {
	return engine.Config{
		Debug:              p.Debug,
		AutoStartLoad:      p.AutoStartLoad,
		StartPosition:      p.StartPosition,
		StartLevel:         -1,
		LowLatencyMode:     p.LowLatencyMode,
		MaxBufferLength:    seconds(p.MaxBufferLength),
		MaxMaxBufferLength: seconds(p.MaxMaxBufferLength),
		BackBufferLength:   seconds(p.BackBufferLength),
		EnableWorker:       p.EnableWorker,

		ManifestLoadMaxRetry: engineMaxRetry,
		LevelLoadMaxRetry:    engineMaxRetry,
		FragLoadMaxRetry:     engineMaxRetry,
		RetryDelay:           engineRetryDelay,
		RequestTimeout:       time.Duration(p.RequestTimeoutMs) * time.Millisecond,

		ABRSafetyFactor: p.ABRSafetyFactor,
	}
}

// Policy returns the recovery budgets.
func (p Player) Policy() recovery.Policy {
	return recovery.Policy{
		MaxNetworkRetries: p.MaxNetworkRetries,
		MaxMediaRetries:   p.MaxMediaRetries,
		BaseDelay:         time.Duration(p.RetryDelayMs) * time.Millisecond,
		BackoffFactor:     p.RetryBackoffFactor,
		StormThreshold:    p.ErrorStormThreshold,
		StormWindow:       time.Duration(p.ErrorStormWindowMs) * time.Millisecond,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
