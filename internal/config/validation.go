// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"github.com/ManuGH/hlsplay/internal/validate"
)

// Validate checks the CLI configuration.
func Validate(cfg App) error {
	v := validate.New()

	if _, err := validate.ParseLogLevel(cfg.LogLevel); err != nil {
		v.AddError("logLevel", "must be one of trace, debug, info, warn, error", cfg.LogLevel)
	}
	if cfg.MetricsAddr != "" {
		v.ListenAddr("metricsAddr", cfg.MetricsAddr)
	}
	validatePlayer(v, "player.", cfg.Player)

	if cfg.Telemetry.Enabled {
		v.NotEmpty("telemetry.serviceName", cfg.Telemetry.ServiceName)
		v.OneOf("telemetry.exporter", cfg.Telemetry.ExporterType, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.RangeFloat("telemetry.samplingRate", cfg.Telemetry.SamplingRate, 0, 1)
	}

	return v.Err()
}

// ValidatePlayer checks the player options on their own.
func ValidatePlayer(p Player) error {
	v := validate.New()
	validatePlayer(v, "", p)
	return v.Err()
}

func validatePlayer(v *validate.Validator, prefix string, p Player) {
	if p.StartPosition != -1 {
		v.MinFloat(prefix+"startPosition", p.StartPosition, 0)
	}
	v.MinFloat(prefix+"maxBufferLength", p.MaxBufferLength, 0)
	v.MinFloat(prefix+"maxMaxBufferLength", p.MaxMaxBufferLength, 0)
	v.MinFloat(prefix+"backBufferLength", p.BackBufferLength, 0)
	v.Custom(prefix+"maxMaxBufferLength", p.MaxMaxBufferLength >= p.MaxBufferLength,
		"must not be below maxBufferLength", p.MaxMaxBufferLength)

	v.NonNegative(prefix+"maxNetworkRetries", p.MaxNetworkRetries)
	v.NonNegative(prefix+"maxMediaRetries", p.MaxMediaRetries)
	v.NonNegative(prefix+"retryDelayMs", p.RetryDelayMs)
	v.MinFloat(prefix+"retryBackoffFactor", p.RetryBackoffFactor, 1)

	v.Positive(prefix+"errorStormThreshold", p.ErrorStormThreshold)
	v.Positive(prefix+"errorStormWindowMs", p.ErrorStormWindowMs)
	v.Custom(prefix+"abrSafetyFactor", p.ABRSafetyFactor > 0 && p.ABRSafetyFactor <= 1,
		"must be in (0, 1]", p.ABRSafetyFactor)
	v.NonNegative(prefix+"requestTimeoutMs", p.RequestTimeoutMs)
}
