// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ManuGH/hlsplay/internal/config"
	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/engine/playlist"
	"github.com/ManuGH/hlsplay/internal/host"
	"github.com/ManuGH/hlsplay/internal/log"
	"github.com/ManuGH/hlsplay/internal/media"
	"github.com/ManuGH/hlsplay/internal/player"
	"github.com/ManuGH/hlsplay/internal/telemetry"
	"github.com/ManuGH/hlsplay/internal/validate"
	"github.com/ManuGH/hlsplay/internal/version"
)

// runtime is one configured host with the HLS plugin registered on it.
type runtime struct {
	cfg     config.App
	host    *host.Memory
	el      *media.Headless
	plugin  *player.Plugin
	tracing *telemetry.Provider
	logger  zerolog.Logger
}

// loadConfig reads the configuration and reconfigures the global logger.
func loadConfig(path string) (config.App, error) {
	log.Configure(log.Config{Level: "info", Service: "hlsplay", Version: version.Version})

	cfg, err := config.NewLoader(strings.TrimSpace(path), version.Version).Load()
	if err != nil {
		return config.App{}, err
	}
	log.Configure(log.Config{
		Level:   cfg.LogLevel,
		Service: cfg.LogService,
		Version: cfg.Version,
	})
	return cfg, nil
}

func validateSource(src string) error {
	v := validate.New()
	v.URL("url", src, []string{"http", "https"})
	return v.Err()
}

// runContext tags one CLI invocation so its log lines can be grouped.
func runContext() context.Context {
	return log.ContextWithCorrelationID(context.Background(), uuid.NewString())
}

func userAgent() string {
	return "hlsplay/" + version.Version
}

// newRuntime builds the headless element, the host and the plugin.
func newRuntime(ctx context.Context, cfg config.App) (*runtime, error) {
	tracing, err := telemetry.NewProvider(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	rt := &runtime{
		cfg:     cfg,
		tracing: tracing,
		logger:  log.WithComponentFromContext(ctx, "cli"),
		el: media.NewHeadless(media.HeadlessOptions{
			CanPlay: map[string]string{},
		}),
	}

	loader := engine.NewLoader(playlist.Load(
		playlist.WithUserAgent(userAgent()),
		playlist.WithLogger(log.WithComponentFromContext(ctx, "engine")),
	))

	rt.plugin = player.New(cfg.Player, loader,
		player.WithMediaSource(true),
		player.WithUserAgent(userAgent()),
	)
	rt.host = host.NewMemory(func() (media.Element, error) { return rt.el, nil })
	if err := rt.host.Register(rt.plugin); err != nil {
		_ = tracing.Shutdown(ctx)
		return nil, err
	}
	return rt, nil
}

// close destroys the plugin and flushes spans.
func (rt *runtime) close() {
	if err := rt.host.Close(); err != nil {
		rt.logger.Warn().Err(err).Msg("host close")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.tracing.Shutdown(ctx); err != nil {
		rt.logger.Warn().Err(err).Msg("telemetry shutdown")
	}
}
