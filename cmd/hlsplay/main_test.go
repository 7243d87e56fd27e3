// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/hlsplay/internal/capability"
	"github.com/ManuGH/hlsplay/internal/config"
	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/engine/enginetest"
	"github.com/ManuGH/hlsplay/internal/host"
	"github.com/ManuGH/hlsplay/internal/media"
	"github.com/ManuGH/hlsplay/internal/media/watchdog"
	"github.com/ManuGH/hlsplay/internal/player"
	"github.com/ManuGH/hlsplay/internal/telemetry"
	"github.com/ManuGH/hlsplay/internal/version"
)

func TestRun_Commands(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode int
		wantOut  string
		wantErr  string
	}{
		{"no args", nil, 2, "", "Usage:"},
		{"version", []string{"version"}, 0, version.Version, ""},
		{"help", []string{"help"}, 0, "hlsplay probe", ""},
		{"unknown", []string{"record"}, 2, "", "Unknown command: record"},
		{"probe without url", []string{"probe"}, 2, "", "exactly one source URL"},
		{"probe bad scheme", []string{"probe", "ftp://x/live.m3u8"}, 2, "", "scheme must be one of"},
		{"play without host", []string{"play", "https:///live.m3u8"}, 2, "", "URL must have a host"},
		{"play zero tick", []string{"play", "-tick", "0", "https://x/live.m3u8"}, 2, "", "validation failed for tick"},
		{"play negative stall timeout", []string{"play", "-stall-timeout", "-1s", "https://x/live.m3u8"}, 2, "", "validation failed for stall-timeout"},
		{"probe negative timeout", []string{"probe", "-timeout", "-1s", "https://x/live.m3u8"}, 2, "", "validation failed for timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := run(tt.args, &stdout, &stderr)
			assert.Equal(t, tt.wantCode, code)
			assert.Contains(t, stdout.String(), tt.wantOut)
			assert.Contains(t, stderr.String(), tt.wantErr)
		})
	}
}

func TestRunProbe_ConfigError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("player:\n  bogus: 1\n"), 0o600))

	var stdout, stderr bytes.Buffer
	code := run([]string{"probe", "-config", path, "https://x/live.m3u8"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "Configuration error")
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	want := Report{Source: "https://x/live.m3u8", Backend: "engine", LoadMS: 42, Version: version.Version}

	require.NoError(t, writeReport(path, want))
	require.NoError(t, writeReport(path, want), "replacing an existing report")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got Report
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, want.Source, got.Source)
	assert.Equal(t, want.Backend, got.Backend)
	assert.Equal(t, want.LoadMS, got.LoadMS)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestWriteReport_MissingDirectory(t *testing.T) {
	err := writeReport(filepath.Join(t.TempDir(), "missing", "report.json"), Report{})
	assert.Error(t, err)
}

// newTestRuntime wires the plugin to a fake engine instead of the network.
func newTestRuntime(t *testing.T) (*runtime, *enginetest.Fake) {
	t.Helper()
	fake := enginetest.New(engine.Config{})
	fake.Manifest = []engine.Level{
		{Width: 640, Height: 360, Bitrate: 800_000},
		{Width: 1280, Height: 720, Bitrate: 2_500_000},
	}
	fake.Live = true

	tracing, err := telemetry.NewProvider(t.Context(), telemetry.Config{})
	require.NoError(t, err)

	rt := &runtime{
		cfg:     config.DefaultApp(),
		tracing: tracing,
		logger:  zerolog.Nop(),
		el:      media.NewHeadless(media.HeadlessOptions{}),
	}
	rt.plugin = player.New(rt.cfg.Player, engine.NewLoader(engine.Static(fake.Constructor())),
		player.WithEnvironment(capability.Static{MediaSource: true}),
		player.WithLogger(zerolog.Nop()),
	)
	rt.host = host.NewMemory(func() (media.Element, error) { return rt.el, nil })
	require.NoError(t, rt.host.Register(rt.plugin))
	t.Cleanup(rt.close)
	return rt, fake
}

func TestProbe_Report(t *testing.T) {
	rt, fake := newTestRuntime(t)
	fake.SetLiveTiming(6, 4, 0)

	report, err := probe(t.Context(), rt, "https://x/live.m3u8", "auto")
	require.NoError(t, err)

	assert.Equal(t, "engine", report.Backend)
	require.Len(t, report.Levels, 2)
	assert.Equal(t, "720p", report.Levels[1].Label)
	require.NotNil(t, report.Live)
	assert.Equal(t, 6.0, report.Live.Latency)
	assert.Equal(t, version.Version, report.Version)
}

func TestProbe_UnsupportedBackend(t *testing.T) {
	rt, _ := newTestRuntime(t)

	_, err := probe(t.Context(), rt, "https://x/live.m3u8", "native")
	assert.ErrorIs(t, err, player.ErrNotSupported)

	_, err = probe(t.Context(), rt, "https://x/live.m3u8", "quantum")
	assert.ErrorContains(t, err, "unknown backend")
}

func TestStatusRouter(t *testing.T) {
	rt, _ := newTestRuntime(t)
	require.NoError(t, rt.plugin.LoadSource(t.Context(), "https://x/live.m3u8"))
	srv := httptest.NewServer(newStatusRouter(rt))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/readyz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st Status
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	assert.Equal(t, "engine", st.Backend)
	assert.Equal(t, player.PhaseReady, st.Phase)
	assert.Equal(t, -1, st.Level)
	assert.Len(t, st.Levels, 2)
	assert.True(t, st.State.Live)
	assert.Equal(t, host.StateReady, st.State.Playback)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPlay_StopsWithContext(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.cfg.MetricsAddr = ""

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()
	err := play(ctx, rt, "https://x/live.m3u8", playOptions{tick: 10 * time.Millisecond})

	assert.NoError(t, err)
	assert.False(t, rt.el.Paused(), "play was requested")
}

func TestPlay_FatalLoadError(t *testing.T) {
	rt, fake := newTestRuntime(t)
	rt.cfg.MetricsAddr = ""
	fake.LoadErr = &engine.ErrorData{Type: engine.ErrorMux, Details: engine.DetailManifestParsingError, Fatal: true}

	err := play(t.Context(), rt, "https://x/live.m3u8", playOptions{tick: 10 * time.Millisecond})

	assert.ErrorContains(t, err, "Mux error")
}

func TestPlay_WatchdogStopsStalledPlayback(t *testing.T) {
	rt, _ := newTestRuntime(t)
	rt.cfg.MetricsAddr = ""

	// the fake engine never appends media, so the position cannot advance
	err := play(t.Context(), rt, "https://x/live.m3u8", playOptions{
		tick:         10 * time.Millisecond,
		startTimeout: 10 * time.Millisecond,
		stallTimeout: 10 * time.Millisecond,
	})

	assert.ErrorIs(t, err, watchdog.ErrStartTimeout)
}
