// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/ManuGH/hlsplay/internal/config"
	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/host"
	"github.com/ManuGH/hlsplay/internal/media"
	"github.com/ManuGH/hlsplay/internal/metrics"
	"github.com/ManuGH/hlsplay/internal/telemetry"
)

func TestLoadSource_EngineBackend(t *testing.T) {
	f := newFixture(t, engineEnv())

	require.NoError(t, f.p.LoadSource(t.Context(), testSrc))

	assert.Equal(t, []host.MediaLoaded{{Src: testSrc, Type: "application/x-mpegURL"}}, f.ev.loaded)
	assert.False(t, f.p.IsNativeHLS())
	assert.Equal(t, BackendEngine, f.p.ActiveBackend())
	assert.Equal(t, PhaseReady, f.p.Phase())

	var labels []string
	for _, l := range f.p.GetLevels() {
		labels = append(labels, l.Label)
	}
	if diff := cmp.Diff([]string{"360p", "720p", "1080p"}, labels); diff != "" {
		t.Errorf("levels mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, -1, f.p.GetCurrentLevel())

	st := f.state()
	assert.Equal(t, host.StateReady, st.Playback)
	assert.False(t, st.Buffering)
	assert.Equal(t, testSrc, st.Source)
	assert.Equal(t, media.MIMEXMPEGURL, st.SourceType)
	assert.Len(t, st.Qualities, 3)
	require.Len(t, f.ev.levels, 1)

	calls := f.fake.Calls()
	assert.Equal(t, testSrc, calls.Src)
	assert.Equal(t, f.el, calls.Attached)
	assert.Empty(t, f.el.Src(), "the engine owns the element, no native source")
}

func TestLoadSource_EngineConfigIsFixed(t *testing.T) {
	cfg := config.Defaults()
	cfg.LowLatencyMode = true
	f := newFixtureWithConfig(t, engineEnv(), cfg)

	require.NoError(t, f.p.LoadSource(t.Context(), testSrc))

	got := f.fake.Cfg
	assert.Equal(t, -1, got.StartLevel)
	assert.True(t, got.LowLatencyMode)
	assert.Equal(t, 1, got.ManifestLoadMaxRetry)
	assert.Equal(t, 1, got.LevelLoadMaxRetry)
	assert.Equal(t, 1, got.FragLoadMaxRetry)
	assert.Equal(t, 30*time.Second, got.MaxBufferLength)
}

func TestLoadSource_NativeBackend(t *testing.T) {
	f := newFixture(t, nativeEnv())

	require.NoError(t, f.p.LoadSource(t.Context(), testSrc))

	assert.True(t, f.p.IsNativeHLS())
	levels := f.p.GetLevels()
	assert.NotNil(t, levels)
	assert.Empty(t, levels)
	assert.Equal(t, -1, f.p.GetCurrentLevel())
	assert.Nil(t, f.p.GetEngineInstance())
	assert.Equal(t, testSrc, f.el.Src())
	assert.Empty(t, f.fake.Calls().Src)
	assert.Equal(t, []host.MediaLoaded{{Src: testSrc, Type: media.MIMEXMPEGURL}}, f.ev.loaded)
	assert.Equal(t, 60.0, f.state().Duration)
}

func TestLoadSource_PrefersNativeOnOutputPickerPlatforms(t *testing.T) {
	f := newFixture(t, bothEnv(safariUA))
	require.NoError(t, f.p.LoadSource(t.Context(), testSrc))
	assert.True(t, f.p.IsNativeHLS())

	cfg := config.Defaults()
	cfg.PreferNative = false
	g := newFixtureWithConfig(t, bothEnv(safariUA), cfg)
	require.NoError(t, g.p.LoadSource(t.Context(), testSrc))
	assert.False(t, g.p.IsNativeHLS())

	chrome := newFixture(t, bothEnv(chromeUA))
	require.NoError(t, chrome.p.LoadSource(t.Context(), testSrc))
	assert.False(t, chrome.p.IsNativeHLS())
}

func TestLoadSource_NotInitialized(t *testing.T) {
	p := New(config.Defaults(), nil, WithLogger(zerolog.Nop()))
	err := p.LoadSource(t.Context(), testSrc)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, PhaseIdle, p.Phase())
}

func TestLoadSource_NotSupported(t *testing.T) {
	f := newFixture(t, nil)

	err := f.p.LoadSource(t.Context(), testSrc)
	require.ErrorIs(t, err, ErrNotSupported)
	assert.Contains(t, err.Error(), "not supported in this browser")

	st := f.state()
	assert.Equal(t, host.StateError, st.Playback)
	assert.False(t, st.Buffering)
	assert.Equal(t, PhaseFailed, f.p.Phase())
}

func TestLoadSource_EngineLoadFailure(t *testing.T) {
	f := newFixture(t, engineEnv())
	f.p.loader = engine.NewLoader(func(context.Context) (engine.Constructor, error) {
		return nil, errors.New("bundle unavailable")
	})

	err := f.p.LoadSource(t.Context(), testSrc)
	var le *engine.LoadError
	require.ErrorAs(t, err, &le)

	errs := f.ev.errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "ENGINE_LOAD_FAILED", errs[0].Code)
	assert.True(t, errs[0].Fatal)
	assert.Equal(t, host.StateError, f.state().Playback)
}

func TestLoadSource_AppliesPendingMuteBeforeReady(t *testing.T) {
	f := newFixture(t, engineEnv())
	f.h.State().Set(func(st *host.State) {
		st.Muted = true
		st.Volume = 0.3
	})

	require.NoError(t, f.p.LoadSource(t.Context(), testSrc))

	assert.True(t, f.el.Muted())
	assert.Equal(t, 0.3, f.el.Volume())
}

func TestLoadSource_SupersededByNewerLoad(t *testing.T) {
	f := newFixture(t, engineEnv())
	f.fake.Manifest = nil

	first := make(chan error, 1)
	go func() { first <- f.p.LoadSource(context.Background(), "https://x/a.m3u8") }()
	require.Eventually(t, func() bool { return f.fake.Calls().Src == "https://x/a.m3u8" }, time.Second, time.Millisecond)

	f.fake.Manifest = testLevels
	require.NoError(t, f.p.LoadSource(t.Context(), "https://x/b.m3u8"))

	select {
	case err := <-first:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("first load did not return")
	}
	assert.Equal(t, "https://x/b.m3u8", f.state().Source)
	assert.Equal(t, PhaseReady, f.p.Phase())
}

func TestLoadSource_ContextCancelled(t *testing.T) {
	f := newFixture(t, engineEnv())
	f.fake.Manifest = nil

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := f.p.LoadSource(ctx, testSrc)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, host.StateIdle, f.state().Playback)
	assert.Equal(t, PhaseIdle, f.p.Phase())
	assert.True(t, f.fake.Calls().Destroyed)
}

func TestLoadSource_MetricsAndSpan(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	f := newFixture(t, engineEnv(), WithTracer(tp.Tracer("test")))
	before := testutil.ToFloat64(metrics.SourceLoadTotal.WithLabelValues("engine", "success"))

	require.NoError(t, f.p.LoadSource(t.Context(), testSrc))

	assert.Equal(t, before+1, testutil.ToFloat64(metrics.SourceLoadTotal.WithLabelValues("engine", "success")))
	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "player.load_source", spans[0].Name())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, testSrc, attrs[telemetry.PlaybackSourceKey].AsString())
	assert.Equal(t, "engine", attrs[telemetry.PlaybackBackendKey].AsString())
	assert.Equal(t, int64(3), attrs[telemetry.PlaybackLevelsKey].AsInt64())
}

func TestCanPlay(t *testing.T) {
	f := newFixture(t, engineEnv())
	tests := []struct {
		src  string
		want bool
	}{
		{"https://x/live.m3u8", true},
		{"https://x/LIVE.M3U8", true},
		{"https://x/live.m3u8?token=abc", true},
		{"https://x/live.m3u8#t=10", true},
		{"https://x/playlist?type=application/x-mpegURL", true},
		{"https://x/movie.mp4", false},
		{"https://x/live.m3u8.mp4", false},
		{"https://x/m3u8/video", false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			assert.Equal(t, tt.want, f.p.CanPlay(tt.src))
		})
	}

	unsupported := newFixture(t, nil)
	assert.False(t, unsupported.p.CanPlay("https://x/live.m3u8"))
}

func TestHostPlaybackLookup(t *testing.T) {
	f := newFixture(t, engineEnv())

	pp, err := f.h.PlaybackFor(testSrc)
	require.NoError(t, err)
	assert.Equal(t, Name, pp.Name())

	_, err = f.h.PlaybackFor("https://x/movie.mp4")
	assert.ErrorIs(t, err, host.ErrNoPlayback)
}

func TestDestroy(t *testing.T) {
	f := newFixture(t, engineEnv())
	require.NoError(t, f.p.LoadSource(t.Context(), testSrc))

	require.NoError(t, f.p.Destroy())
	require.NoError(t, f.p.Destroy())

	assert.True(t, f.el.Detached())
	assert.True(t, f.fake.Calls().Destroyed)
	assert.Zero(t, f.fake.Events().Len())
	assert.Zero(t, f.el.Events().Len())
	assert.Zero(t, f.h.Bus().Subscribers(host.CmdPlay.Name()))
	assert.ErrorIs(t, f.p.LoadSource(t.Context(), testSrc), ErrDestroyed)
	assert.ErrorIs(t, f.p.SwitchToNative(t.Context()), ErrDestroyed)
}

func TestCleanup_ReusesElementAcrossLoads(t *testing.T) {
	f := newFixture(t, engineEnv())
	require.NoError(t, f.p.LoadSource(t.Context(), "https://x/a.m3u8"))
	subs := f.el.Events().Len()

	require.NoError(t, f.p.LoadSource(t.Context(), "https://x/b.m3u8"))

	assert.False(t, f.el.Detached())
	assert.Equal(t, subs, f.el.Events().Len(), "old DOM subscriptions must be released")
	assert.Len(t, f.ev.loaded, 2)
}
