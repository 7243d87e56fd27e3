// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/hlsplay/internal/capability"
	"github.com/ManuGH/hlsplay/internal/config"
	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/engine/enginetest"
	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/host"
	"github.com/ManuGH/hlsplay/internal/media"
	"github.com/ManuGH/hlsplay/internal/recovery"
)

const testSrc = "https://x/live.m3u8"

var testLevels = []engine.Level{
	{Width: 640, Height: 360, Bitrate: 800_000, URL: "https://x/360/index.m3u8"},
	{Width: 1280, Height: 720, Bitrate: 2_500_000, URL: "https://x/720/index.m3u8"},
	{Width: 1920, Height: 1080, Bitrate: 5_000_000, URL: "https://x/1080/index.m3u8"},
}

func engineEnv() capability.Static {
	return capability.Static{MediaSource: true}
}

func nativeEnv() capability.Static {
	return capability.Static{CanPlay: map[string]string{media.MIMEAppleMPEGURL: "maybe"}}
}

func bothEnv(agent string) capability.Static {
	return capability.Static{
		CanPlay:     map[string]string{media.MIMEAppleMPEGURL: "maybe"},
		MediaSource: true,
		Agent:       agent,
	}
}

// hostEvents records what the plugin publishes on the host bus.
type hostEvents struct {
	mu      sync.Mutex
	loaded  []host.MediaLoaded
	errs    []host.ErrorEvent
	network []host.ErrorNotice
	media   []host.ErrorNotice
	changes []host.QualityChange
	levels  []host.QualityLevels
}

func recordHost(t *testing.T, bus *events.Bus) *hostEvents {
	r := &hostEvents{}
	var td events.Teardown
	td.Add(
		events.Subscribe(bus, host.MediaLoadedEvent, func(e host.MediaLoaded) {
			r.mu.Lock()
			r.loaded = append(r.loaded, e)
			r.mu.Unlock()
		}),
		events.Subscribe(bus, host.ErrorTopic, func(e host.ErrorEvent) {
			r.mu.Lock()
			r.errs = append(r.errs, e)
			r.mu.Unlock()
		}),
		events.Subscribe(bus, host.NetworkErrorEvent, func(e host.ErrorNotice) {
			r.mu.Lock()
			r.network = append(r.network, e)
			r.mu.Unlock()
		}),
		events.Subscribe(bus, host.MediaErrorNotice, func(e host.ErrorNotice) {
			r.mu.Lock()
			r.media = append(r.media, e)
			r.mu.Unlock()
		}),
		events.Subscribe(bus, host.QualityChangeEvent, func(e host.QualityChange) {
			r.mu.Lock()
			r.changes = append(r.changes, e)
			r.mu.Unlock()
		}),
		events.Subscribe(bus, host.QualityLevelsEvent, func(e host.QualityLevels) {
			r.mu.Lock()
			r.levels = append(r.levels, e)
			r.mu.Unlock()
		}),
	)
	t.Cleanup(td.Run)
	return r
}

func (r *hostEvents) errors() []host.ErrorEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]host.ErrorEvent(nil), r.errs...)
}

func (r *hostEvents) counts() (network, media int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.network), len(r.media)
}

type fixture struct {
	h     *host.Memory
	el    *media.Headless
	fake  *enginetest.Fake
	clock *recovery.ManualClock
	p     *Plugin
	ev    *hostEvents
}

func newFixture(t *testing.T, env capability.Environment, opts ...Option) *fixture {
	return newFixtureWithConfig(t, env, config.Defaults(), opts...)
}

func newFixtureWithConfig(t *testing.T, env capability.Environment, cfg config.Player, opts ...Option) *fixture {
	t.Helper()
	f := &fixture{
		el:    media.NewHeadless(media.HeadlessOptions{AutoMetadata: true, Duration: 60}),
		fake:  enginetest.New(engine.Config{}),
		clock: recovery.NewManualClock(time.Unix(1_700_000_000, 0)),
	}
	f.fake.Manifest = testLevels

	loader := engine.NewLoader(engine.Static(f.fake.Constructor()))
	base := []Option{WithClock(f.clock), WithEnvironment(env), WithLogger(zerolog.Nop())}
	f.p = New(cfg, loader, append(base, opts...)...)

	f.h = host.NewMemory(func() (media.Element, error) { return f.el, nil })
	f.ev = recordHost(t, f.h.Bus())
	require.NoError(t, f.h.Register(f.p))
	t.Cleanup(func() { _ = f.h.Close() })
	return f
}

func (f *fixture) state() host.State {
	return f.h.State().Get()
}
