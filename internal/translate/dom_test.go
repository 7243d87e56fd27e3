// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package translate

import (
	"math"
	"testing"
	"time"

	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/host"
	"github.com/ManuGH/hlsplay/internal/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type domFixture struct {
	el     *media.Headless
	store  *host.MemoryStore
	bus    *events.Bus
	errs   []media.ErrorInfo
	detach events.Unsubscribe
}

func newDOMFixture(t *testing.T, duration float64) *domFixture {
	t.Helper()
	f := &domFixture{
		el:    media.NewHeadless(media.HeadlessOptions{AutoMetadata: true, Duration: duration}),
		store: host.NewMemoryStore(),
		bus:   events.NewBus(),
	}
	f.detach = WireDOM(f.el, DOMBindings{
		Store:   f.store,
		Bus:     f.bus,
		OnError: func(info media.ErrorInfo) { f.errs = append(f.errs, info) },
	})
	t.Cleanup(f.detach)
	f.el.SetSrc("https://cdn.example.com/live.m3u8")
	f.el.Load()
	return f
}

func TestWireDOM_MetadataAndPlayback(t *testing.T) {
	f := newDOMFixture(t, 30)
	assert.Equal(t, 30.0, f.store.Get().Duration)

	require.NoError(t, f.el.Play(t.Context()))
	assert.Equal(t, host.StatePlaying, f.store.Get().Playback)

	var times []float64
	events.Subscribe(f.bus, host.TimeUpdateEvent, func(u host.TimeUpdate) { times = append(times, u.CurrentTime) })
	f.el.Advance(2 * time.Second)
	assert.Equal(t, []float64{2}, times)
	assert.Equal(t, 2.0, f.store.Get().CurrentTime)

	f.el.Pause()
	assert.Equal(t, host.StatePaused, f.store.Get().Playback)
}

func TestWireDOM_EndedIsSticky(t *testing.T) {
	f := newDOMFixture(t, 3)
	ended := 0
	events.Subscribe(f.bus, host.EndedEvent, func(host.Empty) { ended++ })

	require.NoError(t, f.el.Play(t.Context()))
	f.el.Advance(5 * time.Second)

	assert.Equal(t, 1, ended)
	assert.Equal(t, host.StateEnded, f.store.Get().Playback)
}

func TestWireDOM_LiveDuration(t *testing.T) {
	f := newDOMFixture(t, 0)
	assert.True(t, math.IsInf(f.store.Get().Duration, 1))
}

func TestWireDOM_SeekVolumeRate(t *testing.T) {
	f := newDOMFixture(t, 60)
	var seeked []host.Seeked
	var volumes []host.VolumeChange
	var rates []host.RateChange
	events.Subscribe(f.bus, host.SeekedEvent, func(s host.Seeked) { seeked = append(seeked, s) })
	events.Subscribe(f.bus, host.VolumeChanged, func(v host.VolumeChange) { volumes = append(volumes, v) })
	events.Subscribe(f.bus, host.RateChanged, func(r host.RateChange) { rates = append(rates, r) })

	f.el.SetCurrentTime(12.5)
	f.el.SetVolume(0.4)
	f.el.SetMuted(true)
	f.el.SetPlaybackRate(1.5)

	assert.Equal(t, []host.Seeked{{Time: 12.5}}, seeked)
	assert.Equal(t, []host.VolumeChange{{Volume: 0.4}, {Volume: 0.4, Muted: true}}, volumes)
	assert.Equal(t, []host.RateChange{{Rate: 1.5}}, rates)

	st := f.store.Get()
	assert.False(t, st.Seeking)
	assert.Equal(t, 12.5, st.CurrentTime)
	assert.Equal(t, 0.4, st.Volume)
	assert.True(t, st.Muted)
	assert.Equal(t, 1.5, st.PlaybackRate)
}

func TestWireDOM_WaitingAndProgress(t *testing.T) {
	el := media.NewHeadless(media.HeadlessOptions{Duration: 60})
	store := host.NewMemoryStore()
	bus := events.NewBus()
	detach := WireDOM(el, DOMBindings{Store: store, Bus: bus})
	defer detach()

	var progress []host.ProgressUpdate
	waiting, canplay := 0, 0
	events.Subscribe(bus, host.ProgressEvent, func(p host.ProgressUpdate) { progress = append(progress, p) })
	events.Subscribe(bus, host.WaitingEvent, func(host.Empty) { waiting++ })
	events.Subscribe(bus, host.CanPlayEvent, func(host.Empty) { canplay++ })

	require.NoError(t, el.AppendSegment(nil, 4))
	require.Len(t, progress, 1)
	assert.Equal(t, []media.TimeRange{{Start: 0, End: 4}}, progress[0].Buffered)

	require.NoError(t, el.Play(t.Context()))
	el.Advance(5 * time.Second)
	assert.Equal(t, 1, waiting)
	assert.True(t, store.Get().Buffering)

	require.NoError(t, el.AppendSegment(nil, 4))
	assert.False(t, store.Get().Buffering)
	assert.Equal(t, 2, canplay)
}

func TestWireDOM_MediaError(t *testing.T) {
	f := newDOMFixture(t, 30)
	var published []host.MediaError
	events.Subscribe(f.bus, host.MediaElementError, func(e host.MediaError) { published = append(published, e) })

	f.el.Fail(media.ErrCodeDecode, "corrupt frame")

	want := media.ErrorInfo{Code: media.ErrCodeDecode, Message: "corrupt frame"}
	assert.Equal(t, []host.MediaError{{Error: want}}, published)
	assert.Equal(t, []media.ErrorInfo{want}, f.errs)
}

func TestWireDOM_PictureInPictureResumes(t *testing.T) {
	f := newDOMFixture(t, 120)
	require.NoError(t, f.el.Play(t.Context()))

	f.el.SetPictureInPicture(true)
	assert.True(t, f.store.Get().PictureInPicture)

	f.el.Pause()
	f.el.SetPictureInPicture(false)

	assert.False(t, f.store.Get().PictureInPicture)
	assert.False(t, f.el.Paused())
	assert.Equal(t, host.StatePlaying, f.store.Get().Playback)
}

func TestWireDOM_PictureInPictureStaysPaused(t *testing.T) {
	f := newDOMFixture(t, 120)

	f.el.SetPictureInPicture(true)
	f.el.SetPictureInPicture(false)

	assert.True(t, f.el.Paused())
}

func TestWireDOM_DetachStopsDelivery(t *testing.T) {
	f := newDOMFixture(t, 30)
	require.Positive(t, f.el.Events().Len())

	f.detach()

	assert.Zero(t, f.el.Events().Len())
	f.el.SetVolume(0.1)
	assert.Equal(t, 1.0, f.store.Get().Volume)
}
