// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package enginetest provides a scriptable engine.Instance for tests.
package enginetest

import (
	"sync"

	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/media"
)

// Fake records every call and emits events only when told to, except that
// LoadSource announces Manifest when it is set.
type Fake struct {
	bus *events.Bus
	Cfg engine.Config

	// Manifest, when non-nil, is announced synchronously from LoadSource.
	Manifest []engine.Level
	// Live is reported through LevelLoaded after Manifest is announced.
	Live bool
	// LoadErr, when set, is emitted instead of Manifest.
	LoadErr *engine.ErrorData

	mu            sync.Mutex
	src           string
	attached      media.Element
	levels        []engine.Level
	current       int
	next          int
	destroyed     bool
	startLoads    int
	stopLoads     int
	recoverCalls  int
	latency       float64
	targetLatency float64
	drift         float64
}

var _ engine.Instance = (*Fake)(nil)

// New returns a fake with auto level selection.
func New(cfg engine.Config) *Fake {
	return &Fake{bus: events.NewBus(), Cfg: cfg, current: -1, next: -1}
}

// Constructor returns a constructor that hands out f on every call.
func (f *Fake) Constructor() engine.Constructor {
	return func(cfg engine.Config) (engine.Instance, error) {
		f.mu.Lock()
		f.Cfg = cfg
		f.mu.Unlock()
		return f, nil
	}
}

func (f *Fake) Events() *events.Bus { return f.bus }

func (f *Fake) LoadSource(url string) {
	f.mu.Lock()
	f.src = url
	manifest, live, loadErr := f.Manifest, f.Live, f.LoadErr
	f.mu.Unlock()

	if loadErr != nil {
		f.EmitError(*loadErr)
		return
	}
	if manifest != nil {
		f.EmitManifest(manifest)
		events.Publish(f.bus, engine.LevelLoaded, engine.LevelLoadedData{Level: 0, Live: live})
	}
}

func (f *Fake) AttachMedia(el media.Element) {
	f.mu.Lock()
	f.attached = el
	f.mu.Unlock()
}

func (f *Fake) DetachMedia() {
	f.mu.Lock()
	f.attached = nil
	f.mu.Unlock()
}

func (f *Fake) StartLoad(float64) {
	f.mu.Lock()
	f.startLoads++
	f.mu.Unlock()
}

func (f *Fake) StopLoad() {
	f.mu.Lock()
	f.stopLoads++
	f.mu.Unlock()
}

func (f *Fake) RecoverMediaError() {
	f.mu.Lock()
	f.recoverCalls++
	f.mu.Unlock()
}

func (f *Fake) Destroy() {
	f.mu.Lock()
	f.destroyed = true
	f.attached = nil
	f.mu.Unlock()
}

func (f *Fake) Levels() []engine.Level {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]engine.Level(nil), f.levels...)
}

func (f *Fake) CurrentLevel() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *Fake) NextLevel() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next
}

func (f *Fake) SetNextLevel(i int) {
	f.mu.Lock()
	f.next = i
	f.mu.Unlock()
}

func (f *Fake) AutoLevelEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.next == -1
}

func (f *Fake) Latency() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latency
}

func (f *Fake) TargetLatency() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.targetLatency
}

func (f *Fake) Drift() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drift
}

// SetLiveTiming sets the values reported by Latency, TargetLatency and Drift.
func (f *Fake) SetLiveTiming(latency, target, drift float64) {
	f.mu.Lock()
	f.latency, f.targetLatency, f.drift = latency, target, drift
	f.mu.Unlock()
}

// EmitManifest stores levels and publishes ManifestParsed.
func (f *Fake) EmitManifest(levels []engine.Level) {
	f.mu.Lock()
	f.levels = append([]engine.Level(nil), levels...)
	f.mu.Unlock()
	events.Publish(f.bus, engine.ManifestParsed, engine.ManifestParsedData{Levels: levels})
}

// EmitLevelSwitched makes level current and publishes LevelSwitched.
func (f *Fake) EmitLevelSwitched(level int) {
	f.mu.Lock()
	f.current = level
	f.mu.Unlock()
	events.Publish(f.bus, engine.LevelSwitched, engine.LevelSwitchedData{Level: level})
}

// EmitError publishes an engine fault.
func (f *Fake) EmitError(e engine.ErrorData) {
	events.Publish(f.bus, engine.Error, e)
}

// Calls is a snapshot of recorded calls.
type Calls struct {
	Src          string
	Attached     media.Element
	Destroyed    bool
	StartLoads   int
	StopLoads    int
	RecoverCalls int
}

// Calls returns what the fake has been asked to do so far.
func (f *Fake) Calls() Calls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Calls{
		Src:          f.src,
		Attached:     f.attached,
		Destroyed:    f.destroyed,
		StartLoads:   f.startLoads,
		StopLoads:    f.stopLoads,
		RecoverCalls: f.recoverCalls,
	}
}
