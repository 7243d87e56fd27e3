// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package host

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/media"
)

// ErrNoPlayback is returned when no registered playback plugin accepts a source.
var ErrNoPlayback = errors.New("host: no playback plugin can play this source")

// MountFunc creates a media element for a plugin.
type MountFunc func() (media.Element, error)

// Memory is an in-process host container.
type Memory struct {
	bus   *events.Bus
	store *MemoryStore
	mount MountFunc

	mu      sync.Mutex
	plugins []Plugin
}

var _ API = (*Memory)(nil)

// NewMemory creates a host whose MountMedia delegates to mount.
func NewMemory(mount MountFunc) *Memory {
	return &Memory{
		bus:   events.NewBus(),
		store: NewMemoryStore(),
		mount: mount,
	}
}

func (m *Memory) Bus() *events.Bus    { return m.bus }
func (m *Memory) Store() Store        { return m.store }
func (m *Memory) State() *MemoryStore { return m.store }

func (m *Memory) MountMedia() (media.Element, error) {
	if m.mount == nil {
		return nil, errors.New("host: no media container")
	}
	return m.mount()
}

// Register initialises p and keeps it for lookup and teardown.
func (m *Memory) Register(p Plugin) error {
	if err := p.Init(m); err != nil {
		return fmt.Errorf("init plugin %s: %w", p.Name(), err)
	}
	m.mu.Lock()
	m.plugins = append(m.plugins, p)
	m.mu.Unlock()
	return nil
}

// PlaybackFor returns the first playback plugin that can play src.
func (m *Memory) PlaybackFor(src string) (PlaybackPlugin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.plugins {
		if p.Kind() != KindPlayback {
			continue
		}
		if pp, ok := p.(PlaybackPlugin); ok && pp.CanPlay(src) {
			return pp, nil
		}
	}
	return nil, ErrNoPlayback
}

// Close destroys every plugin in reverse registration order.
func (m *Memory) Close() error {
	m.mu.Lock()
	plugins := m.plugins
	m.plugins = nil
	m.mu.Unlock()

	var errs []error
	for i := len(plugins) - 1; i >= 0; i-- {
		if err := plugins[i].Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy plugin %s: %w", plugins[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}
