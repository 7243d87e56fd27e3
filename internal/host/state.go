// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package host

import (
	"sync"

	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/media"
)

// PlaybackState is the coarse playback phase shown to the UI.
type PlaybackState string

const (
	StateIdle    PlaybackState = "idle"
	StateLoading PlaybackState = "loading"
	StateReady   PlaybackState = "ready"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
	StateEnded   PlaybackState = "ended"
	StateError   PlaybackState = "error"
)

// Quality is the host-facing shape of a rendition.
type Quality struct {
	ID      string `json:"id"`
	Index   int    `json:"index"`
	Label   string `json:"label"`
	Width   int    `json:"width,omitempty"`
	Height  int    `json:"height,omitempty"`
	Bitrate int    `json:"bitrate,omitempty"`
}

// State is the cross-plugin playback state.
type State struct {
	Playback  PlaybackState `json:"playback"`
	Buffering bool          `json:"buffering"`
	Seeking   bool          `json:"seeking"`

	Source     string `json:"source,omitempty"`
	SourceType string `json:"sourceType,omitempty"`

	CurrentTime float64           `json:"currentTime"`
	Duration    float64           `json:"duration"`
	Buffered    []media.TimeRange `json:"buffered,omitempty"`

	Volume       float64 `json:"volume"`
	Muted        bool    `json:"muted"`
	PlaybackRate float64 `json:"playbackRate"`

	Qualities      []Quality `json:"qualities,omitempty"`
	CurrentQuality string    `json:"currentQuality,omitempty"`
	AutoQuality    bool      `json:"autoQuality"`

	Live             bool        `json:"live"`
	PictureInPicture bool        `json:"pictureInPicture"`
	Error            *ErrorEvent `json:"error,omitempty"`
}

// DefaultState is the state of a host before any plugin runs.
func DefaultState() State {
	return State{
		Playback:     StateIdle,
		Volume:       1,
		PlaybackRate: 1,
		AutoQuality:  true,
	}
}

// Store is the single source of truth for State. Mutations go through Set.
type Store interface {
	Get() State
	Set(update func(*State))
}

// MemoryStore is a Store that notifies watchers after every Set.
type MemoryStore struct {
	mu       sync.Mutex
	state    State
	watchers map[uint64]func(State)
	nextID   uint64
}

// NewMemoryStore returns a store holding DefaultState.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: DefaultState(), watchers: make(map[uint64]func(State))}
}

func (s *MemoryStore) Get() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneState(s.state)
}

func (s *MemoryStore) Set(update func(*State)) {
	s.mu.Lock()
	next := cloneState(s.state)
	update(&next)
	s.state = next
	ws := make([]func(State), 0, len(s.watchers))
	for _, w := range s.watchers {
		ws = append(ws, w)
	}
	s.mu.Unlock()

	for _, w := range ws {
		w(cloneState(next))
	}
}

// Watch calls fn with the new state after every Set.
func (s *MemoryStore) Watch(fn func(State)) events.Unsubscribe {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.watchers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.watchers, id)
		s.mu.Unlock()
	}
}

func cloneState(st State) State {
	st.Buffered = append([]media.TimeRange(nil), st.Buffered...)
	st.Qualities = append([]Quality(nil), st.Qualities...)
	if st.Error != nil {
		e := *st.Error
		st.Error = &e
	}
	return st
}
