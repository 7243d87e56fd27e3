// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package host is the narrow capability set a plugin container offers its
// plugins: an event bus, a reactive state store and a media mount point.
package host

import (
	"context"

	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/media"
)

// Kind tags what a plugin does for the host.
type Kind string

const (
	KindPlayback  Kind = "playback"
	KindUI        Kind = "ui"
	KindAnalytics Kind = "analytics"
)

// API is what a plugin receives at Init.
type API interface {
	Bus() *events.Bus
	Store() Store
	// MountMedia creates a media element inside the host's container.
	MountMedia() (media.Element, error)
}

// Plugin is the lifecycle contract shared by every plugin kind.
type Plugin interface {
	Name() string
	Kind() Kind
	Init(api API) error
	Destroy() error
}

// PlaybackPlugin is a Plugin of KindPlayback.
type PlaybackPlugin interface {
	Plugin
	CanPlay(src string) bool
	LoadSource(ctx context.Context, src string) error
}
