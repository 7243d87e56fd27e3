// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/media"
)

// Backend names the playback path of a session.
type Backend string

const (
	BackendNone   Backend = ""
	BackendNative Backend = "native"
	BackendEngine Backend = "engine"
)

func (b Backend) String() string {
	if b == BackendNone {
		return "none"
	}
	return string(b)
}

// backend is the minimal contract the state machine and the switcher share.
// Transport controls (play, pause, seek) always go to the media element.
type backend interface {
	kind() Backend
	start(el media.Element, src string)
	destroy()
	// instance is nil for the native path.
	instance() engine.Instance
}

type nativeBackend struct {
	el media.Element
}

func (n *nativeBackend) kind() Backend { return BackendNative }

func (n *nativeBackend) start(el media.Element, src string) {
	n.el = el
	el.SetSrc(src)
	el.Load()
}

func (n *nativeBackend) destroy() {
	if n.el == nil {
		return
	}
	n.el.Pause()
	n.el.RemoveSrc()
	n.el.Load()
}

func (n *nativeBackend) instance() engine.Instance { return nil }

type engineBackend struct {
	inst engine.Instance
}

func (e *engineBackend) kind() Backend { return BackendEngine }

// start resets the element so no native source competes with the engine,
// then hands it to the engine and requests the manifest.
func (e *engineBackend) start(el media.Element, src string) {
	el.RemoveSrc()
	el.Load()
	e.inst.AttachMedia(el)
	e.inst.LoadSource(src)
}

func (e *engineBackend) destroy() {
	e.inst.StopLoad()
	e.inst.DetachMedia()
	e.inst.Destroy()
}

func (e *engineBackend) instance() engine.Instance { return e.inst }
