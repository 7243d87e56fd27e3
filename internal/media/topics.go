// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package media

import "github.com/ManuGH/hlsplay/internal/events"

// Signal is the payload of events that carry no data; listeners read the
// element's properties instead.
type Signal struct{}

// PresentationMode is the payload of the vendor-prefixed presentation mode event.
type PresentationMode struct {
	Mode string // "inline", "picture-in-picture", "fullscreen"
}

// Presentation modes reported by the vendor-prefixed event.
const (
	ModeInline           = "inline"
	ModePictureInPicture = "picture-in-picture"
	ModeFullscreen       = "fullscreen"
)

// Native media element events.
var (
	Play           = events.NewTopic[Signal]("play")
	Playing        = events.NewTopic[Signal]("playing")
	Pause          = events.NewTopic[Signal]("pause")
	Ended          = events.NewTopic[Signal]("ended")
	TimeUpdate     = events.NewTopic[Signal]("timeupdate")
	DurationChange = events.NewTopic[Signal]("durationchange")
	Waiting        = events.NewTopic[Signal]("waiting")
	CanPlay        = events.NewTopic[Signal]("canplay")
	Progress       = events.NewTopic[Signal]("progress")
	Seeking        = events.NewTopic[Signal]("seeking")
	Seeked         = events.NewTopic[Signal]("seeked")
	VolumeChange   = events.NewTopic[Signal]("volumechange")
	RateChange     = events.NewTopic[Signal]("ratechange")
	LoadedMetadata = events.NewTopic[Signal]("loadedmetadata")
	Error          = events.NewTopic[ErrorInfo]("error")

	EnterPictureInPicture   = events.NewTopic[Signal]("enterpictureinpicture")
	LeavePictureInPicture   = events.NewTopic[Signal]("leavepictureinpicture")
	PresentationModeChanged = events.NewTopic[PresentationMode]("webkitpresentationmodechanged")
)
