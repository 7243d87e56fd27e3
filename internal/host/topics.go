// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package host

import (
	"time"

	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/media"
)

// Command payloads.
type (
	SeekCommand struct {
		Time float64 `json:"time"`
	}
	MuteCommand struct {
		Muted bool `json:"muted"`
	}
	QualitySelect struct {
		// Quality is "auto", a level index, or a level label.
		Quality string `json:"quality"`
		Auto    bool   `json:"auto,omitempty"`
	}
)

// Event payloads.
type (
	MediaLoaded struct {
		Src  string `json:"src"`
		Type string `json:"type"`
	}
	QualityLevels struct {
		Levels []Quality `json:"levels"`
	}
	QualityChange struct {
		Quality string `json:"quality"`
		Auto    bool   `json:"auto"`
	}
	ErrorEvent struct {
		Code      string    `json:"code"`
		Message   string    `json:"message"`
		Fatal     bool      `json:"fatal"`
		Timestamp time.Time `json:"timestamp"`
	}
	ErrorNotice struct {
		Error error `json:"-"`
	}
	TimeUpdate struct {
		CurrentTime float64 `json:"currentTime"`
	}
	ProgressUpdate struct {
		Buffered []media.TimeRange `json:"buffered"`
	}
	Seeked struct {
		Time float64 `json:"time"`
	}
	VolumeChange struct {
		Volume float64 `json:"volume"`
		Muted  bool    `json:"muted"`
	}
	RateChange struct {
		Rate float64 `json:"rate"`
	}
	MediaError struct {
		Error media.ErrorInfo `json:"error"`
	}
	Empty struct{}
)

// Commands emitted by the host for the playback plugin.
var (
	CmdPlay          = events.NewTopic[Empty]("playback:play")
	CmdPause         = events.NewTopic[Empty]("playback:pause")
	CmdSeek          = events.NewTopic[SeekCommand]("playback:seeking")
	CmdMute          = events.NewTopic[MuteCommand]("volume:mute")
	CmdQualitySelect = events.NewTopic[QualitySelect]("quality:select")
)

// Events produced by the playback plugin. VolumeChanged and RateChanged share
// their names with the commands that request the change; handlers treat an
// unchanged value as a no-op.
var (
	MediaLoadedEvent   = events.NewTopic[MediaLoaded]("media:loaded")
	QualityLevelsEvent = events.NewTopic[QualityLevels]("quality:levels")
	QualityChangeEvent = events.NewTopic[QualityChange]("quality:change")
	ErrorTopic         = events.NewTopic[ErrorEvent]("error")
	NetworkErrorEvent  = events.NewTopic[ErrorNotice]("error:network")
	MediaErrorNotice   = events.NewTopic[ErrorNotice]("error:media")
	EndedEvent         = events.NewTopic[Empty]("playback:ended")
	TimeUpdateEvent    = events.NewTopic[TimeUpdate]("playback:timeupdate")
	WaitingEvent       = events.NewTopic[Empty]("media:waiting")
	CanPlayEvent       = events.NewTopic[Empty]("media:canplay")
	ProgressEvent      = events.NewTopic[ProgressUpdate]("media:progress")
	SeekedEvent        = events.NewTopic[Seeked]("playback:seeked")
	VolumeChanged      = events.NewTopic[VolumeChange]("volume:change")
	RateChanged        = events.NewTopic[RateChange]("playback:ratechange")
	MediaElementError  = events.NewTopic[MediaError]("media:error")
)
