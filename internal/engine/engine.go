// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package engine defines the contract of the multiplexing/ABR engine the
// player drives, and the loader that brings an implementation in on demand.
package engine

import (
	"fmt"
	"time"

	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/media"
)

// Level is one rendition announced by the manifest.
type Level struct {
	Width   int    `json:"width"`
	Height  int    `json:"height"`
	Bitrate int    `json:"bitrate"`
	Name    string `json:"name,omitempty"`
	Codecs  string `json:"codecs,omitempty"`
	URL     string `json:"url"`
}

// ErrorType classifies engine faults.
type ErrorType string

const (
	ErrorNetwork ErrorType = "networkError"
	ErrorMedia   ErrorType = "mediaError"
	ErrorMux     ErrorType = "muxError"
	ErrorOther   ErrorType = "otherError"
)

// Error details reported by engines.
const (
	DetailManifestLoadError    = "manifestLoadError"
	DetailManifestParsingError = "manifestParsingError"
	DetailLevelLoadError       = "levelLoadError"
	DetailFragLoadError        = "fragLoadError"
	DetailBufferAppendError    = "bufferAppendError"
	DetailInternalException    = "internalException"
)

// Response is the HTTP status of a failed request, if any.
type Response struct {
	Code int    `json:"code"`
	Text string `json:"text"`
}

// ErrorData is the payload of the Error event.
type ErrorData struct {
	Type     ErrorType
	Details  string
	Fatal    bool
	URL      string
	Reason   string
	Response *Response
	Err      error
}

func (e ErrorData) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Details)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e ErrorData) Unwrap() error { return e.Err }

// ManifestParsedData lists the renditions of a freshly parsed manifest.
type ManifestParsedData struct {
	Levels []Level
}

// LevelSwitchedData reports the rendition now being buffered.
type LevelSwitchedData struct {
	Level int
}

// LevelLoadedData reports a loaded media playlist.
type LevelLoadedData struct {
	Level          int
	Live           bool
	TargetDuration float64
}

// FragData identifies a media segment.
type FragData struct {
	Level    int
	SN       uint64
	URL      string
	Duration float64
}

// Engine events.
var (
	ManifestParsed = events.NewTopic[ManifestParsedData]("hlsManifestParsed")
	LevelSwitched  = events.NewTopic[LevelSwitchedData]("hlsLevelSwitched")
	LevelLoaded    = events.NewTopic[LevelLoadedData]("hlsLevelLoaded")
	FragLoading    = events.NewTopic[FragData]("hlsFragLoading")
	FragBuffered   = events.NewTopic[FragData]("hlsFragBuffered")
	Error          = events.NewTopic[ErrorData]("hlsError")
)

// Config is the construction-time configuration of an engine instance.
type Config struct {
	Debug              bool
	AutoStartLoad      bool
	StartPosition      float64
	StartLevel         int // -1 lets the ABR controller pick
	LowLatencyMode     bool
	MaxBufferLength    time.Duration
	MaxMaxBufferLength time.Duration
	BackBufferLength   time.Duration
	EnableWorker       bool

	ManifestLoadMaxRetry int
	LevelLoadMaxRetry    int
	FragLoadMaxRetry     int
	RetryDelay           time.Duration
	RequestTimeout       time.Duration

	ABRSafetyFactor float64
}

// Instance is one engine bound to at most one media element.
type Instance interface {
	Events() *events.Bus

	LoadSource(url string)
	AttachMedia(el media.Element)
	DetachMedia()
	StartLoad(startPosition float64)
	StopLoad()
	RecoverMediaError()
	Destroy()

	Levels() []Level
	CurrentLevel() int
	NextLevel() int
	// SetNextLevel queues a switch for the next fragment boundary; -1 returns
	// level choice to the bandwidth estimator.
	SetNextLevel(index int)
	AutoLevelEnabled() bool

	// Live timing in seconds; zero when unknown.
	Latency() float64
	TargetLatency() float64
	Drift() float64
}

// Constructor builds engine instances once the engine is loaded.
type Constructor func(cfg Config) (Instance, error)
