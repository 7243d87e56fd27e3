// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package recovery

import (
	"fmt"
	"strings"

	"github.com/ManuGH/hlsplay/internal/engine"
)

// Category classifies a fault for the retry policy.
type Category string

const (
	CategoryNetwork Category = "network"
	CategoryMedia   Category = "media"
	CategoryMux     Category = "mux"
	CategoryOther   Category = "other"
)

// Response carries the HTTP status of a failed request.
type Response struct {
	Code int
	Text string
}

// Record is one classified fault.
type Record struct {
	Type     Category
	Details  string
	Fatal    bool
	URL      string
	Reason   string
	Response *Response
}

// FromEngine classifies an engine error payload.
func FromEngine(e engine.ErrorData) Record {
	r := Record{
		Type:    categoryOf(e.Type),
		Details: e.Details,
		Fatal:   e.Fatal,
		URL:     e.URL,
		Reason:  e.Reason,
	}
	if r.Reason == "" && e.Err != nil {
		r.Reason = e.Err.Error()
	}
	if e.Response != nil {
		r.Response = &Response{Code: e.Response.Code, Text: e.Response.Text}
	}
	return r
}

func categoryOf(t engine.ErrorType) Category {
	switch t {
	case engine.ErrorNetwork:
		return CategoryNetwork
	case engine.ErrorMedia:
		return CategoryMedia
	case engine.ErrorMux:
		return CategoryMux
	default:
		return CategoryOther
	}
}

func (r Record) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s error", r.Type)
	if r.Details != "" {
		b.WriteString(": " + r.Details)
	}
	if r.Response != nil {
		fmt.Fprintf(&b, " (HTTP %d)", r.Response.Code)
	}
	if r.Reason != "" {
		b.WriteString(": " + r.Reason)
	}
	return b.String()
}

// Escalation reasons.
const (
	ReasonRetriesExhausted = "retries_exhausted"
	ReasonUnrecoverable    = "unrecoverable"
	ReasonErrorStorm       = "error_storm"
)

// FatalError is the single host-visible failure of a session.
type FatalError struct {
	Category Category
	Reason   string
	Message  string
	Record   Record
}

func (e *FatalError) Error() string { return e.Message }

// Code is the stable error code published to the host.
func (e *FatalError) Code() string {
	if e.Reason == ReasonErrorStorm {
		return "ERROR_STORM"
	}
	return strings.ToUpper(string(e.Category)) + "_ERROR"
}

func fatalMessage(rec Record, reason string, stormCount int, window string) string {
	label := map[Category]string{
		CategoryNetwork: "Network error",
		CategoryMedia:   "Media error",
		CategoryMux:     "Mux error",
		CategoryOther:   "Playback error",
	}[rec.Type]
	if label == "" {
		label = "Playback error"
	}
	switch reason {
	case ReasonRetriesExhausted:
		return label + " (max retries exceeded)"
	case ReasonErrorStorm:
		return fmt.Sprintf("Too many errors (%d within %s)", stormCount, window)
	default:
		if rec.Details != "" {
			return label + ": " + rec.Details
		}
		return label
	}
}
