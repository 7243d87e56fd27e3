// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate accumulates field-level validation errors for player and
// CLI configuration.
package validate

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Error represents a validation error
type Error struct {
	Field   string // Field name that failed validation
	Value   any    // The invalid value
	Message string // Human-readable error message
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// Validator accumulates validation errors and can produce a ValidationError when invalid.
type Validator struct {
	errors []Error
}

// ValidationError bundles multiple validation errors into a single error value.
type ValidationError struct {
	errors []Error
}

// New creates a new validator
func New() *Validator {
	return &Validator{errors: make([]Error, 0)}
}

// AddError adds a validation error
func (v *Validator) AddError(field, message string, value any) {
	v.errors = append(v.errors, Error{Field: field, Value: value, Message: message})
}

// IsValid returns true if no errors have been accumulated
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns all accumulated validation errors
func (v *Validator) Errors() []Error {
	return v.errors
}

// Err converts the accumulated validation errors into an error value.
func (v *Validator) Err() error {
	if len(v.errors) == 0 {
		return nil
	}
	copied := make([]Error, len(v.errors))
	copy(copied, v.errors)
	return ValidationError{errors: copied}
}

// Errors returns the individual validation errors making up the validation failure.
func (e ValidationError) Errors() []Error {
	return e.errors
}

func (e ValidationError) Error() string {
	if len(e.errors) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.errors))
	for i, err := range e.errors {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// URL validates an absolute URL with one of the allowed schemes.
// A file URL needs no host.
func (v *Validator) URL(field, value string, allowedSchemes []string) {
	if value == "" {
		v.AddError(field, "URL cannot be empty", value)
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid URL: %v", err), value)
		return
	}
	if len(allowedSchemes) > 0 {
		ok := false
		for _, s := range allowedSchemes {
			if strings.EqualFold(u.Scheme, s) {
				ok = true
				break
			}
		}
		if !ok {
			v.AddError(field, fmt.Sprintf("scheme must be one of %v, got %q", allowedSchemes, u.Scheme), value)
			return
		}
	}
	if u.Host == "" && !strings.EqualFold(u.Scheme, "file") {
		v.AddError(field, "URL must have a host", value)
	}
}

// ListenAddr validates a host:port listen address. The host may be empty.
func (v *Validator) ListenAddr(field, value string) {
	_, port, err := net.SplitHostPort(value)
	if err != nil {
		v.AddError(field, fmt.Sprintf("invalid listen address: %v", err), value)
		return
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 0 || n > 65535 {
		v.AddError(field, "port must be between 0 and 65535", value)
	}
}

// RangeFloat validates that a float lies in [min, max].
func (v *Validator) RangeFloat(field string, value, min, max float64) {
	if value < min || value > max {
		v.AddError(field, fmt.Sprintf("must be between %g and %g", min, max), value)
	}
}

// NonNegative validates that an integer is >= 0.
func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.AddError(field, "must be non-negative", value)
	}
}

// Positive validates that an integer is > 0.
func (v *Validator) Positive(field string, value int) {
	if value <= 0 {
		v.AddError(field, "must be positive", value)
	}
}

// MinFloat validates that a float is >= min.
func (v *Validator) MinFloat(field string, value, min float64) {
	if value < min {
		v.AddError(field, fmt.Sprintf("must be at least %g", min), value)
	}
}

// MinDuration validates that a duration is >= min.
func (v *Validator) MinDuration(field string, value, min time.Duration) {
	if value < min {
		v.AddError(field, fmt.Sprintf("must be at least %s", min), value)
	}
}

// NotEmpty validates that a string is not empty.
func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "cannot be empty", value)
	}
}

// OneOf validates that a value is one of allowed.
func (v *Validator) OneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.AddError(field, fmt.Sprintf("must be one of %v", allowed), value)
}

// Custom records message when ok is false.
func (v *Validator) Custom(field string, ok bool, message string, value any) {
	if !ok {
		v.AddError(field, message, value)
	}
}
