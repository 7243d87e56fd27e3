// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playlist

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/log"
)

const acceptPlaylist = "application/vnd.apple.mpegurl, application/x-mpegurl, */*"

// StatusError is a non-200 HTTP response.
type StatusError struct {
	Code int
	Text string
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: HTTP %d %s", e.URL, e.Code, e.Text)
}

// retryable reports whether a later attempt could succeed.
func (e *StatusError) retryable() bool {
	switch {
	case e.Code == http.StatusRequestTimeout, e.Code == http.StatusTooManyRequests:
		return true
	case e.Code >= 400 && e.Code < 500:
		return false
	default:
		return true
	}
}

func responseOf(err error) *engine.Response {
	var se *StatusError
	if errors.As(err, &se) {
		return &engine.Response{Code: se.Code, Text: se.Text}
	}
	return nil
}

func (e *Engine) fetch(ctx context.Context, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", accept)
	if e.userAgent != "" {
		req.Header.Set("User-Agent", e.userAgent)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Code: resp.StatusCode, Text: http.StatusText(resp.StatusCode), URL: url}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return body, nil
}

// fetchWithRetry makes up to retries+1 attempts with a linearly growing delay.
// Client errors other than 408 and 429 are not retried.
func (e *Engine) fetchWithRetry(ctx context.Context, url, accept string, retries int) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		body, err := e.fetch(ctx, url, accept)
		if err == nil {
			return body, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var se *StatusError
		if attempt >= retries || (errors.As(err, &se) && !se.retryable()) {
			return nil, err
		}

		delay := e.cfg.RetryDelay * time.Duration(attempt+1)
		e.logger.Debug().
			Err(err).
			Str(log.FieldEvent, "engine.fetch_retry").
			Str("url", url).
			Int(log.FieldAttempt, attempt+1).
			Int64(log.FieldDelayMS, delay.Milliseconds()).
			Msg("request failed, retrying")
		if !sleep(ctx, delay) {
			return nil, ctx.Err()
		}
	}
}

// sleep waits for d or until ctx is done and reports whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
