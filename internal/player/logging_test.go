// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"bufio"
	"bytes"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/log"
)

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// byEvent returns the first entry logged with the given event field.
func (b *lockedBuffer) byEvent(t *testing.T, event string) map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		if entry[log.FieldEvent] == event {
			return entry
		}
	}
	return nil
}

func TestLoadSource_LogsCarrySessionAndCorrelation(t *testing.T) {
	var out lockedBuffer
	f := newFixture(t, engineEnv(), WithLogger(zerolog.New(&out)))

	ctx := log.ContextWithCorrelationID(t.Context(), "run-1")
	require.NoError(t, f.p.LoadSource(ctx, testSrc))

	started := out.byEvent(t, "source.load_started")
	require.NotNil(t, started)
	assert.Equal(t, "run-1", started[log.FieldCorrelationID])
	sessionID, _ := started[log.FieldSessionID].(string)
	assert.NotEmpty(t, sessionID)
	assert.Equal(t, testSrc, started[log.FieldSource])

	loaded := out.byEvent(t, "source.loaded")
	require.NotNil(t, loaded)
	assert.Equal(t, sessionID, loaded[log.FieldSessionID])
}

func TestRecovery_LogsThroughPluginLogger(t *testing.T) {
	var out lockedBuffer
	f := newFixture(t, engineEnv(), WithLogger(zerolog.New(&out)))
	require.NoError(t, f.p.LoadSource(t.Context(), testSrc))

	f.fake.EmitError(engine.ErrorData{Type: engine.ErrorNetwork, Details: engine.DetailFragLoadError, Fatal: true})

	retry := out.byEvent(t, "recovery.retry_scheduled")
	require.NotNil(t, retry, "coordinator output must reach the configured logger")
	assert.NotEmpty(t, retry[log.FieldSessionID])
	assert.Equal(t, float64(1), retry[log.FieldAttempt])
}
