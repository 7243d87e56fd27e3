// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func nopConstructor(Config) (Instance, error) { return nil, nil }

func TestLoader_DeduplicatesConcurrentLoads(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	l := NewLoader(func(ctx context.Context) (Constructor, error) {
		calls.Add(1)
		<-release
		return nopConstructor, nil
	})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Load(context.Background())
			errs <- err
		}()
	}

	// Give every caller a chance to join the in-flight load.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.True(t, l.Loaded())

	_, err := l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "cached constructor must not reload")
}

func TestLoader_FailureIsRetryable(t *testing.T) {
	boom := errors.New("chunk fetch failed")
	var calls atomic.Int32
	l := NewLoader(func(ctx context.Context) (Constructor, error) {
		if calls.Add(1) == 1 {
			return nil, boom
		}
		return nopConstructor, nil
	})

	_, err := l.Load(context.Background())
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "failed to load streaming engine")
	assert.False(t, l.Loaded())

	_, err = l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoader_NilConstructorIsFailure(t *testing.T) {
	l := NewLoader(func(context.Context) (Constructor, error) { return nil, nil })
	_, err := l.Load(context.Background())
	require.Error(t, err)
	assert.False(t, l.Loaded())
}

func TestLoader_NewInstanceRequiresLoad(t *testing.T) {
	l := NewLoader(Static(nopConstructor))

	_, err := l.NewInstance(Config{})
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = l.Load(context.Background())
	require.NoError(t, err)
	_, err = l.NewInstance(Config{})
	assert.NoError(t, err)
}

func TestLoader_Reset(t *testing.T) {
	var calls atomic.Int32
	l := NewLoader(func(context.Context) (Constructor, error) {
		calls.Add(1)
		return nopConstructor, nil
	})

	_, err := l.Load(context.Background())
	require.NoError(t, err)
	l.Reset()
	assert.False(t, l.Loaded())

	_, err = l.NewInstance(Config{})
	assert.ErrorIs(t, err, ErrNotLoaded)

	_, err = l.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLoader_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	l := NewLoader(func(ctx context.Context) (Constructor, error) {
		<-release
		return nopConstructor, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	_, err = l.Load(context.Background())
	require.NoError(t, err)
	assert.True(t, l.Loaded())
}
