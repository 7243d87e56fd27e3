// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ManuGH/hlsplay/internal/log"
	"github.com/ManuGH/hlsplay/internal/metrics"
	"golang.org/x/sync/singleflight"
)

const loaderKey = "engine"

// ErrNotLoaded is returned by NewInstance before a successful Load.
var ErrNotLoaded = errors.New("engine: not loaded, call Load first")

// LoadFunc brings the engine in on demand and returns its constructor.
type LoadFunc func(ctx context.Context) (Constructor, error)

// LoadError describes a failed engine load.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("engine: failed to load streaming engine: %v", e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Loader loads the engine at most once per process lifetime. Concurrent Load
// calls share a single in-flight load; a failed load is forgotten so a later
// call retries.
type Loader struct {
	load  LoadFunc
	group singleflight.Group

	mu   sync.Mutex
	ctor Constructor
	gen  uint64
}

// NewLoader returns a loader around load.
func NewLoader(load LoadFunc) *Loader {
	return &Loader{load: load}
}

// Load returns the cached constructor or waits for the shared in-flight load.
// Cancelling ctx abandons the wait, not the shared load.
func (l *Loader) Load(ctx context.Context) (Constructor, error) {
	if c := l.cached(); c != nil {
		return c, nil
	}

	l.mu.Lock()
	gen := l.gen
	l.mu.Unlock()

	ch := l.group.DoChan(loaderKey, func() (any, error) {
		if c := l.cached(); c != nil {
			return c, nil
		}
		logger := log.WithComponent("engine")
		c, err := l.load(context.WithoutCancel(ctx))
		if err == nil && c == nil {
			err = errors.New("load returned no constructor")
		}
		if err != nil {
			metrics.IncEngineLoad(false)
			logger.Error().Err(err).Str(log.FieldEvent, "engine.load_failed").Msg("streaming engine load failed")
			return nil, &LoadError{Err: err}
		}
		metrics.IncEngineLoad(true)

		l.mu.Lock()
		if l.gen == gen {
			l.ctor = c
		}
		l.mu.Unlock()
		logger.Debug().Str(log.FieldEvent, "engine.loaded").Msg("streaming engine loaded")
		return c, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(Constructor), nil
	}
}

// Loaded reports whether a constructor is cached.
func (l *Loader) Loaded() bool {
	return l.cached() != nil
}

// NewInstance builds an engine instance; it requires a prior successful Load.
func (l *Loader) NewInstance(cfg Config) (Instance, error) {
	c := l.cached()
	if c == nil {
		return nil, ErrNotLoaded
	}
	return c(cfg)
}

// Reset drops the cached constructor and detaches any in-flight load from
// future callers. Intended for test isolation.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.ctor = nil
	l.gen++
	l.mu.Unlock()
	l.group.Forget(loaderKey)
}

func (l *Loader) cached() Constructor {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ctor
}

// Static returns a LoadFunc that yields c without any loading work.
func Static(c Constructor) LoadFunc {
	return func(context.Context) (Constructor, error) { return c, nil }
}
