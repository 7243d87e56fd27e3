// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/host"
	"github.com/ManuGH/hlsplay/internal/media"
	"github.com/ManuGH/hlsplay/internal/recovery"
)

// session is one loadSource run. It ends at cleanup; every callback bound to
// it checks closed() before touching host state.
type session struct {
	id   string
	src  string
	kind Backend
	api  host.API
	el   media.Element

	coord *recovery.Coordinator

	// dom and engine hold the adapter subscriptions. engine is torn down on
	// its own when an error storm kills the engine instance.
	dom    events.Teardown
	engine events.Teardown

	ready     chan error
	done      chan struct{}
	settleMu  sync.Once
	closeOnce sync.Once
	settled   atomic.Bool
	failed    atomic.Bool
}

func newSession(api host.API, el media.Element, src string, kind Backend) *session {
	return &session{
		id:    uuid.NewString(),
		src:   src,
		kind:  kind,
		api:   api,
		el:    el,
		ready: make(chan error, 1),
		done:  make(chan struct{}),
	}
}

// settle resolves the pending load once. Later calls are ignored.
func (s *session) settle(err error) {
	s.settleMu.Do(func() {
		s.settled.Store(true)
		s.ready <- err
	})
}

func (s *session) close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *session) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *session) await(ctx context.Context) error {
	select {
	case err := <-s.ready:
		return err
	case <-s.done:
		return ErrSuperseded
	case <-ctx.Done():
		return ctx.Err()
	}
}
