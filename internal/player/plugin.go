// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package player is the HLS playback plugin. It picks a native or engine
// backend per source, translates backend events into host state and events,
// and hands faults to a recovery coordinator.
package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/hlsplay/internal/capability"
	"github.com/ManuGH/hlsplay/internal/config"
	"github.com/ManuGH/hlsplay/internal/core/urlutil"
	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/host"
	"github.com/ManuGH/hlsplay/internal/log"
	"github.com/ManuGH/hlsplay/internal/media"
	"github.com/ManuGH/hlsplay/internal/metrics"
	"github.com/ManuGH/hlsplay/internal/recovery"
	"github.com/ManuGH/hlsplay/internal/telemetry"
	"github.com/ManuGH/hlsplay/internal/translate"
)

// Name is the plugin name registered with the host.
const Name = "hls"

// Plugin plays HLS sources for a host. Create it with New and register it
// with the host, which calls Init.
type Plugin struct {
	cfg    config.Player
	loader *engine.Loader
	clock  recovery.Clock
	logger zerolog.Logger
	tracer trace.Tracer

	env         capability.Environment
	mediaSource bool
	userAgent   string

	autoQuality atomic.Bool
	pinned      atomic.Int32

	// loadMu serialises backend start-up against cleanup. Backend event
	// handlers never take it.
	loadMu sync.Mutex

	mu        sync.Mutex
	api       host.API
	el        media.Element
	detector  *capability.Detector
	commands  events.Teardown
	sess      *session
	backend   backend
	src       string
	phase     Phase
	destroyed bool
}

var _ host.PlaybackPlugin = (*Plugin)(nil)

// New creates a plugin. loader supplies the engine backend; a nil loader
// leaves only the native backend.
func New(cfg config.Player, loader *engine.Loader, opts ...Option) *Plugin {
	p := &Plugin{
		cfg:    cfg,
		loader: loader,
		clock:  recovery.RealClock(),
		logger: log.WithComponent("player"),
		tracer: telemetry.Tracer(telemetry.InstrumentationName),
		phase:  PhaseIdle,
	}
	for _, opt := range opts {
		opt(p)
	}
	if cfg.Debug {
		p.logger = p.logger.Level(zerolog.DebugLevel)
	}
	p.autoQuality.Store(true)
	p.pinned.Store(-1)
	return p
}

func (p *Plugin) Name() string    { return Name }
func (p *Plugin) Kind() host.Kind { return host.KindPlayback }

// Init mounts the media element and subscribes to host commands.
func (p *Plugin) Init(api host.API) error {
	if api == nil {
		return errors.New("player: nil host api")
	}
	el, err := api.MountMedia()
	if err != nil {
		return fmt.Errorf("mount media: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		el.Detach()
		return ErrDestroyed
	}
	if p.el != nil {
		p.el.Detach()
	}
	env := p.env
	if env == nil {
		env = capability.ElementEnvironment{Element: el, MediaSource: p.mediaSource, Agent: p.userAgent}
	}
	p.api = api
	p.el = el
	p.detector = capability.NewDetector(env)
	p.commands.Run()
	p.commands.Add(p.subscribeCommands(api.Bus())...)

	p.logger.Debug().
		Str(log.FieldEvent, "player.initialized").
		Bool("native", p.detector.SupportsNative()).
		Bool("engine", p.engineAvailableLocked()).
		Msg("playback plugin initialised")
	return nil
}

// CanPlay reports whether src looks like HLS and some backend can play it.
func (p *Plugin) CanPlay(src string) bool {
	p.mu.Lock()
	det := p.detector
	p.mu.Unlock()
	if det == nil || !det.IsHLSSupported() {
		return false
	}
	return looksLikeHLS(src)
}

func looksLikeHLS(src string) bool {
	lower := strings.ToLower(src)
	if strings.Contains(lower, "mpegurl") {
		return true
	}
	path := lower
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	return strings.HasSuffix(path, ".m3u8")
}

// LoadSource loads src and blocks until the first manifest (engine) or
// metadata (native) is available, a fatal fault ends the attempt, a newer
// load supersedes it, or ctx ends.
func (p *Plugin) LoadSource(ctx context.Context, src string) error {
	return p.load(ctx, src, BackendNone, -1)
}

// Phase reports the state of the source-loading state machine.
func (p *Plugin) Phase() Phase {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.phase
}

// RecoveryState reports the retry counters of the current session.
func (p *Plugin) RecoveryState() recovery.Snapshot {
	p.mu.Lock()
	s := p.sess
	p.mu.Unlock()
	if s == nil || s.coord == nil {
		return recovery.Snapshot{}
	}
	return s.coord.Snapshot()
}

// load runs the state machine. force pins the backend (used by the
// switcher); startPos >= 0 asks the engine to begin there.
func (p *Plugin) load(ctx context.Context, src string, force Backend, startPos float64) (err error) {
	safeSrc := urlutil.SanitizeURL(src)
	ctx, span := p.tracer.Start(ctx, "player.load_source",
		trace.WithAttributes(telemetry.SourceAttributes(safeSrc, string(force), "")...))
	defer span.End()
	began := time.Now()

	p.loadMu.Lock()
	s, kind, err := p.begin(src, force)
	p.loadMu.Unlock()
	if err != nil {
		if !errors.Is(err, ErrDestroyed) && !errors.Is(err, ErrNotInitialized) {
			metrics.ObserveSourceLoad(kind.String(), false, 0)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	ctx = log.ContextWithSessionID(ctx, s.id)
	logger := log.WithContext(ctx, p.logger).With().
		Str(log.FieldSource, safeSrc).
		Str(log.FieldBackend, kind.String()).
		Logger()
	span.SetAttributes(telemetry.SourceAttributes("", kind.String(), s.id)...)
	logger.Info().Str(log.FieldEvent, "source.load_started").Msg("loading source")

	defer func() {
		metrics.ObserveSourceLoad(kind.String(), err == nil, time.Since(began))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(telemetry.ErrorAttributes(err, fmt.Sprintf("%T", err))...)
		}
	}()

	switch kind {
	case BackendEngine:
		err = p.startEngine(ctx, s, startPos)
	default:
		err = p.startNative(s)
	}
	if err == nil {
		err = s.await(ctx)
	}
	if err != nil {
		p.abort(s, err)
		logger.Warn().Err(err).Str(log.FieldEvent, "source.load_failed").Msg("source load failed")
		return err
	}

	if err = p.resolve(s, src); err != nil {
		return err
	}

	var levels int
	var live bool
	if kind == BackendEngine {
		levels = len(p.GetLevels())
		live = s.api.Store().Get().Live
	}
	span.SetAttributes(telemetry.ResultAttributes(levels, live, time.Since(began).Milliseconds())...)
	logger.Info().
		Str(log.FieldEvent, "source.loaded").
		Int("levels", levels).
		Dur("took", time.Since(began)).
		Msg("source loaded")
	return nil
}

// begin runs cleanup, opens a new session and picks the backend.
func (p *Plugin) begin(src string, force Backend) (*session, Backend, error) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return nil, BackendNone, ErrDestroyed
	}
	if p.api == nil {
		p.mu.Unlock()
		return nil, BackendNone, ErrNotInitialized
	}

	p.cleanupLocked()
	p.transitionLocked(evLoad)

	kind := force
	if kind == BackendNone {
		kind = p.chooseLocked()
	}
	s := newSession(p.api, p.el, src, kind)
	p.sess = s
	p.src = src
	if kind == BackendNone {
		s.failed.Store(true)
		p.transitionLocked(evFailed)
	}
	p.mu.Unlock()

	auto := p.autoQuality.Load()
	s.api.Store().Set(func(st *host.State) {
		st.Playback = host.StateLoading
		st.Buffering = true
		st.Error = nil
		st.Live = false
		st.Qualities = nil
		st.CurrentQuality = ""
		st.AutoQuality = auto
	})
	if kind == BackendNone {
		p.publishFailure(s, "NOT_SUPPORTED", ErrNotSupported.Error(), false)
		return nil, BackendNone, ErrNotSupported
	}
	return s, kind, nil
}

// chooseLocked prefers the engine for quality control, unless the platform
// needs the native decoder for its output routing.
func (p *Plugin) chooseLocked() Backend {
	native := p.detector.SupportsNative()
	eng := p.engineAvailableLocked()
	switch {
	case native && p.cfg.PreferNative && p.detector.ShouldPreferNative():
		return BackendNative
	case eng:
		return BackendEngine
	case native:
		return BackendNative
	default:
		return BackendNone
	}
}

func (p *Plugin) engineAvailableLocked() bool {
	return p.loader != nil && p.detector.SupportsEngine()
}

func (p *Plugin) supportsLocked(b Backend) bool {
	switch b {
	case BackendNative:
		return p.detector.SupportsNative()
	case BackendEngine:
		return p.engineAvailableLocked()
	}
	return false
}

func (p *Plugin) startNative(s *session) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	if !p.current(s) {
		return ErrSuperseded
	}

	b := &nativeBackend{}
	p.wireDOM(s)
	s.dom.Add(events.Subscribe(s.el.Events(), media.LoadedMetadata, func(media.Signal) {
		s.settle(nil)
	}))
	p.mu.Lock()
	p.backend = b
	p.mu.Unlock()

	b.start(s.el, s.src)
	return nil
}

func (p *Plugin) startEngine(ctx context.Context, s *session, startPos float64) error {
	if _, err := p.loader.Load(ctx); err != nil {
		return err
	}

	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	if !p.current(s) {
		return ErrSuperseded
	}

	cfg := p.cfg.EngineConfig()
	if startPos >= 0 {
		cfg.StartPosition = startPos
	}
	inst, err := p.loader.NewInstance(cfg)
	if err != nil {
		return err
	}
	if !p.autoQuality.Load() {
		// a pinned level survives reloads until the host picks auto again
		inst.SetNextLevel(p.pinnedLevel())
	}

	b := &engineBackend{inst: inst}
	s.coord = recovery.NewCoordinator(p.cfg.Policy(), p.recoveryActions(s, inst),
		recovery.WithClock(p.clock),
		recovery.WithLogger(log.WithContext(ctx, p.logger)),
	)

	p.wireDOM(s)
	s.engine.Add(translate.WireEngine(inst, translate.EngineBindings{
		Store:       s.api.Store(),
		Bus:         s.api.Bus(),
		AutoQuality: p.autoQuality.Load,
		OnError: func(d engine.ErrorData) {
			if s.closed() {
				return
			}
			s.coord.Handle(recovery.FromEngine(d))
		},
		Logger: &p.logger,
	}))
	s.engine.Add(events.Subscribe(inst.Events(), engine.ManifestParsed, func(engine.ManifestParsedData) {
		s.settle(nil)
	}))

	p.mu.Lock()
	p.backend = b
	p.mu.Unlock()

	b.start(s.el, s.src)
	return nil
}

func (p *Plugin) wireDOM(s *session) {
	s.dom.Add(translate.WireDOM(s.el, translate.DOMBindings{
		Store: s.api.Store(),
		Bus:   s.api.Bus(),
		OnError: func(info media.ErrorInfo) {
			p.nativeFault(s, info)
		},
		Logger: &p.logger,
	}))
}

// recoveryActions binds the coordinator to one session and instance.
func (p *Plugin) recoveryActions(s *session, inst engine.Instance) recovery.Actions {
	return recovery.Actions{
		ResumeLoad: func() {
			if s.closed() {
				return
			}
			if !s.settled.Load() {
				inst.LoadSource(s.src)
				return
			}
			inst.StartLoad(-1)
		},
		RecoverMedia: func() {
			if s.closed() {
				return
			}
			inst.RecoverMediaError()
		},
		Recoverable: func(rec recovery.Record) {
			if !p.current(s) {
				return
			}
			topic := host.NetworkErrorEvent
			if rec.Type == recovery.CategoryMedia {
				topic = host.MediaErrorNotice
			}
			s.api.Store().Set(func(st *host.State) { st.Buffering = true })
			events.Publish(s.api.Bus(), topic, host.ErrorNotice{Error: rec})
		},
		Teardown: func() {
			s.engine.Run()
			inst.Destroy()
		},
		Fatal: func(fe *recovery.FatalError) {
			p.escalate(s, fe)
		},
	}
}

// nativeFault escalates a media element error once per session. The native
// decoder has no recovery primitive the plugin could drive.
func (p *Plugin) nativeFault(s *session, info media.ErrorInfo) {
	if s.closed() || s.kind != BackendNative {
		// engine sessions get their faults from the engine adapter
		return
	}
	cat := recovery.CategoryMedia
	if info.Code == media.ErrCodeNetwork {
		cat = recovery.CategoryNetwork
	}
	rec := recovery.Record{Type: cat, Details: "nativeMediaError", Fatal: true, Reason: info.Message}
	fe := &recovery.FatalError{
		Category: cat,
		Reason:   recovery.ReasonUnrecoverable,
		Message:  "Native playback error: " + info.Error(),
		Record:   rec,
	}
	metrics.IncRecoveryFatal(string(cat), fe.Reason)
	p.escalate(s, fe)
}

// escalate publishes the single fatal error of a session.
func (p *Plugin) escalate(s *session, fe *recovery.FatalError) {
	p.mu.Lock()
	if p.sess != s || s.closed() || !s.failed.CompareAndSwap(false, true) {
		// cleanup tore the session down while this callback waited
		p.mu.Unlock()
		return
	}
	p.transitionLocked(evFailed)
	p.mu.Unlock()
	s.settle(fe)

	ev := host.ErrorEvent{
		Code:      fe.Code(),
		Message:   fe.Message,
		Fatal:     true,
		Timestamp: p.clock.Now(),
	}
	s.api.Store().Set(func(st *host.State) {
		st.Playback = host.StateError
		st.Buffering = false
		st.Error = &ev
	})
	events.Publish(s.api.Bus(), host.ErrorTopic, ev)
}

// resolve moves a settled session to ready and announces the source.
func (p *Plugin) resolve(s *session, src string) error {
	p.mu.Lock()
	if p.sess != s {
		p.mu.Unlock()
		return ErrSuperseded
	}
	if s.failed.Load() {
		p.mu.Unlock()
		return errors.New("player: playback failed during load")
	}
	p.transitionLocked(evResolved)
	p.mu.Unlock()

	// muted autoplay needs the flag on the element before any play attempt
	st := s.api.Store().Get()
	s.el.SetMuted(st.Muted)
	s.el.SetVolume(st.Volume)

	s.api.Store().Set(func(st *host.State) {
		st.Playback = host.StateReady
		st.Buffering = false
		st.Source = src
		st.SourceType = media.MIMEXMPEGURL
		st.Error = nil
	})
	events.Publish(s.api.Bus(), host.MediaLoadedEvent, host.MediaLoaded{Src: src, Type: media.MIMEXMPEGURL})
	return nil
}

// abort ends a failed or cancelled attempt that is still current.
func (p *Plugin) abort(s *session, cause error) {
	if errors.Is(cause, ErrSuperseded) {
		return
	}
	p.loadMu.Lock()
	p.mu.Lock()
	if p.sess != s || s.failed.Load() {
		// superseded meanwhile, or the fatal event already reached the host
		p.mu.Unlock()
		p.loadMu.Unlock()
		return
	}
	cancelled := errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded)
	if cancelled {
		p.cleanupLocked()
	} else {
		s.failed.Store(true)
		p.transitionLocked(evFailed)
	}
	p.mu.Unlock()
	p.loadMu.Unlock()

	if cancelled {
		s.api.Store().Set(func(st *host.State) {
			st.Playback = host.StateIdle
			st.Buffering = false
		})
		return
	}

	code := "LOAD_FAILED"
	var fe *recovery.FatalError
	var le *engine.LoadError
	switch {
	case errors.As(cause, &fe):
		code = fe.Code()
	case errors.As(cause, &le):
		code = "ENGINE_LOAD_FAILED"
	}
	p.publishFailure(s, code, cause.Error(), true)
}

// publishFailure flips the host state to error. The error event is published
// only when announce is set; callers of LoadSource see the returned error.
func (p *Plugin) publishFailure(s *session, code, msg string, announce bool) {
	ev := host.ErrorEvent{Code: code, Message: msg, Fatal: true, Timestamp: p.clock.Now()}
	s.api.Store().Set(func(st *host.State) {
		st.Playback = host.StateError
		st.Buffering = false
		st.Error = &ev
	})
	if announce {
		events.Publish(s.api.Bus(), host.ErrorTopic, ev)
	}
}

// current reports whether s is still the live session. cleanup clears p.sess
// and closes s under p.mu, so a true result excludes a torn-down session.
func (p *Plugin) current(s *session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sess == s && !p.destroyed && !s.closed()
}

func (p *Plugin) transitionLocked(ev phaseEvent) {
	to, ok := p.phase.next(ev)
	if !ok {
		p.logger.Debug().
			Str(log.FieldOldState, string(p.phase)).
			Str("transition", string(ev)).
			Msg("ignoring phase transition")
		return
	}
	if to != p.phase {
		p.logger.Debug().
			Str(log.FieldOldState, string(p.phase)).
			Str(log.FieldNewState, string(to)).
			Msg("phase changed")
	}
	p.phase = to
}

// cleanupLocked tears down the current session: retry timers first, then
// every subscription, then the backend. It is idempotent.
func (p *Plugin) cleanupLocked() {
	s := p.sess
	p.sess = nil
	if s != nil {
		if s.coord != nil {
			s.coord.Reset()
		}
		s.close()
		s.engine.Run()
		s.dom.Run()
	}
	if p.backend != nil {
		p.backend.destroy()
		p.backend = nil
	}
	p.transitionLocked(evCleanup)
}

// Destroy tears down the session, unsubscribes host commands and removes the
// media element. It is idempotent.
func (p *Plugin) Destroy() error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return nil
	}
	p.destroyed = true
	p.cleanupLocked()
	p.commands.Run()
	if p.el != nil {
		p.el.Detach()
	}
	p.logger.Debug().Str(log.FieldEvent, "player.destroyed").Msg("playback plugin destroyed")
	return nil
}
