// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package playlist is an engine.Instance that fetches HLS playlists over HTTP,
// picks renditions by measured throughput and appends media segments to any
// element that implements media.SourceBuffer.
package playlist

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/log"
	"github.com/ManuGH/hlsplay/internal/media"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	// liveSyncSegments is how far behind the live edge playback starts.
	liveSyncSegments = 3
	// lowLatencySyncSegments replaces liveSyncSegments in low-latency mode.
	lowLatencySyncSegments = 1.5

	defaultPollInterval = 250 * time.Millisecond
)

// Option customises an Engine.
type Option func(*Engine)

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) {
		if c != nil {
			e.client = c
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithInitialBandwidth seeds the estimator, in bits per second.
func WithInitialBandwidth(bps float64) Option {
	return func(e *Engine) { e.est = newEstimator(bps) }
}

// WithPollInterval sets how often a full buffer is re-checked.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.poll = d
		}
	}
}

// WithUserAgent sets the User-Agent header on every request.
func WithUserAgent(ua string) Option {
	return func(e *Engine) { e.userAgent = ua }
}

// Engine implements engine.Instance.
type Engine struct {
	bus       *events.Bus
	cfg       engine.Config
	client    *http.Client
	logger    zerolog.Logger
	est       *estimator
	poll      time.Duration
	userAgent string
	refresh   *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu             sync.Mutex
	src            string
	manifestCancel context.CancelFunc
	levels         []engine.Level
	parsed         bool
	el             media.Element
	sink           media.SourceBuffer
	wantLoad       bool
	startPos       float64
	loopCancel     context.CancelFunc
	loopGen        uint64
	current        int
	next           int
	nextSN         uint64
	haveSN         bool
	pos            float64
	live           bool
	targetDuration float64
	edge           float64
	lastEdge       float64
	lastEdgeAt     time.Time
	drift          float64
	destroyed      bool
}

var _ engine.Instance = (*Engine)(nil)

// New returns an idle engine. cfg is used as given; zero retry counts mean a
// single attempt.
func New(cfg engine.Config, opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		bus:     events.NewBus(),
		cfg:     cfg,
		logger:  log.WithComponent("engine"),
		est:     newEstimator(0),
		poll:    defaultPollInterval,
		refresh: rate.NewLimiter(rate.Every(time.Second), 1),
		ctx:     ctx,
		cancel:  cancel,
		current: -1,
		next:    -1,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.client == nil {
		e.client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.RequestTimeout,
		}
	}
	return e
}

// Constructor adapts New to engine.Constructor.
func Constructor(opts ...Option) engine.Constructor {
	return func(cfg engine.Config) (engine.Instance, error) {
		return New(cfg, opts...), nil
	}
}

// Load is an engine.LoadFunc for the built-in engine.
func Load(opts ...Option) engine.LoadFunc {
	return func(context.Context) (engine.Constructor, error) {
		return Constructor(opts...), nil
	}
}

func (e *Engine) Events() *events.Bus { return e.bus }

// LoadSource starts fetching the manifest in the background. ManifestParsed
// or a fatal Error follows.
func (e *Engine) LoadSource(url string) {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	if e.manifestCancel != nil {
		e.manifestCancel()
	}
	e.stopLoopLocked()
	e.src = url
	e.levels = nil
	e.parsed = false
	e.haveSN = false
	e.pos = 0
	e.live = false
	e.edge = 0
	e.drift = 0
	e.lastEdgeAt = time.Time{}
	e.wantLoad = e.cfg.AutoStartLoad
	e.startPos = e.cfg.StartPosition
	ctx, cancel := context.WithCancel(e.ctx)
	e.manifestCancel = cancel
	e.wg.Add(1)
	e.mu.Unlock()

	go e.loadManifest(ctx, url)
}

func (e *Engine) loadManifest(ctx context.Context, url string) {
	defer e.wg.Done()

	body, err := e.fetchWithRetry(ctx, url, acceptPlaylist, e.cfg.ManifestLoadMaxRetry)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		e.fail(ctx, engine.ErrorData{
			Type:     engine.ErrorNetwork,
			Details:  engine.DetailManifestLoadError,
			Fatal:    true,
			URL:      url,
			Response: responseOf(err),
			Err:      err,
		})
		return
	}
	levels, err := parseManifest(url, body)
	if err != nil {
		e.fail(ctx, engine.ErrorData{
			Type:    engine.ErrorMux,
			Details: engine.DetailManifestParsingError,
			Fatal:   true,
			URL:     url,
			Reason:  "no EXTM3U delimiter or unusable playlist",
			Err:     err,
		})
		return
	}

	e.mu.Lock()
	if ctx.Err() != nil || e.destroyed {
		e.mu.Unlock()
		return
	}
	e.levels = levels
	e.parsed = true
	e.mu.Unlock()

	e.logger.Debug().
		Str(log.FieldEvent, "engine.manifest_parsed").
		Str(log.FieldSource, url).
		Int("levels", len(levels)).
		Msg("manifest parsed")
	publish(ctx, e, engine.ManifestParsed, engine.ManifestParsedData{Levels: levels})

	e.mu.Lock()
	e.maybeStartLocked()
	e.mu.Unlock()
}

// AttachMedia binds the element. Segments are only appended when it also
// implements media.SourceBuffer.
func (e *Engine) AttachMedia(el media.Element) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.stopLoopLocked()
	e.el = el
	e.sink = nil
	if sb, ok := el.(media.SourceBuffer); ok {
		e.sink = sb
	} else {
		e.logger.Warn().Str(log.FieldEvent, "engine.no_source_buffer").Msg("media element cannot accept segments")
	}
	e.maybeStartLocked()
}

func (e *Engine) DetachMedia() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLoopLocked()
	e.el = nil
	e.sink = nil
}

// StartLoad starts or resumes segment loading. A negative position resumes
// from where loading stopped.
func (e *Engine) StartLoad(startPosition float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.wantLoad = true
	if startPosition >= 0 && !e.haveSN {
		e.startPos = startPosition
	}
	e.maybeStartLocked()
}

func (e *Engine) StopLoad() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wantLoad = false
	e.stopLoopLocked()
}

// RecoverMediaError drops buffered media and reloads from the playhead.
func (e *Engine) RecoverMediaError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.destroyed {
		return
	}
	e.stopLoopLocked()
	if e.sink != nil {
		e.sink.ResetBuffer()
	}
	e.haveSN = false
	if e.el != nil {
		e.startPos = e.el.CurrentTime()
	}
	e.wantLoad = true
	e.logger.Info().Str(log.FieldEvent, "engine.recover_media").Float64("position", e.startPos).Msg("recovering from media error")
	e.maybeStartLocked()
}

// Destroy stops all work. No events are published afterwards. It does not
// wait for background goroutines; use Wait for that.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	e.el = nil
	e.sink = nil
	e.loopCancel = nil
	e.manifestCancel = nil
	e.mu.Unlock()
	e.cancel()
}

// Wait blocks until every background goroutine has returned.
func (e *Engine) Wait() { e.wg.Wait() }

func (e *Engine) Levels() []engine.Level {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]engine.Level(nil), e.levels...)
}

func (e *Engine) CurrentLevel() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

func (e *Engine) NextLevel() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.next
}

// SetNextLevel pins a level from the next fragment on. Out-of-range indexes
// other than -1 are ignored once the manifest is known.
func (e *Engine) SetNextLevel(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if index < -1 || (e.parsed && index >= len(e.levels)) {
		return
	}
	e.next = index
}

func (e *Engine) AutoLevelEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.next == -1
}

func (e *Engine) Latency() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.live || e.el == nil {
		return 0
	}
	return e.edge - e.el.CurrentTime()
}

func (e *Engine) TargetLatency() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.live {
		return 0
	}
	if e.cfg.LowLatencyMode {
		return lowLatencySyncSegments * e.targetDuration
	}
	return liveSyncSegments * e.targetDuration
}

func (e *Engine) Drift() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drift
}

// EstimatedBandwidth returns the current throughput estimate in bits per second.
func (e *Engine) EstimatedBandwidth() float64 { return e.est.estimate() }

func (e *Engine) maybeStartLocked() {
	if e.destroyed || !e.parsed || e.sink == nil || !e.wantLoad || e.loopCancel != nil || len(e.levels) == 0 {
		return
	}
	ctx, cancel := context.WithCancel(e.ctx)
	e.loopCancel = cancel
	e.loopGen++
	gen := e.loopGen
	e.wg.Add(1)
	go e.fragmentLoop(ctx, gen)
}

func (e *Engine) stopLoopLocked() {
	if e.loopCancel != nil {
		e.loopCancel()
		e.loopCancel = nil
	}
}

// loopDone clears the running loop when it exits on its own.
func (e *Engine) loopDone(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.loopGen == gen && e.loopCancel != nil {
		e.loopCancel()
		e.loopCancel = nil
	}
}

func (e *Engine) fail(ctx context.Context, d engine.ErrorData) {
	e.logger.Warn().
		Err(d.Err).
		Str(log.FieldEvent, "engine.error").
		Str("type", string(d.Type)).
		Str(log.FieldDetails, d.Details).
		Bool("fatal", d.Fatal).
		Str("url", d.URL).
		Msg("engine error")
	publish(ctx, e, engine.Error, d)
}

// publish drops events from superseded work and after Destroy.
func publish[T any](ctx context.Context, e *Engine, t events.Topic[T], v T) {
	if ctx.Err() != nil {
		return
	}
	e.mu.Lock()
	dead := e.destroyed
	e.mu.Unlock()
	if dead {
		return
	}
	events.Publish(e.bus, t, v)
}
