// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package playlist

import (
	"context"
	"time"

	"github.com/ManuGH/hlsplay/internal/engine"
	"github.com/ManuGH/hlsplay/internal/log"
	"github.com/ManuGH/hlsplay/internal/metrics"
	"github.com/ManuGH/hlsplay/internal/quality"
	"golang.org/x/time/rate"
)

const acceptSegment = "*/*"

// fragmentLoop loads segments of the chosen level until the playlist ends,
// ctx is cancelled or a fatal error stops it. Level changes take effect at
// fragment boundaries.
func (e *Engine) fragmentLoop(ctx context.Context, gen uint64) {
	defer e.wg.Done()
	defer e.loopDone(gen)

	level := e.pickLevel()
	var pl *mediaPlaylist
	for ctx.Err() == nil {
		if pl == nil || pl.level != level {
			p, ok := e.loadLevel(ctx, gen, level)
			if !ok {
				return
			}
			pl = p
			e.switchTo(ctx, level)
		}

		seg, ok := e.nextSegment(pl)
		if !ok {
			if !pl.live {
				e.logger.Debug().Str(log.FieldEvent, "engine.end_of_stream").Int(log.FieldLevel, level).Msg("all segments buffered")
				return
			}
			if err := e.refresh.Wait(ctx); err != nil {
				return
			}
			p, ok := e.loadLevel(ctx, gen, level)
			if !ok {
				return
			}
			pl = p
			continue
		}

		if !e.waitForBuffer(ctx) {
			return
		}
		if !e.loadFragment(ctx, gen, level, seg) {
			return
		}
		level = e.pickLevel()
	}
}

// pickLevel applies a pinned level, then the configured start level for the
// first choice, then the bandwidth estimate.
func (e *Engine) pickLevel() int {
	e.mu.Lock()
	levels := e.levels
	next, current := e.next, e.current
	e.mu.Unlock()

	if next >= 0 && next < len(levels) {
		return next
	}
	if current < 0 && e.cfg.StartLevel >= 0 && e.cfg.StartLevel < len(levels) {
		return e.cfg.StartLevel
	}
	safety := e.cfg.ABRSafetyFactor
	if safety <= 0 {
		safety = quality.DefaultSafetyFactor
	}
	if best, ok := quality.BestForBandwidth(quality.FromEngine(levels), e.est.estimate(), safety); ok {
		return best.Index
	}
	return 0
}

func (e *Engine) switchTo(ctx context.Context, level int) {
	e.mu.Lock()
	changed := e.current != level
	e.current = level
	e.mu.Unlock()
	if changed {
		publish(ctx, e, engine.LevelSwitched, engine.LevelSwitchedData{Level: level})
	}
}

func (e *Engine) loadLevel(ctx context.Context, gen uint64, level int) (*mediaPlaylist, bool) {
	e.mu.Lock()
	if level < 0 || level >= len(e.levels) {
		e.mu.Unlock()
		return nil, false
	}
	url := e.levels[level].URL
	e.mu.Unlock()

	body, err := e.fetchWithRetry(ctx, url, acceptPlaylist, e.cfg.LevelLoadMaxRetry)
	if ctx.Err() != nil {
		return nil, false
	}
	var pl *mediaPlaylist
	if err == nil {
		pl, err = parseMedia(level, url, body)
	}
	if err != nil {
		e.loopDone(gen)
		e.fail(e.ctx, engine.ErrorData{
			Type:     engine.ErrorNetwork,
			Details:  engine.DetailLevelLoadError,
			Fatal:    true,
			URL:      url,
			Response: responseOf(err),
			Err:      err,
		})
		return nil, false
	}

	now := time.Now()
	e.mu.Lock()
	e.live = pl.live
	e.targetDuration = pl.targetDuration
	e.placeLocked(pl)
	e.observeEdgeLocked(pl, now)
	e.mu.Unlock()

	if pl.live && pl.targetDuration > 0 {
		e.refresh.SetLimit(rate.Every(time.Duration(pl.targetDuration * float64(time.Second))))
	}
	publish(ctx, e, engine.LevelLoaded, engine.LevelLoadedData{
		Level:          level,
		Live:           pl.live,
		TargetDuration: pl.targetDuration,
	})
	return pl, true
}

// placeLocked picks the first segment to load when there is no position yet:
// a few target durations behind the live edge, or the segment containing the
// start position.
func (e *Engine) placeLocked(pl *mediaPlaylist) {
	if e.haveSN || len(pl.segments) == 0 {
		return
	}
	idx := 0
	var start float64
	if pl.live {
		back := liveSyncSegments
		if e.cfg.LowLatencyMode {
			back = 1
		}
		idx = max(0, len(pl.segments)-back)
	} else if e.startPos > 0 {
		for i, s := range pl.segments {
			idx = i
			if start+s.duration > e.startPos || i == len(pl.segments)-1 {
				break
			}
			start += s.duration
		}
	}
	e.nextSN = pl.segments[idx].sn
	e.haveSN = true
	if !pl.live {
		e.pos = start
	}
}

// observeEdgeLocked updates the live edge in element time and the rate at
// which it advances relative to the wall clock.
func (e *Engine) observeEdgeLocked(pl *mediaPlaylist, now time.Time) {
	if !pl.live {
		e.edge = 0
		return
	}
	edge := e.pos
	for _, s := range pl.segments {
		if s.sn >= e.nextSN {
			edge += s.duration
		}
	}
	if !e.lastEdgeAt.IsZero() {
		if elapsed := now.Sub(e.lastEdgeAt).Seconds(); elapsed > 0 && edge > e.lastEdge {
			e.drift = (edge - e.lastEdge) / elapsed
		}
	}
	if edge != e.lastEdge {
		e.lastEdge = edge
		e.lastEdgeAt = now
	}
	e.edge = edge
}

// nextSegment returns the first segment not yet appended. A live window that
// has moved past the position skips ahead.
func (e *Engine) nextSegment(pl *mediaPlaylist) (segment, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, s := range pl.segments {
		if s.sn < e.nextSN {
			continue
		}
		if s.sn > e.nextSN {
			e.logger.Warn().
				Str(log.FieldEvent, "engine.live_window_skip").
				Uint64("expected_sn", e.nextSN).
				Uint64("sn", s.sn).
				Msg("fell behind the live window")
			e.nextSN = s.sn
		}
		return s, true
	}
	return segment{}, false
}

// waitForBuffer blocks while more than MaxBufferLength is buffered ahead of
// the playhead.
func (e *Engine) waitForBuffer(ctx context.Context) bool {
	limit := e.cfg.MaxBufferLength.Seconds()
	if limit <= 0 {
		return ctx.Err() == nil
	}
	for {
		e.mu.Lock()
		el, pos := e.el, e.pos
		e.mu.Unlock()
		if el == nil {
			return false
		}
		if pos-el.CurrentTime() < limit {
			return ctx.Err() == nil
		}
		if !sleep(ctx, e.poll) {
			return false
		}
	}
}

func (e *Engine) loadFragment(ctx context.Context, gen uint64, level int, seg segment) bool {
	frag := engine.FragData{Level: level, SN: seg.sn, URL: seg.url, Duration: seg.duration}
	publish(ctx, e, engine.FragLoading, frag)

	started := time.Now()
	data, err := e.fetchWithRetry(ctx, seg.url, acceptSegment, e.cfg.FragLoadMaxRetry)
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		metrics.ObserveFragment(false, 0, 0)
		e.loopDone(gen)
		e.fail(e.ctx, engine.ErrorData{
			Type:     engine.ErrorNetwork,
			Details:  engine.DetailFragLoadError,
			Fatal:    true,
			URL:      seg.url,
			Response: responseOf(err),
			Err:      err,
		})
		return false
	}
	e.est.sample(len(data), time.Since(started))
	metrics.ObserveFragment(true, len(data), e.est.estimate())

	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink == nil {
		return false
	}
	if err := sink.AppendSegment(data, seg.duration); err != nil {
		e.loopDone(gen)
		e.fail(e.ctx, engine.ErrorData{
			Type:    engine.ErrorMedia,
			Details: engine.DetailBufferAppendError,
			Fatal:   true,
			URL:     seg.url,
			Err:     err,
		})
		return false
	}

	e.mu.Lock()
	if e.nextSN == seg.sn {
		e.nextSN = seg.sn + 1
		e.pos += seg.duration
	}
	e.mu.Unlock()

	publish(ctx, e, engine.FragBuffered, frag)
	return true
}
