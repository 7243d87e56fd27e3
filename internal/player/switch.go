// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ManuGH/hlsplay/internal/log"
	"github.com/ManuGH/hlsplay/internal/metrics"
	"github.com/ManuGH/hlsplay/internal/telemetry"
)

// SwitchToNative hands the current source to the platform decoder, keeping
// the playback position and play intent.
func (p *Plugin) SwitchToNative(ctx context.Context) error {
	return p.switchTo(ctx, BackendNative)
}

// SwitchToEngine hands the current source back to the engine.
func (p *Plugin) SwitchToEngine(ctx context.Context) error {
	return p.switchTo(ctx, BackendEngine)
}

func (p *Plugin) switchTo(ctx context.Context, target Backend) (err error) {
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return ErrDestroyed
	}
	if p.api == nil {
		p.mu.Unlock()
		return ErrNotInitialized
	}
	from := BackendNone
	if p.backend != nil {
		from = p.backend.kind()
	}
	src, el := p.src, p.el
	supported := p.supportsLocked(target)
	p.mu.Unlock()

	if from == target {
		return nil
	}
	ctx, span := p.tracer.Start(ctx, "player.switch_backend",
		trace.WithAttributes(telemetry.SwitchAttributes(from.String(), target.String())...))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	logger := p.logger.With().
		Str("from", from.String()).
		Str("to", target.String()).
		Logger()
	if src == "" {
		logger.Warn().Str(log.FieldEvent, "backend.switch_rejected").Msg("no source loaded, nothing to switch")
		return ErrNoSource
	}
	if !supported {
		logger.Warn().Str(log.FieldEvent, "backend.switch_rejected").Msg("target backend is not supported")
		return ErrNotSupported
	}

	wasPlaying := !el.Paused() && !el.Ended()
	at := el.CurrentTime()

	if err = p.load(ctx, src, target, at); err != nil {
		metrics.IncBackendSwitch(from.String(), target.String(), false)
		logger.Warn().Err(err).Str(log.FieldEvent, "backend.switch_failed").Msg("backend switch failed")
		return err
	}

	el.SetCurrentTime(at)
	if wasPlaying {
		// autoplay policies may refuse; the host still has its play control
		if err := el.Play(ctx); err != nil {
			logger.Debug().Err(err).Msg("resume after switch refused")
		}
	}

	metrics.IncBackendSwitch(from.String(), target.String(), true)
	logger.Info().
		Str(log.FieldEvent, "backend.switched").
		Float64("position", at).
		Bool("resumed", wasPlaying).
		Msg("backend switched")
	return nil
}
