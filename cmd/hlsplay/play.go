// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ManuGH/hlsplay/internal/core/urlutil"
	"github.com/ManuGH/hlsplay/internal/events"
	"github.com/ManuGH/hlsplay/internal/host"
	"github.com/ManuGH/hlsplay/internal/log"
	"github.com/ManuGH/hlsplay/internal/media/watchdog"
	"github.com/ManuGH/hlsplay/internal/validate"
)

func runPlay(args []string, _ io.Writer, stderr io.Writer) int {
	fs := flag.NewFlagSet("hlsplay play", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	duration := fs.Duration("duration", 0, "stop after this long (0 plays until the end or a signal)")
	selectQuality := fs.String("quality", "auto", "initial quality: auto, a label such as 720p, or a level index")
	tick := fs.Duration("tick", 250*time.Millisecond, "playback clock resolution")
	startTimeout := fs.Duration("start-timeout", 20*time.Second, "fail when playback has not advanced after this long (0 disables)")
	stallTimeout := fs.Duration("stall-timeout", 15*time.Second, "fail when playback stops advancing for this long (0 disables)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: play needs exactly one source URL")
		return 2
	}
	src := fs.Arg(0)
	if err := validateSource(src); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	flags := validate.New()
	flags.MinDuration("duration", *duration, 0)
	flags.MinDuration("tick", *tick, time.Millisecond)
	flags.MinDuration("start-timeout", *startTimeout, 0)
	flags.MinDuration("stall-timeout", *stallTimeout, 0)
	if err := flags.Err(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(runContext(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *duration)
		defer cancel()
	}

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer rt.close()

	opts := playOptions{
		quality:      *selectQuality,
		tick:         *tick,
		startTimeout: *startTimeout,
		stallTimeout: *stallTimeout,
	}
	if err := play(ctx, rt, src, opts); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type playOptions struct {
	quality      string
	tick         time.Duration
	startTimeout time.Duration
	stallTimeout time.Duration
}

// play loads src, starts playback and blocks until the stream ends, a fatal
// error is published, the watchdog fires, or ctx is done.
func play(ctx context.Context, rt *runtime, src string, opts playOptions) error {
	logger := rt.logger.With().Str(log.FieldSource, urlutil.SanitizeURL(src)).Logger()

	if rt.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              rt.cfg.MetricsAddr,
			Handler:           newStatusRouter(rt),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str(log.FieldEvent, "status.listen_failed").Msg("status server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info().Str(log.FieldEvent, "status.listening").Str("addr", rt.cfg.MetricsAddr).Msg("status server listening")
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu      sync.Mutex
		fatal   *host.ErrorEvent
		stalled error
	)
	wd := watchdog.New(opts.startTimeout, opts.stallTimeout)
	bus := rt.host.Bus()
	var td events.Teardown
	td.Add(
		events.Subscribe(bus, host.ErrorTopic, func(e host.ErrorEvent) {
			mu.Lock()
			if fatal == nil && e.Fatal {
				fatal = &e
			}
			mu.Unlock()
			cancel()
		}),
		events.Subscribe(bus, host.EndedEvent, func(host.Empty) {
			logger.Info().Str(log.FieldEvent, "playback.ended").Msg("playback ended")
			wd.Complete()
			cancel()
		}),
		events.Subscribe(bus, host.TimeUpdateEvent, func(u host.TimeUpdate) {
			wd.Observe(u.CurrentTime)
		}),
		events.Subscribe(bus, host.QualityChangeEvent, func(c host.QualityChange) {
			logger.Info().Str(log.FieldEvent, "quality.changed").Str("quality", c.Quality).Bool("auto", c.Auto).Msg("quality changed")
		}),
	)
	defer td.Run()

	if err := rt.plugin.LoadSource(runCtx, src); err != nil {
		return err
	}
	if opts.quality != "" && opts.quality != "auto" {
		events.Publish(bus, host.CmdQualitySelect, host.QualitySelect{Quality: opts.quality})
	}
	events.Publish(bus, host.CmdPlay, host.Empty{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		rt.el.Run(runCtx, opts.tick)
	}()
	if opts.startTimeout > 0 || opts.stallTimeout > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := wd.Run(runCtx); err != nil {
				logger.Error().Err(err).
					Str(log.FieldEvent, "playback.stalled").
					Str("watchdog", wd.State().String()).
					Msg("playback is not advancing")
				mu.Lock()
				stalled = err
				mu.Unlock()
				cancel()
			}
		}()
	}
	<-runCtx.Done()
	wg.Wait()

	st := rt.host.State().Get()
	logger.Info().
		Str(log.FieldEvent, "playback.stopped").
		Float64("position", st.CurrentTime).
		Str(log.FieldBackend, rt.plugin.ActiveBackend().String()).
		Msg("playback stopped")

	mu.Lock()
	defer mu.Unlock()
	if fatal != nil {
		return fmt.Errorf("%s: %s", fatal.Code, fatal.Message)
	}
	return stalled
}
