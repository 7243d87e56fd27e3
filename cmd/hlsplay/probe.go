// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/renameio/v2"

	"github.com/ManuGH/hlsplay/internal/core/urlutil"
	"github.com/ManuGH/hlsplay/internal/log"
	"github.com/ManuGH/hlsplay/internal/player"
	"github.com/ManuGH/hlsplay/internal/quality"
	"github.com/ManuGH/hlsplay/internal/validate"
	"github.com/ManuGH/hlsplay/internal/version"
)

// Report is what probe prints after the first manifest.
type Report struct {
	Source    string           `json:"source"`
	Backend   string           `json:"backend"`
	Levels    []quality.Level  `json:"levels"`
	Live      *player.LiveInfo `json:"live,omitempty"`
	LoadMS    int64            `json:"loadMs"`
	Version   string           `json:"version"`
	Timestamp time.Time        `json:"timestamp"`
}

func runProbe(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("hlsplay probe", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to config file (YAML)")
	timeout := fs.Duration("timeout", 15*time.Second, "give up when the source is not ready in time")
	reportPath := fs.String("report", "", "also write the JSON report to this file")
	backend := fs.String("backend", "auto", "force a backend: auto, native or engine")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "Error: probe needs exactly one source URL")
		return 2
	}
	src := fs.Arg(0)
	if err := validateSource(src); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	flags := validate.New()
	flags.MinDuration("timeout", *timeout, time.Millisecond)
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
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	rt, err := newRuntime(ctx, cfg)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer rt.close()

	report, err := probe(ctx, rt, src, *backend)
	if err != nil {
		rt.logger.Error().Err(err).Str(log.FieldEvent, "probe.failed").Str(log.FieldSource, urlutil.SanitizeURL(src)).Msg("probe failed")
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if *reportPath != "" {
		if err := writeReport(*reportPath, report); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	return 0
}

// probe loads src and describes what the plugin found.
func probe(ctx context.Context, rt *runtime, src, backend string) (Report, error) {
	began := time.Now()
	if err := rt.plugin.LoadSource(ctx, src); err != nil {
		return Report{}, err
	}
	switch backend {
	case "", "auto":
	case "native":
		if err := rt.plugin.SwitchToNative(ctx); err != nil {
			return Report{}, fmt.Errorf("switch to native: %w", err)
		}
	case "engine":
		if err := rt.plugin.SwitchToEngine(ctx); err != nil {
			return Report{}, fmt.Errorf("switch to engine: %w", err)
		}
	default:
		return Report{}, fmt.Errorf("unknown backend %q", backend)
	}

	return Report{
		Source:    src,
		Backend:   rt.plugin.ActiveBackend().String(),
		Levels:    rt.plugin.GetLevels(),
		Live:      rt.plugin.GetLiveInfo(),
		LoadMS:    time.Since(began).Milliseconds(),
		Version:   version.Version,
		Timestamp: time.Now().UTC(),
	}, nil
}

// writeReport replaces path atomically so readers never see a partial report.
func writeReport(path string, report Report) error {
	pendingFile, err := renameio.NewPendingFile(path)
	if err != nil {
		return fmt.Errorf("create pending report file: %w", err)
	}
	defer func() {
		if err := pendingFile.Cleanup(); err != nil {
			logger := log.WithComponent("cli")
			logger.Debug().Err(err).Msg("cleanup pending report file")
		}
	}()

	enc := json.NewEncoder(pendingFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace report file: %w", err)
	}
	return nil
}
