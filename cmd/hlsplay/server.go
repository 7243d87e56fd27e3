// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/hlsplay/internal/health"
	"github.com/ManuGH/hlsplay/internal/host"
	"github.com/ManuGH/hlsplay/internal/player"
	"github.com/ManuGH/hlsplay/internal/quality"
	"github.com/ManuGH/hlsplay/internal/recovery"
	"github.com/ManuGH/hlsplay/internal/version"
)

const (
	statusRequestLimit = 60
	statusWindow       = time.Minute
)

// Status is the body of GET /status.
type Status struct {
	Backend  string            `json:"backend"`
	Phase    player.Phase      `json:"phase"`
	Level    int               `json:"level"`
	Levels   []quality.Level   `json:"levels"`
	Live     *player.LiveInfo  `json:"live,omitempty"`
	Recovery recovery.Snapshot `json:"recovery"`
	State    host.State        `json:"state"`
}

// newStatusRouter serves metrics, health probes and the playback status.
func newStatusRouter(rt *runtime) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(httprate.Limit(
		statusRequestLimit,
		statusWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(statusWindow.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"rate_limit_exceeded"}`))
		}),
	))

	checks := health.NewManager(version.Version)
	checks.RegisterChecker(health.NewPlaybackChecker(rt.plugin))

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", checks.ServeHealth)
	r.Get("/readyz", checks.ServeReady)
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		st := Status{
			Backend:  rt.plugin.ActiveBackend().String(),
			Phase:    rt.plugin.Phase(),
			Level:    rt.plugin.GetCurrentLevel(),
			Levels:   rt.plugin.GetLevels(),
			Live:     rt.plugin.GetLiveInfo(),
			Recovery: rt.plugin.RecoveryState(),
			State:    rt.host.State().Get(),
		}
		// live streams report an infinite duration, which JSON cannot carry
		if math.IsInf(st.State.Duration, 0) {
			st.State.Duration = 0
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(st)
	})
	return r
}
