// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveSourceLoad(t *testing.T) {
	okBefore := testutil.ToFloat64(SourceLoadTotal.WithLabelValues("engine", "success"))
	failBefore := testutil.ToFloat64(SourceLoadTotal.WithLabelValues("engine", "failure"))

	ObserveSourceLoad("engine", true, 200*time.Millisecond)
	ObserveSourceLoad("engine", false, 0)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(SourceLoadTotal.WithLabelValues("engine", "success")))
	assert.Equal(t, failBefore+1, testutil.ToFloat64(SourceLoadTotal.WithLabelValues("engine", "failure")))
}

func TestRecoveryCounters(t *testing.T) {
	before := testutil.ToFloat64(RecoveryFatalTotal.WithLabelValues("network", "unknown"))
	IncRecoveryFatal("network", "")
	assert.Equal(t, before+1, testutil.ToFloat64(RecoveryFatalTotal.WithLabelValues("network", "unknown")))

	stormBefore := testutil.ToFloat64(ErrorStormTotal)
	IncErrorStorm()
	assert.Equal(t, stormBefore+1, testutil.ToFloat64(ErrorStormTotal))
}

func TestIncLevelSwitch(t *testing.T) {
	autoBefore := testutil.ToFloat64(LevelSwitchTotal.WithLabelValues("auto"))
	manualBefore := testutil.ToFloat64(LevelSwitchTotal.WithLabelValues("manual"))

	IncLevelSwitch(true)
	IncLevelSwitch(false)
	IncLevelSwitch(false)

	assert.Equal(t, autoBefore+1, testutil.ToFloat64(LevelSwitchTotal.WithLabelValues("auto")))
	assert.Equal(t, manualBefore+2, testutil.ToFloat64(LevelSwitchTotal.WithLabelValues("manual")))
}

func TestObserveFragment(t *testing.T) {
	okBefore := testutil.ToFloat64(FragmentLoadTotal.WithLabelValues("success"))
	failBefore := testutil.ToFloat64(FragmentLoadTotal.WithLabelValues("failure"))
	bytesBefore := testutil.ToFloat64(FragmentBytesTotal)

	ObserveFragment(true, 2048, 4_000_000)
	ObserveFragment(false, 0, 0)

	assert.Equal(t, okBefore+1, testutil.ToFloat64(FragmentLoadTotal.WithLabelValues("success")))
	assert.Equal(t, failBefore+1, testutil.ToFloat64(FragmentLoadTotal.WithLabelValues("failure")))
	assert.Equal(t, bytesBefore+2048, testutil.ToFloat64(FragmentBytesTotal))
	assert.Equal(t, 4_000_000.0, testutil.ToFloat64(BandwidthEstimate))
}
