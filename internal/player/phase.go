// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player

// Phase is the state of the source-loading state machine.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseReady   Phase = "ready"
	PhaseFailed  Phase = "failed"
)

type phaseEvent string

const (
	evLoad     phaseEvent = "load"
	evResolved phaseEvent = "resolved"
	evFailed   phaseEvent = "failed"
	evCleanup  phaseEvent = "cleanup"
)

type phaseEdge struct {
	from  Phase
	event phaseEvent
}

var phaseTable = map[phaseEdge]Phase{
	{PhaseIdle, evLoad}:    PhaseLoading,
	{PhaseReady, evLoad}:   PhaseLoading,
	{PhaseFailed, evLoad}:  PhaseLoading,
	{PhaseLoading, evLoad}: PhaseLoading,

	{PhaseLoading, evResolved}: PhaseReady,
	{PhaseLoading, evFailed}:   PhaseFailed,
	// a fatal fault after the first manifest
	{PhaseReady, evFailed}: PhaseFailed,

	{PhaseIdle, evCleanup}:    PhaseIdle,
	{PhaseLoading, evCleanup}: PhaseIdle,
	{PhaseReady, evCleanup}:   PhaseIdle,
	{PhaseFailed, evCleanup}:  PhaseIdle,
}

// next returns the phase after ev, or from with ok=false when the edge is not
// in the table.
func (from Phase) next(ev phaseEvent) (Phase, bool) {
	to, ok := phaseTable[phaseEdge{from, ev}]
	if !ok {
		return from, false
	}
	return to, true
}
