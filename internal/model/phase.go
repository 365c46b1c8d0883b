package model

import "strings"

// PhaseIsLive reports whether a phase belongs to the live family.
// break and suspended count as live: the match is in progress even
// though the ball is not.
func PhaseIsLive(p MatchPhase) bool {
	return strings.HasPrefix(string(p), "live_") || p == PhaseBreak || p == PhaseSuspended
}

// PhaseIsTerminal reports whether a phase is final for polling purposes.
func PhaseIsTerminal(p MatchPhase) bool {
	switch p {
	case PhaseFinished, PhasePostponed, PhaseCancelled:
		return true
	}
	return false
}

// PhaseIsBreak reports whether the phase is a pause inside a live match.
func PhaseIsBreak(p MatchPhase) bool {
	return p == PhaseLiveHalftime || p == PhaseBreak
}

// PhaseTempoKey maps a phase onto the tempo profile key used by the
// scheduler's adaptive interval tables.
func PhaseTempoKey(p MatchPhase) string {
	switch {
	case PhaseIsTerminal(p):
		return "finished"
	case p == PhaseScheduled:
		return "scheduled"
	case p == PhasePreMatch:
		return "pre_match"
	case PhaseIsBreak(p):
		return "live_break"
	case PhaseIsLive(p):
		return "live_active"
	}
	return "scheduled"
}

// PhaseEquivalent treats two phases as equal when both are live-family,
// both are terminal, or they match exactly. The verifier uses this when
// comparing states from independent sources whose phase granularity
// differs.
func PhaseEquivalent(a, b MatchPhase) bool {
	if a == b {
		return true
	}
	if PhaseIsLive(a) && PhaseIsLive(b) {
		return true
	}
	return PhaseIsTerminal(a) && PhaseIsTerminal(b)
}
