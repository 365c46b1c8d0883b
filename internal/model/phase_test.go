package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPhaseFamilies(t *testing.T) {
	assert.True(t, PhaseIsLive(PhaseLiveFirstHalf))
	assert.True(t, PhaseIsLive(PhaseLiveOT))
	assert.True(t, PhaseIsLive(PhaseBreak), "break counts as live: match in progress")
	assert.True(t, PhaseIsLive(PhaseSuspended))
	assert.False(t, PhaseIsLive(PhaseScheduled))
	assert.False(t, PhaseIsLive(PhaseFinished))

	assert.True(t, PhaseIsTerminal(PhaseFinished))
	assert.True(t, PhaseIsTerminal(PhasePostponed))
	assert.True(t, PhaseIsTerminal(PhaseCancelled))
	assert.False(t, PhaseIsTerminal(PhaseSuspended))
}

func TestPhaseTempoKey(t *testing.T) {
	cases := map[MatchPhase]string{
		PhaseScheduled:      "scheduled",
		PhasePreMatch:       "pre_match",
		PhaseLiveFirstHalf:  "live_active",
		PhaseLiveHalftime:   "live_break",
		PhaseBreak:          "live_break",
		PhaseSuspended:      "live_active",
		PhaseFinished:       "finished",
		PhasePostponed:      "finished",
		MatchPhase("weird"): "scheduled",
	}
	for phase, want := range cases {
		assert.Equal(t, want, PhaseTempoKey(phase), "phase %s", phase)
	}
}

func TestPhaseEquivalent(t *testing.T) {
	assert.True(t, PhaseEquivalent(PhaseLiveFirstHalf, PhaseLiveSecondHalf))
	assert.True(t, PhaseEquivalent(PhaseLiveQ2, PhaseBreak))
	assert.True(t, PhaseEquivalent(PhaseFinished, PhaseCancelled))
	assert.True(t, PhaseEquivalent(PhaseScheduled, PhaseScheduled))
	assert.False(t, PhaseEquivalent(PhaseScheduled, PhaseLiveFirstHalf))
	assert.False(t, PhaseEquivalent(PhaseLiveFirstHalf, PhaseFinished))
}

func TestParseClockMinute(t *testing.T) {
	cases := []struct {
		clock string
		want  int
	}{
		{"45:23", 45},
		{"111'", 111},
		{"45+3'", 48},
		{"45 + 3", 48},
		{"90", 90},
		{"HT", -1},
		{"", -1},
		{"  12'  ", 12},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, ParseClockMinute(tc.clock), "clock %q", tc.clock)
	}
}

func TestPlaceholderIDDeterministic(t *testing.T) {
	a := PlaceholderID(ProviderESPN, "match", "401547417")
	b := PlaceholderID(ProviderESPN, "match", "401547417")
	assert.Equal(t, a, b)

	assert.NotEqual(t, a, PlaceholderID(ProviderESPN, "team", "401547417"))
	assert.NotEqual(t, a, PlaceholderID(ProviderSportradar, "match", "401547417"))
}

func TestScoringEvent(t *testing.T) {
	assert.Equal(t, EventGoal, ScoringEvent(SportSoccer))
	assert.Equal(t, EventGoal, ScoringEvent(SportHockey))
	assert.Equal(t, EventBasket, ScoringEvent(SportBasketball))
	assert.Equal(t, EventRun, ScoringEvent(SportBaseball))
	assert.Equal(t, EventGeneric, ScoringEvent(SportFootball))
}
