package builder

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liveview/liveview/internal/model"
)

func board(phase model.MatchPhase, home, away int, clock string) model.Scoreboard {
	return model.Scoreboard{
		Phase:    phase,
		Score:    model.Score{Home: home, Away: away},
		Clock:    clock,
		HomeTeam: model.TeamRef{ID: uuid.MustParse("11111111-1111-1111-1111-111111111111")},
		AwayTeam: model.TeamRef{ID: uuid.MustParse("22222222-2222-2222-2222-222222222222")},
	}
}

func TestDeriveFirstSnapshotLive(t *testing.T) {
	var g Generator
	matchID := uuid.New()

	events := g.Derive(matchID, model.SportSoccer, nil, board(model.PhaseLiveFirstHalf, 0, 0, "1'"))
	require.Len(t, events, 1)
	assert.Equal(t, model.EventMatchStart, events[0].Type)
	assert.Equal(t, 0.9, events[0].Confidence)
	assert.Equal(t, 0, *events[0].Minute)
	assert.True(t, events[0].Synthetic)
}

func TestDeriveFirstSnapshotScheduled(t *testing.T) {
	var g Generator
	events := g.Derive(uuid.New(), model.SportSoccer, nil, board(model.PhaseScheduled, 0, 0, ""))
	assert.Empty(t, events)
}

func TestDeriveKickoff(t *testing.T) {
	var g Generator
	prev := board(model.PhasePreMatch, 0, 0, "")
	curr := board(model.PhaseLiveFirstHalf, 0, 0, "1'")

	events := g.Derive(uuid.New(), model.SportSoccer, &prev, curr)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventMatchStart, events[0].Type)
	assert.Equal(t, 0.95, events[0].Confidence)
}

func TestDeriveMatchEnd(t *testing.T) {
	var g Generator
	prev := board(model.PhaseLiveSecondHalf, 2, 1, "90'")
	curr := board(model.PhaseFinished, 2, 1, "90'")

	events := g.Derive(uuid.New(), model.SportSoccer, &prev, curr)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventMatchEnd, events[0].Type)
	assert.Equal(t, 90, *events[0].Minute)
}

func TestDeriveHalftimeEmitsSinglePeriodEnd(t *testing.T) {
	var g Generator
	prev := board(model.PhaseLiveFirstHalf, 1, 0, "45'")
	curr := board(model.PhaseLiveHalftime, 1, 0, "45'")

	events := g.Derive(uuid.New(), model.SportSoccer, &prev, curr)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventPeriodEnd, events[0].Type)
	assert.Equal(t, 0.9, events[0].Confidence)
}

func TestDerivePeriodTransition(t *testing.T) {
	var g Generator
	prev := board(model.PhaseLiveQ1, 20, 18, "0:04")
	curr := board(model.PhaseLiveQ2, 20, 18, "12:00")

	events := g.Derive(uuid.New(), model.SportBasketball, &prev, curr)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventPeriodEnd, events[0].Type)
	assert.Equal(t, string(model.PhaseLiveQ1), events[0].Period)
	assert.Equal(t, model.EventPeriodStart, events[1].Type)
	assert.Equal(t, string(model.PhaseLiveQ2), events[1].Period)
}

func TestDeriveSingleGoal(t *testing.T) {
	var g Generator
	prev := board(model.PhaseLiveFirstHalf, 0, 0, "23'")
	curr := board(model.PhaseLiveFirstHalf, 1, 0, "23'")

	events := g.Derive(uuid.New(), model.SportSoccer, &prev, curr)
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, model.EventGoal, ev.Type)
	assert.Equal(t, 0.7, ev.Confidence)
	assert.Equal(t, curr.HomeTeam.ID, *ev.TeamID)
	assert.Equal(t, 1, *ev.ScoreHome)
	assert.Equal(t, 0, *ev.ScoreAway)
	assert.Contains(t, ev.Detail, "(1-0)")
	assert.Contains(t, ev.ProviderEventID, "synthetic:")
}

func TestDeriveMultiGoalJump(t *testing.T) {
	var g Generator
	prev := board(model.PhaseLiveSecondHalf, 1, 0, "70'")
	curr := board(model.PhaseLiveSecondHalf, 2, 2, "78'")

	events := g.Derive(uuid.New(), model.SportSoccer, &prev, curr)
	require.Len(t, events, 3)

	// one event per increment, running scores in order
	assert.Equal(t, 2, *events[0].ScoreHome)
	assert.Equal(t, 1, *events[1].ScoreAway)
	assert.Equal(t, 2, *events[2].ScoreAway)
	for _, ev := range events {
		// 3 goals in one poll: confidence decays to 0.7 - 0.1*2
		assert.InDelta(t, 0.5, ev.Confidence, 1e-9)
	}
}

func TestDeriveConfidenceFloor(t *testing.T) {
	var g Generator
	prev := board(model.PhaseLiveQ4, 80, 90, "")
	curr := board(model.PhaseLiveQ4, 88, 90, "")

	events := g.Derive(uuid.New(), model.SportBasketball, &prev, curr)
	require.Len(t, events, 8)
	for _, ev := range events {
		assert.Equal(t, minConfidence, ev.Confidence)
		assert.Equal(t, model.EventBasket, ev.Type)
	}
}

func TestDeriveScoreRegressionIgnored(t *testing.T) {
	var g Generator
	prev := board(model.PhaseLiveFirstHalf, 2, 0, "30'")
	curr := board(model.PhaseLiveFirstHalf, 1, 0, "31'")

	events := g.Derive(uuid.New(), model.SportSoccer, &prev, curr)
	assert.Empty(t, events, "score drops are the verifier's problem, not a timeline event")
}
