package verifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/provider"
)

func current(home, away int, phase model.MatchPhase) model.Scoreboard {
	return model.Scoreboard{
		Score: model.Score{Home: home, Away: away},
		Phase: phase,
	}
}

func source(home, away int, phase model.MatchPhase, age time.Duration) provider.ScoreboardData {
	return provider.ScoreboardData{
		HomeScore: home,
		AwayScore: away,
		Phase:     phase,
		FetchedAt: time.Now().Add(-age),
	}
}

func TestComputeConfidenceNoSources(t *testing.T) {
	conf, disp, rec := ComputeConfidence(current(1, 0, model.PhaseLiveFirstHalf), nil)
	assert.Zero(t, conf)
	assert.Equal(t, DispositionDisputed, disp)
	assert.Nil(t, rec)
}

func TestComputeConfidenceTwoAgree(t *testing.T) {
	verified := []provider.ScoreboardData{
		source(1, 0, model.PhaseLiveFirstHalf, time.Second),
		source(1, 0, model.PhaseLiveSecondHalf, 2*time.Second), // live-family match is enough
	}
	conf, disp, rec := ComputeConfidence(current(1, 0, model.PhaseLiveFirstHalf), verified)
	assert.Equal(t, 0.9, conf)
	assert.Equal(t, DispositionHigh, disp)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.HomeScore)
}

func TestComputeConfidenceOneAgrees(t *testing.T) {
	verified := []provider.ScoreboardData{
		source(1, 0, model.PhaseLiveFirstHalf, time.Second),
		source(2, 0, model.PhaseLiveFirstHalf, time.Second),
	}
	conf, disp, rec := ComputeConfidence(current(1, 0, model.PhaseLiveFirstHalf), verified)
	assert.Equal(t, 0.6, conf)
	assert.Equal(t, DispositionMedium, disp)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.HomeScore)
}

func TestComputeConfidenceAllDisagreeRecommendsFreshest(t *testing.T) {
	verified := []provider.ScoreboardData{
		source(2, 0, model.PhaseLiveFirstHalf, time.Minute),
		source(2, 1, model.PhaseLiveFirstHalf, time.Second),
	}
	conf, disp, rec := ComputeConfidence(current(1, 0, model.PhaseLiveFirstHalf), verified)
	assert.Equal(t, 0.3, conf)
	assert.Equal(t, DispositionDisputed, disp)
	require.NotNil(t, rec)
	assert.Equal(t, 1, rec.AwayScore, "freshest source wins the recommendation")
}

func TestComputeConfidencePhaseMismatch(t *testing.T) {
	// same score, but source says finished while we say live
	verified := []provider.ScoreboardData{
		source(1, 0, model.PhaseFinished, time.Second),
	}
	conf, _, _ := ComputeConfidence(current(1, 0, model.PhaseLiveSecondHalf), verified)
	assert.Equal(t, 0.3, conf)
}

func TestTeamNamesMatch(t *testing.T) {
	assert.True(t, teamNamesMatch("Arsenal", "Chelsea", "Arsenal", "Chelsea"))
	assert.True(t, teamNamesMatch("Arsenal", "Chelsea", "Arsenal FC", "Chelsea FC"))
	assert.True(t, teamNamesMatch("  arsenal ", "CHELSEA", "Arsenal", "chelsea"))
	assert.False(t, teamNamesMatch("Arsenal", "Chelsea", "Chelsea", "Arsenal"))
	assert.False(t, teamNamesMatch("Arsenal", "Chelsea", "Liverpool", "Everton"))
	assert.False(t, teamNamesMatch("", "", "Arsenal", "Chelsea"))
}
