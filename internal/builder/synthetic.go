// Package builder keeps the tier-1 timeline populated for matches
// whose provider has no play-by-play: it diffs successive scoreboard
// snapshots into synthetic events and retires them when real events
// arrive.
package builder

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/liveview/liveview/internal/model"
)

const minConfidence = 0.3

// Generator infers timeline events from scoreboard state changes.
// Confidence reflects granularity: a clean single-goal diff scores
// higher than a multi-goal jump observed in one poll.
type Generator struct{}

// Derive compares the previous and current scoreboard and returns the
// synthetic events implied by the transition. prev is nil for the
// first snapshot of a match.
func (Generator) Derive(matchID uuid.UUID, sport model.Sport, prev *model.Scoreboard, curr model.Scoreboard) []model.MatchEvent {
	if prev == nil {
		if model.PhaseIsLive(curr.Phase) {
			return []model.MatchEvent{makeSynthetic(matchID, model.EventMatchStart, model.IntPtr(0), "", nil,
				fmt.Sprintf("Match started (%s)", curr.Phase), 0.9, curr.Score)}
		}
		return nil
	}

	var events []model.MatchEvent
	events = append(events, phaseTransitions(matchID, prev.Phase, curr.Phase, curr.Clock, curr.Score)...)
	events = append(events, scoreChanges(matchID, sport, prev.Score, curr.Score, curr.Clock,
		curr.HomeTeam.ID, curr.AwayTeam.ID)...)
	return events
}

func phaseTransitions(matchID uuid.UUID, prev, curr model.MatchPhase, clock string, score model.Score) []model.MatchEvent {
	if prev == curr {
		return nil
	}
	minute := clockMinute(clock)

	switch {
	case !model.PhaseIsLive(prev) && model.PhaseIsLive(curr):
		return []model.MatchEvent{makeSynthetic(matchID, model.EventMatchStart, model.IntPtr(0), "", nil,
			"Match started", 0.95, score)}
	case model.PhaseIsLive(prev) && model.PhaseIsTerminal(curr):
		return []model.MatchEvent{makeSynthetic(matchID, model.EventMatchEnd, minute, "", nil,
			fmt.Sprintf("Match ended (%s)", curr), 0.95, score)}
	case model.PhaseIsLive(prev) && model.PhaseIsBreak(curr):
		return []model.MatchEvent{makeSynthetic(matchID, model.EventPeriodEnd, minute, "", nil,
			fmt.Sprintf("Break: %s", curr), 0.9, score)}
	case model.PhaseIsLive(prev) && model.PhaseIsLive(curr):
		return []model.MatchEvent{
			makeSynthetic(matchID, model.EventPeriodEnd, minute, string(prev), nil,
				fmt.Sprintf("Period ended: %s", prev), 0.85, score),
			makeSynthetic(matchID, model.EventPeriodStart, minute, string(curr), nil,
				fmt.Sprintf("Period started: %s", curr), 0.85, score),
		}
	}
	return nil
}

func scoreChanges(matchID uuid.UUID, sport model.Sport, prev, curr model.Score, clock string, homeTeamID, awayTeamID uuid.UUID) []model.MatchEvent {
	homeDelta := curr.Home - prev.Home
	awayDelta := curr.Away - prev.Away
	if homeDelta <= 0 && awayDelta <= 0 {
		return nil
	}

	minute := clockMinute(clock)
	scoringType := model.ScoringEvent(sport)
	totalDelta := abs(homeDelta) + abs(awayDelta)
	confidence := 0.7 - 0.1*float64(max(0, totalDelta-1))
	if confidence < minConfidence {
		confidence = minConfidence
	}

	var events []model.MatchEvent
	for i := 0; i < homeDelta; i++ {
		running := model.Score{Home: prev.Home + i + 1, Away: curr.Away}
		events = append(events, makeSynthetic(matchID, scoringType, minute, "", model.UUIDPtr(homeTeamID),
			fmt.Sprintf("Home team scored (%d-%d)", prev.Home+i+1, prev.Away), confidence, running))
	}
	for i := 0; i < awayDelta; i++ {
		running := model.Score{Home: curr.Home, Away: prev.Away + i + 1}
		events = append(events, makeSynthetic(matchID, scoringType, minute, "", model.UUIDPtr(awayTeamID),
			fmt.Sprintf("Away team scored (%d-%d)", curr.Home, prev.Away+i+1), confidence, running))
	}
	return events
}

func makeSynthetic(matchID uuid.UUID, t model.EventType, minute *int, period string, teamID *uuid.UUID, detail string, confidence float64, score model.Score) model.MatchEvent {
	return model.MatchEvent{
		ID:              uuid.New(),
		MatchID:         matchID,
		Type:            t,
		Minute:          minute,
		Period:          period,
		TeamID:          teamID,
		Detail:          detail,
		ScoreHome:       model.IntPtr(score.Home),
		ScoreAway:       model.IntPtr(score.Away),
		Synthetic:       true,
		Confidence:      confidence,
		ProviderEventID: "synthetic:" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		CreatedAt:       time.Now().UTC(),
	}
}

func clockMinute(clock string) *int {
	m := model.ParseClockMinute(clock)
	if m < 0 {
		return nil
	}
	return model.IntPtr(m)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
