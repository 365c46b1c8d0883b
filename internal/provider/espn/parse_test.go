package espn

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liveview/liveview/internal/model"
)

func TestParsePhaseSoccer(t *testing.T) {
	cases := []struct {
		statusType string
		detail     string
		clock      string
		want       model.MatchPhase
	}{
		{"STATUS_SCHEDULED", "Sat, March 1st at 3:00 PM GMT", "", model.PhaseScheduled},
		{"STATUS_IN_PROGRESS", "1st Half", "23'", model.PhaseLiveFirstHalf},
		{"STATUS_IN_PROGRESS", "2nd Half", "67'", model.PhaseLiveSecondHalf},
		{"STATUS_HALFTIME", "Halftime", "", model.PhaseLiveHalftime},
		{"STATUS_IN_PROGRESS", "", "78'", model.PhaseLiveSecondHalf},
		{"STATUS_IN_PROGRESS", "", "95'", model.PhaseLiveExtraTime},
		{"STATUS_IN_PROGRESS", "Extra Time", "", model.PhaseLiveExtraTime},
		{"STATUS_IN_PROGRESS", "Penalty Shootout", "", model.PhaseLivePenalties},
		{"STATUS_FULL_TIME", "FT", "", model.PhaseFinished},
		{"STATUS_POSTPONED", "Postponed", "", model.PhasePostponed},
		{"STATUS_CANCELED", "Canceled", "", model.PhaseCancelled},
		{"STATUS_SUSPENDED", "Suspended", "", model.PhaseSuspended},
	}
	for _, tc := range cases {
		got := parsePhase(tc.statusType, tc.detail, model.SportSoccer, tc.clock)
		assert.Equal(t, tc.want, got, "%s / %s / %s", tc.statusType, tc.detail, tc.clock)
	}
}

func TestParsePhaseBasketball(t *testing.T) {
	assert.Equal(t, model.PhaseLiveQ3,
		parsePhase("STATUS_IN_PROGRESS", "8:41 - 3rd Quarter", model.SportBasketball, ""))
	assert.Equal(t, model.PhaseLiveOT,
		parsePhase("STATUS_IN_PROGRESS", "Overtime", model.SportBasketball, ""))
	assert.Equal(t, model.PhaseBreak,
		parsePhase("STATUS_HALFTIME", "Halftime", model.SportBasketball, ""))
}

func TestParsePhaseHockey(t *testing.T) {
	assert.Equal(t, model.PhaseLiveP2,
		parsePhase("STATUS_IN_PROGRESS", "12:05 - 2nd Period", model.SportHockey, ""))
}

func TestParseEventType(t *testing.T) {
	assert.Equal(t, model.EventGoal, parseEventType("Goal"))
	assert.Equal(t, model.EventOwnGoal, parseEventType("Own Goal"))
	assert.Equal(t, model.EventYellowCard, parseEventType("Yellow Card"))
	assert.Equal(t, model.EventSubstitution, parseEventType("Substitution"))
	assert.Equal(t, model.EventBasket, parseEventType("Field Goal Made"))
	assert.Equal(t, model.EventGeneric, parseEventType("Kickoff Return"))
}

func TestParsePlayClock(t *testing.T) {
	m, s := parsePlayClock(json.RawMessage(`{"displayValue":"12:34"}`))
	require.NotNil(t, m)
	require.NotNil(t, s)
	assert.Equal(t, 12, *m)
	assert.Equal(t, 34, *s)

	m, s = parsePlayClock(json.RawMessage(`754`))
	require.NotNil(t, m)
	assert.Equal(t, 12, *m)
	assert.Equal(t, 34, *s)

	m, s = parsePlayClock(nil)
	assert.Nil(t, m)
	assert.Nil(t, s)
}

func TestParsePlayPeriod(t *testing.T) {
	assert.Equal(t, "2", parsePlayPeriod(json.RawMessage(`{"number":2}`)))
	assert.Equal(t, "3", parsePlayPeriod(json.RawMessage(`3`)))
	assert.Equal(t, "OT", parsePlayPeriod(json.RawMessage(`"OT"`)))
	assert.Equal(t, "", parsePlayPeriod(nil))
}

func TestParseScoreboardEvent(t *testing.T) {
	raw := `{
		"id": "401547417",
		"date": "2026-08-25T19:00Z",
		"competitions": [{
			"competitors": [
				{"homeAway": "home", "score": "2", "team": {"id": "359", "displayName": "Arsenal"}},
				{"homeAway": "away", "score": "1", "team": {"id": "363", "displayName": "Chelsea"}}
			],
			"status": {"displayClock": "67'", "type": {"name": "STATUS_IN_PROGRESS", "detail": "2nd Half"}}
		}]
	}`
	var ev scoreboardEvent
	require.NoError(t, json.Unmarshal([]byte(raw), &ev))

	sb := parseScoreboardEvent(ev, model.SportSoccer)
	assert.Equal(t, "401547417", sb.MatchProviderID)
	assert.Equal(t, "Arsenal", sb.HomeName)
	assert.Equal(t, "Chelsea", sb.AwayName)
	assert.Equal(t, 2, sb.HomeScore)
	assert.Equal(t, 1, sb.AwayScore)
	assert.Equal(t, model.PhaseLiveSecondHalf, sb.Phase)
	assert.Equal(t, "67'", sb.Clock)
	assert.Equal(t, 2026, sb.StartTime.Year())
}

func TestParseStatList(t *testing.T) {
	stats := []boxscoreStat{
		{Name: "possessionPct", DisplayValue: "61.5%"},
		{Name: "totalShots", DisplayValue: "14"},
		{Label: "Shots on Target", DisplayValue: "6"},
		{Name: "formation", DisplayValue: "4-3-3"},
	}
	out := parseStatList(stats)
	assert.Equal(t, 61.5, out["possessionpct"])
	assert.Equal(t, 14, out["totalshots"])
	assert.Equal(t, 6, out["shots_on_target"])
	assert.Equal(t, "4-3-3", out["formation"])
}
