// Package footballdata implements the football-data.org v4 connector.
// Soccer only; goals and bookings stand in for play-by-play.
package footballdata

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/provider"
)

const baseURL = "https://api.football-data.org/v4"

func mapStatus(status string, minute int) model.MatchPhase {
	switch strings.ToUpper(strings.TrimSpace(status)) {
	case "SCHEDULED", "TIMED":
		return model.PhaseScheduled
	case "LIVE", "IN_PLAY":
		// the API does not name the half; the minute does
		if minute > 90 {
			return model.PhaseLiveExtraTime
		}
		if minute > 45 {
			return model.PhaseLiveSecondHalf
		}
		return model.PhaseLiveFirstHalf
	case "PAUSED":
		return model.PhaseLiveHalftime
	case "FINISHED":
		return model.PhaseFinished
	case "POSTPONED":
		return model.PhasePostponed
	case "SUSPENDED":
		return model.PhaseSuspended
	case "CANCELLED":
		return model.PhaseCancelled
	}
	return model.PhaseScheduled
}

type Connector struct {
	http *provider.HTTPClient
}

// New builds the connector. The caller bakes the X-Auth-Token header
// into the HTTP client.
func New(http *provider.HTTPClient) *Connector {
	return &Connector{http: http}
}

func (c *Connector) Name() model.Provider { return model.ProviderFootballData }

func (c *Connector) Covers(s model.Sport) bool { return s == model.SportSoccer }

// ── wire shapes ─────────────────────────────────────────────────────────

type matchPayload struct {
	ID          int64      `json:"id"`
	UTCDate     string     `json:"utcDate"`
	Status      string     `json:"status"`
	Minute      int        `json:"minute"`
	InjuryTime  int        `json:"injuryTime"`
	Venue       string     `json:"venue"`
	Competition competitionInfo `json:"competition"`
	Area        struct {
		Name string `json:"name"`
	} `json:"area"`
	HomeTeam teamSide   `json:"homeTeam"`
	AwayTeam teamSide   `json:"awayTeam"`
	Score    scoreInfo  `json:"score"`
	Goals    []goalInfo `json:"goals"`
	Bookings []booking  `json:"bookings"`
}

type competitionInfo struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type teamSide struct {
	ID         int64          `json:"id"`
	Name       string         `json:"name"`
	ShortName  string         `json:"shortName"`
	Crest      string         `json:"crest"`
	Statistics map[string]any `json:"statistics"`
}

type scoreInfo struct {
	FullTime scorePair `json:"fullTime"`
	HalfTime scorePair `json:"halfTime"`
}

type scorePair struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

type goalInfo struct {
	Minute int    `json:"minute"`
	Type   string `json:"type"`
	Scorer person `json:"scorer"`
	Assist *person `json:"assist"`
	Score  scorePair `json:"score"`
}

type booking struct {
	Minute int    `json:"minute"`
	Card   string `json:"card"`
	Player person `json:"player"`
}

type person struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type matchesPayload struct {
	Matches []matchPayload `json:"matches"`
}

func (c *Connector) fetchMatch(ctx context.Context, matchProviderID string) (matchPayload, error) {
	var m matchPayload
	u := baseURL + "/matches/" + url.PathEscape(matchProviderID)
	if err := c.http.GetJSON(ctx, u, &m); err != nil {
		return matchPayload{}, fmt.Errorf("football-data match: %w", err)
	}
	return m, nil
}

func (c *Connector) FetchScoreboard(ctx context.Context, req provider.FetchRequest) (provider.ScoreboardData, error) {
	if req.Sport != model.SportSoccer {
		return provider.ScoreboardData{}, provider.ErrNotSupported
	}
	m, err := c.fetchMatch(ctx, req.MatchProviderID)
	if err != nil {
		return provider.ScoreboardData{}, err
	}

	clock := ""
	if m.Minute > 0 {
		clock = strconv.Itoa(m.Minute)
		if m.InjuryTime > 0 {
			clock += "+" + strconv.Itoa(m.InjuryTime)
		}
		clock += "'"
	}

	ft, ht := m.Score.FullTime, m.Score.HalfTime
	sb := provider.ScoreboardData{
		MatchProviderID: strconv.FormatInt(m.ID, 10),
		HomeName:        m.HomeTeam.Name,
		AwayName:        m.AwayTeam.Name,
		HomeScore:       ft.Home,
		AwayScore:       ft.Away,
		Phase:           mapStatus(m.Status, m.Minute),
		Clock:           clock,
		StartTime:       parseUTC(m.UTCDate),
		FetchedAt:       time.Now().UTC(),
	}
	if m.Status != "SCHEDULED" && m.Status != "TIMED" {
		sb.Breakdown = []model.ScoreBreakdown{
			{Period: "1", Home: ht.Home, Away: ht.Away},
			{Period: "2", Home: ft.Home - ht.Home, Away: ft.Away - ht.Away},
		}
	}
	return sb, nil
}

func (c *Connector) FetchEvents(ctx context.Context, req provider.FetchRequest) ([]provider.EventData, error) {
	if req.Sport != model.SportSoccer {
		return nil, provider.ErrNotSupported
	}
	m, err := c.fetchMatch(ctx, req.MatchProviderID)
	if err != nil {
		return nil, err
	}

	out := make([]provider.EventData, 0, len(m.Goals)+len(m.Bookings))
	for _, g := range m.Goals {
		typ := model.EventGoal
		if strings.EqualFold(g.Type, "PENALTY") {
			typ = model.EventPenalty
		}
		ev := provider.EventData{
			ProviderEventID: fmt.Sprintf("goal:%d:%d", g.Minute, g.Scorer.ID),
			Type:            typ,
			Minute:          model.IntPtr(g.Minute),
			PlayerName:      g.Scorer.Name,
			ScoreHome:       model.IntPtr(g.Score.Home),
			ScoreAway:       model.IntPtr(g.Score.Away),
		}
		if g.Assist != nil && g.Assist.Name != "" {
			ev.Detail = "assist: " + g.Assist.Name
		}
		out = append(out, ev)
	}
	for _, b := range m.Bookings {
		typ := model.EventYellowCard
		if strings.Contains(strings.ToUpper(b.Card), "RED") {
			typ = model.EventRedCard
		}
		out = append(out, provider.EventData{
			ProviderEventID: fmt.Sprintf("book:%d:%d", b.Minute, b.Player.ID),
			Type:            typ,
			Minute:          model.IntPtr(b.Minute),
			PlayerName:      b.Player.Name,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return derefMinute(out[i].Minute) < derefMinute(out[j].Minute)
	})
	return out, nil
}

func (c *Connector) FetchStats(ctx context.Context, req provider.FetchRequest) (provider.StatsData, error) {
	if req.Sport != model.SportSoccer {
		return provider.StatsData{}, provider.ErrNotSupported
	}
	m, err := c.fetchMatch(ctx, req.MatchProviderID)
	if err != nil {
		return provider.StatsData{}, err
	}
	return provider.StatsData{
		HomeStats: normalizeStats(m.HomeTeam.Statistics),
		AwayStats: normalizeStats(m.AwayTeam.Statistics),
		FetchedAt: time.Now().UTC(),
	}, nil
}

func (c *Connector) FetchLeagueSchedule(ctx context.Context, sport model.Sport, leagueProviderID string, day time.Time) ([]provider.ScheduleEntry, error) {
	if sport != model.SportSoccer {
		return nil, provider.ErrNotSupported
	}
	var payload matchesPayload
	d := day.Format("2006-01-02")
	u := fmt.Sprintf("%s/competitions/%s/matches?dateFrom=%s&dateTo=%s",
		baseURL, url.PathEscape(leagueProviderID), d, d)
	if err := c.http.GetJSON(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("football-data schedule: %w", err)
	}

	out := make([]provider.ScheduleEntry, 0, len(payload.Matches))
	for _, m := range payload.Matches {
		out = append(out, provider.ScheduleEntry{
			MatchProviderID:  strconv.FormatInt(m.ID, 10),
			LeagueProviderID: leagueProviderID,
			LeagueName:       m.Competition.Name,
			HomeProviderID:   strconv.FormatInt(m.HomeTeam.ID, 10),
			HomeName:         m.HomeTeam.Name,
			HomeShortName:    m.HomeTeam.ShortName,
			HomeLogoURL:      m.HomeTeam.Crest,
			AwayProviderID:   strconv.FormatInt(m.AwayTeam.ID, 10),
			AwayName:         m.AwayTeam.Name,
			AwayShortName:    m.AwayTeam.ShortName,
			AwayLogoURL:      m.AwayTeam.Crest,
			StartTime:        parseUTC(m.UTCDate),
			Venue:            m.Venue,
			Phase:            mapStatus(m.Status, m.Minute),
		})
	}
	return out, nil
}

func normalizeStats(raw map[string]any) map[string]any {
	if raw == nil {
		return map[string]any{}
	}
	return raw
}

func derefMinute(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}

func parseUTC(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now().UTC()
}
