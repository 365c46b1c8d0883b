// Package sportradar implements the Sportradar REST connector, first
// in the cascade when a key is configured.
package sportradar

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/provider"
)

const baseURL = "https://api.sportradar.com"

var sportPrefixes = map[model.Sport]string{
	model.SportSoccer:     "soccer",
	model.SportBasketball: "basketball",
	model.SportHockey:     "ice_hockey",
	model.SportBaseball:   "baseball",
}

var statusPhases = map[string]model.MatchPhase{
	"not_started": model.PhaseScheduled,
	"scheduled":   model.PhaseScheduled,
	"created":     model.PhaseScheduled,
	"closed":      model.PhaseFinished,
	"ended":       model.PhaseFinished,
	"complete":    model.PhaseFinished,
	"postponed":   model.PhasePostponed,
	"cancelled":   model.PhaseCancelled,
	"abandoned":   model.PhaseCancelled,
	"suspended":   model.PhaseSuspended,
	"halftime":    model.PhaseLiveHalftime,
	"1st_half":    model.PhaseLiveFirstHalf,
	"2nd_half":    model.PhaseLiveSecondHalf,
	"extra_time":  model.PhaseLiveExtraTime,
	"penalties":   model.PhaseLivePenalties,
	"1st_quarter": model.PhaseLiveQ1,
	"2nd_quarter": model.PhaseLiveQ2,
	"3rd_quarter": model.PhaseLiveQ3,
	"4th_quarter": model.PhaseLiveQ4,
	"overtime":    model.PhaseLiveOT,
	"1st_period":  model.PhaseLiveP1,
	"2nd_period":  model.PhaseLiveP2,
	"3rd_period":  model.PhaseLiveP3,
	"inning":      model.PhaseLiveInning,
	"break":       model.PhaseBreak,
	"live":        model.PhaseLiveFirstHalf,
	"in_progress": model.PhaseLiveFirstHalf,
}

func mapPhase(status string) model.MatchPhase {
	if p, ok := statusPhases[strings.ToLower(status)]; ok {
		return p
	}
	return model.PhaseScheduled
}

// eventTypeMap translates timeline entry types; first substring hit wins.
var eventTypeMap = []struct {
	substr string
	typ    model.EventType
}{
	{"score_change", model.EventGoal},
	{"own_goal", model.EventOwnGoal},
	{"goal", model.EventGoal},
	{"yellow_red_card", model.EventRedCard},
	{"yellow_card", model.EventYellowCard},
	{"red_card", model.EventRedCard},
	{"substitution", model.EventSubstitution},
	{"penalty_missed", model.EventPenaltyMiss},
	{"penalty_kick", model.EventPenalty},
	{"period_start", model.EventPeriodStart},
	{"period_end", model.EventPeriodEnd},
	{"match_started", model.EventMatchStart},
	{"match_ended", model.EventMatchEnd},
	{"shot_on_target", model.EventShot},
	{"shot_off_target", model.EventShot},
	{"corner_kick", model.EventCorner},
	{"offside", model.EventOffside},
	{"free_kick", model.EventFreeKick},
	{"throw_in", model.EventThrowIn},
	{"foul", model.EventFoul},
	{"timeout", model.EventTimeout},
}

func mapEventType(entryType string) model.EventType {
	et := strings.ToLower(entryType)
	for _, m := range eventTypeMap {
		if strings.Contains(et, m.substr) {
			return m.typ
		}
	}
	return model.EventGeneric
}

type Connector struct {
	http   *provider.HTTPClient
	apiKey string
}

func New(http *provider.HTTPClient, apiKey string) *Connector {
	return &Connector{http: http, apiKey: apiKey}
}

func (c *Connector) Name() model.Provider { return model.ProviderSportradar }

// Covers excludes american football: that feed lives on a separate
// Sportradar product we do not license.
func (c *Connector) Covers(s model.Sport) bool { return s != model.SportFootball }

func (c *Connector) endpoint(sport model.Sport, path string) string {
	prefix, ok := sportPrefixes[sport]
	if !ok {
		prefix = "soccer"
	}
	u := fmt.Sprintf("%s/%s/trial/v4/en%s", baseURL, prefix, path)
	if c.apiKey != "" {
		u += "?api_key=" + url.QueryEscape(c.apiKey)
	}
	return u
}

// ── wire shapes ─────────────────────────────────────────────────────────

type summaryPayload struct {
	SportEvent       sportEvent       `json:"sport_event"`
	SportEventStatus sportEventStatus `json:"sport_event_status"`
	Statistics       struct {
		Totals struct {
			Competitors []statCompetitor `json:"competitors"`
		} `json:"totals"`
	} `json:"statistics"`
}

type sportEvent struct {
	ID          string          `json:"id"`
	Scheduled   string          `json:"scheduled"`
	Competitors []srCompetitor  `json:"competitors"`
	Venue       struct {
		Name string `json:"name"`
	} `json:"venue"`
	Season     tournamentInfo `json:"season"`
	Tournament tournamentInfo `json:"tournament"`
}

type tournamentInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type srCompetitor struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Abbreviation string `json:"abbreviation"`
	Qualifier    string `json:"qualifier"`
}

type sportEventStatus struct {
	Status       string        `json:"status"`
	HomeScore    int           `json:"home_score"`
	AwayScore    int           `json:"away_score"`
	PeriodScores []periodScore `json:"period_scores"`
	Clock        struct {
		Played    string `json:"played"`
		MatchTime string `json:"match_time"`
	} `json:"clock"`
}

type periodScore struct {
	Number    json.Number `json:"number"`
	Type      string      `json:"type"`
	HomeScore int         `json:"home_score"`
	AwayScore int         `json:"away_score"`
}

type statCompetitor struct {
	Qualifier  string         `json:"qualifier"`
	Statistics map[string]any `json:"statistics"`
}

type timelinePayload struct {
	Timeline []timelineEntry `json:"timeline"`
}

type timelineEntry struct {
	ID        json.Number     `json:"id"`
	Type      string          `json:"type"`
	MatchTime json.RawMessage `json:"match_time"`
	Period    json.Number     `json:"period"`
	Team      srCompetitor    `json:"team"`
	Competitor srCompetitor   `json:"competitor"`
	Players   []srPlayer      `json:"players"`
	Commentary string         `json:"commentary"`
	Description string        `json:"description"`
	HomeScore  *int           `json:"home_score"`
	AwayScore  *int           `json:"away_score"`
}

type srPlayer struct {
	Name string `json:"name"`
}

type schedulePayload struct {
	SportEvents []scheduleEvent `json:"sport_events"`
}

type scheduleEvent struct {
	ID          string         `json:"id"`
	Scheduled   string         `json:"scheduled"`
	Competitors []srCompetitor `json:"competitors"`
	Venue       struct {
		Name string `json:"name"`
	} `json:"venue"`
	SportEventStatus struct {
		Status string `json:"status"`
	} `json:"sport_event_status"`
}

// ── fetches ─────────────────────────────────────────────────────────────

func (c *Connector) FetchScoreboard(ctx context.Context, req provider.FetchRequest) (provider.ScoreboardData, error) {
	if !c.Covers(req.Sport) {
		return provider.ScoreboardData{}, provider.ErrNotSupported
	}
	var payload summaryPayload
	u := c.endpoint(req.Sport, "/sport_events/"+url.PathEscape(req.MatchProviderID)+"/summary.json")
	if err := c.http.GetJSON(ctx, u, &payload); err != nil {
		return provider.ScoreboardData{}, fmt.Errorf("sportradar summary: %w", err)
	}

	ses := payload.SportEventStatus
	home, away := splitCompetitors(payload.SportEvent.Competitors)

	sb := provider.ScoreboardData{
		MatchProviderID: payload.SportEvent.ID,
		HomeScore:       ses.HomeScore,
		AwayScore:       ses.AwayScore,
		Phase:           mapPhase(ses.Status),
		StartTime:       parseScheduled(payload.SportEvent.Scheduled),
		FetchedAt:       time.Now().UTC(),
	}
	if home != nil {
		sb.HomeName = home.Name
	}
	if away != nil {
		sb.AwayName = away.Name
	}
	if ses.Clock.Played != "" {
		sb.Clock = ses.Clock.Played
	} else {
		sb.Clock = ses.Clock.MatchTime
	}
	for _, ps := range ses.PeriodScores {
		period := ps.Number.String()
		if period == "" {
			period = ps.Type
		}
		sb.Breakdown = append(sb.Breakdown, model.ScoreBreakdown{
			Period: period,
			Home:   ps.HomeScore,
			Away:   ps.AwayScore,
		})
	}
	return sb, nil
}

func (c *Connector) FetchEvents(ctx context.Context, req provider.FetchRequest) ([]provider.EventData, error) {
	if !c.Covers(req.Sport) {
		return nil, provider.ErrNotSupported
	}
	var payload timelinePayload
	u := c.endpoint(req.Sport, "/sport_events/"+url.PathEscape(req.MatchProviderID)+"/timeline.json")
	if err := c.http.GetJSON(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("sportradar timeline: %w", err)
	}

	out := make([]provider.EventData, 0, len(payload.Timeline))
	for i, entry := range payload.Timeline {
		if entry.Type == "" {
			continue
		}
		ev := provider.EventData{
			ProviderEventID: entry.ID.String(),
			Type:            mapEventType(entry.Type),
			Minute:          parseMatchTime(entry.MatchTime),
			Period:          entry.Period.String(),
			Detail:          entry.Commentary,
			ScoreHome:       entry.HomeScore,
			ScoreAway:       entry.AwayScore,
		}
		if ev.ProviderEventID == "" {
			ev.ProviderEventID = strconv.Itoa(i)
		}
		if ev.Detail == "" {
			ev.Detail = entry.Description
		}
		if ev.Detail == "" {
			ev.Detail = entry.Type
		}
		if entry.Team.ID != "" {
			ev.TeamProviderID = entry.Team.ID
		} else {
			ev.TeamProviderID = entry.Competitor.ID
		}
		if len(entry.Players) > 0 {
			ev.PlayerName = entry.Players[0].Name
		}
		out = append(out, ev)
	}
	return out, nil
}

func (c *Connector) FetchStats(ctx context.Context, req provider.FetchRequest) (provider.StatsData, error) {
	if !c.Covers(req.Sport) {
		return provider.StatsData{}, provider.ErrNotSupported
	}
	var payload summaryPayload
	u := c.endpoint(req.Sport, "/sport_events/"+url.PathEscape(req.MatchProviderID)+"/summary.json")
	if err := c.http.GetJSON(ctx, u, &payload); err != nil {
		return provider.StatsData{}, fmt.Errorf("sportradar stats: %w", err)
	}

	st := provider.StatsData{
		HomeStats: map[string]any{},
		AwayStats: map[string]any{},
		FetchedAt: time.Now().UTC(),
	}
	for _, comp := range payload.Statistics.Totals.Competitors {
		if comp.Statistics == nil {
			continue
		}
		if comp.Qualifier == "home" {
			st.HomeStats = comp.Statistics
		} else {
			st.AwayStats = comp.Statistics
		}
	}
	return st, nil
}

func (c *Connector) FetchLeagueSchedule(ctx context.Context, sport model.Sport, leagueProviderID string, day time.Time) ([]provider.ScheduleEntry, error) {
	if !c.Covers(sport) {
		return nil, provider.ErrNotSupported
	}
	var payload schedulePayload
	u := c.endpoint(sport, "/schedules/"+day.Format("2006-01-02")+"/schedule.json")
	if err := c.http.GetJSON(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("sportradar schedule: %w", err)
	}

	out := make([]provider.ScheduleEntry, 0, len(payload.SportEvents))
	for _, ev := range payload.SportEvents {
		home, away := splitCompetitors(ev.Competitors)
		if home == nil || away == nil {
			continue
		}
		out = append(out, provider.ScheduleEntry{
			MatchProviderID:  ev.ID,
			LeagueProviderID: leagueProviderID,
			HomeProviderID:   home.ID,
			HomeName:         home.Name,
			HomeShortName:    abbrev(home),
			AwayProviderID:   away.ID,
			AwayName:         away.Name,
			AwayShortName:    abbrev(away),
			StartTime:        parseScheduled(ev.Scheduled),
			Venue:            ev.Venue.Name,
			Phase:            mapPhase(ev.SportEventStatus.Status),
		})
	}
	return out, nil
}

func splitCompetitors(cs []srCompetitor) (home, away *srCompetitor) {
	for i := range cs {
		switch cs[i].Qualifier {
		case "home":
			home = &cs[i]
		case "away":
			away = &cs[i]
		}
	}
	return home, away
}

func abbrev(c *srCompetitor) string {
	if c.Abbreviation != "" {
		return c.Abbreviation
	}
	name := c.Name
	if len(name) > 3 {
		name = name[:3]
	}
	return strings.ToUpper(name)
}

// parseMatchTime handles both "67:12" strings and bare minute numbers.
func parseMatchTime(raw json.RawMessage) *int {
	if len(raw) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if i := strings.IndexByte(s, ':'); i > 0 {
			s = s[:i]
		}
		if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return model.IntPtr(n)
		}
		return nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return model.IntPtr(int(f))
	}
	return nil
}

func parseScheduled(s string) time.Time {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Now().UTC()
}
