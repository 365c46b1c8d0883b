// Package thesportsdb implements the TheSportsDB connector. Free tier,
// low rate limits, no play-by-play; the cascade's final fallback.
package thesportsdb

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/provider"
)

const baseURL = "https://www.thesportsdb.com/api/v1/json"

var statusPhases = map[string]model.MatchPhase{
	"not started":    model.PhaseScheduled,
	"ns":             model.PhaseScheduled,
	"match finished": model.PhaseFinished,
	"ft":             model.PhaseFinished,
	"finished":       model.PhaseFinished,
	"aet":            model.PhaseFinished,
	"pen.":           model.PhaseFinished,
	"postponed":      model.PhasePostponed,
	"cancelled":      model.PhaseCancelled,
	"suspended":      model.PhaseSuspended,
	"1h":             model.PhaseLiveFirstHalf,
	"ht":             model.PhaseLiveHalftime,
	"2h":             model.PhaseLiveSecondHalf,
	"et":             model.PhaseLiveExtraTime,
	"p":              model.PhaseLivePenalties,
	"live":           model.PhaseLiveFirstHalf,
}

func mapPhase(status string) model.MatchPhase {
	if p, ok := statusPhases[strings.ToLower(strings.TrimSpace(status))]; ok {
		return p
	}
	return model.PhaseScheduled
}

type Connector struct {
	http   *provider.HTTPClient
	apiKey string
}

// New builds the connector. The free tier uses api key "3".
func New(http *provider.HTTPClient, apiKey string) *Connector {
	if apiKey == "" {
		apiKey = "3"
	}
	return &Connector{http: http, apiKey: apiKey}
}

func (c *Connector) Name() model.Provider { return model.ProviderTheSportsDB }

// Covers excludes american football: TheSportsDB's NFL coverage lags
// too far behind live play to be useful.
func (c *Connector) Covers(s model.Sport) bool { return s != model.SportFootball }

type eventPayload struct {
	Events []tsdbEvent `json:"events"`
}

type tsdbEvent struct {
	IDEvent      string `json:"idEvent"`
	IDLeague     string `json:"idLeague"`
	StrLeague    string `json:"strLeague"`
	StrCountry   string `json:"strCountry"`
	IDHomeTeam   string `json:"idHomeTeam"`
	IDAwayTeam   string `json:"idAwayTeam"`
	StrHomeTeam  string `json:"strHomeTeam"`
	StrAwayTeam  string `json:"strAwayTeam"`
	IntHomeScore string `json:"intHomeScore"`
	IntAwayScore string `json:"intAwayScore"`
	IntHomeShots string `json:"intHomeShots"`
	IntAwayShots string `json:"intAwayShots"`
	StrStatus    string `json:"strStatus"`
	StrProgress  string `json:"strProgress"`
	DateEvent    string `json:"dateEvent"`
	StrTime      string `json:"strTime"`
	StrVenue     string `json:"strVenue"`
}

func (c *Connector) lookupEvent(ctx context.Context, matchProviderID string) (tsdbEvent, error) {
	var payload eventPayload
	u := fmt.Sprintf("%s/%s/lookupevent.php?id=%s", baseURL, c.apiKey, url.QueryEscape(matchProviderID))
	if err := c.http.GetJSON(ctx, u, &payload); err != nil {
		return tsdbEvent{}, fmt.Errorf("tsdb lookup event: %w", err)
	}
	if len(payload.Events) == 0 {
		return tsdbEvent{}, fmt.Errorf("tsdb event %s: %w", matchProviderID, provider.ErrNotFound)
	}
	return payload.Events[0], nil
}

func (c *Connector) FetchScoreboard(ctx context.Context, req provider.FetchRequest) (provider.ScoreboardData, error) {
	ev, err := c.lookupEvent(ctx, req.MatchProviderID)
	if err != nil {
		return provider.ScoreboardData{}, err
	}
	return provider.ScoreboardData{
		MatchProviderID: ev.IDEvent,
		HomeName:        ev.StrHomeTeam,
		AwayName:        ev.StrAwayTeam,
		HomeScore:       atoi(ev.IntHomeScore),
		AwayScore:       atoi(ev.IntAwayScore),
		Phase:           mapPhase(ev.StrStatus),
		Clock:           ev.StrProgress,
		StartTime:       parseEventTime(ev.DateEvent, ev.StrTime),
		FetchedAt:       time.Now().UTC(),
	}, nil
}

// FetchEvents reports not-supported: the free tier has no play-by-play.
// The synthetic builder fills the timeline for matches pinned here.
func (c *Connector) FetchEvents(ctx context.Context, req provider.FetchRequest) ([]provider.EventData, error) {
	return nil, provider.ErrNotSupported
}

func (c *Connector) FetchStats(ctx context.Context, req provider.FetchRequest) (provider.StatsData, error) {
	ev, err := c.lookupEvent(ctx, req.MatchProviderID)
	if err != nil {
		return provider.StatsData{}, err
	}
	st := provider.StatsData{
		HomeStats: map[string]any{},
		AwayStats: map[string]any{},
		FetchedAt: time.Now().UTC(),
	}
	if ev.IntHomeShots != "" {
		st.HomeStats["shots"] = atoi(ev.IntHomeShots)
	}
	if ev.IntAwayShots != "" {
		st.AwayStats["shots"] = atoi(ev.IntAwayShots)
	}
	return st, nil
}

func (c *Connector) FetchLeagueSchedule(ctx context.Context, sport model.Sport, leagueProviderID string, day time.Time) ([]provider.ScheduleEntry, error) {
	var payload eventPayload
	u := fmt.Sprintf("%s/%s/eventsday.php?d=%s&l=%s",
		baseURL, c.apiKey, day.Format("2006-01-02"), url.QueryEscape(leagueProviderID))
	if err := c.http.GetJSON(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("tsdb schedule: %w", err)
	}

	out := make([]provider.ScheduleEntry, 0, len(payload.Events))
	for _, ev := range payload.Events {
		out = append(out, provider.ScheduleEntry{
			MatchProviderID:  ev.IDEvent,
			LeagueProviderID: leagueProviderID,
			LeagueName:       ev.StrLeague,
			HomeProviderID:   ev.IDHomeTeam,
			HomeName:         ev.StrHomeTeam,
			HomeShortName:    shortName(ev.StrHomeTeam),
			AwayProviderID:   ev.IDAwayTeam,
			AwayName:         ev.StrAwayTeam,
			AwayShortName:    shortName(ev.StrAwayTeam),
			StartTime:        parseEventTime(ev.DateEvent, ev.StrTime),
			Venue:            ev.StrVenue,
			Phase:            mapPhase(ev.StrStatus),
		})
	}
	return out, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func shortName(team string) string {
	team = strings.TrimSpace(team)
	if len(team) > 3 {
		team = team[:3]
	}
	return strings.ToUpper(team)
}

func parseEventTime(date, clock string) time.Time {
	if clock == "" {
		clock = "00:00:00"
	}
	if t, err := time.Parse("2006-01-02T15:04:05", date+"T"+clock); err == nil {
		return t.UTC()
	}
	return time.Now().UTC()
}
