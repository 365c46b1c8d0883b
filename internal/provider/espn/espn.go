// Package espn implements the ESPN site API connector. ESPN covers all
// five sports and serves as both a cascade member and the verifier's
// secondary source.
package espn

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/provider"
)

const baseURL = "https://site.api.espn.com/apis/site/v2/sports"

// leagueSlugs maps a league provider id onto its (sport, league) URL
// segments. Unknown leagues fall back to the sport's default slug.
var leagueSlugs = map[string][2]string{
	"eng.1":                     {"soccer", "eng.1"},
	"eng.2":                     {"soccer", "eng.2"},
	"eng.fa":                    {"soccer", "eng.fa"},
	"eng.league_cup":            {"soccer", "eng.league_cup"},
	"usa.1":                     {"soccer", "usa.1"},
	"esp.1":                     {"soccer", "esp.1"},
	"ger.1":                     {"soccer", "ger.1"},
	"ita.1":                     {"soccer", "ita.1"},
	"fra.1":                     {"soccer", "fra.1"},
	"ned.1":                     {"soccer", "ned.1"},
	"por.1":                     {"soccer", "por.1"},
	"tur.1":                     {"soccer", "tur.1"},
	"sco.1":                     {"soccer", "sco.1"},
	"sau.1":                     {"soccer", "sau.1"},
	"uefa.champions":            {"soccer", "uefa.champions"},
	"uefa.europa":               {"soccer", "uefa.europa"},
	"uefa.europa.conf":          {"soccer", "uefa.europa.conf"},
	"nba":                       {"basketball", "nba"},
	"wnba":                      {"basketball", "wnba"},
	"mens-college-basketball":   {"basketball", "mens-college-basketball"},
	"womens-college-basketball": {"basketball", "womens-college-basketball"},
	"nhl":                       {"hockey", "nhl"},
	"mlb":                       {"baseball", "mlb"},
	"nfl":                       {"football", "nfl"},
}

var sportSlugs = map[model.Sport]string{
	model.SportSoccer:     "soccer",
	model.SportBasketball: "basketball",
	model.SportHockey:     "hockey",
	model.SportBaseball:   "baseball",
	model.SportFootball:   "football",
}

type Connector struct {
	http *provider.HTTPClient
}

func New(http *provider.HTTPClient) *Connector {
	return &Connector{http: http}
}

func (c *Connector) Name() model.Provider { return model.ProviderESPN }

func (c *Connector) Covers(model.Sport) bool { return true }

func leaguePath(sport model.Sport, leagueID string) string {
	if slugs, ok := leagueSlugs[leagueID]; ok {
		return "/" + slugs[0] + "/" + slugs[1]
	}
	slug, ok := sportSlugs[sport]
	if !ok {
		slug = "soccer"
	}
	return "/" + slug + "/" + leagueID
}

func (c *Connector) FetchScoreboard(ctx context.Context, req provider.FetchRequest) (provider.ScoreboardData, error) {
	var payload scoreboardPayload
	u := baseURL + leaguePath(req.Sport, req.LeagueProviderID) + "/scoreboard"
	if err := c.http.GetJSON(ctx, u, &payload); err != nil {
		return provider.ScoreboardData{}, fmt.Errorf("espn scoreboard: %w", err)
	}

	for _, ev := range payload.Events {
		if ev.ID == req.MatchProviderID {
			return parseScoreboardEvent(ev, req.Sport), nil
		}
	}
	return provider.ScoreboardData{}, fmt.Errorf("espn scoreboard: match %s: %w", req.MatchProviderID, provider.ErrNotFound)
}

// FetchLeagueLive lists the current scoreboards of every fixture on a
// league's board, names included. The verifier matches these against
// canonical state by team name rather than by provider id.
func (c *Connector) FetchLeagueLive(ctx context.Context, sport model.Sport, leagueProviderID string) ([]provider.ScoreboardData, error) {
	var payload scoreboardPayload
	u := baseURL + leaguePath(sport, leagueProviderID) + "/scoreboard"
	if err := c.http.GetJSON(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("espn league scoreboard: %w", err)
	}

	out := make([]provider.ScoreboardData, 0, len(payload.Events))
	for _, ev := range payload.Events {
		out = append(out, parseScoreboardEvent(ev, sport))
	}
	return out, nil
}

func (c *Connector) FetchEvents(ctx context.Context, req provider.FetchRequest) ([]provider.EventData, error) {
	var payload summaryPayload
	u := baseURL + leaguePath(req.Sport, req.LeagueProviderID) + "/summary?event=" + url.QueryEscape(req.MatchProviderID)
	if err := c.http.GetJSON(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("espn events: %w", err)
	}

	plays := payload.Plays
	if len(plays) == 0 {
		plays = payload.KeyEvents
	}
	out := make([]provider.EventData, 0, len(plays))
	for i, p := range plays {
		if ev, ok := parsePlay(p, req.Sport, i); ok {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (c *Connector) FetchStats(ctx context.Context, req provider.FetchRequest) (provider.StatsData, error) {
	var payload summaryPayload
	u := baseURL + leaguePath(req.Sport, req.LeagueProviderID) + "/summary?event=" + url.QueryEscape(req.MatchProviderID)
	if err := c.http.GetJSON(ctx, u, &payload); err != nil {
		return provider.StatsData{}, fmt.Errorf("espn stats: %w", err)
	}

	st := provider.StatsData{
		HomeStats: map[string]any{},
		AwayStats: map[string]any{},
		FetchedAt: time.Now().UTC(),
	}
	for _, team := range payload.Boxscore.Teams {
		stats := parseStatList(team.Statistics)
		if team.HomeAway == "home" {
			st.HomeStats = stats
		} else {
			st.AwayStats = stats
		}
	}
	return st, nil
}

func (c *Connector) FetchLeagueSchedule(ctx context.Context, sport model.Sport, leagueProviderID string, day time.Time) ([]provider.ScheduleEntry, error) {
	var payload scoreboardPayload
	u := fmt.Sprintf("%s%s/scoreboard?dates=%s",
		baseURL, leaguePath(sport, leagueProviderID), day.Format("20060102"))
	if err := c.http.GetJSON(ctx, u, &payload); err != nil {
		return nil, fmt.Errorf("espn schedule: %w", err)
	}

	out := make([]provider.ScheduleEntry, 0, len(payload.Events))
	for _, ev := range payload.Events {
		if len(ev.Competitions) == 0 {
			continue
		}
		comp := ev.Competitions[0]
		home, away := splitCompetitors(comp.Competitors)
		if home == nil || away == nil {
			continue
		}

		entry := provider.ScheduleEntry{
			MatchProviderID:  ev.ID,
			LeagueProviderID: leagueProviderID,
			LeagueName:       ev.Season.Type.Name,
			HomeProviderID:   home.ID,
			HomeName:         home.Team.DisplayName,
			HomeShortName:    home.Team.ShortDisplayName,
			HomeLogoURL:      home.Team.Logo,
			AwayProviderID:   away.ID,
			AwayName:         away.Team.DisplayName,
			AwayShortName:    away.Team.ShortDisplayName,
			AwayLogoURL:      away.Team.Logo,
			Venue:            comp.Venue.FullName,
			Phase:            parsePhase(comp.Status.Type.Name, comp.Status.Type.Detail, sport, comp.Status.DisplayClock),
		}
		entry.StartTime = parseDate(ev.Date)
		out = append(out, entry)
	}
	return out, nil
}
