package espn

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/provider"
)

// ── wire shapes ─────────────────────────────────────────────────────────

type scoreboardPayload struct {
	Events []scoreboardEvent `json:"events"`
}

type scoreboardEvent struct {
	ID           string        `json:"id"`
	Date         string        `json:"date"`
	Season       seasonInfo    `json:"season"`
	Competitions []competition `json:"competitions"`
}

type seasonInfo struct {
	Type struct {
		Name string `json:"name"`
	} `json:"type"`
}

type competition struct {
	Competitors []competitor `json:"competitors"`
	Status      statusInfo   `json:"status"`
	Venue       struct {
		FullName string `json:"fullName"`
	} `json:"venue"`
}

type competitor struct {
	ID         string      `json:"id"`
	HomeAway   string      `json:"homeAway"`
	Score      string      `json:"score"`
	Linescores []linescore `json:"linescores"`
	Team       teamInfo    `json:"team"`
}

type linescore struct {
	Value json.Number `json:"value"`
}

type teamInfo struct {
	ID               string `json:"id"`
	DisplayName      string `json:"displayName"`
	ShortDisplayName string `json:"shortDisplayName"`
	Logo             string `json:"logo"`
}

type statusInfo struct {
	DisplayClock string `json:"displayClock"`
	Type         struct {
		Name   string `json:"name"`
		Detail string `json:"detail"`
	} `json:"type"`
}

type summaryPayload struct {
	Plays     []play `json:"plays"`
	KeyEvents []play `json:"keyEvents"`
	Boxscore  struct {
		Teams []boxscoreTeam `json:"teams"`
	} `json:"boxscore"`
}

type play struct {
	ID   json.Number `json:"id"`
	Type struct {
		Text string `json:"text"`
	} `json:"type"`
	Text         string          `json:"text"`
	Clock        json.RawMessage `json:"clock"`
	Period       json.RawMessage `json:"period"`
	Team         teamInfo        `json:"team"`
	Participants []participant   `json:"participants"`
	Athletes     []participant   `json:"athletes"`
	HomeScore    *int            `json:"homeScore"`
	AwayScore    *int            `json:"awayScore"`
}

type participant struct {
	Athlete struct {
		DisplayName string `json:"displayName"`
		FullName    string `json:"fullName"`
	} `json:"athlete"`
	DisplayName string `json:"displayName"`
}

type boxscoreTeam struct {
	HomeAway   string         `json:"homeAway"`
	Statistics []boxscoreStat `json:"statistics"`
}

type boxscoreStat struct {
	Name         string          `json:"name"`
	Label        string          `json:"label"`
	DisplayValue string          `json:"displayValue"`
	Value        json.RawMessage `json:"value"`
}

// ── phase mapping ───────────────────────────────────────────────────────

// parsePhase maps ESPN's status (type name + detail text) to a
// canonical phase. Live detail strings are free-form so the mapping
// leans on substrings, with the soccer clock as a tie breaker.
func parsePhase(statusType, statusDetail string, sport model.Sport, displayClock string) model.MatchPhase {
	st := strings.ToLower(statusType)
	detail := strings.ToLower(statusDetail)

	switch {
	case strings.Contains(st, "postponed"):
		return model.PhasePostponed
	case strings.Contains(st, "cancel"):
		return model.PhaseCancelled
	case strings.Contains(st, "suspend"):
		return model.PhaseSuspended
	case strings.Contains(st, "final") || strings.Contains(st, "full") || strings.Contains(st, "post"):
		return model.PhaseFinished
	case strings.Contains(st, "pre") || strings.Contains(st, "scheduled"):
		return model.PhaseScheduled
	}

	if !strings.Contains(st, "in") && !strings.Contains(st, "progress") && !strings.Contains(st, "half") {
		return model.PhaseScheduled
	}

	switch sport {
	case model.SportSoccer:
		switch {
		case strings.Contains(detail, "half") && strings.Contains(detail, "2"):
			return model.PhaseLiveSecondHalf
		case strings.Contains(detail, "halftime") || (strings.Contains(detail, "half") && strings.Contains(detail, "time")):
			return model.PhaseLiveHalftime
		case strings.Contains(detail, "half"):
			return model.PhaseLiveFirstHalf
		case strings.Contains(detail, "extra"):
			return model.PhaseLiveExtraTime
		case strings.Contains(detail, "penal"):
			return model.PhaseLivePenalties
		}
		clock := displayClock
		if clock == "" {
			clock = statusDetail
		}
		if minute := model.ParseClockMinute(clock); minute >= 0 {
			if minute > 90 {
				return model.PhaseLiveExtraTime
			}
			if minute > 45 {
				return model.PhaseLiveSecondHalf
			}
		}
		return model.PhaseLiveFirstHalf

	case model.SportBasketball, model.SportFootball:
		switch {
		case strings.Contains(detail, "1st"):
			return model.PhaseLiveQ1
		case strings.Contains(detail, "2nd"):
			return model.PhaseLiveQ2
		case strings.Contains(detail, "3rd"):
			return model.PhaseLiveQ3
		case strings.Contains(detail, "4th"):
			return model.PhaseLiveQ4
		case strings.Contains(detail, "ot") || strings.Contains(detail, "overtime"):
			return model.PhaseLiveOT
		case strings.Contains(detail, "half"):
			return model.PhaseBreak
		}
		return model.PhaseLiveQ1

	case model.SportHockey:
		switch {
		case strings.Contains(detail, "1st"):
			return model.PhaseLiveP1
		case strings.Contains(detail, "2nd"):
			return model.PhaseLiveP2
		case strings.Contains(detail, "3rd"):
			return model.PhaseLiveP3
		case strings.Contains(detail, "ot"):
			return model.PhaseLiveOT
		}
		return model.PhaseLiveP1

	case model.SportBaseball:
		return model.PhaseLiveInning
	}
	return model.PhaseScheduled
}

// eventTypeMap translates ESPN play type substrings; first hit wins.
var eventTypeMap = []struct {
	substr string
	typ    model.EventType
}{
	{"own goal", model.EventOwnGoal},
	{"field goal", model.EventBasket},
	{"goal", model.EventGoal},
	{"assist", model.EventAssist},
	{"yellow card", model.EventYellowCard},
	{"red card", model.EventRedCard},
	{"substitution", model.EventSubstitution},
	{"penalty kick", model.EventPenalty},
	{"penalty", model.EventPenalty},
	{"var", model.EventVARDecision},
	{"corner kick", model.EventCorner},
	{"offside", model.EventOffside},
	{"free kick", model.EventFreeKick},
	{"throw in", model.EventThrowIn},
	{"shot", model.EventShot},
	{"foul", model.EventFoul},
	{"timeout", model.EventTimeout},
	{"three point", model.EventThreePointer},
	{"free throw", model.EventFreeThrow},
	{"rebound", model.EventRebound},
	{"turnover", model.EventTurnover},
	{"steal", model.EventSteal},
	{"block", model.EventBlock},
	{"home run", model.EventHomeRun},
	{"strikeout", model.EventStrikeout},
	{"walk", model.EventWalk},
	{"hit", model.EventHit},
}

func parseEventType(playType string) model.EventType {
	pt := strings.ToLower(playType)
	for _, m := range eventTypeMap {
		if strings.Contains(pt, m.substr) {
			return m.typ
		}
	}
	return model.EventGeneric
}

// ── payload parsers ─────────────────────────────────────────────────────

func splitCompetitors(cs []competitor) (home, away *competitor) {
	for i := range cs {
		switch cs[i].HomeAway {
		case "home":
			home = &cs[i]
		case "away":
			away = &cs[i]
		}
	}
	return home, away
}

func parseScoreboardEvent(ev scoreboardEvent, sport model.Sport) provider.ScoreboardData {
	var comp competition
	if len(ev.Competitions) > 0 {
		comp = ev.Competitions[0]
	}
	home, away := splitCompetitors(comp.Competitors)

	sb := provider.ScoreboardData{
		MatchProviderID: ev.ID,
		Clock:           comp.Status.DisplayClock,
		StartTime:       parseDate(ev.Date),
		FetchedAt:       time.Now().UTC(),
	}
	if home != nil {
		sb.HomeName = home.Team.DisplayName
		sb.HomeScore, _ = strconv.Atoi(home.Score)
	}
	if away != nil {
		sb.AwayName = away.Team.DisplayName
		sb.AwayScore, _ = strconv.Atoi(away.Score)
	}
	sb.Phase = parsePhase(comp.Status.Type.Name, comp.Status.Type.Detail, sport, comp.Status.DisplayClock)

	if home != nil && away != nil {
		for i, ls := range home.Linescores {
			awayVal := 0
			if i < len(away.Linescores) {
				awayVal = numberToInt(away.Linescores[i].Value)
			}
			sb.Breakdown = append(sb.Breakdown, model.ScoreBreakdown{
				Period: strconv.Itoa(i + 1),
				Home:   numberToInt(ls.Value),
				Away:   awayVal,
			})
		}
	}
	return sb
}

func parsePlay(p play, sport model.Sport, idx int) (provider.EventData, bool) {
	if p.Type.Text == "" {
		return provider.EventData{}, false
	}

	ev := provider.EventData{
		ProviderEventID: p.ID.String(),
		Type:            parseEventType(p.Type.Text),
		TeamProviderID:  p.Team.ID,
		Detail:          p.Text,
		ScoreHome:       p.HomeScore,
		ScoreAway:       p.AwayScore,
	}
	if ev.ProviderEventID == "" {
		ev.ProviderEventID = strconv.Itoa(idx)
	}
	if ev.Detail == "" {
		ev.Detail = p.Type.Text
	}

	ev.Minute, ev.Second = parsePlayClock(p.Clock)
	ev.Period = parsePlayPeriod(p.Period)

	participants := p.Participants
	if len(participants) == 0 {
		participants = p.Athletes
	}
	if len(participants) > 0 {
		first := participants[0]
		switch {
		case first.Athlete.DisplayName != "":
			ev.PlayerName = first.Athlete.DisplayName
		case first.Athlete.FullName != "":
			ev.PlayerName = first.Athlete.FullName
		default:
			ev.PlayerName = first.DisplayName
		}
	}
	return ev, true
}

// parsePlayClock handles both clock shapes ESPN emits: an object with a
// displayValue ("12:34") or a bare number of seconds.
func parsePlayClock(raw json.RawMessage) (minute, second *int) {
	if len(raw) == 0 {
		return nil, nil
	}
	var obj struct {
		DisplayValue string `json:"displayValue"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.DisplayValue != "" {
		parts := strings.SplitN(obj.DisplayValue, ":", 2)
		if len(parts) == 2 {
			m, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
			s, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
			if err1 == nil && err2 == nil {
				return model.IntPtr(m), model.IntPtr(s)
			}
		}
		return nil, nil
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err == nil {
		total := int(secs)
		return model.IntPtr(total / 60), model.IntPtr(total % 60)
	}
	return nil, nil
}

func parsePlayPeriod(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var obj struct {
		Number json.Number `json:"number"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil && obj.Number.String() != "" {
		return obj.Number.String()
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func parseStatList(stats []boxscoreStat) map[string]any {
	out := map[string]any{}
	for _, s := range stats {
		name := s.Name
		if name == "" {
			name = s.Label
		}
		name = strings.ReplaceAll(strings.ToLower(name), " ", "_")
		if name == "" {
			continue
		}

		val := s.DisplayValue
		if val == "" && len(s.Value) > 0 {
			val = strings.Trim(string(s.Value), `"`)
		}
		trimmed := strings.TrimSuffix(val, "%")
		if strings.Contains(trimmed, ".") {
			if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
				out[name] = f
				continue
			}
		}
		if n, err := strconv.Atoi(trimmed); err == nil {
			out[name] = n
			continue
		}
		out[name] = val
	}
	return out
}

func numberToInt(n json.Number) int {
	if i, err := n.Int64(); err == nil {
		return int(i)
	}
	if f, err := n.Float64(); err == nil {
		return int(f)
	}
	return 0
}

func parseDate(s string) time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04Z07:00", "2006-01-02T15:04Z"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Now().UTC()
}
