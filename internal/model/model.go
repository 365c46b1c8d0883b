// Package model holds the canonical entities and invariant helpers
// shared by every Live View service. Providers never own canonical
// IDs; ProviderMapping is the only bridge between the two id spaces.
package model

import (
	"time"

	"github.com/google/uuid"
)

// LeagueRef is the embedded league reference carried on scoreboards.
type LeagueRef struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Sport   Sport     `json:"sport"`
	Country string    `json:"country"`
	LogoURL string    `json:"logo_url,omitempty"`
}

// TeamRef is the embedded team reference carried on scoreboards.
type TeamRef struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
	LogoURL   string    `json:"logo_url,omitempty"`
}

// ScoreBreakdown is one period's line score.
type ScoreBreakdown struct {
	Period string `json:"period"`
	Home   int    `json:"home"`
	Away   int    `json:"away"`
}

// Score is the current total with optional per-period breakdown.
type Score struct {
	Home      int              `json:"home"`
	Away      int              `json:"away"`
	Breakdown []ScoreBreakdown `json:"breakdown,omitempty"`
}

// Scoreboard is the tier-0 payload: the minimal state pushed at the
// highest frequency. version and seq increase strictly on every
// observed change.
type Scoreboard struct {
	MatchID   uuid.UUID  `json:"match_id"`
	League    LeagueRef  `json:"league"`
	HomeTeam  TeamRef    `json:"home_team"`
	AwayTeam  TeamRef    `json:"away_team"`
	Score     Score      `json:"score"`
	Phase     MatchPhase `json:"phase"`
	Clock     string     `json:"clock,omitempty"`
	Period    string     `json:"period,omitempty"`
	StartTime time.Time  `json:"start_time"`
	Version   int64      `json:"version"`
	Seq       int64      `json:"seq"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// MatchEvent is one tier-1 timeline entry. Rows are append-only;
// synthetic rows may be deleted by the builder when a real event
// supersedes them.
type MatchEvent struct {
	ID              uuid.UUID  `json:"id"`
	MatchID         uuid.UUID  `json:"match_id"`
	Type            EventType  `json:"event_type"`
	Minute          *int       `json:"minute,omitempty"`
	Second          *int       `json:"second,omitempty"`
	Period          string     `json:"period,omitempty"`
	TeamID          *uuid.UUID `json:"team_id,omitempty"`
	PlayerName      string     `json:"player_name,omitempty"`
	Detail          string     `json:"detail,omitempty"`
	ScoreHome       *int       `json:"score_home,omitempty"`
	ScoreAway       *int       `json:"score_away,omitempty"`
	Synthetic       bool       `json:"synthetic"`
	Confidence      float64    `json:"confidence,omitempty"`
	SourceProvider  Provider   `json:"source_provider,omitempty"`
	ProviderEventID string     `json:"provider_event_id,omitempty"`
	Seq             int64      `json:"seq"`
	CreatedAt       time.Time  `json:"created_at"`
}

// MatchStats is the tier-2 payload: a flat stat map per team. The
// normalizer compares by structural equality of the normalized maps.
type MatchStats struct {
	MatchID   uuid.UUID      `json:"match_id"`
	HomeStats map[string]any `json:"home_stats"`
	AwayStats map[string]any `json:"away_stats"`
	Version   int64          `json:"version"`
	Seq       int64          `json:"seq"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// Match is the canonical fixture row.
type Match struct {
	ID         uuid.UUID  `json:"id"`
	LeagueID   uuid.UUID  `json:"league_id"`
	HomeTeamID uuid.UUID  `json:"home_team_id"`
	AwayTeamID uuid.UUID  `json:"away_team_id"`
	StartTime  time.Time  `json:"start_time"`
	Venue      string     `json:"venue,omitempty"`
	Phase      MatchPhase `json:"phase"`
	Version    int64      `json:"version"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// League belongs to a sport; immutable after creation.
type League struct {
	ID        uuid.UUID `json:"id"`
	Sport     Sport     `json:"sport"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
	Country   string    `json:"country"`
	LogoURL   string    `json:"logo_url,omitempty"`
}

// Team belongs to a sport.
type Team struct {
	ID        uuid.UUID `json:"id"`
	Sport     Sport     `json:"sport"`
	Name      string    `json:"name"`
	ShortName string    `json:"short_name"`
	LogoURL   string    `json:"logo_url,omitempty"`
}

// ProviderMapping bridges a canonical UUID to one provider's id for an
// entity. (entity_type, provider, provider_id) is unique.
type ProviderMapping struct {
	EntityType  string    `json:"entity_type"` // "match", "team", "league", "player"
	CanonicalID uuid.UUID `json:"canonical_id"`
	Provider    Provider  `json:"provider"`
	ProviderID  string    `json:"provider_id"`
}

// ProviderHealth is the computed health of one provider over the
// rolling sample window.
type ProviderHealth struct {
	Provider       Provider `json:"provider"`
	ErrorRate      float64  `json:"error_rate"`
	AvgLatencyMs   float64  `json:"avg_latency_ms"`
	RateLimitHits  int      `json:"rate_limit_hits"`
	FreshnessLagMs float64  `json:"freshness_lag_ms"`
	Score          float64  `json:"score"`
	SampleCount    int      `json:"sample_count"`
}

// PollCommand is the scheduler→ingest control message.
type PollCommand struct {
	CanonicalMatchID uuid.UUID `json:"canonical_match_id"`
	Tier             Tier      `json:"tier"`
	Sport            Sport     `json:"sport"`
	LeagueProviderID string    `json:"league_provider_id"`
	MatchProviderID  string    `json:"match_provider_id"`
	Provider         Provider  `json:"provider"`
	Timestamp        float64   `json:"timestamp"`
}

// placeholderSpace namespaces deterministic placeholder UUIDs so a
// provider id always hashes to the same UUID across processes.
var placeholderSpace = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8") // NAMESPACE_URL

// PlaceholderID derives a stable placeholder UUID for a provider-owned
// entity. Connectors emit these; the normalizer resolves them to real
// canonical ids through ProviderMapping.
func PlaceholderID(p Provider, entityType, providerID string) uuid.UUID {
	return uuid.NewSHA1(placeholderSpace, []byte(string(p)+":"+entityType+":"+providerID))
}

// IntPtr and UUIDPtr are small helpers for the optional event fields.
func IntPtr(n int) *int               { return &n }
func UUIDPtr(u uuid.UUID) *uuid.UUID { return &u }
