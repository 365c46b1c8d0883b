// Package provider defines the connector contract and the shared HTTP
// plumbing for the external sports data sources. Connectors translate
// provider payloads into canonical shapes; they never write to the
// store or the bus themselves.
package provider

import (
	"context"
	"errors"
	"time"

	"github.com/liveview/liveview/internal/model"
)

// Sentinel outcomes for a fetch. Callers use errors.Is; the health
// pipeline maps them onto sample flags.
var (
	ErrRateLimited  = errors.New("provider: rate limited")
	ErrNotFound     = errors.New("provider: not found")
	ErrUnavailable  = errors.New("provider: unavailable")
	ErrNotSupported = errors.New("provider: operation not supported")
)

// ScoreboardData is a provider's view of a match scoreboard, in
// provider id space. The normalizer resolves ids through mappings.
type ScoreboardData struct {
	MatchProviderID string
	HomeName        string
	AwayName        string
	HomeScore       int
	AwayScore       int
	Breakdown       []model.ScoreBreakdown
	Phase           model.MatchPhase
	Clock           string
	Period          string
	StartTime       time.Time
	FetchedAt       time.Time
}

// EventData is one provider-reported timeline entry.
type EventData struct {
	ProviderEventID string
	Type            model.EventType
	Minute          *int
	Second          *int
	Period          string
	TeamProviderID  string
	PlayerName      string
	Detail          string
	ScoreHome       *int
	ScoreAway       *int
}

// StatsData is a provider's team statistics payload.
type StatsData struct {
	HomeStats map[string]any
	AwayStats map[string]any
	FetchedAt time.Time
}

// ScheduleEntry is one fixture from a league schedule pull.
type ScheduleEntry struct {
	MatchProviderID  string
	LeagueProviderID string
	LeagueName       string
	HomeProviderID   string
	HomeName         string
	HomeShortName    string
	HomeLogoURL      string
	AwayProviderID   string
	AwayName         string
	AwayShortName    string
	AwayLogoURL      string
	StartTime        time.Time
	Venue            string
	Phase            model.MatchPhase
}

// FetchRequest carries the provider-space ids a connector needs.
type FetchRequest struct {
	Sport            model.Sport
	LeagueProviderID string
	MatchProviderID  string
}

// Connector is one external data source.
type Connector interface {
	Name() model.Provider
	// Covers reports whether the provider carries this sport at all.
	Covers(s model.Sport) bool
	FetchScoreboard(ctx context.Context, req FetchRequest) (ScoreboardData, error)
	FetchEvents(ctx context.Context, req FetchRequest) ([]EventData, error)
	FetchStats(ctx context.Context, req FetchRequest) (StatsData, error)
	// FetchLeagueSchedule lists fixtures for a league on one day.
	FetchLeagueSchedule(ctx context.Context, sport model.Sport, leagueProviderID string, day time.Time) ([]ScheduleEntry, error)
}
