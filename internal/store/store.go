// Package store defines the repository surface over the canonical
// Postgres schema. Redis snapshots are rebuildable; these rows are not.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/liveview/liveview/internal/model"
)

// ErrNotFound reports a missing row.
var ErrNotFound = errors.New("store: not found")

// Matches is the canonical fixture repository.
type Matches interface {
	Upsert(ctx context.Context, m model.Match) error
	Get(ctx context.Context, id uuid.UUID) (model.Match, error)
	// SetPhase bumps the match row's phase and version.
	SetPhase(ctx context.Context, id uuid.UUID, phase model.MatchPhase, at time.Time) error
	// InWindow lists matches with start_time inside [from, to).
	InWindow(ctx context.Context, from, to time.Time) ([]model.Match, error)
	// Live lists matches whose phase is in the live family.
	Live(ctx context.Context) ([]model.Match, error)
	// FinishedSince lists terminal matches updated at or after since.
	FinishedSince(ctx context.Context, since time.Time) ([]model.Match, error)
}

// States holds the current per-tier state rows. Scoreboard reads join
// in the league and team references.
type States interface {
	Scoreboard(ctx context.Context, matchID uuid.UUID) (model.Scoreboard, error)
	SaveScoreboard(ctx context.Context, sb model.Scoreboard) error
	Stats(ctx context.Context, matchID uuid.UUID) (model.MatchStats, error)
	SaveStats(ctx context.Context, st model.MatchStats) error
}

// Events is the append-only timeline. Insert allocates seq = max+1 for
// the match and is idempotent on (match, source_provider,
// provider_event_id); the bool reports whether a row was written.
type Events interface {
	Insert(ctx context.Context, ev *model.MatchEvent) (bool, error)
	ByMatch(ctx context.Context, matchID uuid.UUID, limit int) ([]model.MatchEvent, error)
	// RecentSynthetic lists the newest synthetic rows for reconciliation.
	RecentSynthetic(ctx context.Context, matchID uuid.UUID, limit int) ([]model.MatchEvent, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Mappings bridges canonical ids and provider ids.
type Mappings interface {
	Upsert(ctx context.Context, m model.ProviderMapping) error
	Canonical(ctx context.Context, entityType string, p model.Provider, providerID string) (uuid.UUID, error)
	ProviderID(ctx context.Context, entityType string, p model.Provider, canonicalID uuid.UUID) (string, error)
}

// Catalog holds the slowly-changing league and team rows.
type Catalog interface {
	UpsertLeague(ctx context.Context, l model.League) error
	League(ctx context.Context, id uuid.UUID) (model.League, error)
	UpsertTeam(ctx context.Context, t model.Team) error
	Team(ctx context.Context, id uuid.UUID) (model.Team, error)
}

// Store aggregates every repository. Services receive the aggregate and
// use the slices they need.
type Store struct {
	Matches  Matches
	States   States
	Events   Events
	Mappings Mappings
	Catalog  Catalog
}
