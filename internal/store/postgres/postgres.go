// Package postgres implements the store repositories over sqlx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/liveview/liveview/internal/store"
)

// Connect opens, pings and configures the pool.
func Connect(ctx context.Context, url string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// New wires every repository over one pool.
func New(db *sqlx.DB) *store.Store {
	return &store.Store{
		Matches:  &MatchRepo{db: db},
		States:   &StateRepo{db: db},
		Events:   &EventRepo{db: db},
		Mappings: &MappingRepo{db: db},
		Catalog:  &CatalogRepo{db: db},
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS leagues (
		id          UUID PRIMARY KEY,
		sport       TEXT NOT NULL,
		name        TEXT NOT NULL,
		short_name  TEXT NOT NULL DEFAULT '',
		country     TEXT NOT NULL DEFAULT '',
		logo_url    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS teams (
		id          UUID PRIMARY KEY,
		sport       TEXT NOT NULL,
		name        TEXT NOT NULL,
		short_name  TEXT NOT NULL DEFAULT '',
		logo_url    TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS matches (
		id            UUID PRIMARY KEY,
		league_id     UUID NOT NULL REFERENCES leagues(id),
		home_team_id  UUID NOT NULL REFERENCES teams(id),
		away_team_id  UUID NOT NULL REFERENCES teams(id),
		start_time    TIMESTAMPTZ NOT NULL,
		venue         TEXT NOT NULL DEFAULT '',
		phase         TEXT NOT NULL DEFAULT 'scheduled',
		version       BIGINT NOT NULL DEFAULT 1,
		updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_start_time ON matches (start_time)`,
	`CREATE INDEX IF NOT EXISTS idx_matches_phase ON matches (phase)`,
	`CREATE TABLE IF NOT EXISTS match_states (
		match_id    UUID PRIMARY KEY REFERENCES matches(id),
		score_home  INT NOT NULL DEFAULT 0,
		score_away  INT NOT NULL DEFAULT 0,
		breakdown   JSONB NOT NULL DEFAULT '[]',
		phase       TEXT NOT NULL DEFAULT 'scheduled',
		clock       TEXT NOT NULL DEFAULT '',
		period      TEXT NOT NULL DEFAULT '',
		version     BIGINT NOT NULL DEFAULT 0,
		seq         BIGINT NOT NULL DEFAULT 0,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS match_stats (
		match_id    UUID PRIMARY KEY REFERENCES matches(id),
		home_stats  JSONB NOT NULL DEFAULT '{}',
		away_stats  JSONB NOT NULL DEFAULT '{}',
		version     BIGINT NOT NULL DEFAULT 0,
		seq         BIGINT NOT NULL DEFAULT 0,
		updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS match_events (
		id                 UUID PRIMARY KEY,
		match_id           UUID NOT NULL REFERENCES matches(id),
		event_type         TEXT NOT NULL,
		minute             INT,
		second             INT,
		period             TEXT NOT NULL DEFAULT '',
		team_id            UUID,
		player_name        TEXT NOT NULL DEFAULT '',
		detail             TEXT NOT NULL DEFAULT '',
		score_home         INT,
		score_away         INT,
		synthetic          BOOLEAN NOT NULL DEFAULT FALSE,
		confidence         DOUBLE PRECISION NOT NULL DEFAULT 1.0,
		source_provider    TEXT NOT NULL DEFAULT '',
		provider_event_id  TEXT NOT NULL DEFAULT '',
		seq                BIGINT NOT NULL,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_events_provider_id
		ON match_events (match_id, source_provider, provider_event_id)
		WHERE provider_event_id <> ''`,
	`CREATE INDEX IF NOT EXISTS idx_events_match_seq ON match_events (match_id, seq DESC)`,
	`CREATE TABLE IF NOT EXISTS provider_mappings (
		entity_type   TEXT NOT NULL,
		canonical_id  UUID NOT NULL,
		provider      TEXT NOT NULL,
		provider_id   TEXT NOT NULL,
		PRIMARY KEY (entity_type, provider, provider_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_mappings_canonical
		ON provider_mappings (entity_type, provider, canonical_id)`,
}

// Migrate creates the schema. Idempotent; every service runs it on boot.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
