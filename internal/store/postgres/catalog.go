package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/store"
)

type CatalogRepo struct {
	db *sqlx.DB
}

type leagueRow struct {
	ID        uuid.UUID `db:"id"`
	Sport     string    `db:"sport"`
	Name      string    `db:"name"`
	ShortName string    `db:"short_name"`
	Country   string    `db:"country"`
	LogoURL   string    `db:"logo_url"`
}

type teamRow struct {
	ID        uuid.UUID `db:"id"`
	Sport     string    `db:"sport"`
	Name      string    `db:"name"`
	ShortName string    `db:"short_name"`
	LogoURL   string    `db:"logo_url"`
}

func (r *CatalogRepo) UpsertLeague(ctx context.Context, l model.League) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO leagues (id, sport, name, short_name, country, logo_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, short_name = EXCLUDED.short_name,
			country = EXCLUDED.country, logo_url = EXCLUDED.logo_url`,
		l.ID, string(l.Sport), l.Name, l.ShortName, l.Country, l.LogoURL)
	if err != nil {
		return fmt.Errorf("upsert league: %w", err)
	}
	return nil
}

func (r *CatalogRepo) League(ctx context.Context, id uuid.UUID) (model.League, error) {
	var row leagueRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM leagues WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.League{}, store.ErrNotFound
	}
	if err != nil {
		return model.League{}, fmt.Errorf("select league: %w", err)
	}
	return model.League{
		ID: row.ID, Sport: model.Sport(row.Sport), Name: row.Name,
		ShortName: row.ShortName, Country: row.Country, LogoURL: row.LogoURL,
	}, nil
}

func (r *CatalogRepo) UpsertTeam(ctx context.Context, t model.Team) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO teams (id, sport, name, short_name, logo_url)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, short_name = EXCLUDED.short_name,
			logo_url = EXCLUDED.logo_url`,
		t.ID, string(t.Sport), t.Name, t.ShortName, t.LogoURL)
	if err != nil {
		return fmt.Errorf("upsert team: %w", err)
	}
	return nil
}

func (r *CatalogRepo) Team(ctx context.Context, id uuid.UUID) (model.Team, error) {
	var row teamRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM teams WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Team{}, store.ErrNotFound
	}
	if err != nil {
		return model.Team{}, fmt.Errorf("select team: %w", err)
	}
	return model.Team{
		ID: row.ID, Sport: model.Sport(row.Sport), Name: row.Name,
		ShortName: row.ShortName, LogoURL: row.LogoURL,
	}, nil
}

type MappingRepo struct {
	db *sqlx.DB
}

func (r *MappingRepo) Upsert(ctx context.Context, m model.ProviderMapping) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO provider_mappings (entity_type, canonical_id, provider, provider_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_type, provider, provider_id) DO UPDATE SET
			canonical_id = EXCLUDED.canonical_id`,
		m.EntityType, m.CanonicalID, string(m.Provider), m.ProviderID)
	if err != nil {
		return fmt.Errorf("upsert provider mapping: %w", err)
	}
	return nil
}

func (r *MappingRepo) Canonical(ctx context.Context, entityType string, p model.Provider, providerID string) (uuid.UUID, error) {
	var id uuid.UUID
	err := r.db.GetContext(ctx, &id, `
		SELECT canonical_id FROM provider_mappings
		WHERE entity_type = $1 AND provider = $2 AND provider_id = $3`,
		entityType, string(p), providerID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, store.ErrNotFound
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("select canonical id: %w", err)
	}
	return id, nil
}

func (r *MappingRepo) ProviderID(ctx context.Context, entityType string, p model.Provider, canonicalID uuid.UUID) (string, error) {
	var providerID string
	err := r.db.GetContext(ctx, &providerID, `
		SELECT provider_id FROM provider_mappings
		WHERE entity_type = $1 AND provider = $2 AND canonical_id = $3`,
		entityType, string(p), canonicalID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("select provider id: %w", err)
	}
	return providerID, nil
}
