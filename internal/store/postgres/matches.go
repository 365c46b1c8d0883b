package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/store"
)

type MatchRepo struct {
	db *sqlx.DB
}

type matchRow struct {
	ID         uuid.UUID `db:"id"`
	LeagueID   uuid.UUID `db:"league_id"`
	HomeTeamID uuid.UUID `db:"home_team_id"`
	AwayTeamID uuid.UUID `db:"away_team_id"`
	StartTime  time.Time `db:"start_time"`
	Venue      string    `db:"venue"`
	Phase      string    `db:"phase"`
	Version    int64     `db:"version"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r matchRow) toModel() model.Match {
	return model.Match{
		ID:         r.ID,
		LeagueID:   r.LeagueID,
		HomeTeamID: r.HomeTeamID,
		AwayTeamID: r.AwayTeamID,
		StartTime:  r.StartTime,
		Venue:      r.Venue,
		Phase:      model.MatchPhase(r.Phase),
		Version:    r.Version,
		UpdatedAt:  r.UpdatedAt,
	}
}

func (r *MatchRepo) Upsert(ctx context.Context, m model.Match) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO matches (id, league_id, home_team_id, away_team_id, start_time, venue, phase, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, now())
		ON CONFLICT (id) DO UPDATE SET
			start_time = EXCLUDED.start_time,
			venue      = EXCLUDED.venue,
			version    = matches.version + 1,
			updated_at = now()`,
		m.ID, m.LeagueID, m.HomeTeamID, m.AwayTeamID, m.StartTime, m.Venue, string(m.Phase))
	if err != nil {
		return fmt.Errorf("upsert match: %w", err)
	}
	return nil
}

func (r *MatchRepo) Get(ctx context.Context, id uuid.UUID) (model.Match, error) {
	var row matchRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM matches WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Match{}, store.ErrNotFound
	}
	if err != nil {
		return model.Match{}, fmt.Errorf("select match: %w", err)
	}
	return row.toModel(), nil
}

func (r *MatchRepo) SetPhase(ctx context.Context, id uuid.UUID, phase model.MatchPhase, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE matches SET phase = $2, version = version + 1, updated_at = $3
		WHERE id = $1 AND phase <> $2`,
		id, string(phase), at)
	if err != nil {
		return fmt.Errorf("update match phase: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// phase already current or match unknown; both are fine
		return nil
	}
	return nil
}

func (r *MatchRepo) InWindow(ctx context.Context, from, to time.Time) ([]model.Match, error) {
	var rows []matchRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM matches
		WHERE start_time >= $1 AND start_time < $2
		ORDER BY start_time`, from, to)
	if err != nil {
		return nil, fmt.Errorf("select matches in window: %w", err)
	}
	return toMatches(rows), nil
}

func (r *MatchRepo) Live(ctx context.Context) ([]model.Match, error) {
	var rows []matchRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM matches
		WHERE phase LIKE 'live\_%' OR phase IN ('break', 'suspended')
		ORDER BY start_time`)
	if err != nil {
		return nil, fmt.Errorf("select live matches: %w", err)
	}
	return toMatches(rows), nil
}

func (r *MatchRepo) FinishedSince(ctx context.Context, since time.Time) ([]model.Match, error) {
	var rows []matchRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM matches
		WHERE phase IN ('finished', 'postponed', 'cancelled') AND updated_at >= $1
		ORDER BY updated_at DESC`, since)
	if err != nil {
		return nil, fmt.Errorf("select finished matches: %w", err)
	}
	return toMatches(rows), nil
}

func toMatches(rows []matchRow) []model.Match {
	out := make([]model.Match, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toModel())
	}
	return out
}
