package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/store"
)

type StateRepo struct {
	db *sqlx.DB
}

// scoreboardRow joins match_states with the match, league and team rows
// so one query yields a complete scoreboard payload.
type scoreboardRow struct {
	MatchID   uuid.UUID `db:"match_id"`
	ScoreHome int       `db:"score_home"`
	ScoreAway int       `db:"score_away"`
	Breakdown []byte    `db:"breakdown"`
	Phase     string    `db:"phase"`
	Clock     string    `db:"clock"`
	Period    string    `db:"period"`
	Version   int64     `db:"version"`
	Seq       int64     `db:"seq"`
	UpdatedAt time.Time `db:"updated_at"`
	StartTime time.Time `db:"start_time"`

	LeagueID      uuid.UUID `db:"league_id"`
	LeagueName    string    `db:"league_name"`
	LeagueSport   string    `db:"league_sport"`
	LeagueCountry string    `db:"league_country"`
	LeagueLogo    string    `db:"league_logo"`

	HomeID    uuid.UUID `db:"home_id"`
	HomeName  string    `db:"home_name"`
	HomeShort string    `db:"home_short"`
	HomeLogo  string    `db:"home_logo"`

	AwayID    uuid.UUID `db:"away_id"`
	AwayName  string    `db:"away_name"`
	AwayShort string    `db:"away_short"`
	AwayLogo  string    `db:"away_logo"`
}

const scoreboardQuery = `
	SELECT s.match_id, s.score_home, s.score_away, s.breakdown, s.phase, s.clock,
	       s.period, s.version, s.seq, s.updated_at, m.start_time,
	       l.id AS league_id, l.name AS league_name, l.sport AS league_sport,
	       l.country AS league_country, l.logo_url AS league_logo,
	       h.id AS home_id, h.name AS home_name, h.short_name AS home_short, h.logo_url AS home_logo,
	       a.id AS away_id, a.name AS away_name, a.short_name AS away_short, a.logo_url AS away_logo
	FROM match_states s
	JOIN matches m ON m.id = s.match_id
	JOIN leagues l ON l.id = m.league_id
	JOIN teams h   ON h.id = m.home_team_id
	JOIN teams a   ON a.id = m.away_team_id
	WHERE s.match_id = $1`

func (r *StateRepo) Scoreboard(ctx context.Context, matchID uuid.UUID) (model.Scoreboard, error) {
	var row scoreboardRow
	err := r.db.GetContext(ctx, &row, scoreboardQuery, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Scoreboard{}, store.ErrNotFound
	}
	if err != nil {
		return model.Scoreboard{}, fmt.Errorf("select scoreboard: %w", err)
	}

	var breakdown []model.ScoreBreakdown
	if len(row.Breakdown) > 0 {
		if err := json.Unmarshal(row.Breakdown, &breakdown); err != nil {
			return model.Scoreboard{}, fmt.Errorf("decode score breakdown: %w", err)
		}
	}

	return model.Scoreboard{
		MatchID: row.MatchID,
		League: model.LeagueRef{
			ID:      row.LeagueID,
			Name:    row.LeagueName,
			Sport:   model.Sport(row.LeagueSport),
			Country: row.LeagueCountry,
			LogoURL: row.LeagueLogo,
		},
		HomeTeam: model.TeamRef{ID: row.HomeID, Name: row.HomeName, ShortName: row.HomeShort, LogoURL: row.HomeLogo},
		AwayTeam: model.TeamRef{ID: row.AwayID, Name: row.AwayName, ShortName: row.AwayShort, LogoURL: row.AwayLogo},
		Score:    model.Score{Home: row.ScoreHome, Away: row.ScoreAway, Breakdown: breakdown},
		Phase:    model.MatchPhase(row.Phase),
		Clock:    row.Clock,
		Period:   row.Period,
		StartTime: row.StartTime,
		Version:   row.Version,
		Seq:       row.Seq,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (r *StateRepo) SaveScoreboard(ctx context.Context, sb model.Scoreboard) error {
	breakdown, err := json.Marshal(sb.Score.Breakdown)
	if err != nil {
		return fmt.Errorf("marshal score breakdown: %w", err)
	}
	if sb.Score.Breakdown == nil {
		breakdown = []byte("[]")
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO match_states (match_id, score_home, score_away, breakdown, phase, clock, period, version, seq, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (match_id) DO UPDATE SET
			score_home = EXCLUDED.score_home,
			score_away = EXCLUDED.score_away,
			breakdown  = EXCLUDED.breakdown,
			phase      = EXCLUDED.phase,
			clock      = EXCLUDED.clock,
			period     = EXCLUDED.period,
			version    = EXCLUDED.version,
			seq        = EXCLUDED.seq,
			updated_at = EXCLUDED.updated_at
		WHERE match_states.version < EXCLUDED.version`,
		sb.MatchID, sb.Score.Home, sb.Score.Away, breakdown, string(sb.Phase),
		sb.Clock, sb.Period, sb.Version, sb.Seq, sb.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert match state: %w", err)
	}
	return nil
}

type statsRow struct {
	MatchID   uuid.UUID `db:"match_id"`
	HomeStats []byte    `db:"home_stats"`
	AwayStats []byte    `db:"away_stats"`
	Version   int64     `db:"version"`
	Seq       int64     `db:"seq"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r *StateRepo) Stats(ctx context.Context, matchID uuid.UUID) (model.MatchStats, error) {
	var row statsRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM match_stats WHERE match_id = $1`, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		return model.MatchStats{}, store.ErrNotFound
	}
	if err != nil {
		return model.MatchStats{}, fmt.Errorf("select match stats: %w", err)
	}

	st := model.MatchStats{MatchID: row.MatchID, Version: row.Version, Seq: row.Seq, UpdatedAt: row.UpdatedAt}
	if err := json.Unmarshal(row.HomeStats, &st.HomeStats); err != nil {
		return model.MatchStats{}, fmt.Errorf("decode home stats: %w", err)
	}
	if err := json.Unmarshal(row.AwayStats, &st.AwayStats); err != nil {
		return model.MatchStats{}, fmt.Errorf("decode away stats: %w", err)
	}
	return st, nil
}

func (r *StateRepo) SaveStats(ctx context.Context, st model.MatchStats) error {
	home, err := json.Marshal(st.HomeStats)
	if err != nil {
		return fmt.Errorf("marshal home stats: %w", err)
	}
	away, err := json.Marshal(st.AwayStats)
	if err != nil {
		return fmt.Errorf("marshal away stats: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO match_stats (match_id, home_stats, away_stats, version, seq, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (match_id) DO UPDATE SET
			home_stats = EXCLUDED.home_stats,
			away_stats = EXCLUDED.away_stats,
			version    = EXCLUDED.version,
			seq        = EXCLUDED.seq,
			updated_at = EXCLUDED.updated_at
		WHERE match_stats.version < EXCLUDED.version`,
		st.MatchID, home, away, st.Version, st.Seq, st.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert match stats: %w", err)
	}
	return nil
}
