package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/liveview/liveview/internal/model"
)

type EventRepo struct {
	db *sqlx.DB
}

type eventRow struct {
	ID              uuid.UUID      `db:"id"`
	MatchID         uuid.UUID      `db:"match_id"`
	EventType       string         `db:"event_type"`
	Minute          sql.NullInt32  `db:"minute"`
	Second          sql.NullInt32  `db:"second"`
	Period          string         `db:"period"`
	TeamID          uuid.NullUUID  `db:"team_id"`
	PlayerName      string         `db:"player_name"`
	Detail          string         `db:"detail"`
	ScoreHome       sql.NullInt32  `db:"score_home"`
	ScoreAway       sql.NullInt32  `db:"score_away"`
	Synthetic       bool           `db:"synthetic"`
	Confidence      float64        `db:"confidence"`
	SourceProvider  string         `db:"source_provider"`
	ProviderEventID string         `db:"provider_event_id"`
	Seq             int64          `db:"seq"`
	CreatedAt       time.Time      `db:"created_at"`
}

func (r eventRow) toModel() model.MatchEvent {
	ev := model.MatchEvent{
		ID:              r.ID,
		MatchID:         r.MatchID,
		Type:            model.EventType(r.EventType),
		Period:          r.Period,
		PlayerName:      r.PlayerName,
		Detail:          r.Detail,
		Synthetic:       r.Synthetic,
		Confidence:      r.Confidence,
		SourceProvider:  model.Provider(r.SourceProvider),
		ProviderEventID: r.ProviderEventID,
		Seq:             r.Seq,
		CreatedAt:       r.CreatedAt,
	}
	if r.Minute.Valid {
		ev.Minute = model.IntPtr(int(r.Minute.Int32))
	}
	if r.Second.Valid {
		ev.Second = model.IntPtr(int(r.Second.Int32))
	}
	if r.TeamID.Valid {
		ev.TeamID = model.UUIDPtr(r.TeamID.UUID)
	}
	if r.ScoreHome.Valid {
		ev.ScoreHome = model.IntPtr(int(r.ScoreHome.Int32))
	}
	if r.ScoreAway.Valid {
		ev.ScoreAway = model.IntPtr(int(r.ScoreAway.Int32))
	}
	return ev
}

// Insert writes one event with seq = max+1 for the match, inside a tx.
// Duplicate (match, provider, provider_event_id) rows are swallowed and
// reported as not-inserted; the stored event keeps its original seq.
func (r *EventRepo) Insert(ctx context.Context, ev *model.MatchEvent) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin event insert: %w", err)
	}
	defer tx.Rollback()

	// serialize seq allocation per match by locking the match row
	var matchVersion int64
	err = tx.GetContext(ctx, &matchVersion,
		`SELECT version FROM matches WHERE id = $1 FOR UPDATE`, ev.MatchID)
	if err != nil {
		return false, fmt.Errorf("lock match for event insert: %w", err)
	}

	var seq int64
	err = tx.GetContext(ctx, &seq,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM match_events WHERE match_id = $1`,
		ev.MatchID)
	if err != nil {
		return false, fmt.Errorf("allocate event seq: %w", err)
	}

	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	ev.Seq = seq

	_, err = tx.ExecContext(ctx, `
		INSERT INTO match_events (id, match_id, event_type, minute, second, period, team_id,
			player_name, detail, score_home, score_away, synthetic, confidence,
			source_provider, provider_event_id, seq, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		ev.ID, ev.MatchID, string(ev.Type), nullableInt(ev.Minute), nullableInt(ev.Second),
		ev.Period, nullableUUID(ev.TeamID), ev.PlayerName, ev.Detail,
		nullableInt(ev.ScoreHome), nullableInt(ev.ScoreAway), ev.Synthetic, ev.Confidence,
		string(ev.SourceProvider), ev.ProviderEventID, ev.Seq, ev.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// unique_violation: the provider resent a known event
			return false, nil
		}
		return false, fmt.Errorf("insert event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit event insert: %w", err)
	}
	return true, nil
}

func (r *EventRepo) ByMatch(ctx context.Context, matchID uuid.UUID, limit int) ([]model.MatchEvent, error) {
	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM match_events WHERE match_id = $1
		ORDER BY seq DESC LIMIT $2`, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("select events: %w", err)
	}
	// reverse to oldest-first
	out := make([]model.MatchEvent, 0, len(rows))
	for i := len(rows) - 1; i >= 0; i-- {
		out = append(out, rows[i].toModel())
	}
	return out, nil
}

func (r *EventRepo) RecentSynthetic(ctx context.Context, matchID uuid.UUID, limit int) ([]model.MatchEvent, error) {
	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT * FROM match_events WHERE match_id = $1 AND synthetic
		ORDER BY seq DESC LIMIT $2`, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("select synthetic events: %w", err)
	}
	out := make([]model.MatchEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *EventRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM match_events WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	return nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func nullableUUID(p *uuid.UUID) any {
	if p == nil {
		return nil
	}
	return *p
}
