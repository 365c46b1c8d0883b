package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/telemetry"
)

const archiveSchema = `
CREATE TABLE IF NOT EXISTS poll_archive (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	fetched_at   TEXT NOT NULL,
	provider     TEXT NOT NULL,
	match_id     TEXT NOT NULL,
	tier         INTEGER NOT NULL,
	payload      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_poll_archive_match ON poll_archive (match_id, fetched_at);
`

// Archive keeps a local SQLite log of normalized provider payloads for
// offline replay and provider debugging. Optional; a nil *Archive
// disables it.
type Archive struct {
	db *sql.DB
}

// OpenArchive opens (and migrates) the archive database at path.
// Returns nil when path is empty.
func OpenArchive(path string) (*Archive, error) {
	if path == "" {
		return nil, nil
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	// single writer, polls funnel through one connection
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate archive: %w", err)
	}
	return &Archive{db: db}, nil
}

func (a *Archive) Close() error {
	if a == nil {
		return nil
	}
	return a.db.Close()
}

// Record appends one poll result. Failures are logged and swallowed;
// the archive must never block the ingest path.
func (a *Archive) Record(ctx context.Context, cmd model.PollCommand, payload any) {
	if a == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		telemetry.Debugf("ingest: archive marshal: %v", err)
		return
	}
	_, err = a.db.ExecContext(ctx,
		`INSERT INTO poll_archive (fetched_at, provider, match_id, tier, payload) VALUES (?, ?, ?, ?, ?)`,
		time.Now().UTC().Format(time.RFC3339Nano), string(cmd.Provider), cmd.CanonicalMatchID.String(), int(cmd.Tier), string(body))
	if err != nil {
		telemetry.Debugf("ingest: archive insert: %v", err)
	}
}
