package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liveview/liveview/internal/config"
	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/provider"
	"github.com/liveview/liveview/internal/registry"
	"github.com/liveview/liveview/internal/store"
	"github.com/liveview/liveview/internal/telemetry"
)

// leagueSports resolves the configured league slugs (ESPN id space) to
// their sport. Slugs outside this table are rejected at sync time.
var leagueSports = map[string]model.Sport{
	"eng.1":                   model.SportSoccer,
	"eng.2":                   model.SportSoccer,
	"esp.1":                   model.SportSoccer,
	"ger.1":                   model.SportSoccer,
	"ita.1":                   model.SportSoccer,
	"fra.1":                   model.SportSoccer,
	"uefa.champions":          model.SportSoccer,
	"uefa.europa":             model.SportSoccer,
	"usa.1":                   model.SportSoccer,
	"nba":                     model.SportBasketball,
	"wnba":                    model.SportBasketball,
	"mens-college-basketball": model.SportBasketball,
	"nhl":                     model.SportHockey,
	"mlb":                     model.SportBaseball,
	"nfl":                     model.SportFootball,
	"college-football":        model.SportFootball,
}

// Syncer pulls league schedules on a slow cadence and keeps the
// canonical catalog (leagues, teams, matches) and provider mappings
// current. Matches discovered here are what reconcile later promotes
// into poll tasks.
type Syncer struct {
	cfg      *config.Config
	store    *store.Store
	registry *registry.Registry
}

func NewSyncer(cfg *config.Config, st *store.Store, reg *registry.Registry) *Syncer {
	return &Syncer{cfg: cfg, store: st, registry: reg}
}

// Run syncs once at startup and then on the configured interval.
func (s *Syncer) Run(ctx context.Context) error {
	if err := s.SyncAll(ctx); err != nil {
		telemetry.Errorf("schedule sync: %v", err)
	}

	ticker := time.NewTicker(s.cfg.ScheduleSyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.SyncAll(ctx); err != nil {
				telemetry.Errorf("schedule sync: %v", err)
			}
		}
	}
}

// SyncAll walks every configured league over the lookahead window.
// Per-league failures are logged and skipped so one dead feed cannot
// starve the rest.
func (s *Syncer) SyncAll(ctx context.Context) error {
	start := time.Now()
	var total, failed int

	for _, slug := range s.cfg.ScheduleSyncLeagues {
		sport, ok := leagueSports[slug]
		if !ok {
			telemetry.Warnf("schedule sync: unknown league slug %q, skipping", slug)
			continue
		}
		n, err := s.syncLeague(ctx, sport, slug)
		if err != nil {
			telemetry.Warnf("schedule sync: league %s: %v", slug, err)
			failed++
			continue
		}
		total += n
	}

	telemetry.Metrics.ScheduleSyncs.Inc()
	telemetry.Infof("schedule sync: %d fixtures across %d leagues in %s (%d leagues failed)",
		total, len(s.cfg.ScheduleSyncLeagues), time.Since(start).Round(time.Millisecond), failed)
	if failed == len(s.cfg.ScheduleSyncLeagues) && failed > 0 {
		return errors.New("every league sync failed")
	}
	return nil
}

func (s *Syncer) syncLeague(ctx context.Context, sport model.Sport, slug string) (int, error) {
	conn, p, err := s.connectorFor(sport)
	if err != nil {
		return 0, err
	}

	today := time.Now().UTC().Truncate(24 * time.Hour)
	var count int
	for d := 0; d < s.cfg.ScheduleSyncDays; d++ {
		day := today.AddDate(0, 0, d)
		entries, err := conn.FetchLeagueSchedule(ctx, sport, slug, day)
		if err != nil {
			if errors.Is(err, provider.ErrNotFound) {
				continue
			}
			return count, fmt.Errorf("fetch %s: %w", day.Format("2006-01-02"), err)
		}
		for _, entry := range entries {
			if entry.LeagueProviderID == "" {
				entry.LeagueProviderID = slug
			}
			if err := s.upsertEntry(ctx, sport, p, entry); err != nil {
				telemetry.Warnf("schedule sync: fixture %s: %v", entry.MatchProviderID, err)
				continue
			}
			count++
		}
	}
	return count, nil
}

// connectorFor picks the first provider in cascade order that carries
// the sport. Schedule pulls are cheap and infrequent, so no health
// gating here.
func (s *Syncer) connectorFor(sport model.Sport) (provider.Connector, model.Provider, error) {
	for _, name := range s.cfg.ProviderOrder {
		p := model.Provider(name)
		conn := s.registry.Connector(p)
		if conn != nil && conn.Covers(sport) {
			return conn, p, nil
		}
	}
	return nil, "", fmt.Errorf("no provider covers %s", sport)
}

// upsertEntry writes the league, both teams and the match, creating
// canonical ids and provider mappings where they do not exist yet.
func (s *Syncer) upsertEntry(ctx context.Context, sport model.Sport, p model.Provider, entry provider.ScheduleEntry) error {
	leagueID, err := s.ensureLeague(ctx, sport, p, entry)
	if err != nil {
		return fmt.Errorf("league: %w", err)
	}
	homeID, err := s.ensureTeam(ctx, sport, p, entry.HomeProviderID, entry.HomeName, entry.HomeShortName, entry.HomeLogoURL)
	if err != nil {
		return fmt.Errorf("home team: %w", err)
	}
	awayID, err := s.ensureTeam(ctx, sport, p, entry.AwayProviderID, entry.AwayName, entry.AwayShortName, entry.AwayLogoURL)
	if err != nil {
		return fmt.Errorf("away team: %w", err)
	}

	matchID, known, err := s.canonicalID(ctx, "match", p, entry.MatchProviderID)
	if err != nil {
		return fmt.Errorf("match id: %w", err)
	}

	phase := entry.Phase
	if phase == "" {
		phase = model.PhaseScheduled
	}
	match := model.Match{
		ID:         matchID,
		LeagueID:   leagueID,
		HomeTeamID: homeID,
		AwayTeamID: awayID,
		StartTime:  entry.StartTime,
		Venue:      entry.Venue,
		Phase:      phase,
	}
	if err := s.store.Matches.Upsert(ctx, match); err != nil {
		return fmt.Errorf("upsert match: %w", err)
	}
	if !known {
		err := s.store.Mappings.Upsert(ctx, model.ProviderMapping{
			EntityType:  "match",
			CanonicalID: matchID,
			Provider:    p,
			ProviderID:  entry.MatchProviderID,
		})
		if err != nil {
			return fmt.Errorf("map match: %w", err)
		}
		telemetry.Infof("schedule sync: new match %s (%s vs %s, %s)",
			matchID, entry.HomeName, entry.AwayName, entry.StartTime.Format(time.RFC3339))
	}
	return nil
}

func (s *Syncer) ensureLeague(ctx context.Context, sport model.Sport, p model.Provider, entry provider.ScheduleEntry) (uuid.UUID, error) {
	id, known, err := s.canonicalID(ctx, "league", p, entry.LeagueProviderID)
	if err != nil {
		return uuid.Nil, err
	}
	if known {
		return id, nil
	}
	name := entry.LeagueName
	if name == "" {
		name = entry.LeagueProviderID
	}
	if err := s.store.Catalog.UpsertLeague(ctx, model.League{ID: id, Sport: sport, Name: name}); err != nil {
		return uuid.Nil, err
	}
	err = s.store.Mappings.Upsert(ctx, model.ProviderMapping{
		EntityType: "league", CanonicalID: id, Provider: p, ProviderID: entry.LeagueProviderID,
	})
	return id, err
}

func (s *Syncer) ensureTeam(ctx context.Context, sport model.Sport, p model.Provider, providerID, name, short, logo string) (uuid.UUID, error) {
	if providerID == "" {
		providerID = name
	}
	id, known, err := s.canonicalID(ctx, "team", p, providerID)
	if err != nil {
		return uuid.Nil, err
	}
	if known {
		return id, nil
	}
	team := model.Team{ID: id, Sport: sport, Name: name, ShortName: short, LogoURL: logo}
	if err := s.store.Catalog.UpsertTeam(ctx, team); err != nil {
		return uuid.Nil, err
	}
	err = s.store.Mappings.Upsert(ctx, model.ProviderMapping{
		EntityType: "team", CanonicalID: id, Provider: p, ProviderID: providerID,
	})
	return id, err
}

// canonicalID resolves an existing mapping or mints a deterministic
// placeholder id for a new entity. Determinism keeps concurrent or
// repeated syncs from forking one provider entity into several rows.
func (s *Syncer) canonicalID(ctx context.Context, entityType string, p model.Provider, providerID string) (uuid.UUID, bool, error) {
	id, err := s.store.Mappings.Canonical(ctx, entityType, p, providerID)
	switch {
	case err == nil:
		return id, true, nil
	case errors.Is(err, store.ErrNotFound):
		return model.PlaceholderID(p, entityType, providerID), false, nil
	default:
		return uuid.Nil, false, err
	}
}
