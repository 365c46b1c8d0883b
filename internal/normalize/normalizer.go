// Package normalize turns provider payloads into canonical state: it
// resolves provider ids, enforces the version/seq discipline, commits
// to Postgres first, then refreshes snapshots and publishes deltas.
package normalize

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liveview/liveview/internal/bus"
	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/provider"
	"github.com/liveview/liveview/internal/store"
	"github.com/liveview/liveview/internal/telemetry"
)

// ErrScoreRegression reports a provider feed whose score went backwards.
var ErrScoreRegression = errors.New("normalize: score regression")

type Normalizer struct {
	store *store.Store
	bus   *bus.Bus
}

func New(st *store.Store, b *bus.Bus) *Normalizer {
	return &Normalizer{store: st, bus: b}
}

// ResolveMatch maps a provider match id onto its canonical id.
func (n *Normalizer) ResolveMatch(ctx context.Context, p model.Provider, providerID string) (uuid.UUID, error) {
	return n.store.Mappings.Canonical(ctx, "match", p, providerID)
}

// ApplyScoreboard persists a scoreboard observation. It reports whether
// state changed; equal (score, phase, clock) tuples are no-ops.
//
// Scores never go backwards through this path: a lower total than the
// stored row (outside a correction) is dropped so a glitching provider
// cannot retract a goal on every subscriber's screen. The verifier's
// correction path sets allowRegression.
func (n *Normalizer) ApplyScoreboard(ctx context.Context, matchID uuid.UUID, data provider.ScoreboardData, p model.Provider, allowRegression bool) (bool, error) {
	now := time.Now().UTC()

	existing, err := n.store.States.Scoreboard(ctx, matchID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		existing = model.Scoreboard{}
	case err != nil:
		return false, fmt.Errorf("load scoreboard: %w", err)
	default:
		changed := existing.Score.Home != data.HomeScore ||
			existing.Score.Away != data.AwayScore ||
			existing.Phase != data.Phase ||
			existing.Clock != data.Clock
		if !changed {
			telemetry.Metrics.NormalizationNoops.Inc()
			return false, nil
		}
		if !allowRegression &&
			(data.HomeScore < existing.Score.Home || data.AwayScore < existing.Score.Away) &&
			!model.PhaseIsTerminal(existing.Phase) {
			telemetry.Warnf("normalize: dropping score regression for %s (%d-%d -> %d-%d from %s)",
				matchID, existing.Score.Home, existing.Score.Away, data.HomeScore, data.AwayScore, p)
			return false, ErrScoreRegression
		}
	}

	sb := model.Scoreboard{
		MatchID:   matchID,
		League:    existing.League,
		HomeTeam:  existing.HomeTeam,
		AwayTeam:  existing.AwayTeam,
		Score:     model.Score{Home: data.HomeScore, Away: data.AwayScore, Breakdown: data.Breakdown},
		Phase:     data.Phase,
		Clock:     data.Clock,
		Period:    data.Period,
		StartTime: existing.StartTime,
		Version:   existing.Version + 1,
		Seq:       existing.Seq + 1,
		UpdatedAt: now,
	}
	if sb.StartTime.IsZero() {
		sb.StartTime = data.StartTime
	}

	if err := n.store.States.SaveScoreboard(ctx, sb); err != nil {
		return false, fmt.Errorf("save scoreboard: %w", err)
	}
	if err := n.store.Matches.SetPhase(ctx, matchID, sb.Phase, now); err != nil {
		telemetry.Warnf("normalize: update match phase: %v", err)
	}

	// committed; snapshot + publish are best-effort with one retry
	frame, err := json.Marshal(sb)
	if err != nil {
		return true, fmt.Errorf("marshal scoreboard frame: %w", err)
	}
	n.fanout(ctx, matchID, model.TierScoreboard, frame, func(ctx context.Context) error {
		return n.bus.SetSnapshot(ctx, matchID, model.TierScoreboard, sb)
	})

	telemetry.Metrics.Normalizations.Inc()
	telemetry.Infof("normalize: scoreboard %s %d-%d %s v%d",
		matchID, sb.Score.Home, sb.Score.Away, sb.Phase, sb.Version)
	return true, nil
}

// ApplyEvents inserts new timeline entries. Duplicates (same provider
// event id) are skipped; each insert allocates the next per-match seq.
// Returns the newly inserted events.
func (n *Normalizer) ApplyEvents(ctx context.Context, matchID uuid.UUID, events []provider.EventData, p model.Provider) ([]model.MatchEvent, error) {
	var inserted []model.MatchEvent
	for _, data := range events {
		ev := model.MatchEvent{
			MatchID:         matchID,
			Type:            data.Type,
			Minute:          data.Minute,
			Second:          data.Second,
			Period:          data.Period,
			PlayerName:      data.PlayerName,
			Detail:          data.Detail,
			ScoreHome:       data.ScoreHome,
			ScoreAway:       data.ScoreAway,
			Confidence:      1.0,
			SourceProvider:  p,
			ProviderEventID: data.ProviderEventID,
		}
		if ev.ProviderEventID == "" {
			ev.ProviderEventID = uuid.NewString()
		}
		if data.TeamProviderID != "" {
			if teamID, err := n.store.Mappings.Canonical(ctx, "team", p, data.TeamProviderID); err == nil {
				ev.TeamID = model.UUIDPtr(teamID)
			}
		}

		ok, err := n.store.Events.Insert(ctx, &ev)
		if err != nil {
			return inserted, fmt.Errorf("insert event: %w", err)
		}
		if ok {
			inserted = append(inserted, ev)
		}
	}

	if len(inserted) == 0 {
		return nil, nil
	}

	for _, ev := range inserted {
		if err := n.bus.AppendEvent(ctx, matchID, ev); err != nil {
			telemetry.Warnf("normalize: append event stream: %v", err)
		}
	}
	frame, err := json.Marshal(inserted)
	if err != nil {
		return inserted, fmt.Errorf("marshal events frame: %w", err)
	}
	n.fanout(ctx, matchID, model.TierEvents, frame, nil)

	telemetry.Metrics.Normalizations.Inc()
	telemetry.Infof("normalize: %d new events for %s from %s", len(inserted), matchID, p)
	return inserted, nil
}

// ApplyStats persists a stats observation; equal normalized maps are
// no-ops (structural comparison).
func (n *Normalizer) ApplyStats(ctx context.Context, matchID uuid.UUID, data provider.StatsData, p model.Provider) (bool, error) {
	now := time.Now().UTC()

	existing, err := n.store.States.Stats(ctx, matchID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		existing = model.MatchStats{}
	case err != nil:
		return false, fmt.Errorf("load stats: %w", err)
	default:
		if statsEqual(existing.HomeStats, data.HomeStats) && statsEqual(existing.AwayStats, data.AwayStats) {
			telemetry.Metrics.NormalizationNoops.Inc()
			return false, nil
		}
	}

	st := model.MatchStats{
		MatchID:   matchID,
		HomeStats: data.HomeStats,
		AwayStats: data.AwayStats,
		Version:   existing.Version + 1,
		Seq:       existing.Seq + 1,
		UpdatedAt: now,
	}
	if err := n.store.States.SaveStats(ctx, st); err != nil {
		return false, fmt.Errorf("save stats: %w", err)
	}

	frame, err := json.Marshal(st)
	if err != nil {
		return true, fmt.Errorf("marshal stats frame: %w", err)
	}
	n.fanout(ctx, matchID, model.TierStats, frame, func(ctx context.Context) error {
		return n.bus.SetSnapshot(ctx, matchID, model.TierStats, st)
	})

	telemetry.Metrics.Normalizations.Inc()
	return true, nil
}

// fanout refreshes the snapshot (when given) and publishes the delta.
// The DB row is already committed, so failures here cost freshness, not
// correctness; each step gets one retry before we move on.
func (n *Normalizer) fanout(ctx context.Context, matchID uuid.UUID, tier model.Tier, frame []byte, snapshot func(context.Context) error) {
	if snapshot != nil {
		if err := retryOnce(ctx, snapshot); err != nil {
			telemetry.Warnf("normalize: snapshot %s tier %d: %v", matchID, tier, err)
		}
	}
	start := time.Now()
	err := retryOnce(ctx, func(ctx context.Context) error {
		return n.bus.PublishDelta(ctx, matchID, tier, frame)
	})
	if err != nil {
		telemetry.Warnf("normalize: publish %s tier %d: %v", matchID, tier, err)
		return
	}
	telemetry.Metrics.DeltasPublished.Inc()
	telemetry.Metrics.FanoutLatency.Record(time.Since(start))
}

func retryOnce(ctx context.Context, fn func(context.Context) error) error {
	if err := fn(ctx); err == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(100 * time.Millisecond):
	}
	return fn(ctx)
}

// statsEqual compares via canonical JSON so int/float encodings of the
// same value do not register as changes.
func statsEqual(a, b map[string]any) bool {
	aj, err1 := json.Marshal(a)
	bj, err2 := json.Marshal(b)
	if err1 != nil || err2 != nil {
		return false
	}
	return string(aj) == string(bj)
}
