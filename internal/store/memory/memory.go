// Package memory holds in-memory repository doubles for tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/store"
)

// New returns a fully wired in-memory store.
func New() *store.Store {
	db := &db{
		matches:  map[uuid.UUID]model.Match{},
		boards:   map[uuid.UUID]model.Scoreboard{},
		stats:    map[uuid.UUID]model.MatchStats{},
		events:   map[uuid.UUID][]model.MatchEvent{},
		leagues:  map[uuid.UUID]model.League{},
		teams:    map[uuid.UUID]model.Team{},
		mappings: map[mappingKey]uuid.UUID{},
	}
	return &store.Store{
		Matches:  (*Matches)(db),
		States:   (*States)(db),
		Events:   (*Events)(db),
		Mappings: (*Mappings)(db),
		Catalog:  (*Catalog)(db),
	}
}

type mappingKey struct {
	entityType string
	provider   model.Provider
	providerID string
}

type db struct {
	mu       sync.Mutex
	matches  map[uuid.UUID]model.Match
	boards   map[uuid.UUID]model.Scoreboard
	stats    map[uuid.UUID]model.MatchStats
	events   map[uuid.UUID][]model.MatchEvent
	leagues  map[uuid.UUID]model.League
	teams    map[uuid.UUID]model.Team
	mappings map[mappingKey]uuid.UUID
}

// ── matches ─────────────────────────────────────────────────────────────

type Matches db

func (r *Matches) Upsert(_ context.Context, m model.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.matches[m.ID]; ok {
		m.Phase = prev.Phase
		m.Version = prev.Version + 1
	} else if m.Version == 0 {
		m.Version = 1
	}
	m.UpdatedAt = time.Now().UTC()
	r.matches[m.ID] = m
	return nil
}

func (r *Matches) Get(_ context.Context, id uuid.UUID) (model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return model.Match{}, store.ErrNotFound
	}
	return m, nil
}

func (r *Matches) SetPhase(_ context.Context, id uuid.UUID, phase model.MatchPhase, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok || m.Phase == phase {
		return nil
	}
	m.Phase = phase
	m.Version++
	m.UpdatedAt = at
	r.matches[id] = m
	return nil
}

func (r *Matches) InWindow(_ context.Context, from, to time.Time) ([]model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Match
	for _, m := range r.matches {
		if !m.StartTime.Before(from) && m.StartTime.Before(to) {
			out = append(out, m)
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *Matches) Live(_ context.Context) ([]model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Match
	for _, m := range r.matches {
		if model.PhaseIsLive(m.Phase) {
			out = append(out, m)
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *Matches) FinishedSince(_ context.Context, since time.Time) ([]model.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Match
	for _, m := range r.matches {
		if model.PhaseIsTerminal(m.Phase) && !m.UpdatedAt.Before(since) {
			out = append(out, m)
		}
	}
	sortByStart(out)
	return out, nil
}

func sortByStart(ms []model.Match) {
	sort.Slice(ms, func(i, j int) bool { return ms[i].StartTime.Before(ms[j].StartTime) })
}

// ── states ──────────────────────────────────────────────────────────────

type States db

func (r *States) Scoreboard(_ context.Context, matchID uuid.UUID) (model.Scoreboard, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sb, ok := r.boards[matchID]
	if !ok {
		return model.Scoreboard{}, store.ErrNotFound
	}
	return sb, nil
}

func (r *States) SaveScoreboard(_ context.Context, sb model.Scoreboard) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.boards[sb.MatchID]; ok && prev.Version >= sb.Version {
		return nil
	}
	r.boards[sb.MatchID] = sb
	return nil
}

func (r *States) Stats(_ context.Context, matchID uuid.UUID) (model.MatchStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.stats[matchID]
	if !ok {
		return model.MatchStats{}, store.ErrNotFound
	}
	return st, nil
}

func (r *States) SaveStats(_ context.Context, st model.MatchStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.stats[st.MatchID]; ok && prev.Version >= st.Version {
		return nil
	}
	r.stats[st.MatchID] = st
	return nil
}

// ── events ──────────────────────────────────────────────────────────────

type Events db

func (r *Events) Insert(_ context.Context, ev *model.MatchEvent) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var maxSeq int64
	for _, existing := range r.events[ev.MatchID] {
		if ev.ProviderEventID != "" &&
			existing.SourceProvider == ev.SourceProvider &&
			existing.ProviderEventID == ev.ProviderEventID {
			return false, nil
		}
		if existing.Seq > maxSeq {
			maxSeq = existing.Seq
		}
	}
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	ev.Seq = maxSeq + 1
	r.events[ev.MatchID] = append(r.events[ev.MatchID], *ev)
	return true, nil
}

func (r *Events) ByMatch(_ context.Context, matchID uuid.UUID, limit int) ([]model.MatchEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	evs := r.events[matchID]
	if len(evs) > limit {
		evs = evs[len(evs)-limit:]
	}
	out := make([]model.MatchEvent, len(evs))
	copy(out, evs)
	return out, nil
}

func (r *Events) RecentSynthetic(_ context.Context, matchID uuid.UUID, limit int) ([]model.MatchEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.MatchEvent
	evs := r.events[matchID]
	for i := len(evs) - 1; i >= 0 && len(out) < limit; i-- {
		if evs[i].Synthetic {
			out = append(out, evs[i])
		}
	}
	return out, nil
}

func (r *Events) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for matchID, evs := range r.events {
		for i, ev := range evs {
			if ev.ID == id {
				r.events[matchID] = append(evs[:i:i], evs[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

// ── mappings ────────────────────────────────────────────────────────────

type Mappings db

func (r *Mappings) Upsert(_ context.Context, m model.ProviderMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mappings[mappingKey{m.EntityType, m.Provider, m.ProviderID}] = m.CanonicalID
	return nil
}

func (r *Mappings) Canonical(_ context.Context, entityType string, p model.Provider, providerID string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.mappings[mappingKey{entityType, p, providerID}]
	if !ok {
		return uuid.Nil, store.ErrNotFound
	}
	return id, nil
}

func (r *Mappings) ProviderID(_ context.Context, entityType string, p model.Provider, canonicalID uuid.UUID) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range r.mappings {
		if k.entityType == entityType && k.provider == p && v == canonicalID {
			return k.providerID, nil
		}
	}
	return "", store.ErrNotFound
}

// ── catalog ─────────────────────────────────────────────────────────────

type Catalog db

func (r *Catalog) UpsertLeague(_ context.Context, l model.League) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leagues[l.ID] = l
	return nil
}

func (r *Catalog) League(_ context.Context, id uuid.UUID) (model.League, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.leagues[id]
	if !ok {
		return model.League{}, store.ErrNotFound
	}
	return l, nil
}

func (r *Catalog) UpsertTeam(_ context.Context, t model.Team) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teams[t.ID] = t
	return nil
}

func (r *Catalog) Team(_ context.Context, id uuid.UUID) (model.Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return model.Team{}, store.ErrNotFound
	}
	return t, nil
}
