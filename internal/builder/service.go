package builder

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/liveview/liveview/internal/bus"
	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/store"
	"github.com/liveview/liveview/internal/telemetry"
)

const cleanupInterval = 5 * time.Minute

type Service struct {
	bus        *bus.Bus
	store      *store.Store
	generator  Generator
	reconciler *Reconciler

	mu   sync.Mutex
	prev map[uuid.UUID]model.Scoreboard
}

func New(b *bus.Bus, st *store.Store) *Service {
	return &Service{
		bus:        b,
		store:      st,
		reconciler: NewReconciler(st.Events),
		prev:       map[uuid.UUID]model.Scoreboard{},
	}
}

// Run consumes the fanout firehose until ctx is cancelled. Tier 0
// frames drive synthetic generation, tier 1 frames drive
// reconciliation; stats frames are ignored.
func (s *Service) Run(ctx context.Context) error {
	sub := s.bus.PSubscribeFanout(ctx)
	defer sub.Close()

	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	ch := sub.Channel()
	telemetry.Infof("builder: subscribed to fanout")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cleanup.C:
			s.sweepTerminal(ctx)
		case msg, ok := <-ch:
			if !ok {
				return errors.New("builder: fanout subscription closed")
			}
			matchID, tier, ok := parseFanoutChannel(msg.Channel)
			if !ok {
				continue
			}
			switch tier {
			case model.TierScoreboard:
				s.handleScoreboard(ctx, matchID, []byte(msg.Payload))
			case model.TierEvents:
				s.handleEvents(ctx, matchID, []byte(msg.Payload))
			}
		}
	}
}

// parseFanoutChannel extracts match id and tier from
// fanout:match:{id}:tier:{n}.
func parseFanoutChannel(channel string) (uuid.UUID, model.Tier, bool) {
	parts := strings.Split(channel, ":")
	if len(parts) != 5 || parts[0] != "fanout" || parts[1] != "match" || parts[3] != "tier" {
		return uuid.Nil, 0, false
	}
	matchID, err := uuid.Parse(parts[2])
	if err != nil {
		return uuid.Nil, 0, false
	}
	switch parts[4] {
	case "0":
		return matchID, model.TierScoreboard, true
	case "1":
		return matchID, model.TierEvents, true
	case "2":
		return matchID, model.TierStats, true
	}
	return uuid.Nil, 0, false
}

func (s *Service) handleScoreboard(ctx context.Context, matchID uuid.UUID, frame []byte) {
	var curr model.Scoreboard
	if err := json.Unmarshal(frame, &curr); err != nil {
		telemetry.Warnf("builder: bad scoreboard frame for %s: %v", matchID, err)
		return
	}

	sport, err := s.resolveSport(ctx, matchID)
	if err != nil {
		telemetry.Debugf("builder: resolve sport for %s: %v", matchID, err)
		return
	}

	prev := s.loadPrev(ctx, matchID)
	events := s.generator.Derive(matchID, sport, prev, curr)
	if len(events) > 0 {
		s.persist(ctx, matchID, events)
	}
	s.savePrev(ctx, matchID, curr)
}

func (s *Service) handleEvents(ctx context.Context, matchID uuid.UUID, frame []byte) {
	var realEvents []model.MatchEvent
	if err := json.Unmarshal(frame, &realEvents); err != nil {
		telemetry.Warnf("builder: bad events frame for %s: %v", matchID, err)
		return
	}

	// synthetic frames must not retire their own rows
	filtered := realEvents[:0]
	for _, ev := range realEvents {
		if !ev.Synthetic {
			filtered = append(filtered, ev)
		}
	}
	if len(filtered) == 0 {
		return
	}

	superseded, err := s.reconciler.Reconcile(ctx, matchID, filtered)
	if err != nil {
		telemetry.Errorf("builder: reconcile %s: %v", matchID, err)
		return
	}
	if superseded > 0 {
		telemetry.Infof("builder: %d synthetic events superseded for %s", superseded, matchID)
	}
}

func (s *Service) persist(ctx context.Context, matchID uuid.UUID, events []model.MatchEvent) {
	var inserted []model.MatchEvent
	for i := range events {
		ok, err := s.store.Events.Insert(ctx, &events[i])
		if err != nil {
			telemetry.Errorf("builder: insert synthetic event: %v", err)
			continue
		}
		if !ok {
			continue
		}
		inserted = append(inserted, events[i])
		telemetry.Metrics.SyntheticEvents.Inc()
		if err := s.bus.AppendEvent(ctx, matchID, events[i]); err != nil {
			telemetry.Warnf("builder: append synthetic to stream: %v", err)
		}
	}
	if len(inserted) == 0 {
		return
	}

	// synthetic frames go out on the same tier-1 channel; the Synthetic
	// flag lets consumers tell them apart from provider events
	frame, err := json.Marshal(inserted)
	if err == nil {
		if err := s.bus.PublishDelta(ctx, matchID, model.TierEvents, frame); err != nil {
			telemetry.Warnf("builder: publish synthetic frame: %v", err)
		}
	}
	telemetry.Infof("builder: %d synthetic events for %s", len(inserted), matchID)
}

func (s *Service) resolveSport(ctx context.Context, matchID uuid.UUID) (model.Sport, error) {
	if sport, err := s.bus.CachedSport(ctx, matchID); err == nil && sport != "" {
		return sport, nil
	}

	m, err := s.store.Matches.Get(ctx, matchID)
	if err != nil {
		return "", err
	}
	league, err := s.store.Catalog.League(ctx, m.LeagueID)
	if err != nil {
		return "", err
	}
	if err := s.bus.CacheSport(ctx, matchID, league.Sport); err != nil {
		telemetry.Debugf("builder: cache sport: %v", err)
	}
	return league.Sport, nil
}

// loadPrev returns the previous scoreboard for a match, falling back to
// the Redis copy after a restart. nil means first sighting.
func (s *Service) loadPrev(ctx context.Context, matchID uuid.UUID) *model.Scoreboard {
	s.mu.Lock()
	sb, ok := s.prev[matchID]
	s.mu.Unlock()
	if ok {
		return &sb
	}

	sb, err := s.bus.GetPrevScoreboard(ctx, matchID)
	if err != nil {
		return nil
	}
	s.mu.Lock()
	s.prev[matchID] = sb
	s.mu.Unlock()
	return &sb
}

func (s *Service) savePrev(ctx context.Context, matchID uuid.UUID, sb model.Scoreboard) {
	s.mu.Lock()
	s.prev[matchID] = sb
	s.mu.Unlock()
	if err := s.bus.SetPrevScoreboard(ctx, sb); err != nil {
		telemetry.Debugf("builder: save prev scoreboard: %v", err)
	}
}

// sweepTerminal drops finished matches from the diff cache.
func (s *Service) sweepTerminal(ctx context.Context) {
	s.mu.Lock()
	var stale []uuid.UUID
	for id, sb := range s.prev {
		if model.PhaseIsTerminal(sb.Phase) {
			stale = append(stale, id)
			delete(s.prev, id)
		}
	}
	s.mu.Unlock()

	for _, id := range stale {
		if err := s.bus.DeletePrevScoreboard(ctx, id); err != nil {
			telemetry.Debugf("builder: delete prev scoreboard: %v", err)
		}
	}
	if len(stale) > 0 {
		telemetry.Infof("builder: cleaned %d terminal matches from diff cache", len(stale))
	}
}
