// Package scheduler drives the polling plane: one elected leader walks
// the active matches, computes adaptive intervals and publishes poll
// commands for the ingest workers.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/liveview/liveview/internal/bus"
	"github.com/liveview/liveview/internal/config"
	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/registry"
	"github.com/liveview/liveview/internal/store"
	"github.com/liveview/liveview/internal/telemetry"
)

const (
	reconcileEveryNTicks   = 10
	recentlyFinishedWindow = 15 * time.Minute
	discoveryLookback      = 5 * time.Minute
	discoveryLookahead     = 10 * time.Minute
)

type taskKey struct {
	matchID uuid.UUID
	tier    model.Tier
}

// pollTask is the scheduler's in-memory state for one match+tier.
type pollTask struct {
	matchID          uuid.UUID
	sport            model.Sport
	tier             model.Tier
	phase            model.MatchPhase
	provider         model.Provider
	leagueProviderID string
	matchProviderID  string
	nextPollAt       time.Time
}

type Service struct {
	cfg      *config.Config
	bus      *bus.Bus
	store    *store.Store
	registry *registry.Registry
	scorer   *registry.HealthScorer
	interval *IntervalEngine

	instanceID string
	isLeader   bool
	lastRenew  time.Time
	tasks      map[taskKey]*pollTask
}

func New(cfg *config.Config, b *bus.Bus, st *store.Store, reg *registry.Registry, scorer *registry.HealthScorer, engine *IntervalEngine) *Service {
	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()[:8]
	}
	return &Service{
		cfg:        cfg,
		bus:        b,
		store:      st,
		registry:   reg,
		scorer:     scorer,
		interval:   engine,
		instanceID: instanceID,
		tasks:      map[taskKey]*pollTask{},
	}
}

func (s *Service) InstanceID() string { return s.instanceID }

// Run is the main loop: leader election, periodic reconcile, poll
// dispatch. Returns when ctx is cancelled; leadership is released on
// the way out.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SchedulerTickInterval)
	defer ticker.Stop()

	tickCount := 0
	for {
		select {
		case <-ctx.Done():
			s.stopAllTasks()
			if s.isLeader {
				releaseCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				if err := s.bus.ReleaseLeadership(releaseCtx, s.instanceID); err != nil {
					telemetry.Warnf("scheduler: release leadership: %v", err)
				}
				cancel()
			}
			return ctx.Err()
		case <-ticker.C:
		}

		if !s.ensureLeadership(ctx) {
			continue
		}

		tickCount++
		if tickCount >= reconcileEveryNTicks || len(s.tasks) == 0 {
			if err := s.reconcile(ctx); err != nil {
				telemetry.Errorf("scheduler: reconcile: %v", err)
			}
			tickCount = 0
		}

		s.dispatchDue(ctx)
	}
}

func (s *Service) ensureLeadership(ctx context.Context) bool {
	if s.isLeader {
		// renew on the configured cadence, not every tick
		if time.Since(s.lastRenew) < s.cfg.LeaderRenewInterval {
			return true
		}
		ok, err := s.bus.RenewLeadership(ctx, s.instanceID, s.cfg.LeaderTTL)
		if err != nil {
			telemetry.Warnf("scheduler: renew leadership: %v", err)
			return false
		}
		if !ok {
			telemetry.Warnf("scheduler: leadership lost (instance %s)", s.instanceID)
			s.isLeader = false
			s.stopAllTasks()
			return false
		}
		s.lastRenew = time.Now()
		return true
	}

	ok, err := s.bus.TryAcquireLeadership(ctx, s.instanceID, s.cfg.LeaderTTL)
	if err != nil {
		telemetry.Warnf("scheduler: acquire leadership: %v", err)
		return false
	}
	if ok {
		s.isLeader = true
		s.lastRenew = time.Now()
		telemetry.Metrics.LeadershipAcquisitions.Inc()
		telemetry.Infof("scheduler: leadership acquired (instance %s)", s.instanceID)
	}
	return ok
}

// reconcile syncs the task table with the matches that currently need
// polling: live ones, those inside the start window, and recently
// finished ones awaiting final confirmation.
func (s *Service) reconcile(ctx context.Context) error {
	now := time.Now().UTC()

	live, err := s.store.Matches.Live(ctx)
	if err != nil {
		return fmt.Errorf("list live matches: %w", err)
	}
	upcoming, err := s.store.Matches.InWindow(ctx, now.Add(-discoveryLookback), now.Add(discoveryLookahead))
	if err != nil {
		return fmt.Errorf("list upcoming matches: %w", err)
	}
	finished, err := s.store.Matches.FinishedSince(ctx, now.Add(-recentlyFinishedWindow))
	if err != nil {
		return fmt.Errorf("list finished matches: %w", err)
	}

	seen := map[uuid.UUID]model.Match{}
	for _, group := range [][]model.Match{live, upcoming, finished} {
		for _, m := range group {
			seen[m.ID] = m
		}
	}

	activeKeys := map[taskKey]bool{}
	for _, m := range seen {
		sport, err := s.matchSport(ctx, m)
		if err != nil {
			telemetry.Warnf("scheduler: resolve sport for %s: %v", m.ID, err)
			continue
		}

		tiers := []model.Tier{model.TierScoreboard}
		if model.PhaseIsLive(m.Phase) {
			tiers = append(tiers, model.TierEvents, model.TierStats)
		}

		for _, tier := range tiers {
			key := taskKey{m.ID, tier}
			activeKeys[key] = true

			if task, ok := s.tasks[key]; ok {
				task.phase = m.Phase
				continue
			}
			task, err := s.buildTask(ctx, m, sport, tier)
			if err != nil {
				telemetry.Warnf("scheduler: task for %s tier %d: %v", m.ID, tier, err)
				continue
			}
			s.tasks[key] = task
			telemetry.Infof("scheduler: poll task created match=%s tier=%d sport=%s phase=%s",
				m.ID, tier, sport, m.Phase)
		}
	}

	for key, task := range s.tasks {
		if !activeKeys[key] {
			delete(s.tasks, key)
			telemetry.Infof("scheduler: poll task removed match=%s tier=%d", task.matchID, task.tier)
		}
	}

	telemetry.Metrics.ActivePollTasks.Set(int64(len(s.tasks)))
	return nil
}

func (s *Service) matchSport(ctx context.Context, m model.Match) (model.Sport, error) {
	league, err := s.store.Catalog.League(ctx, m.LeagueID)
	if err != nil {
		return "", err
	}
	return league.Sport, nil
}

// buildTask selects a provider for the match and resolves its
// provider-space ids.
func (s *Service) buildTask(ctx context.Context, m model.Match, sport model.Sport, tier model.Tier) (*pollTask, error) {
	p, err := s.registry.Select(ctx, m.ID, tier, sport)
	if err != nil {
		return nil, err
	}

	matchPID, err := s.store.Mappings.ProviderID(ctx, "match", p, m.ID)
	if err != nil {
		return nil, fmt.Errorf("match mapping for %s: %w", p, err)
	}
	leaguePID, err := s.store.Mappings.ProviderID(ctx, "league", p, m.LeagueID)
	if err != nil {
		leaguePID = ""
	}

	return &pollTask{
		matchID:          m.ID,
		sport:            sport,
		tier:             tier,
		phase:            m.Phase,
		provider:         p,
		leagueProviderID: leaguePID,
		matchProviderID:  matchPID,
	}, nil
}

// dispatchDue publishes a poll command for every task whose interval
// has elapsed and schedules its next poll.
func (s *Service) dispatchDue(ctx context.Context) {
	now := time.Now()

	for _, task := range s.tasks {
		if now.Before(task.nextPollAt) {
			continue
		}

		health, err := s.scorer.Score(ctx, task.provider)
		if err != nil {
			telemetry.Debugf("scheduler: health score %s: %v", task.provider, err)
			health.Score = registry.ColdStartScore
		}
		quota, err := s.bus.QuotaUsage(ctx, task.provider, now)
		if err != nil {
			quota = 0
		}

		interval := s.interval.Compute(ctx, task.matchID, task.sport, task.phase, task.tier,
			health.Score, quota, s.cfg.RPMLimit(string(task.provider)))
		task.nextPollAt = now.Add(interval)

		cmd := model.PollCommand{
			CanonicalMatchID: task.matchID,
			Tier:             task.tier,
			Sport:            task.sport,
			LeagueProviderID: task.leagueProviderID,
			MatchProviderID:  task.matchProviderID,
			Provider:         task.provider,
			Timestamp:        float64(now.UnixNano()) / 1e9,
		}
		if err := s.bus.PublishPollCommand(ctx, cmd); err != nil {
			telemetry.Warnf("scheduler: publish poll command: %v", err)
			continue
		}
		telemetry.Metrics.PollCommandsSent.Inc()
		telemetry.Debugf("scheduler: poll dispatched match=%s tier=%d next in %s",
			task.matchID, task.tier, interval.Round(10*time.Millisecond))
	}
}

func (s *Service) stopAllTasks() {
	if len(s.tasks) > 0 {
		s.tasks = map[taskKey]*pollTask{}
	}
	telemetry.Metrics.ActivePollTasks.Set(0)
}
