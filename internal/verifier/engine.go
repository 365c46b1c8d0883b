package verifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/liveview/liveview/internal/bus"
	"github.com/liveview/liveview/internal/config"
	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/normalize"
	"github.com/liveview/liveview/internal/provider"
	"github.com/liveview/liveview/internal/provider/espn"
	"github.com/liveview/liveview/internal/store"
	"github.com/liveview/liveview/internal/telemetry"
)

// espnBaseURL keys the rate limiter and breaker; only the domain
// matters for both.
const espnBaseURL = "https://site.api.espn.com/"

const (
	idleSleep          = time.Minute
	highDemandMaxLive  = 20
	fetchRetryAttempts = 2
	fetchRetryBase     = time.Second
)

// errThrottled marks a pass skipped by the local limiter.
var errThrottled = errors.New("verifier: throttled")

// Engine walks the live matches on a jittered cadence, fetches ESPN's
// view of each league board, matches fixtures by team name and
// arbitrates disagreements.
type Engine struct {
	cfg        *config.Config
	bus        *bus.Bus
	store      *store.Store
	normalizer *normalize.Normalizer
	espn       *espn.Connector
	limiter    *DomainLimiter
	breaker    *Breaker
	sem        *semaphore.Weighted
}

func New(cfg *config.Config, b *bus.Bus, st *store.Store, n *normalize.Normalizer, source *espn.Connector) *Engine {
	return &Engine{
		cfg:        cfg,
		bus:        b,
		store:      st,
		normalizer: n,
		espn:       source,
		limiter:    NewDomainLimiter(cfg.VerifierDomainRPM, cfg.VerifierDomainBurst, cfg.VerifierBackoffOn429),
		breaker:    NewBreaker(cfg.VerifierBreakerFailures, cfg.VerifierBreakerRecovery),
		sem:        semaphore.NewWeighted(int64(cfg.VerifierMaxConcurrent)),
	}
}

// Run verifies continuously until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) error {
	for {
		live, err := e.store.Matches.Live(ctx)
		if err != nil {
			telemetry.Errorf("verifier: list live matches: %v", err)
			if err := sleep(ctx, 30*time.Second); err != nil {
				return err
			}
			continue
		}
		telemetry.Metrics.LiveMatches.Set(int64(len(live)))
		if len(live) == 0 {
			if err := sleep(ctx, idleSleep); err != nil {
				return err
			}
			continue
		}

		e.verifyAll(ctx, live)

		if err := sleep(ctx, e.cycleDelay(len(live))); err != nil {
			return err
		}
	}
}

// cycleDelay picks the pause between passes: short while few matches
// are live, long under load, with jitter either way.
func (e *Engine) cycleDelay(liveCount int) time.Duration {
	lo, hi := e.cfg.VerifierLowIntervalMin, e.cfg.VerifierLowIntervalMax
	if liveCount <= highDemandMaxLive {
		lo, hi = e.cfg.VerifierHighIntervalMin, e.cfg.VerifierHighIntervalMax
	}
	base := lo.Seconds() + rand.Float64()*(hi-lo).Seconds()
	jitter := base * e.cfg.VerifierJitter * (2*rand.Float64() - 1)
	delay := base + jitter
	if delay < 1 {
		delay = 1
	}
	return time.Duration(delay * float64(time.Second))
}

func (e *Engine) verifyAll(ctx context.Context, live []model.Match) {
	var wg sync.WaitGroup
	for _, m := range live {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(m model.Match) {
			defer wg.Done()
			defer e.sem.Release(1)
			if err := e.VerifyOne(ctx, m.ID); err != nil {
				telemetry.Warnf("verifier: %s: %v", m.ID, err)
			}
		}(m)
	}
	wg.Wait()
}

// VerifyOne cross-checks a single match. Missing mappings or an
// unreachable source count as "checked, nothing learned".
func (e *Engine) VerifyOne(ctx context.Context, matchID uuid.UUID) error {
	current, err := e.store.States.Scoreboard(ctx, matchID)
	if errors.Is(err, store.ErrNotFound) {
		return e.bus.MarkChecked(ctx, matchID, time.Now())
	}
	if err != nil {
		return fmt.Errorf("load scoreboard: %w", err)
	}

	leagueSlug, err := e.store.Mappings.ProviderID(ctx, "league", model.ProviderESPN, current.League.ID)
	if err != nil {
		// no ESPN mapping for the league, nothing to verify against
		return e.bus.MarkChecked(ctx, matchID, time.Now())
	}

	board, err := e.fetchLeagueBoard(ctx, current.League.Sport, leagueSlug)
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) || errors.Is(err, errThrottled) {
			return nil
		}
		return err
	}

	var verified []provider.ScoreboardData
	for _, sb := range board {
		if teamNamesMatch(current.HomeTeam.Name, current.AwayTeam.Name, sb.HomeName, sb.AwayName) {
			verified = append(verified, sb)
			break
		}
	}
	telemetry.Metrics.VerifierChecks.Inc()
	if err := e.bus.MarkChecked(ctx, matchID, time.Now()); err != nil {
		telemetry.Debugf("verifier: mark checked: %v", err)
	}
	if len(verified) == 0 {
		return nil
	}

	confidence, disposition, recommended := ComputeConfidence(current, verified)
	if err := e.bus.SetConfidence(ctx, matchID, confidence); err != nil {
		telemetry.Debugf("verifier: set confidence: %v", err)
	}
	if recommended == nil || statesAgree(current, *recommended) {
		if err := e.bus.ClearDispute(ctx, matchID); err != nil {
			telemetry.Debugf("verifier: clear dispute: %v", err)
		}
		return nil
	}

	switch {
	case confidence >= e.cfg.VerifierConfidenceHigh:
		return e.applyCorrection(ctx, matchID, current, *recommended)
	case confidence >= e.cfg.VerifierConfidenceMed:
		telemetry.Warnf("verifier: medium-confidence mismatch for %s: ours %d-%d %s, source %d-%d %s",
			matchID, current.Score.Home, current.Score.Away, current.Phase,
			recommended.HomeScore, recommended.AwayScore, recommended.Phase)
		return nil
	default:
		telemetry.Metrics.VerifierDisputes.Inc()
		telemetry.Warnf("verifier: dispute for %s (%s): ours %d-%d, source %d-%d",
			matchID, disposition, current.Score.Home, current.Score.Away,
			recommended.HomeScore, recommended.AwayScore)
		return e.bus.RecordDispute(ctx, bus.Dispute{
			MatchID:       matchID,
			PrimaryHome:   current.Score.Home,
			PrimaryAway:   current.Score.Away,
			SecondaryHome: recommended.HomeScore,
			SecondaryAway: recommended.AwayScore,
			Detail:        fmt.Sprintf("phase ours=%s source=%s", current.Phase, recommended.Phase),
			RecordedAt:    time.Now().UTC(),
		})
	}
}

// applyCorrection pushes the verified state through the normalizer's
// scoreboard path. Regression is allowed here: the whole point of a
// correction is overriding a wrong (possibly higher) score.
func (e *Engine) applyCorrection(ctx context.Context, matchID uuid.UUID, current model.Scoreboard, recommended provider.ScoreboardData) error {
	changed, err := e.normalizer.ApplyScoreboard(ctx, matchID, recommended, model.ProviderESPN, true)
	if err != nil {
		return fmt.Errorf("apply correction: %w", err)
	}
	if changed {
		telemetry.Metrics.VerifierCorrections.Inc()
		telemetry.Infof("verifier: corrected %s from %d-%d %s to %d-%d %s",
			matchID, current.Score.Home, current.Score.Away, current.Phase,
			recommended.HomeScore, recommended.AwayScore, recommended.Phase)
	}
	return nil
}

// fetchLeagueBoard wraps the ESPN pull with the per-domain limiter,
// breaker and a small exponential retry.
func (e *Engine) fetchLeagueBoard(ctx context.Context, sport model.Sport, leagueSlug string) ([]provider.ScoreboardData, error) {
	if !e.limiter.Allow(espnBaseURL) {
		telemetry.Debugf("verifier: rate limited locally, skipping %s this pass", leagueSlug)
		return nil, errThrottled
	}
	if err := e.breaker.Allow(espnBaseURL); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= fetchRetryAttempts; attempt++ {
		board, err := e.espn.FetchLeagueLive(ctx, sport, leagueSlug)
		if err == nil {
			e.breaker.RecordSuccess(espnBaseURL)
			return board, nil
		}
		lastErr = err
		e.breaker.RecordFailure(espnBaseURL)
		if errors.Is(err, provider.ErrRateLimited) {
			e.limiter.Record429(espnBaseURL)
			break
		}
		if attempt < fetchRetryAttempts {
			if err := sleep(ctx, fetchRetryBase<<attempt); err != nil {
				return nil, err
			}
		}
	}
	return nil, fmt.Errorf("fetch %s board: %w", leagueSlug, lastErr)
}

// teamNamesMatch compares fixture identity loosely: exact normalized
// match or mutual containment. Source rosters spell names differently
// ("Arsenal" vs "Arsenal FC").
func teamNamesMatch(home, away, srcHome, srcAway string) bool {
	norm := func(s string) string {
		s = strings.ToLower(strings.TrimSpace(s))
		if len(s) > 30 {
			s = s[:30]
		}
		return s
	}
	h, a, sh, sa := norm(home), norm(away), norm(srcHome), norm(srcAway)
	if h == "" || a == "" {
		return false
	}
	if h == sh && a == sa {
		return true
	}
	return strings.Contains(sh, h) && strings.Contains(sa, a)
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
