// Package ingest executes poll commands: it fetches from the named
// provider, feeds the health pipeline and hands payloads to the
// normalizer. Workers are stateless; all coordination happens through
// the scheduler's commands.
package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/liveview/liveview/internal/bus"
	"github.com/liveview/liveview/internal/config"
	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/normalize"
	"github.com/liveview/liveview/internal/provider"
	"github.com/liveview/liveview/internal/registry"
	"github.com/liveview/liveview/internal/telemetry"
)

type Service struct {
	cfg        *config.Config
	bus        *bus.Bus
	registry   *registry.Registry
	normalizer *normalize.Normalizer
	archive    *Archive
	sem        *semaphore.Weighted
}

func New(cfg *config.Config, b *bus.Bus, reg *registry.Registry, n *normalize.Normalizer, archive *Archive) *Service {
	return &Service{
		cfg:        cfg,
		bus:        b,
		registry:   reg,
		normalizer: n,
		archive:    archive,
		sem:        semaphore.NewWeighted(int64(cfg.IngestMaxConcurrentPolls)),
	}
}

// Run consumes poll commands until ctx is cancelled. Each command is
// handled on its own goroutine behind the concurrency semaphore so one
// slow provider cannot stall the queue.
func (s *Service) Run(ctx context.Context) error {
	sub := s.bus.SubscribePollCommands(ctx)
	defer sub.Close()

	ch := sub.Channel()
	telemetry.Infof("ingest: consuming poll commands (max %d concurrent)", s.cfg.IngestMaxConcurrentPolls)

	for {
		select {
		case <-ctx.Done():
			// drain in-flight polls before returning
			_ = s.sem.Acquire(context.Background(), int64(s.cfg.IngestMaxConcurrentPolls))
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errors.New("ingest: poll command subscription closed")
			}
			var cmd model.PollCommand
			if err := json.Unmarshal([]byte(msg.Payload), &cmd); err != nil {
				telemetry.Warnf("ingest: bad poll command: %v", err)
				continue
			}
			telemetry.Metrics.PollCommandsReceived.Inc()

			if err := s.sem.Acquire(ctx, 1); err != nil {
				continue
			}
			go func(cmd model.PollCommand) {
				defer s.sem.Release(1)
				s.handle(ctx, cmd)
			}(cmd)
		}
	}
}

func (s *Service) handle(ctx context.Context, cmd model.PollCommand) {
	conn := s.registry.Connector(cmd.Provider)
	if conn == nil {
		telemetry.Warnf("ingest: no connector registered for %s", cmd.Provider)
		return
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.ProviderRequestTimeout)
	defer cancel()

	req := provider.FetchRequest{
		Sport:            cmd.Sport,
		LeagueProviderID: cmd.LeagueProviderID,
		MatchProviderID:  cmd.MatchProviderID,
	}

	start := time.Now()
	payload, err := s.fetch(fetchCtx, conn, cmd.Tier, req)
	latency := time.Since(start)

	if errors.Is(err, provider.ErrNotSupported) {
		// not a health signal, the provider simply lacks this tier
		return
	}
	s.recordOutcome(ctx, cmd.Provider, latency, err)
	if err != nil {
		telemetry.Warnf("ingest: %s tier %d via %s: %v", cmd.CanonicalMatchID, cmd.Tier, cmd.Provider, err)
		return
	}

	if s.archive != nil {
		s.archive.Record(ctx, cmd, payload)
	}
	s.apply(ctx, cmd, payload)
}

// fetch runs the tier-appropriate connector call.
func (s *Service) fetch(ctx context.Context, conn provider.Connector, tier model.Tier, req provider.FetchRequest) (any, error) {
	switch tier {
	case model.TierScoreboard:
		return conn.FetchScoreboard(ctx, req)
	case model.TierEvents:
		events, err := conn.FetchEvents(ctx, req)
		return events, err
	case model.TierStats:
		return conn.FetchStats(ctx, req)
	default:
		return nil, errors.New("unknown tier")
	}
}

// recordOutcome feeds the rolling health window and the quota counter.
// Every attempt counts against quota, including failures.
func (s *Service) recordOutcome(ctx context.Context, p model.Provider, latency time.Duration, fetchErr error) {
	telemetry.Metrics.ProviderRequests.Inc()
	telemetry.Metrics.ProviderLatency.Record(latency)

	sample := bus.HealthSample{
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Success:   fetchErr == nil,
		LatencyMs: float64(latency.Milliseconds()),
	}
	if errors.Is(fetchErr, provider.ErrRateLimited) {
		sample.RateLimited = true
		telemetry.Metrics.ProviderRateLimits.Inc()
	}
	if fetchErr != nil {
		telemetry.Metrics.ProviderErrors.Inc()
	}

	if err := s.bus.RecordHealthSample(ctx, p, sample, s.cfg.ProviderHealthWindow); err != nil {
		telemetry.Debugf("ingest: record health sample: %v", err)
	}
	if err := s.bus.IncrQuota(ctx, p, time.Now()); err != nil {
		telemetry.Debugf("ingest: incr quota: %v", err)
	}
}

func (s *Service) apply(ctx context.Context, cmd model.PollCommand, payload any) {
	start := time.Now()
	var err error

	switch data := payload.(type) {
	case provider.ScoreboardData:
		_, err = s.normalizer.ApplyScoreboard(ctx, cmd.CanonicalMatchID, data, cmd.Provider, false)
		if errors.Is(err, normalize.ErrScoreRegression) {
			err = nil
		}
	case []provider.EventData:
		_, err = s.normalizer.ApplyEvents(ctx, cmd.CanonicalMatchID, data, cmd.Provider)
	case provider.StatsData:
		_, err = s.normalizer.ApplyStats(ctx, cmd.CanonicalMatchID, data, cmd.Provider)
	}
	if err != nil {
		telemetry.Errorf("ingest: normalize %s tier %d: %v", cmd.CanonicalMatchID, cmd.Tier, err)
		return
	}
	telemetry.Metrics.NormalizeLatency.Record(time.Since(start))
}
