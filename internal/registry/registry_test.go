package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liveview/liveview/internal/bus"
	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/provider"
)

// stubConnector covers soccer only and never fetches.
type stubConnector struct {
	name model.Provider
}

func (s stubConnector) Name() model.Provider       { return s.name }
func (s stubConnector) Covers(sp model.Sport) bool { return sp == model.SportSoccer }
func (s stubConnector) FetchScoreboard(context.Context, provider.FetchRequest) (provider.ScoreboardData, error) {
	return provider.ScoreboardData{}, provider.ErrNotSupported
}
func (s stubConnector) FetchEvents(context.Context, provider.FetchRequest) ([]provider.EventData, error) {
	return nil, provider.ErrNotSupported
}
func (s stubConnector) FetchStats(context.Context, provider.FetchRequest) (provider.StatsData, error) {
	return provider.StatsData{}, provider.ErrNotSupported
}
func (s stubConnector) FetchLeagueSchedule(context.Context, model.Sport, string, time.Time) ([]provider.ScheduleEntry, error) {
	return nil, provider.ErrNotSupported
}

func newTestRegistry(t *testing.T, limits map[model.Provider]int) (*Registry, *bus.Bus, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	b := bus.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { b.Close() })

	scorer := NewHealthScorer(b, 5*time.Minute)
	order := []model.Provider{model.ProviderSportradar, model.ProviderESPN}
	reg := New(b, scorer, order, 0.4, time.Minute, func(p model.Provider) int {
		if n, ok := limits[p]; ok {
			return n
		}
		return 1000
	})
	reg.Register(stubConnector{model.ProviderSportradar})
	reg.Register(stubConnector{model.ProviderESPN})
	return reg, b, mr
}

// seedSamples records total samples with the first errs of them failed.
func seedSamples(t *testing.T, b *bus.Bus, p model.Provider, total, errs int, rateLimited bool) {
	t.Helper()
	now := float64(time.Now().UnixNano()) / 1e9
	for i := 0; i < total; i++ {
		s := bus.HealthSample{
			Timestamp:   now,
			Success:     i >= errs,
			LatencyMs:   100,
			RateLimited: rateLimited,
		}
		require.NoError(t, b.RecordHealthSample(context.Background(), p, s, 5*time.Minute))
	}
}

func TestSelectPicksBestScoreNotFirstInCascade(t *testing.T) {
	reg, b, mr := newTestRegistry(t, nil)
	matchID := uuid.New()

	// sportradar leads the cascade but scores ~0.8, espn ~1.0
	seedSamples(t, b, model.ProviderSportradar, 10, 5, false)
	seedSamples(t, b, model.ProviderESPN, 10, 0, false)

	p, err := reg.Select(context.Background(), matchID, model.TierScoreboard, model.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderESPN, p)

	pin, err := mr.Get("select:match:" + matchID.String() + ":tier:0")
	require.NoError(t, err)
	assert.Equal(t, "espn", pin)
}

func TestSelectTieBreaksByCascadeOrder(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)

	// no samples: both sit at the cold-start score
	p, err := reg.Select(context.Background(), uuid.New(), model.TierScoreboard, model.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderSportradar, p)
}

func TestSelectHonorsHealthyPin(t *testing.T) {
	reg, b, _ := newTestRegistry(t, nil)
	ctx := context.Background()
	matchID := uuid.New()

	seedSamples(t, b, model.ProviderSportradar, 10, 2, false)
	seedSamples(t, b, model.ProviderESPN, 10, 0, false)
	require.NoError(t, b.PinProvider(ctx, matchID, model.TierScoreboard, model.ProviderSportradar, time.Minute))

	// the pin sticks even though espn scores higher
	p, err := reg.Select(ctx, matchID, model.TierScoreboard, model.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderSportradar, p)
}

func TestSelectDropsPinOverQuota(t *testing.T) {
	reg, b, _ := newTestRegistry(t, map[model.Provider]int{model.ProviderESPN: 5})
	ctx := context.Background()
	matchID := uuid.New()

	require.NoError(t, b.PinProvider(ctx, matchID, model.TierScoreboard, model.ProviderESPN, time.Minute))
	for i := 0; i < 5; i++ {
		require.NoError(t, b.IncrQuota(ctx, model.ProviderESPN, time.Now()))
	}

	p, err := reg.Select(ctx, matchID, model.TierScoreboard, model.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderSportradar, p)

	// the replacement is pinned
	pinned, err := b.PinnedProvider(ctx, matchID, model.TierScoreboard)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderSportradar, pinned)
}

func TestSelectQuotaFiltersCandidates(t *testing.T) {
	reg, b, _ := newTestRegistry(t, map[model.Provider]int{model.ProviderSportradar: 3})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.IncrQuota(ctx, model.ProviderSportradar, time.Now()))
	}

	p, err := reg.Select(ctx, uuid.New(), model.TierScoreboard, model.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderESPN, p)
}

func TestSelectDesperationUsesCascadeOrderAndPins(t *testing.T) {
	reg, b, _ := newTestRegistry(t, nil)
	ctx := context.Background()
	matchID := uuid.New()

	// all errors plus rate limits drives both well below threshold
	seedSamples(t, b, model.ProviderSportradar, 10, 10, true)
	seedSamples(t, b, model.ProviderESPN, 10, 10, true)

	p, err := reg.Select(ctx, matchID, model.TierEvents, model.SportSoccer)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderSportradar, p)

	pinned, err := b.PinnedProvider(ctx, matchID, model.TierEvents)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderSportradar, pinned)
}

func TestSelectPinsPerTier(t *testing.T) {
	reg, b, _ := newTestRegistry(t, nil)
	ctx := context.Background()
	matchID := uuid.New()

	_, err := reg.Select(ctx, matchID, model.TierScoreboard, model.SportSoccer)
	require.NoError(t, err)

	pinned, err := b.PinnedProvider(ctx, matchID, model.TierEvents)
	require.NoError(t, err)
	assert.Equal(t, model.Provider(""), pinned, "tier 1 must not inherit the tier 0 pin")
}

func TestSelectNoCoverage(t *testing.T) {
	reg, _, _ := newTestRegistry(t, nil)

	_, err := reg.Select(context.Background(), uuid.New(), model.TierScoreboard, model.SportBasketball)
	assert.ErrorIs(t, err, ErrNoProvider)
}
