package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/liveview/liveview/internal/bus"
	"github.com/liveview/liveview/internal/model"
)

func unixF(t time.Time) float64 { return float64(t.UnixNano()) / 1e9 }

func TestScoreSamplesColdStart(t *testing.T) {
	h := ScoreSamples(model.ProviderESPN, nil, 5*time.Minute, time.Now())
	assert.Equal(t, ColdStartScore, h.Score)
	assert.Zero(t, h.SampleCount)
}

func TestScoreSamplesHealthy(t *testing.T) {
	now := time.Now()
	samples := []bus.HealthSample{
		{Timestamp: unixF(now.Add(-3 * time.Second)), Success: true, LatencyMs: 80},
		{Timestamp: unixF(now.Add(-2 * time.Second)), Success: true, LatencyMs: 120},
		{Timestamp: unixF(now.Add(-1 * time.Second)), Success: true, LatencyMs: 100},
	}
	h := ScoreSamples(model.ProviderESPN, samples, 5*time.Minute, now)

	assert.Equal(t, 3, h.SampleCount)
	assert.Zero(t, h.ErrorRate)
	assert.InDelta(t, 100, h.AvgLatencyMs, 0.01)
	assert.Greater(t, h.Score, 0.9)
}

func TestScoreSamplesDegraded(t *testing.T) {
	now := time.Now()
	var samples []bus.HealthSample
	for i := 0; i < 10; i++ {
		samples = append(samples, bus.HealthSample{
			Timestamp:   unixF(now.Add(-time.Duration(i) * time.Second)),
			Success:     i%2 == 0,
			LatencyMs:   3000,
			RateLimited: i%3 == 0,
		})
	}
	h := ScoreSamples(model.ProviderSportradar, samples, 5*time.Minute, now)

	assert.Equal(t, 0.5, h.ErrorRate)
	assert.Equal(t, 4, h.RateLimitHits)
	assert.Less(t, h.Score, 0.6)
	assert.Greater(t, h.Score, 0.0)
}

func TestScoreSamplesWindowFilter(t *testing.T) {
	now := time.Now()
	samples := []bus.HealthSample{
		// outside the window: should be invisible
		{Timestamp: unixF(now.Add(-10 * time.Minute)), Success: false, LatencyMs: 4999},
		{Timestamp: unixF(now.Add(-time.Second)), Success: true, LatencyMs: 50},
	}
	h := ScoreSamples(model.ProviderESPN, samples, 5*time.Minute, now)

	assert.Equal(t, 1, h.SampleCount)
	assert.Zero(t, h.ErrorRate)
}

func TestScoreSamplesNoSuccessPinsFreshness(t *testing.T) {
	now := time.Now()
	samples := []bus.HealthSample{
		{Timestamp: unixF(now.Add(-time.Second)), Success: false, LatencyMs: 100},
	}
	h := ScoreSamples(model.ProviderESPN, samples, 5*time.Minute, now)

	assert.Equal(t, float64(1), h.ErrorRate)
	assert.InDelta(t, 10000, h.FreshnessLagMs, 0.01)
}
