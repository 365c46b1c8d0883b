// Package registry scores provider health and picks the provider for
// each match+tier poll: honor a healthy under-quota pin, otherwise the
// best-scoring cascade candidate, otherwise fall back to cascade order.
package registry

import (
	"context"
	"math"
	"time"

	"github.com/liveview/liveview/internal/bus"
	"github.com/liveview/liveview/internal/model"
)

// Score weights and ceilings. Components are normalized into [0,1]
// before weighting; anything at or beyond a ceiling contributes zero.
const (
	weightErrors    = 0.40
	weightLatency   = 0.25
	weightRateLimit = 0.20
	weightFreshness = 0.15

	latencyCeilingMs   = 5000.0
	rateLimitCeiling   = 10.0
	freshnessCeilingMs = 10000.0

	// ColdStartScore is used while a provider has no samples in the
	// window: healthy enough to try, not healthy enough to pin over a
	// proven provider.
	ColdStartScore = 0.8
)

// HealthScorer computes rolling health from bus samples.
type HealthScorer struct {
	bus    *bus.Bus
	window time.Duration
}

func NewHealthScorer(b *bus.Bus, window time.Duration) *HealthScorer {
	return &HealthScorer{bus: b, window: window}
}

// Score returns the provider's current health over the window.
func (h *HealthScorer) Score(ctx context.Context, p model.Provider) (model.ProviderHealth, error) {
	samples, err := h.bus.HealthSamples(ctx, p)
	if err != nil {
		return model.ProviderHealth{}, err
	}
	return ScoreSamples(p, samples, h.window, time.Now()), nil
}

// ScoreSamples is the pure scoring function. Samples outside the window
// are ignored; with none left, the cold-start score applies.
func ScoreSamples(p model.Provider, samples []bus.HealthSample, window time.Duration, now time.Time) model.ProviderHealth {
	cutoff := float64(now.Add(-window).UnixNano()) / 1e9

	var (
		total, errs, rateLimits int
		latencySum              float64
		lastSuccess             float64
	)
	for _, s := range samples {
		if s.Timestamp < cutoff {
			continue
		}
		total++
		if !s.Success {
			errs++
		} else if s.Timestamp > lastSuccess {
			lastSuccess = s.Timestamp
		}
		if s.RateLimited {
			rateLimits++
		}
		latencySum += s.LatencyMs
	}

	if total == 0 {
		return model.ProviderHealth{Provider: p, Score: ColdStartScore}
	}

	errRate := float64(errs) / float64(total)
	avgLatency := latencySum / float64(total)

	// no success in the window pins freshness at the ceiling
	freshnessMs := freshnessCeilingMs
	if lastSuccess > 0 {
		freshnessMs = (float64(now.UnixNano())/1e9 - lastSuccess) * 1000
	}

	score := weightErrors*(1-errRate) +
		weightLatency*(1-math.Min(avgLatency/latencyCeilingMs, 1)) +
		weightRateLimit*(1-math.Min(float64(rateLimits)/rateLimitCeiling, 1)) +
		weightFreshness*(1-math.Min(freshnessMs/freshnessCeilingMs, 1))

	return model.ProviderHealth{
		Provider:       p,
		ErrorRate:      errRate,
		AvgLatencyMs:   avgLatency,
		RateLimitHits:  rateLimits,
		FreshnessLagMs: freshnessMs,
		Score:          score,
		SampleCount:    total,
	}
}
