package scheduler

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/liveview/liveview/internal/bus"
	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/telemetry"
)

// IntervalEngine computes the adaptive poll interval for one
// match+tier:
//
//	base   = tempo[sport][phase] * tierMultiplier
//	demand = 1 / (1 + ln(1 + subscribers)), or 3.0 with none
//	health = 1 + (1 - score) * 2
//	quota  = 1 + (ratio - 0.7) * 5 above 70% usage, doubled above 90%
//	clamp to [min, max], then jitter +-jitterFactor
type IntervalEngine struct {
	bus          *bus.Bus
	tempos       map[model.Sport]TempoProfile
	minInterval  float64
	maxInterval  float64
	jitterFactor float64
}

func NewIntervalEngine(b *bus.Bus, tempos map[model.Sport]TempoProfile, min, max time.Duration, jitter float64) *IntervalEngine {
	return &IntervalEngine{
		bus:          b,
		tempos:       tempos,
		minInterval:  min.Seconds(),
		maxInterval:  max.Seconds(),
		jitterFactor: jitter,
	}
}

func (e *IntervalEngine) Compute(ctx context.Context, matchID uuid.UUID, sport model.Sport, phase model.MatchPhase, tier model.Tier, healthScore float64, quotaUsage, quotaLimit int) time.Duration {
	tempo, ok := e.tempos[sport]
	if !ok {
		tempo = e.tempos[model.SportSoccer]
	}
	interval := tempo.forKey(model.PhaseTempoKey(phase))
	if interval <= 0 {
		interval = 30
	}
	interval *= tierMultipliers[tier]

	subscribers, err := e.bus.SubscriberCount(ctx, matchID)
	if err != nil {
		telemetry.Debugf("scheduler: subscriber count for %s: %v", matchID, err)
		subscribers = 0
	}
	demand := 3.0
	if subscribers > 0 {
		demand = 1.0 / (1.0 + math.Log(1.0+float64(subscribers)))
	}
	interval *= demand

	interval *= 1.0 + (1.0-healthScore)*2.0

	if quotaLimit > 0 {
		ratio := float64(quotaUsage) / float64(quotaLimit)
		if ratio > 0.7 {
			quotaFactor := 1.0 + (ratio-0.7)*5.0
			if ratio > 0.9 {
				quotaFactor *= 2.0
			}
			interval *= quotaFactor
		}
	}

	interval = math.Max(e.minInterval, math.Min(e.maxInterval, interval))

	// jitter breaks up synchronized poll bursts across matches
	jitterRange := interval * e.jitterFactor
	interval = math.Max(e.minInterval, interval+rand.Float64()*2*jitterRange-jitterRange)

	return time.Duration(interval * float64(time.Second))
}
