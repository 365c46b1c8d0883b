package registry

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/liveview/liveview/internal/bus"
	"github.com/liveview/liveview/internal/model"
	"github.com/liveview/liveview/internal/provider"
	"github.com/liveview/liveview/internal/telemetry"
)

// ErrNoProvider means no registered connector can serve the request.
var ErrNoProvider = errors.New("registry: no provider available")

// Registry owns the connector set and the selection policy.
type Registry struct {
	bus        *bus.Bus
	scorer     *HealthScorer
	connectors map[model.Provider]provider.Connector
	order      []model.Provider
	threshold  float64
	pinTTL     time.Duration
	rpmLimit   func(model.Provider) int
}

func New(b *bus.Bus, scorer *HealthScorer, order []model.Provider, threshold float64, pinTTL time.Duration, rpmLimit func(model.Provider) int) *Registry {
	return &Registry{
		bus:        b,
		scorer:     scorer,
		connectors: map[model.Provider]provider.Connector{},
		order:      order,
		threshold:  threshold,
		pinTTL:     pinTTL,
		rpmLimit:   rpmLimit,
	}
}

// Register adds a connector. Connectors absent from the cascade order
// are never selected.
func (r *Registry) Register(c provider.Connector) {
	r.connectors[c.Name()] = c
}

// Connector returns the connector for a provider, or nil.
func (r *Registry) Connector(p model.Provider) provider.Connector {
	return r.connectors[p]
}

// Select picks the provider to poll a match+tier with. A live pin wins
// while its provider stays healthy and under quota; otherwise every
// cascade provider with sport coverage, health at or above threshold
// and quota headroom becomes a candidate, the highest score wins
// (cascade order breaks ties) and the winner is pinned. When no
// candidate survives, the first covering cascade provider is used and
// pinned regardless of health.
func (r *Registry) Select(ctx context.Context, matchID uuid.UUID, tier model.Tier, sport model.Sport) (model.Provider, error) {
	if pinned, err := r.bus.PinnedProvider(ctx, matchID, tier); err == nil && pinned != "" {
		if c, ok := r.connectors[pinned]; ok && c.Covers(sport) {
			if h, err := r.scorer.Score(ctx, pinned); err == nil && h.Score >= r.threshold {
				if r.underQuota(ctx, pinned) {
					return pinned, nil
				}
				telemetry.Infof("provider %s over quota, dropping pin for match %s tier %d", pinned, matchID, tier)
			} else {
				telemetry.Infof("provider %s below threshold, dropping pin for match %s tier %d", pinned, matchID, tier)
			}
		}
	}

	type candidate struct {
		provider model.Provider
		score    float64
	}
	var candidates []candidate
	for _, p := range r.order {
		c, ok := r.connectors[p]
		if !ok || !c.Covers(sport) {
			continue
		}
		h, err := r.scorer.Score(ctx, p)
		if err != nil {
			continue
		}
		if h.Score < r.threshold {
			telemetry.Debugf("provider %s below threshold (%.2f < %.2f)", p, h.Score, r.threshold)
			continue
		}
		if !r.underQuota(ctx, p) {
			telemetry.Debugf("provider %s quota exhausted", p)
			continue
		}
		candidates = append(candidates, candidate{p, h.Score})
	}

	if len(candidates) > 0 {
		// stable sort: cascade order breaks score ties
		sort.SliceStable(candidates, func(i, j int) bool {
			return candidates[i].score > candidates[j].score
		})
		return r.pin(ctx, matchID, tier, candidates[0].provider), nil
	}

	// desperation: everything degraded or out of quota, take the first
	// covering provider in cascade order
	for _, p := range r.order {
		if c, ok := r.connectors[p]; ok && c.Covers(sport) {
			telemetry.Warnf("all providers degraded for match %s tier %d, falling back to %s", matchID, tier, p)
			return r.pin(ctx, matchID, tier, p), nil
		}
	}
	return "", ErrNoProvider
}

func (r *Registry) pin(ctx context.Context, matchID uuid.UUID, tier model.Tier, p model.Provider) model.Provider {
	if err := r.bus.PinProvider(ctx, matchID, tier, p, r.pinTTL); err != nil {
		telemetry.Warnf("pin provider: %v", err)
	}
	return p
}

// underQuota reports whether the provider's current-minute request
// count is below its configured rpm limit. Read failures fail open so
// a Redis hiccup never starves selection.
func (r *Registry) underQuota(ctx context.Context, p model.Provider) bool {
	limit := r.rpmLimit(p)
	if limit <= 0 {
		return true
	}
	usage, err := r.bus.QuotaUsage(ctx, p, time.Now())
	if err != nil {
		return true
	}
	return usage < limit
}
