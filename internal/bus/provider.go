package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/liveview/liveview/internal/model"
)

// HealthSample is one provider request outcome. Samples live in a
// capped Redis list per provider; the registry scores the window.
type HealthSample struct {
	Timestamp   float64 `json:"ts"` // unix seconds
	Success     bool    `json:"ok"`
	LatencyMs   float64 `json:"latency_ms"`
	RateLimited bool    `json:"rate_limited"`
}

const healthSampleCap = 500

// RecordHealthSample appends a sample and trims the list to the cap.
// The key expires at twice the scoring window so dead providers age out.
func (b *Bus) RecordHealthSample(ctx context.Context, p model.Provider, s HealthSample, window time.Duration) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal health sample: %w", err)
	}
	pipe := b.rdb.Pipeline()
	pipe.RPush(ctx, healthKey(p), data)
	pipe.LTrim(ctx, healthKey(p), -healthSampleCap, -1)
	pipe.Expire(ctx, healthKey(p), 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record health sample: %w", err)
	}
	return nil
}

// HealthSamples returns every retained sample for a provider.
func (b *Bus) HealthSamples(ctx context.Context, p model.Provider) ([]HealthSample, error) {
	raw, err := b.rdb.LRange(ctx, healthKey(p), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read health samples: %w", err)
	}
	out := make([]HealthSample, 0, len(raw))
	for _, r := range raw {
		var s HealthSample
		if err := json.Unmarshal([]byte(r), &s); err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// ── selection pin ───────────────────────────────────────────────────────

// PinProvider records the provider chosen for a match+tier. The TTL is
// the anti-flap window: while it lives, re-selection sticks with the
// pin unless the pinned provider drops below the health threshold or
// runs out of quota.
func (b *Bus) PinProvider(ctx context.Context, matchID uuid.UUID, tier model.Tier, p model.Provider, ttl time.Duration) error {
	if err := b.rdb.Set(ctx, selectionKey(matchID, tier), string(p), ttl).Err(); err != nil {
		return fmt.Errorf("pin provider: %w", err)
	}
	return nil
}

// PinnedProvider returns the current pin for a match+tier, or "" if none.
func (b *Bus) PinnedProvider(ctx context.Context, matchID uuid.UUID, tier model.Tier) (model.Provider, error) {
	v, err := b.rdb.Get(ctx, selectionKey(matchID, tier)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read provider pin: %w", err)
	}
	return model.Provider(v), nil
}

// ── request quota ───────────────────────────────────────────────────────

// IncrQuota counts one provider request against the current minute
// bucket. Buckets expire after two minutes.
func (b *Bus) IncrQuota(ctx context.Context, p model.Provider, now time.Time) error {
	key := quotaKey(p, now.Unix()/60)
	pipe := b.rdb.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("incr quota: %w", err)
	}
	return nil
}

// QuotaUsage returns the request count in the current minute bucket.
func (b *Bus) QuotaUsage(ctx context.Context, p model.Provider, now time.Time) (int, error) {
	v, err := b.rdb.Get(ctx, quotaKey(p, now.Unix()/60)).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quota: %w", err)
	}
	return v, nil
}
