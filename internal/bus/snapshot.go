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

// ErrNoSnapshot reports a missing or expired snapshot.
var ErrNoSnapshot = errors.New("bus: no snapshot")

// SetSnapshot stores a tier snapshot as JSON with the standard TTL.
func (b *Bus) SetSnapshot(ctx context.Context, matchID uuid.UUID, tier model.Tier, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := b.rdb.Set(ctx, SnapshotKey(matchID, tier), data, snapshotTTL).Err(); err != nil {
		return fmt.Errorf("set snapshot: %w", err)
	}
	return nil
}

// GetSnapshot returns the raw JSON of a tier snapshot, or ErrNoSnapshot.
func (b *Bus) GetSnapshot(ctx context.Context, matchID uuid.UUID, tier model.Tier) ([]byte, error) {
	data, err := b.rdb.Get(ctx, SnapshotKey(matchID, tier)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	return data, nil
}

// PublishDelta publishes a pre-marshaled delta frame on the match/tier
// fan-out channel.
func (b *Bus) PublishDelta(ctx context.Context, matchID uuid.UUID, tier model.Tier, frame []byte) error {
	if err := b.rdb.Publish(ctx, FanoutChannel(matchID, tier), frame).Err(); err != nil {
		return fmt.Errorf("publish delta: %w", err)
	}
	return nil
}

// PublishPollCommand sends one poll command on the control channel.
func (b *Bus) PublishPollCommand(ctx context.Context, cmd model.PollCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshal poll command: %w", err)
	}
	if err := b.rdb.Publish(ctx, PollCommandChannel, data).Err(); err != nil {
		return fmt.Errorf("publish poll command: %w", err)
	}
	return nil
}

// SubscribePollCommands opens a subscription on the control channel.
// The caller owns the returned PubSub and must Close it.
func (b *Bus) SubscribePollCommands(ctx context.Context) *redis.PubSub {
	return b.rdb.Subscribe(ctx, PollCommandChannel)
}

// PSubscribeFanout opens the single pattern subscription covering every
// match/tier delta channel.
func (b *Bus) PSubscribeFanout(ctx context.Context) *redis.PubSub {
	return b.rdb.PSubscribe(ctx, FanoutPattern)
}

// AppendEvent appends one event to the match's capped stream.
func (b *Bus) AppendEvent(ctx context.Context, matchID uuid.UUID, ev model.MatchEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	err = b.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey(matchID),
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"event": data},
	}).Err()
	if err != nil {
		return fmt.Errorf("append event stream: %w", err)
	}
	return nil
}

// RecentEvents returns up to limit events from the match stream, oldest
// first, for replay on subscribe.
func (b *Bus) RecentEvents(ctx context.Context, matchID uuid.UUID, limit int) ([]model.MatchEvent, error) {
	msgs, err := b.rdb.XRevRangeN(ctx, StreamKey(matchID), "+", "-", int64(limit)).Result()
	if err != nil {
		return nil, fmt.Errorf("read event stream: %w", err)
	}
	out := make([]model.MatchEvent, 0, len(msgs))
	for i := len(msgs) - 1; i >= 0; i-- {
		raw, ok := msgs[i].Values["event"].(string)
		if !ok {
			continue
		}
		var ev model.MatchEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

// ── presence ────────────────────────────────────────────────────────────

// PresenceIncr bumps the subscriber count for a fan-out channel and
// refreshes its TTL. Counts are advisory; TTL expiry self-heals drift
// from crashed gateways.
func (b *Bus) PresenceIncr(ctx context.Context, channel string, ttl time.Duration) error {
	pipe := b.rdb.Pipeline()
	pipe.Incr(ctx, PresenceKey(channel))
	pipe.Expire(ctx, PresenceKey(channel), ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence incr: %w", err)
	}
	return nil
}

// PresenceDecr decrements the subscriber count, clamping at zero.
func (b *Bus) PresenceDecr(ctx context.Context, channel string, ttl time.Duration) error {
	n, err := b.rdb.Decr(ctx, PresenceKey(channel)).Result()
	if err != nil {
		return fmt.Errorf("presence decr: %w", err)
	}
	if n < 0 {
		b.rdb.Set(ctx, PresenceKey(channel), 0, ttl)
	} else {
		b.rdb.Expire(ctx, PresenceKey(channel), ttl)
	}
	return nil
}

// SubscriberCount returns the advisory subscriber count for a match:
// the sum over its three tier channels. Missing keys count as zero.
func (b *Bus) SubscriberCount(ctx context.Context, matchID uuid.UUID) (int, error) {
	keys := make([]string, 0, len(model.Tiers))
	for _, t := range model.Tiers {
		keys = append(keys, PresenceKey(FanoutChannel(matchID, t)))
	}
	vals, err := b.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("presence read: %w", err)
	}
	total := 0
	for _, v := range vals {
		if s, ok := v.(string); ok {
			var n int
			if _, err := fmt.Sscanf(s, "%d", &n); err == nil && n > 0 {
				total += n
			}
		}
	}
	return total, nil
}

// ── builder caches ──────────────────────────────────────────────────────

// SetPrevScoreboard stores the builder's previous scoreboard for a match.
func (b *Bus) SetPrevScoreboard(ctx context.Context, sb model.Scoreboard) error {
	data, err := json.Marshal(sb)
	if err != nil {
		return fmt.Errorf("marshal prev scoreboard: %w", err)
	}
	if err := b.rdb.Set(ctx, prevSnapKey(sb.MatchID), data, prevSnapTTL).Err(); err != nil {
		return fmt.Errorf("set prev scoreboard: %w", err)
	}
	return nil
}

// GetPrevScoreboard returns the builder's previous scoreboard, or
// ErrNoSnapshot when none survives.
func (b *Bus) GetPrevScoreboard(ctx context.Context, matchID uuid.UUID) (model.Scoreboard, error) {
	data, err := b.rdb.Get(ctx, prevSnapKey(matchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.Scoreboard{}, ErrNoSnapshot
	}
	if err != nil {
		return model.Scoreboard{}, fmt.Errorf("get prev scoreboard: %w", err)
	}
	var sb model.Scoreboard
	if err := json.Unmarshal(data, &sb); err != nil {
		return model.Scoreboard{}, fmt.Errorf("decode prev scoreboard: %w", err)
	}
	return sb, nil
}

func (b *Bus) DeletePrevScoreboard(ctx context.Context, matchID uuid.UUID) error {
	return b.rdb.Del(ctx, prevSnapKey(matchID)).Err()
}

// CacheSport remembers a match's sport so the builder avoids a DB walk
// per delta.
func (b *Bus) CacheSport(ctx context.Context, matchID uuid.UUID, s model.Sport) error {
	return b.rdb.Set(ctx, sportCacheKey(matchID), string(s), sportCacheTTL).Err()
}

// CachedSport returns the cached sport, or "" when unknown.
func (b *Bus) CachedSport(ctx context.Context, matchID uuid.UUID) (model.Sport, error) {
	v, err := b.rdb.Get(ctx, sportCacheKey(matchID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get sport cache: %w", err)
	}
	return model.Sport(v), nil
}
