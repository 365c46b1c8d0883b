// Package bus is the Redis surface shared by every Live View service:
// the control channel between scheduler and ingest, hot snapshots, the
// fan-out pub/sub plane, provider health samples, presence counters and
// the scheduler leader lock. Redis here is ephemeral; Postgres stays
// the source of truth.
package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/liveview/liveview/internal/model"
)

const (
	// PollCommandChannel carries scheduler→ingest poll commands.
	PollCommandChannel = "ingest:poll_commands"

	// FanoutPattern matches every per-match per-tier delta channel.
	FanoutPattern = "fanout:match:*:tier:*"

	snapshotTTL   = 300 * time.Second
	prevSnapTTL   = time.Hour
	sportCacheTTL = 2 * time.Hour
	streamMaxLen  = 500
)

// Bus wraps a single Redis client. All methods are safe for concurrent use.
type Bus struct {
	rdb *redis.Client
}

// Connect parses a redis:// URL, opens a client and verifies the
// connection before returning.
func Connect(ctx context.Context, url string) (*Bus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Bus{rdb: rdb}, nil
}

// NewWithClient wraps an existing client. Tests use this with miniature
// or stubbed clients.
func NewWithClient(rdb *redis.Client) *Bus { return &Bus{rdb: rdb} }

func (b *Bus) Close() error { return b.rdb.Close() }

// Raw exposes the underlying client for the rare caller that needs an
// operation the wrapper does not cover.
func (b *Bus) Raw() *redis.Client { return b.rdb }

// ── key namespace ───────────────────────────────────────────────────────

func SnapshotKey(matchID uuid.UUID, tier model.Tier) string {
	return fmt.Sprintf("snap:match:%s:%s", matchID, tier.Key())
}

func FanoutChannel(matchID uuid.UUID, tier model.Tier) string {
	return fmt.Sprintf("fanout:match:%s:tier:%d", matchID, int(tier))
}

func StreamKey(matchID uuid.UUID) string {
	return fmt.Sprintf("stream:match:%s:events", matchID)
}

func PresenceKey(channel string) string {
	return "presence:count:" + channel
}

func healthKey(p model.Provider) string {
	return fmt.Sprintf("health:provider:%s", p)
}

func selectionKey(matchID uuid.UUID, tier model.Tier) string {
	return fmt.Sprintf("select:match:%s:tier:%d", matchID, int(tier))
}

func quotaKey(p model.Provider, minute int64) string {
	return fmt.Sprintf("quota:provider:%s:%d", p, minute)
}

func prevSnapKey(matchID uuid.UUID) string {
	return fmt.Sprintf("builder:prev_snap:%s", matchID)
}

func sportCacheKey(matchID uuid.UUID) string {
	return fmt.Sprintf("builder:sport:%s", matchID)
}

func lastCheckedKey(matchID uuid.UUID) string {
	return fmt.Sprintf("verification:last_checked:%s", matchID)
}

func confidenceKey(matchID uuid.UUID) string {
	return fmt.Sprintf("verification:confidence:%s", matchID)
}

func disputeKey(matchID uuid.UUID) string {
	return fmt.Sprintf("dispute:match:%s", matchID)
}

const disputesSetKey = "verification:disputes"
const leaderKey = "leader:scheduler"
