package bus

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liveview/liveview/internal/model"
)

func newTestBus(t *testing.T) (*Bus, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	b := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { b.Close() })
	return b, mr
}

// The key layout is a published contract; ops tooling and other
// consumers address these keys directly.
func TestKeyNamespace(t *testing.T) {
	matchID := uuid.MustParse("7f9c24e5-2f63-4fe4-9d6c-5f03ab825d4e")

	assert.Equal(t, "health:provider:espn", healthKey(model.ProviderESPN))
	assert.Equal(t, "select:match:"+matchID.String()+":tier:1", selectionKey(matchID, model.TierEvents))
	assert.Equal(t, "snap:match:"+matchID.String()+":scoreboard", SnapshotKey(matchID, model.TierScoreboard))
	assert.Equal(t, "stream:match:"+matchID.String()+":events", StreamKey(matchID))
	assert.Equal(t, "presence:count:ch", PresenceKey("ch"))
	assert.Equal(t, "leader:scheduler", leaderKey)

	minute := time.Now().Unix() / 60
	assert.Equal(t, fmt.Sprintf("quota:provider:espn:%d", minute), quotaKey(model.ProviderESPN, minute))
}

func TestPinProviderPerTier(t *testing.T) {
	b, _ := newTestBus(t)
	ctx := context.Background()
	matchID := uuid.New()

	require.NoError(t, b.PinProvider(ctx, matchID, model.TierScoreboard, model.ProviderESPN, time.Minute))
	require.NoError(t, b.PinProvider(ctx, matchID, model.TierStats, model.ProviderSportradar, time.Minute))

	p, err := b.PinnedProvider(ctx, matchID, model.TierScoreboard)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderESPN, p)

	p, err = b.PinnedProvider(ctx, matchID, model.TierStats)
	require.NoError(t, err)
	assert.Equal(t, model.ProviderSportradar, p)

	p, err = b.PinnedProvider(ctx, matchID, model.TierEvents)
	require.NoError(t, err)
	assert.Equal(t, model.Provider(""), p)
}

func TestPresenceTTLFromCaller(t *testing.T) {
	b, mr := newTestBus(t)
	ctx := context.Background()

	require.NoError(t, b.PresenceIncr(ctx, "fanout:match:x:tier:0", 45*time.Second))
	assert.Equal(t, 45*time.Second, mr.TTL(PresenceKey("fanout:match:x:tier:0")))

	// decr on a missing key clamps at zero
	require.NoError(t, b.PresenceDecr(ctx, "fanout:match:y:tier:0", 45*time.Second))
	v, err := mr.Get(PresenceKey("fanout:match:y:tier:0"))
	require.NoError(t, err)
	assert.Equal(t, "0", v)
}

func TestLeadershipLifecycle(t *testing.T) {
	b, mr := newTestBus(t)
	ctx := context.Background()

	ok, err := b.TryAcquireLeadership(ctx, "inst-a", 30*time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	v, err := mr.Get("leader:scheduler")
	require.NoError(t, err)
	assert.Equal(t, "inst-a", v)

	// a second instance can neither acquire nor renew
	ok, err = b.TryAcquireLeadership(ctx, "inst-b", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = b.RenewLeadership(ctx, "inst-b", 30*time.Second)
	require.NoError(t, err)
	assert.False(t, ok)

	// release by a non-holder is a no-op, by the holder deletes
	require.NoError(t, b.ReleaseLeadership(ctx, "inst-b"))
	assert.True(t, mr.Exists("leader:scheduler"))
	require.NoError(t, b.ReleaseLeadership(ctx, "inst-a"))
	assert.False(t, mr.Exists("leader:scheduler"))
}
