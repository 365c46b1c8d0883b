package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liveview/liveview/internal/bus"
	"github.com/liveview/liveview/internal/config"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	b := bus.NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { b.Close() })

	cfg := &config.Config{
		InstanceID:          "sched-a",
		LeaderTTL:           30 * time.Second,
		LeaderRenewInterval: 10 * time.Second,
	}
	return New(cfg, b, nil, nil, nil, nil), mr
}

func TestEnsureLeadershipRenewCadence(t *testing.T) {
	s, mr := newTestService(t)
	ctx := context.Background()

	require.True(t, s.ensureLeadership(ctx))
	require.True(t, s.isLeader)

	// within the renew interval the lease is left alone
	mr.FastForward(5 * time.Second)
	require.True(t, s.ensureLeadership(ctx))
	assert.Equal(t, 25*time.Second, mr.TTL("leader:scheduler"))

	// past the interval the lease is extended back to the full TTL
	s.lastRenew = time.Now().Add(-11 * time.Second)
	require.True(t, s.ensureLeadership(ctx))
	assert.Equal(t, 30*time.Second, mr.TTL("leader:scheduler"))
}

func TestEnsureLeadershipLostClearsTasks(t *testing.T) {
	s, mr := newTestService(t)
	ctx := context.Background()

	require.True(t, s.ensureLeadership(ctx))
	s.tasks[taskKey{}] = &pollTask{}

	// lease expired and another instance took over
	mr.FastForward(31 * time.Second)
	require.NoError(t, mr.Set("leader:scheduler", "sched-b"))

	s.lastRenew = time.Now().Add(-11 * time.Second)
	assert.False(t, s.ensureLeadership(ctx))
	assert.False(t, s.isLeader)
	assert.Empty(t, s.tasks)
}
