package bus

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Renew and release compare the stored value against the caller's
// instance id before acting, so a stale instance can never extend or
// drop another instance's lease.
var (
	renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0`)

	releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)
)

// TryAcquireLeadership attempts to take the scheduler leader lock.
func (b *Bus) TryAcquireLeadership(ctx context.Context, instanceID string, ttl time.Duration) (bool, error) {
	ok, err := b.rdb.SetNX(ctx, leaderKey, instanceID, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire leadership: %w", err)
	}
	return ok, nil
}

// RenewLeadership extends the lease if this instance still holds it.
func (b *Bus) RenewLeadership(ctx context.Context, instanceID string, ttl time.Duration) (bool, error) {
	n, err := renewScript.Run(ctx, b.rdb, []string{leaderKey}, instanceID, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("renew leadership: %w", err)
	}
	return n == 1, nil
}

// ReleaseLeadership drops the lease if this instance holds it. Safe to
// call when not leader.
func (b *Bus) ReleaseLeadership(ctx context.Context, instanceID string) error {
	if _, err := releaseScript.Run(ctx, b.rdb, []string{leaderKey}, instanceID).Result(); err != nil {
		return fmt.Errorf("release leadership: %w", err)
	}
	return nil
}

// CurrentLeader returns the instance id holding the lock, or "".
func (b *Bus) CurrentLeader(ctx context.Context) (string, error) {
	v, err := b.rdb.Get(ctx, leaderKey).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read leader: %w", err)
	}
	return v, nil
}
