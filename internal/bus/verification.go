package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Dispute records a disagreement between the primary feed and every
// secondary source that the verifier could not resolve.
type Dispute struct {
	MatchID       uuid.UUID `json:"match_id"`
	PrimaryHome   int       `json:"primary_home"`
	PrimaryAway   int       `json:"primary_away"`
	SecondaryHome int       `json:"secondary_home"`
	SecondaryAway int       `json:"secondary_away"`
	Detail        string    `json:"detail,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}

const (
	lastCheckedTTL = time.Hour
	confidenceTTL  = time.Hour
	disputeTTL     = 6 * time.Hour
)

// MarkChecked stamps a match as verified now.
func (b *Bus) MarkChecked(ctx context.Context, matchID uuid.UUID, now time.Time) error {
	return b.rdb.Set(ctx, lastCheckedKey(matchID), now.Unix(), lastCheckedTTL).Err()
}

// LastChecked returns the last verification time, zero if never.
func (b *Bus) LastChecked(ctx context.Context, matchID uuid.UUID) (time.Time, error) {
	v, err := b.rdb.Get(ctx, lastCheckedKey(matchID)).Int64()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("read last checked: %w", err)
	}
	return time.Unix(v, 0), nil
}

// SetConfidence stores the arbitrated confidence for a match.
func (b *Bus) SetConfidence(ctx context.Context, matchID uuid.UUID, score float64) error {
	return b.rdb.Set(ctx, confidenceKey(matchID), score, confidenceTTL).Err()
}

// Confidence returns the stored confidence, defaulting to 1.0 for
// matches the verifier has not visited.
func (b *Bus) Confidence(ctx context.Context, matchID uuid.UUID) (float64, error) {
	v, err := b.rdb.Get(ctx, confidenceKey(matchID)).Float64()
	if errors.Is(err, redis.Nil) {
		return 1.0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read confidence: %w", err)
	}
	return v, nil
}

// RecordDispute stores the dispute record and adds the match to the
// disputes set.
func (b *Bus) RecordDispute(ctx context.Context, d Dispute) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal dispute: %w", err)
	}
	pipe := b.rdb.Pipeline()
	pipe.Set(ctx, disputeKey(d.MatchID), data, disputeTTL)
	pipe.SAdd(ctx, disputesSetKey, d.MatchID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record dispute: %w", err)
	}
	return nil
}

// ClearDispute removes a match's dispute record once sources agree again.
func (b *Bus) ClearDispute(ctx context.Context, matchID uuid.UUID) error {
	pipe := b.rdb.Pipeline()
	pipe.Del(ctx, disputeKey(matchID))
	pipe.SRem(ctx, disputesSetKey, matchID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("clear dispute: %w", err)
	}
	return nil
}

// DisputedMatches lists every match currently in dispute.
func (b *Bus) DisputedMatches(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := b.rdb.SMembers(ctx, disputesSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("read disputes: %w", err)
	}
	out := make([]uuid.UUID, 0, len(ids))
	for _, s := range ids {
		if id, err := uuid.Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out, nil
}
