package verifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testURL = "https://site.api.espn.com/apis/site/v2/sports"

func newTestBreaker(t *testing.T, threshold int, recovery time.Duration) (*Breaker, *time.Time) {
	t.Helper()
	now := time.Now()
	b := NewBreaker(threshold, recovery)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(t, 3, time.Minute)

	for i := 0; i < 2; i++ {
		b.RecordFailure(testURL)
		assert.NoError(t, b.Allow(testURL))
	}
	b.RecordFailure(testURL)
	assert.ErrorIs(t, b.Allow(testURL), ErrCircuitOpen)
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b, _ := newTestBreaker(t, 3, time.Minute)

	b.RecordFailure(testURL)
	b.RecordFailure(testURL)
	b.RecordSuccess(testURL)
	b.RecordFailure(testURL)
	b.RecordFailure(testURL)
	assert.NoError(t, b.Allow(testURL))
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b, now := newTestBreaker(t, 1, time.Minute)

	b.RecordFailure(testURL)
	require.ErrorIs(t, b.Allow(testURL), ErrCircuitOpen)

	// recovery elapses: one probe is let through
	*now = now.Add(61 * time.Second)
	require.NoError(t, b.Allow(testURL))

	b.RecordSuccess(testURL)
	assert.NoError(t, b.Allow(testURL))
}

func TestBreakerProbeFailureReopens(t *testing.T) {
	b, now := newTestBreaker(t, 1, time.Minute)

	b.RecordFailure(testURL)
	*now = now.Add(61 * time.Second)
	require.NoError(t, b.Allow(testURL))

	b.RecordFailure(testURL)
	assert.ErrorIs(t, b.Allow(testURL), ErrCircuitOpen)
}

func TestBreakerPerDomain(t *testing.T) {
	b, _ := newTestBreaker(t, 1, time.Minute)

	b.RecordFailure("https://site.api.espn.com/x")
	assert.ErrorIs(t, b.Allow("https://site.api.espn.com/y"), ErrCircuitOpen)
	assert.NoError(t, b.Allow("https://api.football-data.org/v4"))
}
