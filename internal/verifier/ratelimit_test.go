package verifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDomainLimiterBurst(t *testing.T) {
	l := NewDomainLimiter(60, 2, time.Hour)

	assert.True(t, l.Allow(testURL))
	assert.True(t, l.Allow(testURL))
	assert.False(t, l.Allow(testURL), "burst exhausted, refill is 1/s")
}

func TestDomainLimiterSeparateDomains(t *testing.T) {
	l := NewDomainLimiter(60, 1, time.Hour)

	assert.True(t, l.Allow("https://site.api.espn.com/a"))
	assert.False(t, l.Allow("https://site.api.espn.com/b"))
	assert.True(t, l.Allow("https://api.football-data.org/v4"))
}

func TestDomainLimiterBackoffOn429(t *testing.T) {
	l := NewDomainLimiter(6000, 100, time.Hour)

	assert.True(t, l.Allow(testURL))
	l.Record429(testURL)
	assert.False(t, l.Allow(testURL), "429 backoff window blocks the domain")
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "site.api.espn.com", domainOf("https://site.api.espn.com/apis/x?y=1"))
	assert.Equal(t, "unknown", domainOf("://not a url"))
}
