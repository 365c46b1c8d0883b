package verifier

import (
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/liveview/liveview/internal/telemetry"
)

// DomainLimiter rate-limits outbound verification requests per target
// domain: a token bucket for steady-state pacing plus a hard backoff
// window after a 429.
type DomainLimiter struct {
	rpm     int
	burst   int
	backoff time.Duration

	mu           sync.Mutex
	buckets      map[string]*rate.Limiter
	backoffUntil map[string]time.Time
}

func NewDomainLimiter(rpm, burst int, backoffOn429 time.Duration) *DomainLimiter {
	if rpm < 1 {
		rpm = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &DomainLimiter{
		rpm:          rpm,
		burst:        burst,
		backoff:      backoffOn429,
		buckets:      map[string]*rate.Limiter{},
		backoffUntil: map[string]time.Time{},
	}
}

// Allow reports whether a request to rawURL may go out now. Denials
// consume nothing.
func (l *DomainLimiter) Allow(rawURL string) bool {
	domain := domainOf(rawURL)

	l.mu.Lock()
	if until, ok := l.backoffUntil[domain]; ok && time.Now().Before(until) {
		l.mu.Unlock()
		return false
	}
	bucket, ok := l.buckets[domain]
	if !ok {
		bucket = rate.NewLimiter(rate.Limit(float64(l.rpm)/60.0), l.burst)
		l.buckets[domain] = bucket
	}
	l.mu.Unlock()

	return bucket.Allow()
}

// Record429 pauses the whole domain for the configured backoff window.
func (l *DomainLimiter) Record429(rawURL string) {
	domain := domainOf(rawURL)
	l.mu.Lock()
	l.backoffUntil[domain] = time.Now().Add(l.backoff)
	l.mu.Unlock()
	telemetry.Warnf("verifier: domain %s backed off for %s after 429", domain, l.backoff)
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}
