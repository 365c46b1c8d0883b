package verifier

import (
	"errors"
	"sync"
	"time"

	"github.com/liveview/liveview/internal/telemetry"
)

var ErrCircuitOpen = errors.New("verifier: circuit open")

type circuitState string

const (
	stateClosed   circuitState = "closed"
	stateOpen     circuitState = "open"
	stateHalfOpen circuitState = "half_open"
)

type circuit struct {
	state               circuitState
	consecutiveFailures int
	openedAt            time.Time
}

// Breaker tracks one circuit per target domain: open after N
// consecutive failures, a single half-open probe after the recovery
// window, closed again on probe success.
type Breaker struct {
	failureThreshold int
	recovery         time.Duration

	mu       sync.Mutex
	circuits map[string]*circuit
	now      func() time.Time
}

func NewBreaker(failureThreshold int, recovery time.Duration) *Breaker {
	if failureThreshold < 1 {
		failureThreshold = 1
	}
	if recovery <= 0 {
		recovery = 15 * time.Second
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		recovery:         recovery,
		circuits:         map[string]*circuit{},
		now:              time.Now,
	}
}

func (b *Breaker) circuitFor(domain string) *circuit {
	c, ok := b.circuits[domain]
	if !ok {
		c = &circuit{state: stateClosed}
		b.circuits[domain] = c
	}
	return c
}

// Allow returns ErrCircuitOpen while the domain's circuit is open and
// the recovery window has not elapsed.
func (b *Breaker) Allow(rawURL string) error {
	domain := domainOf(rawURL)
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuitFor(domain)
	if c.state == stateOpen {
		if b.now().Sub(c.openedAt) < b.recovery {
			return ErrCircuitOpen
		}
		c.state = stateHalfOpen
		telemetry.Infof("verifier: circuit half-open for %s", domain)
	}
	return nil
}

func (b *Breaker) RecordSuccess(rawURL string) {
	domain := domainOf(rawURL)
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuitFor(domain)
	switch c.state {
	case stateHalfOpen:
		c.state = stateClosed
		c.consecutiveFailures = 0
		telemetry.Infof("verifier: circuit closed for %s", domain)
	case stateClosed:
		c.consecutiveFailures = 0
	}
}

func (b *Breaker) RecordFailure(rawURL string) {
	domain := domainOf(rawURL)
	b.mu.Lock()
	defer b.mu.Unlock()

	c := b.circuitFor(domain)
	switch c.state {
	case stateHalfOpen:
		c.state = stateOpen
		c.openedAt = b.now()
		telemetry.Warnf("verifier: circuit reopened for %s (probe failed)", domain)
	case stateClosed:
		c.consecutiveFailures++
		if c.consecutiveFailures >= b.failureThreshold {
			c.state = stateOpen
			c.openedAt = b.now()
			telemetry.Warnf("verifier: circuit open for %s after %d failures", domain, c.consecutiveFailures)
		}
	}
}
