// Package ratelimit bounds outbound spec fetches per client using a token
// bucket for per-minute bursts and a fixed window counter for the hourly
// quota.
package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Limiter enforces a per-minute token bucket and a per-hour fixed window.
type Limiter struct {
	rpm int // max requests per minute (0 = unlimited)
	rph int // max requests per hour (0 = unlimited)

	mu  sync.Mutex
	now func() time.Time

	// Token bucket state (per-minute)
	tokens    float64
	lastRefil time.Time

	// Fixed window state (per-hour)
	hourCount int
	hourStart time.Time

	lastUsed time.Time
}

// New creates a rate limiter with the given per-minute and per-hour limits.
// A value of 0 means unlimited for that tier.
func New(rpm, rph int) *Limiter {
	return newWithClock(rpm, rph, time.Now)
}

func newWithClock(rpm, rph int, now func() time.Time) *Limiter {
	t := now()
	return &Limiter{
		rpm:       rpm,
		rph:       rph,
		now:       now,
		tokens:    float64(rpm),
		lastRefil: t,
		hourStart: t.Truncate(time.Hour),
		lastUsed:  t,
	}
}

// ErrRateLimited is returned when a request is rejected by the rate limiter.
type ErrRateLimited struct {
	Tier       string        // "minute" or "hour"
	Limit      int           // the configured limit
	RetryAfter time.Duration // suggested wait time
}

func (e *ErrRateLimited) Error() string {
	return fmt.Sprintf("rate limited (%d per %s), retry after %s", e.Limit, e.Tier, e.RetryAfter.Round(time.Second))
}

// Allow takes a token without blocking. It returns *ErrRateLimited when
// either tier is exhausted; a rejected request consumes nothing.
func (l *Limiter) Allow() error {
	if l.rpm == 0 && l.rph == 0 {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.lastUsed = now

	if l.rph > 0 {
		hourStart := now.Truncate(time.Hour)
		if hourStart != l.hourStart {
			l.hourCount = 0
			l.hourStart = hourStart
		}
		if l.hourCount >= l.rph {
			return &ErrRateLimited{
				Tier:       "hour",
				Limit:      l.rph,
				RetryAfter: l.hourStart.Add(time.Hour).Sub(now),
			}
		}
	}

	if l.rpm > 0 {
		rate := float64(l.rpm) / 60.0
		l.tokens += now.Sub(l.lastRefil).Seconds() * rate
		if l.tokens > float64(l.rpm) {
			l.tokens = float64(l.rpm)
		}
		l.lastRefil = now

		if l.tokens < 1.0 {
			wait := time.Duration((1.0 - l.tokens) / rate * float64(time.Second))
			if wait < time.Second {
				wait = time.Second
			}
			return &ErrRateLimited{Tier: "minute", Limit: l.rpm, RetryAfter: wait}
		}
		l.tokens -= 1.0
	}

	if l.rph > 0 {
		l.hourCount++
	}
	return nil
}

func (l *Limiter) idleSince() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastUsed
}

// Keyed holds one Limiter per key, typically a client IP.
type Keyed struct {
	rpm, rph int
	now      func() time.Time

	mu       sync.Mutex
	limiters map[string]*Limiter
}

func NewKeyed(rpm, rph int) *Keyed {
	return &Keyed{
		rpm:      rpm,
		rph:      rph,
		now:      time.Now,
		limiters: make(map[string]*Limiter),
	}
}

// Allow applies key's limiter.
func (k *Keyed) Allow(key string) error {
	if k.rpm == 0 && k.rph == 0 {
		return nil
	}
	k.mu.Lock()
	l, ok := k.limiters[key]
	if !ok {
		l = newWithClock(k.rpm, k.rph, k.now)
		k.limiters[key] = l
	}
	k.mu.Unlock()
	return l.Allow()
}

// Sweep drops limiters unused for longer than idle and returns how many
// were removed. An hour of idleness resets both tiers, so idle >= 1h
// loses no state.
func (k *Keyed) Sweep(idle time.Duration) int {
	cutoff := k.now().Add(-idle)
	k.mu.Lock()
	defer k.mu.Unlock()
	removed := 0
	for key, l := range k.limiters {
		if l.idleSince().Before(cutoff) {
			delete(k.limiters, key)
			removed++
		}
	}
	return removed
}

// Len reports how many keys are tracked.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.limiters)
}
