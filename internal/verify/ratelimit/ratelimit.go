// Package ratelimit implements the per-backend rate limiter and the
// exponential-backoff wrapper shared by every network-facing backend.
package ratelimit

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gianlucasb/hallucinator/internal/verify/types"
)

// Limiter enforces a minimum interval between requests to each backend and
// lets a 429 response push every other in-flight task's next request
// further into the future (record_backoff).
type Limiter struct {
	mu        sync.Mutex
	intervals map[string]time.Duration
	last      map[string]time.Time
}

// New creates a Limiter with the given per-backend minimum intervals. A
// zero or absent interval means "no limit" for that backend.
func New(intervals map[string]time.Duration) *Limiter {
	cp := make(map[string]time.Duration, len(intervals))
	for k, v := range intervals {
		cp[k] = v
	}
	return &Limiter{intervals: cp, last: make(map[string]time.Time)}
}

// DefaultIntervals returns the engine's seeded defaults: Semantic Scholar
// is limited to 1 request/second; every other backend is unlimited absent
// explicit configuration.
func DefaultIntervals() map[string]time.Duration {
	return map[string]time.Duration{
		"Semantic Scholar": 1000 * time.Millisecond,
	}
}

// Acquire blocks until at least the configured interval has elapsed since
// the last acquisition for db, then records now as the new last-request
// time. A backend with no interval still waits out a backoff window set by
// RecordBackoff. It returns early with ctx.Err() if ctx is cancelled while
// waiting.
//
// The loop re-checks after every sleep: another task may have observed the
// same stale slot and already moved last into the future (e.g. via
// RecordBackoff), in which case this call must wait again.
func (l *Limiter) Acquire(ctx context.Context, db string) error {
	for {
		interval := l.interval(db)

		wait := l.tryAcquire(db, interval)
		if wait <= 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (l *Limiter) interval(db string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.intervals[db]
}

// tryAcquire is the short critical section: if enough time has passed
// since last, claim now as the new last and return 0 (go ahead); otherwise
// return how much longer the caller must wait.
func (l *Limiter) tryAcquire(db string, interval time.Duration) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	last, ok := l.last[db]
	if !ok || now.Sub(last) >= interval {
		l.last[db] = now
		return 0
	}
	return interval - now.Sub(last)
}

// RecordBackoff pushes db's last-request timestamp to now+d, so every
// other task racing for db waits at least d before its next request. This
// is how a single 429 response becomes a shared backoff window.
func (l *Limiter) RecordBackoff(db string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.last[db] = time.Now().Add(d)
}

// MaxRetries bounds the exponential-backoff retry loop in QueryWithBackoff.
const MaxRetries = 3

// InitialBackoff is the first retry delay; it doubles on each subsequent
// attempt (1s, 2s, 4s for the default MaxRetries=3).
const InitialBackoff = 1 * time.Second

// QueryFunc performs one query attempt against a backend.
type QueryFunc func(ctx context.Context) (types.DbOutcome, error)

// QueryWithBackoff runs fn under the rate limiter, retrying on a
// RateLimited outcome with exponential backoff shared across every task
// contending for the same backend (via Limiter.RecordBackoff). All other
// outcomes — including other kinds of errors — return immediately. If
// every retry is exhausted, the last RateLimited outcome is returned
// unchanged.
//
// This wraps fn with cenkalti/backoff's ExponentialBackOff purely to get
// its doubling-delay computation (jitter disabled); the retry loop itself is
// explicit so it can also drive the shared rate-limiter state between
// attempts, which a bare backoff.Retry call cannot do.
func QueryWithBackoff(ctx context.Context, limiter *Limiter, db string, fn QueryFunc) (types.DbOutcome, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = InitialBackoff
	bo.Multiplier = 2
	bo.RandomizationFactor = 0
	bo.Reset() // start from InitialBackoff, not the library's default

	var lastOutcome types.DbOutcome
	var lastErr error

	for attempt := 0; attempt <= MaxRetries; attempt++ {
		if err := limiter.Acquire(ctx, db); err != nil {
			return types.Error(types.ErrorCancelled, err.Error()), err
		}

		outcome, err := fn(ctx)
		lastOutcome, lastErr = outcome, err

		if err != nil || !outcome.IsError() || outcome.ErrKind != types.ErrorRateLimited {
			return outcome, err
		}
		if attempt == MaxRetries {
			break
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			break
		}
		log.Printf("%s: rate limited (429), retrying in %s (attempt %d/%d)", db, delay, attempt+1, MaxRetries)
		limiter.RecordBackoff(db, delay)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return types.Error(types.ErrorCancelled, ctx.Err().Error()), ctx.Err()
		case <-timer.C:
		}
	}

	return lastOutcome, lastErr
}
