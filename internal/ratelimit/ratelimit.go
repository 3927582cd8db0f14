// Package ratelimit provides a keyed token bucket limiter. The API uses it to
// cap how often one client can start paid generation calls.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultIdleTTL is how long an unused key keeps its bucket.
const DefaultIdleTTL = 10 * time.Minute

// Decision is the outcome of one Take.
type Decision struct {
	Allowed bool
	// RetryAfter is how long until the next token, when not allowed.
	RetryAfter time.Duration
	// Remaining is the whole tokens left after this call.
	Remaining int
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter keeps one token bucket per key, typically a client IP.
// Buckets idle for longer than the TTL are dropped by a background sweeper.
type KeyedRateLimiter struct {
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
	now     func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	quit     chan struct{}
	finished chan struct{}
	stopOnce sync.Once
}

// Option configures a KeyedRateLimiter.
type Option func(*KeyedRateLimiter)

// WithIdleTTL sets how long an unused key is kept before its bucket is dropped.
func WithIdleTTL(d time.Duration) Option {
	return func(k *KeyedRateLimiter) { k.idleTTL = d }
}

// WithClock overrides the clock used for refills and idle tracking.
func WithClock(now func() time.Time) Option {
	return func(k *KeyedRateLimiter) { k.now = now }
}

// New creates a limiter refilling rps tokens per second up to burst.
// Stop must be called to release the sweeper.
func New(rps float64, burst int, opts ...Option) *KeyedRateLimiter {
	k := &KeyedRateLimiter{
		limit:    rate.Limit(rps),
		burst:    burst,
		idleTTL:  DefaultIdleTTL,
		now:      time.Now,
		buckets:  make(map[string]*bucket),
		quit:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(k)
	}
	go k.sweepLoop()
	return k
}

// PerMinute allows n requests per minute with a burst of n.
func PerMinute(n int, opts ...Option) *KeyedRateLimiter {
	return New(float64(n)/60, n, opts...)
}

// Take spends one token for key if one is available. A refused call spends nothing.
func (k *KeyedRateLimiter) Take(key string) Decision {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	b, ok := k.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(k.limit, k.burst)}
		k.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return Decision{}
	}
	if wait := r.DelayFrom(now); wait > 0 {
		r.CancelAt(now)
		return Decision{RetryAfter: wait}
	}
	return Decision{Allowed: true, Remaining: int(b.limiter.TokensAt(now))}
}

// Allow reports whether key may proceed, spending a token if so.
func (k *KeyedRateLimiter) Allow(key string) bool {
	return k.Take(key).Allowed
}

// Len returns the number of tracked keys.
func (k *KeyedRateLimiter) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}

// Sweep drops buckets idle for longer than the TTL and returns how many went.
func (k *KeyedRateLimiter) Sweep() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	cutoff := k.now().Add(-k.idleTTL)
	n := 0
	for key, b := range k.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(k.buckets, key)
			n++
		}
	}
	return n
}

// Stop ends the sweeper and waits for it. Safe to call more than once.
func (k *KeyedRateLimiter) Stop() {
	k.stopOnce.Do(func() { close(k.quit) })
	<-k.finished
}

func (k *KeyedRateLimiter) sweepLoop() {
	defer close(k.finished)

	t := time.NewTicker(k.idleTTL)
	defer t.Stop()
	for {
		select {
		case <-k.quit:
			return
		case <-t.C:
			k.Sweep()
		}
	}
}
