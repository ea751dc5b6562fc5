// Package ratelimit throttles requests per client with token buckets.
// Anonymous clients are keyed by IP and members by user ID, each tier
// with its own rate and burst.
package ratelimit

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Tier selects which limits apply to a key.
type Tier int

const (
	Anonymous Tier = iota
	Member
)

func (t Tier) String() string {
	if t == Member {
		return "member"
	}
	return "anonymous"
}

// Config holds per-tier limits. Buckets idle for longer than
// CleanupInterval are forgotten.
type Config struct {
	AnonRPS         float64
	AnonBurst       int
	MemberRPS       float64
	MemberBurst     int
	CleanupInterval time.Duration
}

var DefaultConfig = Config{
	AnonRPS:         5,
	AnonBurst:       10,
	MemberRPS:       20,
	MemberBurst:     40,
	CleanupInterval: 10 * time.Minute,
}

func (c Config) limits(tier Tier) (rate.Limit, int) {
	if tier == Member {
		return rate.Limit(c.MemberRPS), c.MemberBurst
	}
	return rate.Limit(c.AnonRPS), c.AnonBurst
}

type bucketID struct {
	tier Tier
	key  string
}

type bucket struct {
	*rate.Limiter
	seen atomic.Int64 // unix nanos of last lookup
}

// RateLimiter owns one token bucket per (tier, key).
type RateLimiter struct {
	cfg Config

	mu      sync.RWMutex
	buckets map[bucketID]*bucket

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRateLimiter starts a limiter and its idle-bucket sweeper. Call Stop
// to end the sweeper.
func NewRateLimiter(cfg Config) *RateLimiter {
	rl := &RateLimiter{
		cfg:     cfg,
		buckets: map[bucketID]*bucket{},
		done:    make(chan struct{}),
	}
	rl.wg.Add(1)
	go rl.sweep()
	return rl
}

// Allow takes one token from the bucket for key in tier.
func (rl *RateLimiter) Allow(key string, tier Tier) bool {
	return rl.GetLimiter(key, tier).Allow()
}

// GetLimiter returns the bucket for key in tier, creating it on first use.
// The same key in different tiers gets independent buckets.
func (rl *RateLimiter) GetLimiter(key string, tier Tier) *rate.Limiter {
	id := bucketID{tier: tier, key: key}

	rl.mu.RLock()
	b := rl.buckets[id]
	rl.mu.RUnlock()

	if b == nil {
		rl.mu.Lock()
		if b = rl.buckets[id]; b == nil {
			b = &bucket{Limiter: rate.NewLimiter(rl.cfg.limits(tier))}
			rl.buckets[id] = b
		}
		rl.mu.Unlock()
	}

	b.seen.Store(time.Now().UnixNano())
	return b.Limiter
}

// Cleanup drops buckets not looked up within CleanupInterval.
func (rl *RateLimiter) Cleanup() {
	cutoff := time.Now().Add(-rl.cfg.CleanupInterval).UnixNano()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for id, b := range rl.buckets {
		if b.seen.Load() < cutoff {
			delete(rl.buckets, id)
		}
	}
}

func (rl *RateLimiter) sweep() {
	defer rl.wg.Done()
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// Stop ends the sweeper. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
	rl.wg.Wait()
}

// Len returns the number of live buckets.
func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.buckets)
}
