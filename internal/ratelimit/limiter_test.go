package ratelimit

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// frozen has rates too low to refill during a test, so only the burst
// counts.
func frozen(t *rapid.T) Config {
	return Config{
		AnonRPS:         0.001,
		AnonBurst:       rapid.IntRange(1, 50).Draw(t, "anonBurst"),
		MemberRPS:       0.001,
		MemberBurst:     rapid.IntRange(1, 50).Draw(t, "memberBurst"),
		CleanupInterval: time.Hour,
	}
}

func (c Config) burst(tier Tier) int {
	_, b := c.limits(tier)
	return b
}

// ====
// Exactly burst requests pass, then the bucket is empty.
// ====

func testAllow_ExactlyBurst(t *rapid.T) {
	cfg := frozen(t)
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	tier := rapid.SampledFrom([]Tier{Anonymous, Member}).Draw(t, "tier")
	key := rapid.StringMatching(`[a-z0-9]{8,32}`).Draw(t, "key")

	for i := range cfg.burst(tier) {
		if !rl.Allow(key, tier) {
			t.Fatalf("request %d rejected within burst %d", i+1, cfg.burst(tier))
		}
	}
	if rl.Allow(key, tier) {
		t.Fatalf("request past burst %d allowed", cfg.burst(tier))
	}
}

func TestAllow_ExactlyBurst(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testAllow_ExactlyBurst)
}

func FuzzAllow_ExactlyBurst(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testAllow_ExactlyBurst))
}

// ====
// Draining one bucket leaves every other (key, tier) bucket full.
// ====

func testAllow_BucketsAreIndependent(t *rapid.T) {
	cfg := frozen(t)
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	keys := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{4,12}`), 2, 2, rapid.ID[string]).Draw(t, "keys")
	drained := rapid.SampledFrom([]Tier{Anonymous, Member}).Draw(t, "tier")

	for range cfg.burst(drained) {
		rl.Allow(keys[0], drained)
	}
	if rl.Allow(keys[0], drained) {
		t.Fatalf("drained bucket still allows")
	}

	other := Member
	if drained == Member {
		other = Anonymous
	}
	if !rl.Allow(keys[0], other) {
		t.Fatalf("same key in tier %s was throttled", other)
	}
	if !rl.Allow(keys[1], drained) {
		t.Fatalf("other key in tier %s was throttled", drained)
	}
}

func TestAllow_BucketsAreIndependent(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testAllow_BucketsAreIndependent)
}

func FuzzAllow_BucketsAreIndependent(f *testing.F) {
	f.Fuzz(rapid.MakeFuzz(testAllow_BucketsAreIndependent))
}

// ====
// Concurrent callers: every request gets an answer and the total allowed
// never exceeds the sum of the buckets.
// ====

func testAllow_Concurrent(t *rapid.T) {
	cfg := frozen(t)
	rl := NewRateLimiter(cfg)
	defer rl.Stop()

	keys := rapid.IntRange(1, 8).Draw(t, "keys")
	workers := rapid.IntRange(2, 16).Draw(t, "workers")
	perWorker := rapid.IntRange(1, 40).Draw(t, "perWorker")

	var allowed, denied atomic.Int64
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				tier := Tier((w + i) % 2)
				if rl.Allow(string(rune('a'+(w+i)%keys)), tier) {
					allowed.Add(1)
				} else {
					denied.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if got := allowed.Load() + denied.Load(); got != int64(workers*perWorker) {
		t.Fatalf("answered %d of %d requests", got, workers*perWorker)
	}
	capacity := int64(keys * (cfg.AnonBurst + cfg.MemberBurst))
	if allowed.Load() > capacity {
		t.Fatalf("allowed %d, capacity %d", allowed.Load(), capacity)
	}
}

func TestAllow_Concurrent(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testAllow_Concurrent)
}

// ====
// Bookkeeping.
// ====

func TestCleanup_DropsOnlyIdleBuckets(t *testing.T) {
	idle := 20 * time.Millisecond
	rl := NewRateLimiter(Config{AnonRPS: 100, AnonBurst: 100, MemberRPS: 100, MemberBurst: 100, CleanupInterval: idle})
	defer rl.Stop()

	rl.Allow("idle", Anonymous)
	rl.Allow("idle", Member)
	if rl.Len() != 2 {
		t.Fatalf("Len = %d, want 2", rl.Len())
	}

	time.Sleep(idle + 10*time.Millisecond)
	rl.Allow("busy", Member)
	rl.Cleanup()

	if rl.Len() != 1 {
		t.Fatalf("Len after cleanup = %d, want 1", rl.Len())
	}
}

func TestGetLimiter_StablePerKeyAndTier(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(DefaultConfig)
	defer rl.Stop()

	m := rl.GetLimiter("k", Member)
	if rl.GetLimiter("k", Member) != m {
		t.Fatal("same key and tier gave a new limiter")
	}
	if rl.GetLimiter("k", Anonymous) == m {
		t.Fatal("tiers share a limiter")
	}
}

func TestStop_Twice(t *testing.T) {
	t.Parallel()
	rl := NewRateLimiter(DefaultConfig)
	rl.Stop()
	rl.Stop()
}

func TestTierString(t *testing.T) {
	t.Parallel()
	if Anonymous.String() != "anonymous" || Member.String() != "member" {
		t.Fatalf("tier names: %s, %s", Anonymous, Member)
	}
}
