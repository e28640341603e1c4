package server

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGlobalConnectionLimiter_AcquireRelease(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(3)

	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())

	assert.False(t, limiter.Acquire())

	limiter.Release()
	assert.True(t, limiter.Acquire())
}

func TestGlobalConnectionLimiter_Concurrent(t *testing.T) {
	limiter := NewGlobalConnectionLimiter(100)
	var successCount int64

	start := make(chan struct{})
	var wg sync.WaitGroup
	for range 200 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if limiter.Acquire() {
				atomic.AddInt64(&successCount, 1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(100), atomic.LoadInt64(&successCount))
	assert.Equal(t, int64(100), limiter.Current())
}

func TestIPConnectionLimiter_AcquireRelease(t *testing.T) {
	limiter := NewIPConnectionLimiter(2)

	assert.True(t, limiter.Acquire("192.168.1.1"))
	assert.True(t, limiter.Acquire("192.168.1.1"))
	assert.Equal(t, 2, limiter.Count("192.168.1.1"))

	assert.False(t, limiter.Acquire("192.168.1.1"))

	// Different IP tracks separately
	assert.True(t, limiter.Acquire("192.168.1.2"))

	limiter.Release("192.168.1.1")
	assert.True(t, limiter.Acquire("192.168.1.1"))
}

func TestIPConnectionLimiter_ReleaseToZeroForgetsIP(t *testing.T) {
	limiter := NewIPConnectionLimiter(5)

	assert.True(t, limiter.Acquire("192.168.1.1"))
	limiter.Release("192.168.1.1")
	assert.Equal(t, 0, limiter.Count("192.168.1.1"))

	// Releasing an unknown IP is a no-op
	limiter.Release("10.0.0.1")
}

func TestConnectionRateLimiter_Allow(t *testing.T) {
	limiter := NewConnectionRateLimiter(2.0, 2)

	assert.True(t, limiter.Allow("192.168.1.1"))
	assert.True(t, limiter.Allow("192.168.1.1"))
	assert.False(t, limiter.Allow("192.168.1.1"), "burst exhausted")

	// Each IP has its own bucket
	assert.True(t, limiter.Allow("192.168.1.2"))
}

func TestConnectionRateLimiter_TokenRefill(t *testing.T) {
	limiter := NewConnectionRateLimiter(10.0, 5)

	for range 5 {
		assert.True(t, limiter.Allow("192.168.1.1"))
	}
	assert.False(t, limiter.Allow("192.168.1.1"))

	time.Sleep(150 * time.Millisecond)
	assert.True(t, limiter.Allow("192.168.1.1"))
}

func TestConnectionRateLimiter_Cleanup(t *testing.T) {
	limiter := NewConnectionRateLimiter(10.0, 5)

	limiter.Allow("192.168.1.1")
	limiter.Allow("192.168.1.2")

	limiter.mu.Lock()
	limiter.limiters["192.168.1.1"].lastSeen = time.Now().Add(-11 * time.Minute)
	limiter.cleanup()
	got := len(limiter.limiters)
	limiter.mu.Unlock()

	assert.Equal(t, 1, got)
}

func TestConnectionLimits_GlobalLimitExceeded(t *testing.T) {
	limits := NewConnectionLimits(2, 100, 100.0, 100)

	ok, _ := limits.Acquire("192.168.1.1")
	assert.True(t, ok)
	ok, _ = limits.Acquire("192.168.1.2")
	assert.True(t, ok)

	ok, reason := limits.Acquire("192.168.1.3")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonGlobal, reason)
}

func TestConnectionLimits_PerIPLimitExceeded(t *testing.T) {
	limits := NewConnectionLimits(100, 2, 100.0, 100)

	ok, _ := limits.Acquire("192.168.1.1")
	assert.True(t, ok)
	ok, _ = limits.Acquire("192.168.1.1")
	assert.True(t, ok)

	ok, reason := limits.Acquire("192.168.1.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)

	ok, _ = limits.Acquire("192.168.1.2")
	assert.True(t, ok)
}

func TestConnectionLimits_RateLimitExceeded(t *testing.T) {
	limits := NewConnectionLimits(100, 100, 2.0, 2)

	ok, _ := limits.Acquire("192.168.1.1")
	assert.True(t, ok)
	ok, _ = limits.Acquire("192.168.1.1")
	assert.True(t, ok)

	ok, reason := limits.Acquire("192.168.1.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonRate, reason)
}

func TestConnectionLimits_RollbackOnPerIPFailure(t *testing.T) {
	limits := NewConnectionLimits(100, 1, 100.0, 100)

	ok, _ := limits.Acquire("192.168.1.1")
	assert.True(t, ok)
	assert.Equal(t, int64(1), limits.global.Current())

	ok, reason := limits.Acquire("192.168.1.1")
	assert.False(t, ok)
	assert.Equal(t, LimitReasonPerIP, reason)
	// Global counter rolled back
	assert.Equal(t, int64(1), limits.global.Current())

	limits.Release("192.168.1.1")
	assert.Equal(t, int64(0), limits.global.Current())
}

func TestConnectionLimits_Concurrent(t *testing.T) {
	limits := NewConnectionLimits(50, 5, 100.0, 100)

	var wg sync.WaitGroup
	var successCount int64

	// 10 IPs with 10 attempts each; the per-IP cap allows 5 per IP.
	for ip := 1; ip <= 10; ip++ {
		for range 10 {
			wg.Add(1)
			go func(ip string) {
				defer wg.Done()
				if ok, _ := limits.Acquire(ip); ok {
					atomic.AddInt64(&successCount, 1)
				}
			}(fmt.Sprintf("192.168.1.%d", ip))
		}
	}
	wg.Wait()

	assert.Equal(t, int64(50), atomic.LoadInt64(&successCount))
	assert.Equal(t, int64(50), limits.global.Current())
}
