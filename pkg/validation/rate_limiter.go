package validation

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket per source. Each source may burst up to
// maxRequests and refills at maxRequests per window.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	sources     map[string]*bucket
	mu          sync.Mutex
	cleanupTick *time.Ticker
	done        chan struct{}
	closeOnce   sync.Once
	now         func() time.Time
}

type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// NewRateLimiter creates a new rate limiter with specified limits
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		sources:     make(map[string]*bucket),
		done:        make(chan struct{}),
		now:         time.Now,
	}

	// Drop idle sources so spoofed addresses cannot grow the map forever.
	rl.cleanupTick = time.NewTicker(2 * window)
	go rl.cleanup()

	return rl
}

// Allow reports whether source may send one more request now
func (rl *RateLimiter) Allow(source string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	b, ok := rl.sources[source]
	if !ok {
		b = &bucket{tokens: float64(rl.maxRequests), lastSeen: now}
		rl.sources[source] = b
	}

	elapsed := now.Sub(b.lastSeen)
	if elapsed > 0 && rl.window > 0 {
		b.tokens += float64(rl.maxRequests) * float64(elapsed) / float64(rl.window)
		if b.tokens > float64(rl.maxRequests) {
			b.tokens = float64(rl.maxRequests)
		}
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Sources returns the number of sources currently tracked
func (rl *RateLimiter) Sources() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.sources)
}

func (rl *RateLimiter) cleanup() {
	for {
		select {
		case <-rl.cleanupTick.C:
			rl.removeIdle()
		case <-rl.done:
			return
		}
	}
}

// removeIdle forgets sources that have been quiet for two windows
func (rl *RateLimiter) removeIdle() {
	cutoff := rl.now().Add(-2 * rl.window)

	rl.mu.Lock()
	for source, b := range rl.sources {
		if b.lastSeen.Before(cutoff) {
			delete(rl.sources, source)
		}
	}
	rl.mu.Unlock()
}

// Close stops the cleanup goroutine
func (rl *RateLimiter) Close() {
	rl.closeOnce.Do(func() {
		close(rl.done)
		rl.cleanupTick.Stop()
	})
}
