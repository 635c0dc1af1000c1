// backend/blsapi/ratelimiter.go
package blsapi

import (
	"sync"
	"time"
)

// RateLimiter enforces a sliding-window limit: no more than max requests in
// any rolling window. It owns a bounded timestamp queue behind a single Wait
// entry point; the queue never escapes. One limiter serves one process; there
// is no cross-process fairness, the persistent quota ledger covers that.
type RateLimiter struct {
	max    int
	window time.Duration

	// now and sleep are swappable so the sliding-window guarantee can be
	// tested against a fake clock.
	now   func() time.Time
	sleep func(time.Duration)

	mu     sync.Mutex
	stamps []time.Time // oldest first, len never exceeds max
}

// NewRateLimiter returns a limiter allowing max requests per rolling window.
func NewRateLimiter(max int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		max:    max,
		window: window,
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Wait blocks until one more request may be sent, then records it.
func (rl *RateLimiter) Wait() {
	for {
		rl.mu.Lock()
		now := rl.now()

		// Evict timestamps that have left the window.
		cutoff := now.Add(-rl.window)
		kept := rl.stamps[:0]
		for _, t := range rl.stamps {
			if t.After(cutoff) {
				kept = append(kept, t)
			}
		}
		rl.stamps = kept

		if len(rl.stamps) < rl.max {
			rl.stamps = append(rl.stamps, now)
			rl.mu.Unlock()
			return
		}

		// Sleep until the oldest entry exits the window, then re-check.
		wait := rl.stamps[0].Add(rl.window).Sub(now)
		rl.mu.Unlock()
		if wait > 0 {
			rl.sleep(wait)
		}
	}
}
