package httpapi

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const limiterIdleTTL = 10 * time.Minute

// userLimiter hands out one token bucket per user id.
type userLimiter struct {
	mu    sync.Mutex
	rps   rate.Limit
	burst int
	users map[string]*limiterEntry
	now   func() time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// newUserLimiter returns nil when rps <= 0; a nil limiter allows everything.
func newUserLimiter(rps float64, burst int) *userLimiter {
	if rps <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return &userLimiter{
		rps:   rate.Limit(rps),
		burst: burst,
		users: make(map[string]*limiterEntry),
		now:   time.Now,
	}
}

func (l *userLimiter) Allow(userID string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	now := l.now()
	e, ok := l.users[userID]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.users[userID] = e
	}
	e.lastSeen = now
	l.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

func (l *userLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-limiterIdleTTL)
	for id, e := range l.users {
		if e.lastSeen.Before(cutoff) {
			delete(l.users, id)
		}
	}
}

func (l *userLimiter) StartJanitor(ctx context.Context, interval time.Duration) {
	if l == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.sweep()
			}
		}
	}()
}
