package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim  *rate.Limiter
	last time.Time
}

// Limiter is a per-key token bucket. Keys idle for longer than ttl are dropped.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*bucket
	capacity int
	refill   rate.Limit
	ttl      time.Duration
	now      func() time.Time
}

// New creates a limiter allowing bursts of capacity and refillPerSec tokens per second.
func New(capacity, refillPerSec float64) *Limiter {
	burst := int(capacity)
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		m:        make(map[string]*bucket),
		capacity: burst,
		refill:   rate.Limit(refillPerSec),
		ttl:      time.Hour,
		now:      time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		if len(l.m) > 1024 {
			l.evict(now)
		}
		b = &bucket{lim: rate.NewLimiter(l.refill, l.capacity)}
		l.m[key] = b
	}
	b.last = now
	return b.lim.AllowN(now, 1)
}

func (l *Limiter) evict(now time.Time) {
	for k, b := range l.m {
		if now.Sub(b.last) > l.ttl {
			delete(l.m, k)
		}
	}
}
