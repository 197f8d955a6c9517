package storage

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var _ Backend = (*MemoryBackend)(nil)

const limiterIdleTTL = 10 * time.Minute

type memoryLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type MemoryBackend struct {
	limiters  map[string]*memoryLimiter
	limiterMu sync.Mutex
	rateLimit rate.Limit
	rateBurst int

	done      chan struct{}
	closeOnce sync.Once
}

func NewMemoryBackend(ratePerSec float64, burst int) *MemoryBackend {
	m := &MemoryBackend{
		limiters:  make(map[string]*memoryLimiter),
		rateLimit: rate.Limit(ratePerSec),
		rateBurst: burst,
		done:      make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

func (m *MemoryBackend) Allow(_ context.Context, key string) (RateLimitResult, error) {
	now := time.Now()

	m.limiterMu.Lock()
	l, exists := m.limiters[key]
	if !exists {
		l = &memoryLimiter{limiter: rate.NewLimiter(m.rateLimit, m.rateBurst)}
		m.limiters[key] = l
	}
	l.lastSeen = now
	m.limiterMu.Unlock()

	r := l.limiter.ReserveN(now, 1)
	if !r.OK() {
		return RateLimitResult{Allowed: false, RetryAfter: time.Second}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return RateLimitResult{Allowed: false, RetryAfter: delay}, nil
	}
	return RateLimitResult{Allowed: true}, nil
}

func (m *MemoryBackend) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryBackend) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryBackend) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.limiterMu.Lock()
			now := time.Now()
			for key, l := range m.limiters {
				if now.Sub(l.lastSeen) > limiterIdleTTL {
					delete(m.limiters, key)
				}
			}
			m.limiterMu.Unlock()
		case <-m.done:
			return
		}
	}
}
