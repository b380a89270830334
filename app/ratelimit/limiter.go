package ratelimit

import (
	"sync"
	"time"

	"github.com/anotherme-social/identity-service/config"
)

// Limiter enforces one quota over a sliding window, keyed by client
// identifier. Each key carries its own lock so unrelated clients never
// contend; the outer map lock is held only for lookups and inserts.
type Limiter struct {
	quota   config.Quota
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	mu     sync.Mutex
	events []time.Time
}

func NewLimiter(quota config.Quota) *Limiter {
	return &Limiter{
		quota:   quota,
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

// Allow records an event for key if the quota permits it. When the
// quota is exhausted it returns false and the delay after which the
// oldest counted event falls out of the window.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	e := l.entry(key)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.quota.Window)

	kept := e.events[:0]
	for _, ts := range e.events {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	e.events = kept

	if len(e.events) >= l.quota.Limit {
		retryAfter := e.events[0].Add(l.quota.Window).Sub(now)
		return false, retryAfter
	}

	e.events = append(e.events, now)
	return true, 0
}

func (l *Limiter) entry(key string) *entry {
	l.mu.RLock()
	e, ok := l.entries[key]
	l.mu.RUnlock()
	if ok {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e, ok = l.entries[key]; ok {
		return e
	}
	e = &entry{}
	l.entries[key] = e
	return e
}

// cleanup drops keys whose every event has left the window.
func (l *Limiter) cleanup() {
	cutoff := l.now().Add(-l.quota.Window)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, e := range l.entries {
		e.mu.Lock()
		stale := true
		for _, ts := range e.events {
			if ts.After(cutoff) {
				stale = false
				break
			}
		}
		e.mu.Unlock()
		if stale {
			delete(l.entries, key)
		}
	}
}

// Registry holds the named buckets of the service, each with its own
// independent limiter. Bucket state is invisible across buckets and
// clients.
type Registry struct {
	limiters map[string]*Limiter
	stop     chan struct{}
	stopOnce sync.Once
}

const (
	BucketLogin              = "login"
	BucketRegister           = "register"
	BucketForgotPassword     = "forgot-password"
	BucketResendVerification = "resend-verification"
)

func NewRegistry(limits config.RateLimits) *Registry {
	return &Registry{
		limiters: map[string]*Limiter{
			BucketLogin:              NewLimiter(limits.Login),
			BucketRegister:           NewLimiter(limits.Register),
			BucketForgotPassword:     NewLimiter(limits.ForgotPassword),
			BucketResendVerification: NewLimiter(limits.ResendVerification),
		},
		stop: make(chan struct{}),
	}
}

// Allow checks the named bucket. Unknown buckets allow everything,
// which keeps misconfigured routes failing open rather than locking
// clients out.
func (r *Registry) Allow(bucket, clientKey string) (bool, time.Duration) {
	limiter, ok := r.limiters[bucket]
	if !ok {
		return true, 0
	}
	return limiter.Allow(clientKey)
}

// StartCleanup evicts idle keys periodically until Stop is called.
func (r *Registry) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				for _, limiter := range r.limiters {
					limiter.cleanup()
				}
			case <-r.stop:
				return
			}
		}
	}()
}

func (r *Registry) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
}
