package httpcontroller

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

const (
	// limiterIdleTTL is how long an idle client's limiter is remembered.
	limiterIdleTTL = 15 * time.Minute
	// maxTrackedClients triggers a sweep of expired limiters.
	maxTrackedClients = 10000
)

// loginLimiter throttles login attempts per client IP.
type loginLimiter struct {
	limit rate.Limit
	burst int

	mu      sync.Mutex
	clients *cache.Cache
}

// newLoginLimiter allows perSecond attempts with the given burst. A
// non-positive rate disables throttling.
func newLoginLimiter(perSecond float64, burst int) *loginLimiter {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &loginLimiter{
		limit:   limit,
		burst:   burst,
		clients: cache.New(limiterIdleTTL, 0),
	}
}

// Allow reports whether ip may attempt a login now.
func (l *loginLimiter) Allow(ip string) bool {
	if l.limit == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.clients.Get(ip); ok {
		lim := v.(*rate.Limiter)
		// touch so active clients do not expire
		l.clients.Set(ip, lim, cache.DefaultExpiration)
		return lim.Allow()
	}

	if l.clients.ItemCount() >= maxTrackedClients {
		l.clients.DeleteExpired()
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.clients.Set(ip, lim, cache.DefaultExpiration)
	return lim.Allow()
}
