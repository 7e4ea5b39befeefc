package auth

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"store-api/internal/observability"
)

// LoginRateLimiter is a sliding window limiter keyed by client IP. It sits in
// front of the credential endpoints only. The key is the connection peer
// unless proxy headers are trusted.
type LoginRateLimiter struct {
	mu           sync.Mutex
	maxHits      int
	window       time.Duration
	hits         map[string][]time.Time
	maxKeys      int
	trustForward bool
	now          func() time.Time
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxHits: maxHits,
		window:  window,
		hits:    make(map[string][]time.Time),
		maxKeys: 5000,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithTrustedProxy keys clients on X-Forwarded-For. Enable it only behind a
// proxy that overwrites the header.
func (l *LoginRateLimiter) WithTrustedProxy(trusted bool) *LoginRateLimiter {
	l.trustForward = trusted
	return l
}

func (l *LoginRateLimiter) clientKey(r *http.Request) string {
	if l.trustForward {
		return observability.ClientIP(r)
	}
	return observability.RemoteIP(r)
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.Allow(l.clientKey(r))
		if !allowed {
			observability.AuthRejections.WithLabelValues(RateLimited.Code).Inc()
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			writeRejection(w, RateLimited)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) Allow(key string) (bool, time.Duration) {
	now := l.now()
	threshold := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.hits[key][:0:0]
	for _, hit := range l.hits[key] {
		if hit.After(threshold) {
			recent = append(recent, hit)
		}
	}

	if len(recent) >= l.maxHits {
		retryAfter := recent[0].Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		l.hits[key] = recent
		return false, retryAfter
	}

	l.hits[key] = append(recent, now)
	if len(l.hits) > l.maxKeys {
		l.prune(threshold)
	}

	return true, 0
}

func (l *LoginRateLimiter) prune(threshold time.Time) {
	for key, hits := range l.hits {
		if len(hits) == 0 || hits[len(hits)-1].Before(threshold) {
			delete(l.hits, key)
		}
	}
}
