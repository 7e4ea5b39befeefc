package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoginRateLimiterAllow(t *testing.T) {
	limiter := NewLoginRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	ok, _ := limiter.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, _ = limiter.Allow("10.0.0.1")
	assert.True(t, ok)

	ok, retryAfter := limiter.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retryAfter)

	ok, _ = limiter.Allow("10.0.0.2")
	assert.True(t, ok, "other clients keep their own window")

	now = now.Add(61 * time.Second)
	ok, _ = limiter.Allow("10.0.0.1")
	assert.True(t, ok)
}

func limitedHandler(limiter *LoginRateLimiter) http.Handler {
	return limiter.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func sendLogin(handler http.Handler, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestLoginRateLimiterMiddleware(t *testing.T) {
	handler := limitedHandler(NewLoginRateLimiter(1, time.Minute))

	assert.Equal(t, http.StatusNoContent, sendLogin(handler, "198.51.100.7:5000", "").Code)

	rec := sendLogin(handler, "198.51.100.7:5001", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code, "a new source port is the same client")
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", decodeRejection(t, rec)["error"])
}

func TestLoginRateLimiterIgnoresForwardedForByDefault(t *testing.T) {
	handler := limitedHandler(NewLoginRateLimiter(1, time.Minute))

	assert.Equal(t, http.StatusNoContent, sendLogin(handler, "198.51.100.7:5000", "203.0.113.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, sendLogin(handler, "198.51.100.7:5000", "203.0.113.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, sendLogin(handler, "198.51.100.7:5000", "203.0.113.3").Code)
}

func TestLoginRateLimiterTrustedProxy(t *testing.T) {
	handler := limitedHandler(NewLoginRateLimiter(1, time.Minute).WithTrustedProxy(true))
	const proxy = "10.0.0.1:443"

	assert.Equal(t, http.StatusNoContent, sendLogin(handler, proxy, "203.0.113.9, 10.0.0.1").Code)
	assert.Equal(t, http.StatusTooManyRequests, sendLogin(handler, proxy, "203.0.113.9").Code)
	assert.Equal(t, http.StatusNoContent, sendLogin(handler, proxy, "203.0.113.10").Code, "clients behind the proxy keep their own window")
}
