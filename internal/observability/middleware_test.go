package observability

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecoverMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOutput(&buf, "info")

	handler := RecoverMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("kaboom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/items", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"message":"internal server error"}`, w.Body.String())
	assert.Contains(t, buf.String(), "panic_recovered")
}

func TestRequestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOutput(&buf, "info")

	handler := RequestLoggingMiddleware(logger, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	out := buf.String()
	assert.Contains(t, out, `"message":"http_request"`)
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"ip":"10.0.0.1"`)
	assert.Contains(t, out, `"path":"/login"`)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1:1234", ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.9 ")
	assert.Equal(t, "203.0.113.9", ClientIP(req))
}

func TestRemoteIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")

	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", RemoteIP(req))

	req.RemoteAddr = "[2001:db8::1]:443"
	assert.Equal(t, "2001:db8::1", RemoteIP(req))

	req.RemoteAddr = "192.0.2.1"
	assert.Equal(t, "192.0.2.1", RemoteIP(req))

	req.RemoteAddr = ""
	assert.Equal(t, "unknown", RemoteIP(req))
}
