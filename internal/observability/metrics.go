package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuthRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storeapi_auth_rejections_total",
		Help: "Protected requests rejected by the auth middleware, by error code",
	}, []string{"code"})

	TokensIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "storeapi_tokens_issued_total",
		Help: "Tokens minted, by token type",
	}, []string{"type"})

	TokensRevoked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "storeapi_tokens_revoked_total",
		Help: "Token identifiers added to the revocation registry",
	})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "storeapi_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)
