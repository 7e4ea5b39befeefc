package app

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"store-api/internal/auth"
	"store-api/internal/item"
	"store-api/internal/maintenance"
	"store-api/internal/observability"
	"store-api/internal/record"
	"store-api/internal/revocation"
	"store-api/internal/store"
	"store-api/internal/token"
)

// Deps is everything the HTTP surface needs. Attempts, Cleanup and Health are
// optional.
type Deps struct {
	Logger       *observability.Logger
	Tokens       *token.Service
	Revocations  revocation.Registry
	Users        record.Store[auth.User]
	Stores       record.Store[store.Store]
	Items        record.Store[item.Item]
	AuthService  *auth.Service
	LoginLimiter *auth.LoginRateLimiter
	Cleanup      *maintenance.CleanupHandler
	Health       func(ctx context.Context) error
	CORSOrigins  []string
}

func NewHandler(deps Deps) http.Handler {
	authService := deps.AuthService
	if authService == nil {
		authService = auth.NewService(deps.Users, deps.Tokens, deps.Revocations)
	}
	authHandler := auth.NewHandler(authService)
	itemHandler := item.NewHandler(deps.Items)
	storeHandler := store.NewHandler(deps.Stores, deps.Items)

	login := http.Handler(http.HandlerFunc(authHandler.Login))
	if deps.LoginLimiter != nil {
		login = deps.LoginLimiter.Middleware(login)
	}

	var (
		none     = auth.Rule{Mode: auth.ModeNone}
		required = auth.Rule{Mode: auth.ModeRequired}
		fresh    = auth.Rule{Mode: auth.ModeFresh}
		refresh  = auth.Rule{Mode: auth.ModeRefresh}
		optional = auth.Rule{Mode: auth.ModeOptional}
		admin    = auth.Rule{Mode: auth.ModeRequired, AdminOnly: true}
	)

	routes := []auth.Route{
		{Pattern: "GET /store/{name}", Rule: none, Handler: storeHandler.Get},
		{Pattern: "POST /store/{name}", Rule: none, Handler: storeHandler.Create},
		{Pattern: "DELETE /store/{name}", Rule: none, Handler: storeHandler.Delete},
		{Pattern: "GET /stores", Rule: none, Handler: storeHandler.List},

		{Pattern: "GET /item/{name}", Rule: required, Handler: itemHandler.Get},
		{Pattern: "POST /item/{name}", Rule: fresh, Handler: itemHandler.Create},
		{Pattern: "PUT /item/{name}", Rule: none, Handler: itemHandler.Put},
		{Pattern: "DELETE /item/{name}", Rule: admin, Handler: itemHandler.Delete},
		{Pattern: "GET /items", Rule: optional, Handler: itemHandler.List},

		{Pattern: "POST /register", Rule: none, Handler: authHandler.Register},
		{Pattern: "GET /user/{id}", Rule: none, Handler: authHandler.GetUser},
		{Pattern: "DELETE /user/{id}", Rule: none, Handler: authHandler.DeleteUser},
		{Pattern: "POST /login", Rule: none, Handler: login.ServeHTTP},
		{Pattern: "POST /refresh", Rule: refresh, Handler: authHandler.Refresh},
		{Pattern: "POST /logout", Rule: required, Handler: authHandler.Logout},
	}

	mux := http.NewServeMux()
	auth.NewGuard(deps.Tokens, deps.Revocations, deps.Logger).Mount(mux, routes)

	mux.HandleFunc("GET /health", healthHandler(deps.Health))
	mux.Handle("GET /metrics", promhttp.Handler())
	if deps.Cleanup != nil {
		mux.HandleFunc("GET /internal/maintenance/cleanup", deps.Cleanup.Handle)
		mux.HandleFunc("POST /internal/maintenance/cleanup", deps.Cleanup.Handle)
	}

	var handler http.Handler = mux
	if len(deps.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins: deps.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
		}).Handler(handler)
	}

	return observability.RecoverMiddleware(deps.Logger, observability.RequestLoggingMiddleware(deps.Logger, handler))
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)}
		if check != nil {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}
