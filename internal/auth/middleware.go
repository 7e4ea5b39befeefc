package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"store-api/internal/observability"
	"store-api/internal/revocation"
	"store-api/internal/token"
)

type Mode int

const (
	ModeNone Mode = iota
	ModeRequired
	ModeFresh
	ModeRefresh
	ModeOptional
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeRequired:
		return "required"
	case ModeFresh:
		return "required+fresh"
	case ModeRefresh:
		return "required+refresh-type"
	case ModeOptional:
		return "optional"
	default:
		return "unknown"
	}
}

// Rule is the auth requirement attached to a single operation.
type Rule struct {
	Mode      Mode
	AdminOnly bool
}

type Route struct {
	Pattern string
	Rule    Rule
	Handler http.HandlerFunc
}

type Principal struct {
	Identity int64
	Claims   token.ClaimSet
	Token    token.Token
}

type contextKey string

const principalKey = contextKey("principal")

func PrincipalFrom(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok && p != nil
}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

type Guard struct {
	tokens  *token.Service
	revoked revocation.Registry
	logger  *observability.Logger
}

func NewGuard(tokens *token.Service, revoked revocation.Registry, logger *observability.Logger) *Guard {
	return &Guard{tokens: tokens, revoked: revoked, logger: logger}
}

func (g *Guard) Mount(mux *http.ServeMux, routes []Route) {
	for _, route := range routes {
		mux.Handle(route.Pattern, g.Wrap(route.Rule, route.Handler))
	}
}

func (g *Guard) Wrap(rule Rule, next http.Handler) http.Handler {
	if rule.Mode == ModeNone {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, rejection := g.Authenticate(r, rule)
		if rejection != nil {
			observability.AuthRejections.WithLabelValues(rejection.Code).Inc()
			g.logger.Info("auth_rejected", map[string]any{
				"code":   rejection.Code,
				"method": r.Method,
				"path":   r.URL.Path,
				"mode":   rule.Mode.String(),
			})
			writeRejection(w, rejection)
			return
		}

		if principal != nil {
			r = r.WithContext(WithPrincipal(r.Context(), principal))
		}
		next.ServeHTTP(w, r)
	})
}

// Authenticate runs the per-request checks in a fixed order: presence,
// decode, expiry, type, revocation, freshness, admin claim. A nil principal
// with a nil rejection means an optional operation was called anonymously.
func (g *Guard) Authenticate(r *http.Request, rule Rule) (*Principal, *Rejection) {
	raw, ok := bearerToken(r)
	if !ok {
		if rule.Mode == ModeOptional {
			return nil, nil
		}
		return nil, AuthRequired
	}

	tok, err := g.tokens.Decode(raw)
	if err != nil {
		switch {
		case errors.Is(err, token.ErrExpired):
			return nil, ExpiredToken
		case errors.Is(err, token.ErrSignature):
			return nil, InvalidToken
		default:
			return nil, InvalidToken.describe("Token is malformed.")
		}
	}

	if rule.Mode == ModeRefresh {
		if tok.Type != token.TypeRefresh {
			return nil, InvalidToken.describe("Only refresh tokens are allowed.")
		}
	} else if tok.Type != token.TypeAccess {
		return nil, InvalidToken.describe("Only access tokens are allowed.")
	}

	revoked, err := g.revoked.IsRevoked(r.Context(), tok.ID)
	if err != nil {
		g.logger.Error("revocation_lookup_failed", map[string]any{"error": err.Error(), "jti": tok.ID})
		observability.CaptureError("revocation_lookup", err)
		return nil, RevocationUnavailable
	}
	if revoked {
		return nil, RevokedToken
	}

	if rule.Mode == ModeFresh && !tok.Fresh {
		return nil, FreshnessRequired
	}

	claims := g.tokens.ComputeClaims(tok.Identity)
	if rule.AdminOnly && !claims.IsAdmin {
		return nil, AdminRequired
	}

	return &Principal{Identity: tok.Identity, Claims: claims, Token: tok}, nil
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	tokenStr := strings.TrimSpace(parts[1])
	if tokenStr == "" {
		return "", false
	}

	return tokenStr, true
}
