package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 30 * 24 * time.Hour
)

type Type string

const (
	TypeAccess  Type = "access"
	TypeRefresh Type = "refresh"
)

var (
	ErrInvalid   = errors.New("invalid token")
	ErrMalformed = fmt.Errorf("%w: malformed", ErrInvalid)
	ErrSignature = fmt.Errorf("%w: signature mismatch", ErrInvalid)
	ErrExpired   = errors.New("token expired")
)

// Token is the decoded view of a signed JWT. Raw holds the compact encoding.
type Token struct {
	Raw       string
	ID        string
	Identity  int64
	Type      Type
	Fresh     bool
	Claims    ClaimSet
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Type    Type `json:"type"`
	Fresh   bool `json:"fresh"`
	IsAdmin bool `json:"is_admin,omitempty"`
}

type Service struct {
	secret     []byte
	policy     ClaimsPolicy
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewService(secret string, policy ClaimsPolicy) (*Service, error) {
	if secret == "" {
		return nil, errors.New("token signing secret is empty")
	}
	if policy == nil {
		policy = NewAdminSet()
	}

	return &Service{
		secret:     []byte(secret),
		policy:     policy,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *Service) WithLifetimes(accessTTL, refreshTTL time.Duration) *Service {
	if accessTTL > 0 {
		s.accessTTL = accessTTL
	}
	if refreshTTL > 0 {
		s.refreshTTL = refreshTTL
	}
	return s
}

func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Service) AccessTTL() time.Duration  { return s.accessTTL }
func (s *Service) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *Service) ComputeClaims(identity int64) ClaimSet {
	return s.policy.ClaimsFor(identity)
}

func (s *Service) IssueAccess(identity int64, fresh bool) (Token, error) {
	return s.issue(identity, TypeAccess, fresh, s.ComputeClaims(identity), s.accessTTL)
}

// IssueRefresh never marks the token fresh and carries no role claims; they are
// derived again when an access token is minted from it.
func (s *Service) IssueRefresh(identity int64) (Token, error) {
	return s.issue(identity, TypeRefresh, false, ClaimSet{}, s.refreshTTL)
}

func (s *Service) issue(identity int64, typ Type, fresh bool, claims ClaimSet, ttl time.Duration) (Token, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Token{}, fmt.Errorf("generate jti: %w", err)
	}

	now := s.now().Truncate(time.Second)
	expiresAt := now.Add(ttl)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id.String(),
			Subject:   strconv.FormatInt(identity, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Type:    typ,
		Fresh:   fresh,
		IsAdmin: claims.IsAdmin,
	}).SignedString(s.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign jwt: %w", err)
	}

	return Token{
		Raw:       signed,
		ID:        id.String(),
		Identity:  identity,
		Type:      typ,
		Fresh:     fresh,
		Claims:    claims,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
	}, nil
}

// Decode verifies signature, structure and expiry. Revocation is not consulted.
func (s *Service) Decode(raw string) (Token, error) {
	claims := &jwtClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return Token{}, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return Token{}, ErrSignature
		default:
			return Token{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}
	if !parsed.Valid {
		return Token{}, ErrMalformed
	}

	if claims.ID == "" {
		return Token{}, fmt.Errorf("%w: missing jti", ErrMalformed)
	}
	if claims.Type != TypeAccess && claims.Type != TypeRefresh {
		return Token{}, fmt.Errorf("%w: unknown token type %q", ErrMalformed, claims.Type)
	}
	identity, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("%w: subject is not an identity", ErrMalformed)
	}

	tok := Token{
		Raw:      raw,
		ID:       claims.ID,
		Identity: identity,
		Type:     claims.Type,
		Fresh:    claims.Fresh,
		Claims:   ClaimSet{IsAdmin: claims.IsAdmin},
	}
	if claims.IssuedAt != nil {
		tok.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	tok.ExpiresAt = claims.ExpiresAt.Time.UTC()

	return tok, nil
}
