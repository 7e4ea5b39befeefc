package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"store-api/internal/observability"
	"store-api/internal/record"
	"store-api/internal/revocation"
	"store-api/internal/token"
)

const (
	defaultMaxAttempts = 5
	defaultLockWindow  = 15 * time.Minute
	maxPasswordBytes   = 72
)

// LockoutStore counts failed logins per username. ActiveLock and
// RecordFailure return nil when the username is not locked.
type LockoutStore interface {
	ActiveLock(ctx context.Context, username string, now time.Time) (*time.Time, error)
	RecordFailure(ctx context.Context, username string, maxFailures int, lockFor time.Duration, now time.Time) (*time.Time, error)
	Clear(ctx context.Context, username string) error
}

type Service struct {
	users        record.Store[User]
	tokens       *token.Service
	revoked      revocation.Registry
	lockouts     LockoutStore
	maxAttempts  int
	lockDuration time.Duration
	bcryptCost   int
	dummyHash    []byte
}

func NewService(users record.Store[User], tokens *token.Service, revoked revocation.Registry) *Service {
	s := &Service{
		users:        users,
		tokens:       tokens,
		revoked:      revoked,
		maxAttempts:  defaultMaxAttempts,
		lockDuration: defaultLockWindow,
	}
	s.WithBcryptCost(bcrypt.DefaultCost)
	return s
}

// WithLockout enables per-username lockout after maxAttempts failed logins.
func (s *Service) WithLockout(lockouts LockoutStore, maxAttempts int, lockDuration time.Duration) *Service {
	s.lockouts = lockouts
	if maxAttempts > 0 {
		s.maxAttempts = maxAttempts
	}
	if lockDuration > 0 {
		s.lockDuration = lockDuration
	}
	return s
}

func (s *Service) WithBcryptCost(cost int) *Service {
	s.bcryptCost = cost
	// compared against when the user does not exist, so both paths pay for a bcrypt check
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("dummy-password-for-timing"), cost)
	return s
}

func normalizeUsername(username string) string {
	return strings.TrimSpace(strings.ToLower(username))
}

func (s *Service) hashPassword(password string) ([]byte, error) {
	if len(password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, ErrPasswordTooLong
	}
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return hash, nil
}

func (s *Service) Register(ctx context.Context, username, password string) (User, error) {
	username = normalizeUsername(username)
	if len(password) > maxPasswordBytes {
		return User{}, ErrPasswordTooLong
	}

	if _, err := s.users.FindByName(ctx, username); err == nil {
		return User{}, ErrUsernameTaken
	} else if !errors.Is(err, record.ErrNotFound) {
		return User{}, err
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return User{}, err
	}

	user := User{
		Username:     username,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Save(ctx, &user); err != nil {
		if errors.Is(err, record.ErrConflict) {
			return User{}, ErrUsernameTaken
		}
		return User{}, err
	}

	return user, nil
}

func (s *Service) Login(ctx context.Context, username, password string) (Tokens, error) {
	username = normalizeUsername(username)
	if username == "" || password == "" {
		return Tokens{}, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if s.lockouts != nil {
		until, err := s.lockouts.ActiveLock(ctx, username, now)
		if err != nil {
			return Tokens{}, err
		}
		if until != nil {
			return Tokens{}, ErrLoginLocked{Until: *until}
		}
	}

	user, err := s.users.FindByName(ctx, username)
	if err != nil {
		if !errors.Is(err, record.ErrNotFound) {
			return Tokens{}, err
		}
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return Tokens{}, s.failedAttempt(ctx, username, now)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return Tokens{}, s.failedAttempt(ctx, username, now)
	}

	if s.lockouts != nil {
		if err := s.lockouts.Clear(ctx, username); err != nil {
			return Tokens{}, err
		}
	}

	return s.issuePair(user.ID)
}

func (s *Service) failedAttempt(ctx context.Context, username string, now time.Time) error {
	if s.lockouts == nil {
		return ErrInvalidCredentials
	}

	lockedUntil, err := s.lockouts.RecordFailure(ctx, username, s.maxAttempts, s.lockDuration, now)
	if err != nil {
		return err
	}
	if lockedUntil != nil {
		return ErrLoginLocked{Until: *lockedUntil}
	}
	return ErrInvalidCredentials
}

func (s *Service) issuePair(identity int64) (Tokens, error) {
	access, err := s.tokens.IssueAccess(identity, true)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := s.tokens.IssueRefresh(identity)
	if err != nil {
		return Tokens{}, err
	}
	observability.TokensIssued.WithLabelValues(string(token.TypeAccess)).Inc()
	observability.TokensIssued.WithLabelValues(string(token.TypeRefresh)).Inc()

	return Tokens{
		AccessToken:  access.Raw,
		RefreshToken: refresh.Raw,
		TokenType:    "Bearer",
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Refresh mints a non-fresh access token for the identity carried by an
// already validated refresh token. No new refresh token is issued.
func (s *Service) Refresh(principal *Principal) (Tokens, error) {
	access, err := s.tokens.IssueAccess(principal.Identity, false)
	if err != nil {
		return Tokens{}, err
	}
	observability.TokensIssued.WithLabelValues(string(token.TypeAccess)).Inc()

	return Tokens{
		AccessToken: access.Raw,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.tokens.AccessTTL().Seconds()),
	}, nil
}

// Logout revokes the access token on the request. When the caller also hands
// in its refresh token, that one is revoked too, provided it belongs to the
// same identity.
func (s *Service) Logout(ctx context.Context, principal *Principal, refreshRaw string) error {
	var refresh *token.Token
	if refreshRaw = strings.TrimSpace(refreshRaw); refreshRaw != "" {
		decoded, err := s.tokens.Decode(refreshRaw)
		switch {
		case errors.Is(err, token.ErrExpired):
		case err != nil:
			return ErrInvalidRefreshToken
		case decoded.Type != token.TypeRefresh || decoded.Identity != principal.Identity:
			return ErrInvalidRefreshToken
		default:
			refresh = &decoded
		}
	}

	if err := s.revoked.Revoke(ctx, principal.Token.ID, principal.Token.ExpiresAt); err != nil {
		return err
	}
	observability.TokensRevoked.Inc()

	if refresh != nil {
		if err := s.revoked.Revoke(ctx, refresh.ID, refresh.ExpiresAt); err != nil {
			return err
		}
		observability.TokensRevoked.Inc()
	}

	return nil
}

func (s *Service) FindUser(ctx context.Context, id int64) (User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.users.Delete(ctx, user)
}

// BootstrapAdmin makes sure the configured admin account exists with the
// given password and returns its id. Empty credentials disable it.
func (s *Service) BootstrapAdmin(ctx context.Context, adminUsername, adminPassword string) (int64, bool, error) {
	adminUsername = normalizeUsername(adminUsername)
	adminPassword = strings.TrimSpace(adminPassword)

	if adminUsername == "" && adminPassword == "" {
		return 0, false, nil
	}
	if adminUsername == "" || adminPassword == "" {
		return 0, false, fmt.Errorf("ADMIN_USERNAME and ADMIN_PASSWORD are required together")
	}

	hash, err := s.hashPassword(adminPassword)
	if err != nil {
		return 0, false, fmt.Errorf("admin password: %w", err)
	}

	user, err := s.users.FindByName(ctx, adminUsername)
	switch {
	case errors.Is(err, record.ErrNotFound):
		user = User{Username: adminUsername, CreatedAt: time.Now().UTC()}
	case err != nil:
		return 0, false, fmt.Errorf("find admin user: %w", err)
	}
	user.PasswordHash = string(hash)

	if err := s.users.Save(ctx, &user); err != nil {
		return 0, false, fmt.Errorf("save admin user: %w", err)
	}

	return user.ID, true, nil
}
