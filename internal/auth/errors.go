package auth

import (
	"errors"
	"net/http"
	"time"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUsernameTaken       = errors.New("username already exists")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// bcrypt only sees the first 72 bytes of a password, so longer ones are refused.
	ErrPasswordTooLong = errors.New("password exceeds 72 bytes")
)

type ErrLoginLocked struct {
	Until time.Time
}

func (e ErrLoginLocked) Error() string {
	return "login temporarily locked"
}

// Rejection is the fixed-shape error returned for authentication and
// authorization failures: {"description": ..., "error": code}.
type Rejection struct {
	Status      int    `json:"-"`
	Code        string `json:"error"`
	Description string `json:"description"`
}

func (r *Rejection) Error() string {
	return r.Code + ": " + r.Description
}

func (r *Rejection) describe(description string) *Rejection {
	return &Rejection{Status: r.Status, Code: r.Code, Description: description}
}

var (
	AuthRequired = &Rejection{
		Status:      http.StatusUnauthorized,
		Code:        "authorization_required",
		Description: "Request does not contain an access token.",
	}
	InvalidToken = &Rejection{
		Status:      http.StatusUnauthorized,
		Code:        "invalid_token",
		Description: "Signature verification failed.",
	}
	ExpiredToken = &Rejection{
		Status:      http.StatusUnauthorized,
		Code:        "token_expired",
		Description: "The token has expired.",
	}
	RevokedToken = &Rejection{
		Status:      http.StatusUnauthorized,
		Code:        "token_revoked",
		Description: "The token has been revoked.",
	}
	FreshnessRequired = &Rejection{
		Status:      http.StatusUnauthorized,
		Code:        "fresh_token_required",
		Description: "The token is not fresh.",
	}
	AdminRequired = &Rejection{
		Status:      http.StatusUnauthorized,
		Code:        "admin_required",
		Description: "Admin privilege required.",
	}
	InvalidCredentials = &Rejection{
		Status:      http.StatusUnauthorized,
		Code:        "invalid_credentials",
		Description: "Invalid credentials.",
	}
	LoginLocked = &Rejection{
		Status:      http.StatusTooManyRequests,
		Code:        "login_locked",
		Description: "Login temporarily locked.",
	}
	RateLimited = &Rejection{
		Status:      http.StatusTooManyRequests,
		Code:        "rate_limited",
		Description: "Too many login attempts.",
	}
	RevocationUnavailable = &Rejection{
		Status:      http.StatusInternalServerError,
		Code:        "internal_error",
		Description: "Could not verify the token.",
	}
)

func writeRejection(w http.ResponseWriter, rejection *Rejection) {
	writeJSON(w, rejection.Status, rejection)
}
