package auth

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"

	"store-api/internal/record"
	"store-api/internal/validation"
)

const maxJSONBodyBytes = 1 << 20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type credentialsRequest struct {
	Username string `json:"username" validate:"required,max=80"`
	Password string `json:"password" validate:"required,max=200"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"omitempty,max=4096"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if !decodeBody(w, r, &body, false) {
		return
	}

	if _, err := h.service.Register(r.Context(), body.Username, body.Password); err != nil {
		if errors.Is(err, ErrUsernameTaken) {
			writeMessage(w, http.StatusBadRequest, "A user with that username already exists")
			return
		}
		if errors.Is(err, ErrPasswordTooLong) {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"message": map[string]string{"password": "Must be at most 72 bytes long."},
			})
			return
		}
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred creating the user.")
		return
	}

	writeMessage(w, http.StatusCreated, "User created successfully.")
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body credentialsRequest
	if !decodeBody(w, r, &body, false) {
		return
	}

	tokens, err := h.service.Login(r.Context(), body.Username, body.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			writeRejection(w, InvalidCredentials)
			return
		}
		var lockedErr ErrLoginLocked
		if errors.As(err, &lockedErr) {
			retryAfter := int(time.Until(lockedErr.Until).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeRejection(w, LoginLocked)
			return
		}

		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred during login.")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		writeRejection(w, AuthRequired)
		return
	}

	tokens, err := h.service.Refresh(principal)
	if err != nil {
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred refreshing the token.")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFrom(r.Context())
	if !ok {
		writeRejection(w, AuthRequired)
		return
	}

	var body logoutRequest
	if !decodeBody(w, r, &body, true) {
		return
	}

	if err := h.service.Logout(r.Context(), principal, body.RefreshToken); err != nil {
		if errors.Is(err, ErrInvalidRefreshToken) {
			writeMessage(w, http.StatusBadRequest, "Invalid refresh token.")
			return
		}
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred during logout.")
		return
	}

	writeMessage(w, http.StatusOK, "Successfully logged out")
}

func (h *Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	user, err := h.service.FindUser(r.Context(), id)
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred loading the user.")
		return
	}

	writeJSON(w, http.StatusOK, user)
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := userID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		if errors.Is(err, record.ErrNotFound) {
			writeMessage(w, http.StatusNotFound, "User not found")
			return
		}
		sentry.CaptureException(err)
		writeMessage(w, http.StatusInternalServerError, "An error occurred deleting the user.")
		return
	}

	writeMessage(w, http.StatusOK, "User deleted")
}

func userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeMessage(w, http.StatusNotFound, "User not found")
		return 0, false
	}
	return id, true
}

// decodeBody reads a JSON body into dst and validates it. With optional set an
// empty body is accepted as the zero value.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			writeMessage(w, http.StatusBadRequest, "Invalid JSON body.")
			return false
		}
	}

	if details := validation.Struct(r.Context(), dst); details != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": details})
		return false
	}

	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
