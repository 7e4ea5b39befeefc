package maintenance

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"store-api/internal/observability"
	"store-api/internal/revocation"
)

const defaultLockoutRetention = 30 * 24 * time.Hour

type AttemptCleaner interface {
	PurgeStale(ctx context.Context, before time.Time, limit int) (int64, error)
}

type CleanupResult struct {
	DeletedRevokedTokens int64 `json:"deleted_revoked_tokens"`
	DeletedLoginAttempts int64 `json:"deleted_login_attempts"`
}

// CleanupHandler lets an external scheduler trigger the same purge the
// in-process sweeper runs. Either collaborator may be nil.
type CleanupHandler struct {
	purger                revocation.Purger
	attempts              AttemptCleaner
	logger                *observability.Logger
	cronSecret            string
	loginAttemptRetention time.Duration
	batchSize             int
}

func NewCleanupHandler(
	purger revocation.Purger,
	attempts AttemptCleaner,
	logger *observability.Logger,
	cronSecret string,
	loginAttemptRetention time.Duration,
	batchSize int,
) *CleanupHandler {
	return &CleanupHandler{
		purger:                purger,
		attempts:              attempts,
		logger:                logger,
		cronSecret:            strings.TrimSpace(cronSecret),
		loginAttemptRetention: loginAttemptRetention,
		batchSize:             batchSize,
	}
}

func (h *CleanupHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.cronSecret == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "not found"})
		return
	}

	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || !h.secretMatches(strings.TrimSpace(parts[1])) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "unauthorized"})
		return
	}

	result, err := h.Run(r.Context(), time.Now().UTC())
	if err != nil {
		h.logger.Error("cleanup_failed", map[string]any{"error": err.Error()})
		observability.CaptureError("maintenance_cleanup", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "cleanup failed"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"result": result,
	})
}

func (h *CleanupHandler) secretMatches(candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(candidate), []byte(h.cronSecret)) == 1
}

func (h *CleanupHandler) Run(ctx context.Context, now time.Time) (CleanupResult, error) {
	var result CleanupResult

	if h.purger != nil {
		deleted, err := h.purger.Purge(ctx, now)
		if err != nil {
			return result, err
		}
		result.DeletedRevokedTokens = deleted
	}

	if h.attempts != nil {
		retention := h.loginAttemptRetention
		if retention <= 0 {
			retention = defaultLockoutRetention
		}
		deleted, err := h.attempts.PurgeStale(ctx, now.Add(-retention), h.batchSize)
		if err != nil {
			return result, err
		}
		result.DeletedLoginAttempts = deleted
	}

	h.logger.Info("cleanup_completed", map[string]any{
		"deleted_revoked_tokens": result.DeletedRevokedTokens,
		"deleted_login_attempts": result.DeletedLoginAttempts,
	})

	return result, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
