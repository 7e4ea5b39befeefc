package auth

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, f serviceFixture) http.Handler {
	t.Helper()
	h := NewHandler(f.service)
	guard := NewGuard(f.tokens, f.registry, discardLogger())
	mux := http.NewServeMux()
	guard.Mount(mux, []Route{
		{Pattern: "POST /register", Handler: h.Register},
		{Pattern: "POST /login", Handler: h.Login},
		{Pattern: "POST /refresh", Rule: Rule{Mode: ModeRefresh}, Handler: h.Refresh},
		{Pattern: "POST /logout", Rule: Rule{Mode: ModeRequired}, Handler: h.Logout},
		{Pattern: "GET /user/{id}", Handler: h.GetUser},
		{Pattern: "DELETE /user/{id}", Handler: h.DeleteUser},
	})
	return mux
}

func doJSON(t *testing.T, router http.Handler, method, path, bearer, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRegisterHandler(t *testing.T) {
	router := newTestRouter(t, newServiceFixture(t))

	rec := doJSON(t, router, http.MethodPost, "/register", "", `{"username":"alice","password":"secret1"}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"User created successfully."}`, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/register", "", `{"username":"alice","password":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"A user with that username already exists"}`, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/register", "", `{"username":"bob"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":{"password":"This field cannot be left blank!"}}`, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/register", "", `{"username":"bob","password":"x","extra":1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid JSON body."}`, rec.Body.String())
}

func TestRegisterHandlerPasswordByteLimit(t *testing.T) {
	router := newTestRouter(t, newServiceFixture(t))

	tests := []struct {
		name     string
		password string
		status   int
	}{
		{"AtLimit", strings.Repeat("a", 72), http.StatusCreated},
		{"ASCIIOverLimit", strings.Repeat("a", 73), http.StatusBadRequest},
		{"MultiByteOverLimit", strings.Repeat("é", 40), http.StatusBadRequest},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, err := json.Marshal(map[string]string{"username": "user" + strconv.Itoa(i), "password": tt.password})
			require.NoError(t, err)

			rec := doJSON(t, router, http.MethodPost, "/register", "", string(body))
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusBadRequest {
				assert.JSONEq(t, `{"message":{"password":"Must be at most 72 bytes long."}}`, rec.Body.String())
			}
		})
	}
}

func TestLoginHandler(t *testing.T) {
	f := newServiceFixture(t)
	router := newTestRouter(t, f)
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/register", "", `{"username":"alice","password":"secret1"}`).Code)

	t.Run("InvalidCredentials", func(t *testing.T) {
		wrong := doJSON(t, router, http.MethodPost, "/login", "", `{"username":"alice","password":"wrong"}`)
		unknown := doJSON(t, router, http.MethodPost, "/login", "", `{"username":"nobody","password":"secret1"}`)

		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, wrong.Code, unknown.Code)
		assert.Equal(t, wrong.Body.String(), unknown.Body.String())
		assert.JSONEq(t, `{"error":"invalid_credentials","description":"Invalid credentials."}`, wrong.Body.String())
	})

	t.Run("Success", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/login", "", `{"username":"alice","password":"secret1"}`)
		require.Equal(t, http.StatusOK, rec.Code)

		var pair Tokens
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
		assert.NotEmpty(t, pair.AccessToken)
		assert.NotEmpty(t, pair.RefreshToken)
		assert.Equal(t, "Bearer", pair.TokenType)
	})
}

func TestLoginHandlerLocked(t *testing.T) {
	f := newServiceFixture(t)
	f.service.WithLockout(newMemoryLockouts(), 1, time.Minute)
	router := newTestRouter(t, f)

	rec := doJSON(t, router, http.MethodPost, "/login", "", `{"username":"alice","password":"wrong"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "login_locked", decodeRejection(t, rec)["error"])
}

func TestRefreshAndLogoutHandlers(t *testing.T) {
	f := newServiceFixture(t)
	router := newTestRouter(t, f)

	access, err := f.tokens.IssueAccess(1, true)
	require.NoError(t, err)
	refresh, err := f.tokens.IssueRefresh(1)
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/refresh", refresh.Raw, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var pair Tokens
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pair))
	assert.Empty(t, pair.RefreshToken)
	minted, err := f.tokens.Decode(pair.AccessToken)
	require.NoError(t, err)
	assert.False(t, minted.Fresh)

	rec = doJSON(t, router, http.MethodPost, "/logout", access.Raw, `{"refresh_token":"`+refresh.Raw+`"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Successfully logged out"}`, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/refresh", refresh.Raw, "")
	assert.Equal(t, "token_revoked", decodeRejection(t, rec)["error"])

	rec = doJSON(t, router, http.MethodPost, "/logout", access.Raw, "")
	assert.Equal(t, "token_revoked", decodeRejection(t, rec)["error"])
}

func TestLogoutHandlerRejectsForeignRefresh(t *testing.T) {
	f := newServiceFixture(t)
	router := newTestRouter(t, f)

	access, err := f.tokens.IssueAccess(1, true)
	require.NoError(t, err)
	foreign, err := f.tokens.IssueRefresh(2)
	require.NoError(t, err)

	rec := doJSON(t, router, http.MethodPost, "/logout", access.Raw, `{"refresh_token":"`+foreign.Raw+`"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"message":"Invalid refresh token."}`, rec.Body.String())
}

func TestUserHandlers(t *testing.T) {
	f := newServiceFixture(t)
	router := newTestRouter(t, f)
	require.Equal(t, http.StatusCreated, doJSON(t, router, http.MethodPost, "/register", "", `{"username":"alice","password":"secret1"}`).Code)

	rec := doJSON(t, router, http.MethodGet, "/user/1", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var user map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "alice", user["username"])
	assert.NotContains(t, user, "PasswordHash")
	assert.NotContains(t, user, "password_hash")

	for _, path := range []string{"/user/99", "/user/abc"} {
		rec = doJSON(t, router, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		assert.JSONEq(t, `{"message":"User not found"}`, rec.Body.String(), path)
	}

	rec = doJSON(t, router, http.MethodDelete, "/user/1", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"User deleted"}`, rec.Body.String())

	rec = doJSON(t, router, http.MethodDelete, "/user/1", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
