package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"buildmarket/internal/auth"

	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func protected(t *testing.T, gotID *int) http.Handler {
	t.Helper()
	return auth.Middleware(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := auth.UserID(r.Context())
		require.True(t, ok)
		*gotID = id
		w.WriteHeader(http.StatusOK)
	}))
}

func TestMiddlewarePassesValidToken(t *testing.T) {
	token, err := auth.IssueToken(testSecret, 42, time.Hour)
	require.NoError(t, err)

	var gotID int
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	protected(t, &gotID).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Equal(t, 42, gotID)
}

func TestMiddlewareAcceptsRawToken(t *testing.T) {
	token, err := auth.IssueToken(testSecret, 7, time.Hour)
	require.NoError(t, err)

	var gotID int
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", token)
	w := httptest.NewRecorder()

	protected(t, &gotID).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Result().StatusCode)
	require.Equal(t, 7, gotID)
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	var gotID int
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	w := httptest.NewRecorder()

	protected(t, &gotID).ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
	require.Zero(t, gotID)
}

func TestMiddlewareRejectsWrongSecret(t *testing.T) {
	token, err := auth.IssueToken("other-secret", 42, time.Hour)
	require.NoError(t, err)

	var gotID int
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	protected(t, &gotID).ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
}

func TestMiddlewareRejectsExpiredToken(t *testing.T) {
	token, err := auth.IssueToken(testSecret, 42, -time.Minute)
	require.NoError(t, err)

	var gotID int
	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	protected(t, &gotID).ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Result().StatusCode)
}
