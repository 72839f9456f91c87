package middleware

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/pbkdf2"

	"github.com/wagerhouse/bookd/internal/auth"
)

// hashWith builds a stored hash at a low iteration count so verification
// stays cheap in tests.
func hashWith(key string) string {
	salt := []byte("0123456789abcdef")
	digest := pbkdf2.Key([]byte(key), salt, 100, 32, sha256.New)
	return fmt.Sprintf("pbkdf2:sha256:100:%s:%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest))
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// actorEcho records the actor the middleware installed on the context.
func actorEcho(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = auth.ActorFrom(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireRoleBearerToken(t *testing.T) {
	ring := auth.NewKeyring(hashWith("root"), hashWith("feed"), "")
	var actor string
	h := RequireRole(ring, auth.RoleOdds, testLogger())(actorEcho(&actor))

	req := httptest.NewRequest(http.MethodPut, "/api/markets/mkt_1/odds", nil)
	req.Header.Set("Authorization", "Bearer feed")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "odds", actor)
}

func TestRequireRoleXAPIKey(t *testing.T) {
	ring := auth.NewKeyring(hashWith("root"), hashWith("feed"), "")
	var actor string
	h := RequireRole(ring, auth.RoleOdds, testLogger())(actorEcho(&actor))

	req := httptest.NewRequest(http.MethodPut, "/api/markets/mkt_1/odds", nil)
	req.Header.Set("X-API-Key", "feed")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "odds", actor)
}

func TestRequireRoleAdminKeyOpensOtherSurfaces(t *testing.T) {
	ring := auth.NewKeyring(hashWith("root"), hashWith("feed"), "")
	var actor string
	h := RequireRole(ring, auth.RoleOdds, testLogger())(actorEcho(&actor))

	req := httptest.NewRequest(http.MethodPut, "/api/markets/mkt_1/odds", nil)
	req.Header.Set("X-API-Key", "root")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	// The audit trail names the admin, not the surface they drove.
	require.Equal(t, "admin", actor)
}

func TestRequireRoleRejects(t *testing.T) {
	ring := auth.NewKeyring(hashWith("root"), hashWith("feed"), "")
	var actor string
	h := RequireRole(ring, auth.RoleOdds, testLogger())(actorEcho(&actor))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/api/markets/mkt_1/odds", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	req := httptest.NewRequest(http.MethodPut, "/api/markets/mkt_1/odds", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	require.Empty(t, actor)
}

func TestRequireRoleDisabledPassesThrough(t *testing.T) {
	// No results key configured: the surface stays open and the role
	// name stands in as the actor.
	ring := auth.NewKeyring(hashWith("root"), hashWith("feed"), "")
	var actor string
	h := RequireRole(ring, auth.RoleResults, testLogger())(actorEcho(&actor))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/markets/mkt_1/settle", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Equal(t, "results", actor)
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, extractToken(req))

	req.Header.Set("Authorization", "bearer  abc ")
	require.Equal(t, "abc", extractToken(req))

	req.Header.Set("Authorization", "Basic abc")
	req.Header.Set("X-API-Key", " xyz ")
	require.Equal(t, "xyz", extractToken(req))
}
