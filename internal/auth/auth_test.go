package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func protected(perm Permission) http.Handler {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c := ClaimsFromContext(r.Context())
		w.Write([]byte(c.Subject))
	})
	return NewJWTMiddleware(secret).Authenticate(RequirePermission(perm)(ok))
}

func do(t *testing.T, h http.Handler, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticate(t *testing.T) {
	reader, err := IssueToken(secret, "alice", RoleReader, time.Hour)
	require.NoError(t, err)
	noExpiry, err := IssueToken(secret, "alice", RoleReader, 0)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "alice", RoleReader, time.Nanosecond)
	require.NoError(t, err)
	forged, err := IssueToken("other-secret", "alice", RoleAdmin, time.Hour)
	require.NoError(t, err)
	anonymous, err := IssueToken(secret, "", RoleAdmin, time.Hour)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"valid", reader, http.StatusOK},
		{"no expiry", noExpiry, http.StatusOK},
		{"expired", expired, http.StatusUnauthorized},
		{"missing", "", http.StatusUnauthorized},
		{"wrong secret", forged, http.StatusUnauthorized},
		{"no subject", anonymous, http.StatusUnauthorized},
		{"garbage", "abc.def.ghi", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, protected(PermQuery), tt.token)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRequirePermission(t *testing.T) {
	reader, err := IssueToken(secret, "r", RoleReader, time.Hour)
	require.NoError(t, err)
	editor, err := IssueToken(secret, "e", RoleEditor, time.Hour)
	require.NoError(t, err)
	admin, err := IssueToken(secret, "a", RoleAdmin, time.Hour)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(t, protected(PermIngest), reader).Code)

	rec := do(t, protected(PermIngest), editor)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "e", rec.Body.String())

	assert.Equal(t, http.StatusOK, do(t, protected(PermIngest), admin).Code)
}

func TestRole_Can(t *testing.T) {
	assert.True(t, RoleReader.Can(PermQuery))
	assert.False(t, RoleReader.Can(PermIngest))
	assert.True(t, RoleAdmin.Can(PermIngest))
	assert.False(t, Role("guest").Can(PermQuery))
}
