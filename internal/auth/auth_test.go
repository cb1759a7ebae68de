package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var secret = []byte("admin-secret")

func protected(t *testing.T) http.Handler {
	return AdminOnly(secret, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(SubjectFromContext(r.Context())))
	}))
}

func call(h http.Handler, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/admin/orders", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestAdminOnly(t *testing.T) {
	h := protected(t)

	adminToken, err := IssueToken(secret, "ops@example.com", true, time.Hour)
	require.NoError(t, err)
	userToken, err := IssueToken(secret, "user@example.com", false, time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "ops@example.com", true, -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueToken([]byte("other"), "ops@example.com", true, time.Hour)
	require.NoError(t, err)
	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Admin: true}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		code   int
	}{
		{"admin", "Bearer " + adminToken, http.StatusOK},
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage", "Bearer abc.def", http.StatusUnauthorized},
		{"expired", "Bearer " + expired, http.StatusUnauthorized},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized},
		{"alg none", "Bearer " + none, http.StatusUnauthorized},
		{"not admin", "Bearer " + userToken, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := call(h, tc.header)
			assert.Equal(t, tc.code, rr.Code)
			if tc.code == http.StatusOK {
				assert.Equal(t, "ops@example.com", rr.Body.String())
			}
		})
	}
}

func TestAdminOnly_NoSecretRejectsEverything(t *testing.T) {
	token, err := IssueToken(secret, "ops@example.com", true, time.Hour)
	require.NoError(t, err)

	h := AdminOnly(nil, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be called")
	}))
	assert.Equal(t, http.StatusUnauthorized, call(h, "Bearer "+token).Code)

	_, err = IssueToken(nil, "x", true, time.Hour)
	assert.ErrorIs(t, err, ErrNoSecret)
}
