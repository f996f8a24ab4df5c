package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func issueToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return signed
}

func loginServer(t *testing.T, hits *atomic.Int64, respond func(w http.ResponseWriter)) *url.URL {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/login", r.URL.Path)

		var creds credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		if creds.Username != "alice" || creds.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		respond(w)
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return u
}

func TestLoginAuthenticator_ObtainsAndCachesToken(t *testing.T) {
	var hits atomic.Int64
	token := issueToken(t, time.Hour)
	endpoint := loginServer(t, &hits, func(w http.ResponseWriter) {
		w.Header().Set("Authorization", "Bearer "+token)
	})

	a := NewLoginAuthenticator(endpoint, "alice", "secret", 5*time.Second)
	ctx := context.Background()

	got, err := a.Authenticate(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, got)

	// Second call is served from the cache.
	got, err = a.Authenticate(ctx)
	require.NoError(t, err)
	assert.Equal(t, token, got)
	assert.Equal(t, int64(1), hits.Load())
}

func TestLoginAuthenticator_RefreshesExpiredToken(t *testing.T) {
	var hits atomic.Int64
	token := issueToken(t, time.Hour)
	endpoint := loginServer(t, &hits, func(w http.ResponseWriter) {
		w.Header().Set("Authorization", "Bearer "+token)
	})

	a := NewLoginAuthenticator(endpoint, "alice", "secret", 5*time.Second)
	ctx := context.Background()

	_, err := a.Authenticate(ctx)
	require.NoError(t, err)

	// Move the clock past the token's lifetime.
	a.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	_, err = a.Authenticate(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestLoginAuthenticator_BadCredentials(t *testing.T) {
	var hits atomic.Int64
	endpoint := loginServer(t, &hits, func(w http.ResponseWriter) {})

	a := NewLoginAuthenticator(endpoint, "alice", "wrong", 5*time.Second)

	_, err := a.Authenticate(context.Background())
	require.ErrorIs(t, err, ErrUnauthorized)
}

func TestLoginAuthenticator_MissingToken(t *testing.T) {
	var hits atomic.Int64
	endpoint := loginServer(t, &hits, func(w http.ResponseWriter) {
		w.WriteHeader(http.StatusOK)
	})

	a := NewLoginAuthenticator(endpoint, "alice", "secret", 5*time.Second)

	_, err := a.Authenticate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no token")
}

func TestStatic_ReturnsFixedToken(t *testing.T) {
	got, err := Static{Token: "abc"}.Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
}

func TestTokenExpiry_NonJWT(t *testing.T) {
	assert.True(t, tokenExpiry("opaque-token").IsZero())
}
