package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hashicorp/go-retryablehttp"
)

// expiryLeeway is subtracted from a token's lifetime so a request never goes
// out with a token about to expire mid-flight.
const expiryLeeway = time.Minute

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginAuthenticator obtains JWTs from the auth service's login endpoint and
// caches them until shortly before their exp claim. Safe for concurrent use.
type LoginAuthenticator struct {
	client   *retryablehttp.Client
	endpoint *url.URL
	username string
	password string
	now      func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

// NewLoginAuthenticator creates an authenticator logging in at
// endpoint/login with the given credentials.
func NewLoginAuthenticator(endpoint *url.URL, username, password string, timeout time.Duration) *LoginAuthenticator {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = 2
	client.HTTPClient.Timeout = timeout
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &LoginAuthenticator{
		client:   client,
		endpoint: endpoint,
		username: username,
		password: password,
		now:      time.Now,
	}
}

func (a *LoginAuthenticator) Authenticate(ctx context.Context) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.token != "" && !a.expiresAt.IsZero() && a.now().Add(expiryLeeway).Before(a.expiresAt) {
		return a.token, nil
	}

	token, err := a.login(ctx)
	if err != nil {
		return "", err
	}
	a.token = token
	a.expiresAt = tokenExpiry(token)
	return token, nil
}

func (a *LoginAuthenticator) login(ctx context.Context) (string, error) {
	body, err := json.Marshal(credentials{Username: a.username, Password: a.password})
	if err != nil {
		return "", fmt.Errorf("failed to serialize credentials: %w", err)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, a.endpoint.JoinPath("login").String(), body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return "", fmt.Errorf("login rejected: %w", ErrUnauthorized)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("login failed with status %d", resp.StatusCode)
	}

	token := strings.TrimPrefix(resp.Header.Get("Authorization"), "Bearer ")
	if token == "" {
		return "", fmt.Errorf("login response carried no token")
	}
	return token, nil
}

// tokenExpiry reads the exp claim without verifying the signature: the client
// only needs it to decide when to log in again. Returns the zero time when
// the token is not a JWT or carries no expiry; such tokens are not cached.
func tokenExpiry(token string) time.Time {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}
	}
	if claims.ExpiresAt == nil {
		return time.Time{}
	}
	return claims.ExpiresAt.Time
}
