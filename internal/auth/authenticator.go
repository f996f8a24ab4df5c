// Package auth provides the bearer tokens the upload protocol attaches to
// every collector request.
package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when the auth service rejects the credentials.
var ErrUnauthorized = errors.New("unauthorized")

// Authenticator yields a bearer token for one outgoing request.
// Implementations may cache tokens but must return one that is expected to be
// accepted right now.
type Authenticator interface {
	Authenticate(ctx context.Context) (string, error)
}

// Static always returns a fixed, pre-provisioned token.
type Static struct {
	Token string
}

func (s Static) Authenticate(ctx context.Context) (string, error) {
	return s.Token, nil
}
