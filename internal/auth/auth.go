// Package auth verifies bearer credentials and issues self-signed tokens.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthenticated    = errors.New("authentication required")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrServiceUnavailable = errors.New("authentication service unavailable")
)

// Identity is the caller a credential was issued to.
type Identity struct {
	UserID string
	Email  string
	Name   string
	// External is set when the user was authenticated by a third-party
	// provider and may not have a local account yet.
	External bool
}

// Verifier turns a bearer token into an Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// Issuer signs tokens for local accounts.
type Issuer interface {
	Issue(userID string) (string, error)
}

// TokenFromHeader extracts the token from an "Authorization: Bearer <token>"
// header value.
func TokenFromHeader(header string) (string, error) {
	if header == "" {
		return "", ErrUnauthenticated
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrUnauthenticated
	}
	return token, nil
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// Unavailable stands in for a verifier that could not be built at startup.
// Every call fails with ErrServiceUnavailable, wrapping Reason when set.
type Unavailable struct {
	Reason error
}

func (u Unavailable) Verify(context.Context, string) (Identity, error) {
	if u.Reason == nil {
		return Identity{}, ErrServiceUnavailable
	}
	return Identity{}, fmt.Errorf("%w: %v", ErrServiceUnavailable, u.Reason)
}
