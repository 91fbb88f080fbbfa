package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// Firebase verifies ID tokens minted by Firebase Authentication.
type Firebase struct {
	client idTokenVerifier
}

// NewFirebase builds a verifier from a service account file. projectID may be
// empty when the service account carries it.
func NewFirebase(ctx context.Context, credentialsFile, projectID string) (*Firebase, error) {
	if credentialsFile == "" {
		return nil, errors.New("firebase service account path is empty")
	}
	var conf *firebase.Config
	if projectID != "" {
		conf = &firebase.Config{ProjectID: projectID}
	}
	app, err := firebase.NewApp(ctx, conf, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase auth: %w", err)
	}
	return &Firebase{client: client}, nil
}

func (f *Firebase) Verify(ctx context.Context, token string) (Identity, error) {
	tok, err := f.client.VerifyIDToken(ctx, token)
	if err != nil {
		return Identity{}, classifyFirebaseError(err)
	}
	id := Identity{UserID: tok.UID, External: true}
	id.Email, _ = tok.Claims["email"].(string)
	id.Name, _ = tok.Claims["name"].(string)
	return id, nil
}

// classifyFirebaseError separates bad tokens from failures to reach the key
// endpoint.
func classifyFirebaseError(err error) error {
	if fbauth.IsIDTokenExpired(err) || fbauth.IsIDTokenInvalid(err) {
		return ErrInvalidToken
	}
	var netErr net.Error
	var urlErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return ErrInvalidToken
}
