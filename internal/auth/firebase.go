// Package auth verifies Firebase ID tokens and carries the resulting user
// identity through request contexts.
package auth

import (
	"context"
	"fmt"
	"os"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"
)

// FirebaseAuth handles Firebase authentication.
type FirebaseAuth struct {
	client *auth.Client
}

// UserClaims represents the authenticated user information.
type UserClaims struct {
	UID         string
	Email       string
	DisplayName string
	Verified    bool
}

// NewFirebaseAuth creates a new FirebaseAuth instance. On Cloud Run the
// default credentials work automatically; locally a service account key
// path may be supplied via environment.
func NewFirebaseAuth(ctx context.Context) (*FirebaseAuth, error) {
	opts := []option.ClientOption{}
	if creds := serviceAccountPath(); creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("error initializing app: %w", err)
	}

	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting Auth client: %w", err)
	}

	return &FirebaseAuth{client: client}, nil
}

// VerifyToken verifies a Firebase ID token and returns user claims.
func (f *FirebaseAuth) VerifyToken(ctx context.Context, idToken string) (*UserClaims, error) {
	token, err := f.client.VerifyIDToken(ctx, idToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	verified, _ := token.Claims["email_verified"].(bool)
	claims := &UserClaims{
		UID:      token.UID,
		Verified: verified,
	}
	if email, ok := token.Claims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := token.Claims["name"].(string); ok {
		claims.DisplayName = name
	}
	return claims, nil
}

// ExtractTokenFromHeader extracts the Bearer token from an Authorization header.
func ExtractTokenFromHeader(authHeader string) (string, error) {
	if authHeader == "" {
		return "", fmt.Errorf("authorization header is required")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("authorization header must be Bearer token")
	}
	return parts[1], nil
}

// serviceAccountPath returns the path to a service account key file, if set.
func serviceAccountPath() string {
	for _, envVar := range []string{"GOOGLE_APPLICATION_CREDENTIALS", "FIREBASE_SERVICE_ACCOUNT_KEY"} {
		if path := os.Getenv(envVar); path != "" {
			return path
		}
	}
	return ""
}
