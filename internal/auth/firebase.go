package auth

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"tweet-quiz-service/internal/domain"
)

// FirebaseVerifier verifies Firebase ID tokens obtained by the browser through
// Google sign-in.
type FirebaseVerifier struct {
	client *fbauth.Client
}

// NewFirebaseVerifier initializes the Firebase Admin SDK from a service account file.
func NewFirebaseVerifier(ctx context.Context, credentialsPath string) (*FirebaseVerifier, error) {
	if credentialsPath == "" {
		return nil, fmt.Errorf("firebase credentials path is required")
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("get firebase auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, credential string) (domain.Identity, time.Time, error) {
	token, err := v.client.VerifyIDToken(ctx, credential)
	if err != nil {
		return domain.Identity{}, time.Time{}, fmt.Errorf("%w: %v", domain.ErrInvalidCredential, err)
	}
	identity := domain.Identity{ID: token.UID}
	if name, ok := token.Claims["name"].(string); ok {
		identity.DisplayName = name
	}
	if email, ok := token.Claims["email"].(string); ok {
		identity.Email = email
	}
	if picture, ok := token.Claims["picture"].(string); ok {
		identity.PictureURL = picture
	}
	return identity, time.Unix(token.Expires, 0), nil
}
