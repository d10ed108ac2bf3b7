package session

import (
	"context"
	"strings"
)

// Credentials are what a sign-in form collects.
type Credentials struct {
	Name     string
	Email    string
	Password string
}

// IdentityProvider turns credentials into a sign-in payload.
type IdentityProvider interface {
	Name() string
	Authenticate(ctx context.Context, creds Credentials) (Payload, error)
}

// guestName is used when neither a name nor an email was entered.
const guestName = "Guest"

// MockPasswordProvider accepts any credentials. The password is never
// checked or stored.
type MockPasswordProvider struct{}

func (MockPasswordProvider) Name() string { return ProviderPassword }

// Authenticate names the user after the entered name, else the email, else
// "Guest".
func (MockPasswordProvider) Authenticate(_ context.Context, creds Credentials) (Payload, error) {
	email := strings.TrimSpace(creds.Email)
	name := strings.TrimSpace(creds.Name)
	if name == "" {
		name = email
	}
	if name == "" {
		name = guestName
	}
	return Payload{Name: name, Email: email, Provider: ProviderPassword}, nil
}

// MockGoogleProvider returns a fixed placeholder identity.
type MockGoogleProvider struct{}

func (MockGoogleProvider) Name() string { return ProviderGoogle }

func (MockGoogleProvider) Authenticate(context.Context, Credentials) (Payload, error) {
	return Payload{
		Name:     "Google User",
		Email:    "google-user@example.com",
		Provider: ProviderGoogle,
	}, nil
}

// defaultSignUpName is used when the sign-up form leaves the name blank.
const defaultSignUpName = "User"

// SignUpPayload builds a password sign-up payload from form input.
func SignUpPayload(creds Credentials) Payload {
	name := strings.TrimSpace(creds.Name)
	if name == "" {
		name = defaultSignUpName
	}
	return Payload{Name: name, Email: strings.TrimSpace(creds.Email), Provider: ProviderPassword}
}
