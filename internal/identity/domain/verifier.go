package domain

import "context"

// Verifier exchanges a request credential for a verified provider profile.
type Verifier interface {
	VerifyToken(ctx context.Context, kind TokenKind, value string, mode Mode) (ExternalProfile, error)
}

// PasswordAuthenticator checks email and password with the provider.
type PasswordAuthenticator interface {
	AuthenticatePassword(ctx context.Context, creds Credentials, mode Mode) (ExternalProfile, error)
}
