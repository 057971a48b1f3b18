package identity

import (
	"time"

	"github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/infrastructure/auth"
)

// SignUpInput contains the input for email sign-up
type SignUpInput struct {
	Email    string
	Password string
}

// SignInInput contains the input for email sign-in
type SignInInput struct {
	Email    string
	Password string
}

// OAuthInput contains a federated provider credential
type OAuthInput struct {
	Provider   string
	Credential string
}

// PhoneVerifierInput carries the client's solved human check
type PhoneVerifierInput struct {
	Phone             string
	ChallengeResponse string
	RemoteIP          string
}

// PhoneStartInput starts a phone sign-in
type PhoneStartInput struct {
	Phone         string
	VerifierToken string
}

// PhoneStartResult identifies the pending confirmation
type PhoneStartResult struct {
	ConfirmationID string
	ExpiresAt      time.Time
}

// PhoneConfirmInput completes a phone sign-in
type PhoneConfirmInput struct {
	ConfirmationID string
	Code           string
}

// VerifierResult is a human-check token bound to a phone number
type VerifierResult struct {
	Token     string
	ExpiresAt time.Time
}

// SignOutInput identifies the tokens to revoke. RefreshToken is optional.
type SignOutInput struct {
	Claims       *auth.Claims
	RefreshToken string
}

// UpdateProfileInput is a partial profile update; nil fields are untouched
type UpdateProfileInput struct {
	DisplayName *string
	PhotoURL    *string
}

// AuthResult is returned by every successful sign-in path
type AuthResult struct {
	Tokens     *auth.TokenPair
	User       session.User
	NewAccount bool
}
