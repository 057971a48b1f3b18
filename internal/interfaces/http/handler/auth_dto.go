package handler

import (
	"time"

	"github.com/medistore/backend/internal/application/identity"
	"github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/infrastructure/auth"
)

// SignUpRequest is the body of POST /auth/signup
type SignUpRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// OAuthRequest carries the provider credential, e.g. a Google ID token
type OAuthRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// PhoneVerifierRequest asks for a human-check token
type PhoneVerifierRequest struct {
	Phone             string `json:"phone" binding:"required,phone"`
	ChallengeResponse string `json:"challenge_response" binding:"max=4096"` // reCAPTCHA or hCaptcha token
}

// PhoneStartRequest starts a phone sign-in
type PhoneStartRequest struct {
	Phone         string `json:"phone" binding:"required,phone"`
	VerifierToken string `json:"verifier_token" binding:"required"`
}

// PhoneConfirmRequest confirms a phone sign-in
type PhoneConfirmRequest struct {
	ConfirmationID string `json:"confirmation_id" binding:"required,uuid"`
	Code           string `json:"code" binding:"required,numeric,min=4,max=10"`
}

// RefreshTokenRequest carries a refresh token
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// LogoutRequest optionally carries the refresh token to revoke with the
// access token
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// UpdateProfileRequest is a partial update of the identity profile
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,max=100"`
	PhotoURL    *string `json:"photo_url" binding:"omitempty,url,max=2048"`
}

// AuthResponse is returned by every sign-in endpoint
type AuthResponse struct {
	Token      *auth.TokenPair `json:"token"`
	User       session.User    `json:"user"`
	NewAccount bool            `json:"new_account"`
}

func newAuthResponse(r *identity.AuthResult) AuthResponse {
	return AuthResponse{Token: r.Tokens, User: r.User, NewAccount: r.NewAccount}
}

// VerifierResponse carries a phone verifier token
type VerifierResponse struct {
	VerifierToken string    `json:"verifier_token"`
	ExpiresAt     time.Time `json:"expires_at"`
}

// PhoneStartResponse identifies the pending phone confirmation
type PhoneStartResponse struct {
	ConfirmationID string    `json:"confirmation_id"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// RefreshTokenResponse carries the rotated pair
type RefreshTokenResponse struct {
	Token *auth.TokenPair `json:"token"`
}

// LogoutResponse confirms the sign-out
type LogoutResponse struct {
	Message string `json:"message"`
}
