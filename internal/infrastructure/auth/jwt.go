// Package auth issues and validates session tokens and holds the credential
// helpers of the identity provider: token revocation, phone one-time codes,
// sign-in verifier tokens and Google ID token verification.
package auth

import (
	"cmp"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/medistore/backend/internal/infrastructure/config"
)

// TokenType represents the type of JWT token
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrTokenRevoked     = errors.New("token has been revoked")
)

// Claims are the session token claims. Subject carries the user ID and
// SessionID the sign-in the token descends from; it survives refreshes.
type Claims struct {
	jwt.RegisteredClaims
	SessionID   string    `json:"sid"`
	Email       string    `json:"email,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	DisplayName string    `json:"name,omitempty"`
	TokenType   TokenType `json:"token_type"`
}

// UserID returns the subject as a UUID
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// IssuedAtTime returns iat, or the zero time
func (c *Claims) IssuedAtTime() time.Time {
	if c.IssuedAt == nil {
		return time.Time{}
	}
	return c.IssuedAt.Time
}

// RemainingTTL returns the time left before expiry at now, never negative
func (c *Claims) RemainingTTL(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// TokenPair represents an access and refresh token pair
type TokenPair struct {
	AccessToken           string    `json:"access_token"`
	RefreshToken          string    `json:"refresh_token"`
	AccessTokenExpiresAt  time.Time `json:"access_token_expires_at"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	TokenType             string    `json:"token_type"`
}

// TokenSubject is what a token pair is issued for. An empty SessionID
// starts a new session.
type TokenSubject struct {
	UserID      uuid.UUID
	SessionID   string
	Email       string
	Phone       string
	DisplayName string
}

// tokenProfile is how one kind of token is signed and how long it lives
type tokenProfile struct {
	kind   TokenType
	secret []byte
	ttl    time.Duration
}

// JWTService signs and validates HS256 session tokens. Access and refresh
// tokens use separate secrets when a refresh secret is configured.
type JWTService struct {
	access  tokenProfile
	refresh tokenProfile
	issuer  string
	now     func() time.Time
}

// NewJWTService creates a JWT service from cfg
func NewJWTService(cfg config.JWTConfig) *JWTService {
	refreshSecret := cmp.Or(cfg.RefreshSecret, cfg.Secret)
	return &JWTService{
		access:  tokenProfile{kind: TokenTypeAccess, secret: []byte(cfg.Secret), ttl: cfg.AccessTokenExpiration},
		refresh: tokenProfile{kind: TokenTypeRefresh, secret: []byte(refreshSecret), ttl: cfg.RefreshTokenExpiration},
		issuer:  cfg.Issuer,
		now:     time.Now,
	}
}

// WithClock returns a copy of the service using now for timestamps
func (s *JWTService) WithClock(now func() time.Time) *JWTService {
	cp := *s
	cp.now = now
	return &cp
}

// GenerateTokenPair issues a fresh access and refresh token for sub.
// Only the access token carries profile claims.
func (s *JWTService) GenerateTokenPair(sub TokenSubject) (*TokenPair, error) {
	if sub.UserID == uuid.Nil {
		return nil, ErrInvalidClaims
	}
	if sub.SessionID == "" {
		sub.SessionID = uuid.NewString()
	}
	now := s.now()
	access, accessExp, err := s.issue(s.access, now, sub)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := s.issue(s.refresh, now, TokenSubject{UserID: sub.UserID, SessionID: sub.SessionID})
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:           access,
		RefreshToken:          refresh,
		AccessTokenExpiresAt:  accessExp,
		RefreshTokenExpiresAt: refreshExp,
		TokenType:             "Bearer",
	}, nil
}

func (s *JWTService) issue(p tokenProfile, now time.Time, sub TokenSubject) (string, time.Time, error) {
	exp := now.Add(p.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   sub.UserID.String(),
			Audience:  jwt.ClaimStrings{s.issuer},
			ExpiresAt: jwt.NewNumericDate(exp),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		SessionID:   sub.SessionID,
		Email:       sub.Email,
		Phone:       sub.Phone,
		DisplayName: sub.DisplayName,
		TokenType:   p.kind,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign %s token: %w", p.kind, err)
	}
	return signed, exp, nil
}

// RefreshTokenTTL is how long a session can last without signing in again
func (s *JWTService) RefreshTokenTTL() time.Duration {
	return s.refresh.ttl
}

// ValidateAccessToken validates an access token and returns its claims
func (s *JWTService) ValidateAccessToken(token string) (*Claims, error) {
	return s.parse(token, s.access)
}

// ValidateRefreshToken validates a refresh token and returns its claims
func (s *JWTService) ValidateRefreshToken(token string) (*Claims, error) {
	return s.parse(token, s.refresh)
}

func (s *JWTService) parse(raw string, p tokenProfile) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.issuer),
		jwt.WithTimeFunc(s.now),
	)
	claims := &Claims{}
	_, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return p.secret, nil })
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpiredToken
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return nil, ErrTokenNotYetValid
	case err != nil:
		return nil, ErrInvalidToken
	case claims.TokenType != p.kind:
		return nil, ErrInvalidTokenType
	case claims.ID == "", claims.SessionID == "":
		return nil, ErrInvalidClaims
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidClaims
	}
	return claims, nil
}
