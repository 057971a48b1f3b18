package auth

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/medistore/backend/internal/domain/shared"
)

var (
	// ErrVerifierRejected is returned when a phone sign-in verifier token
	// is forged, expired, bound to another phone or already used
	ErrVerifierRejected = errors.New("verifier rejected")
	// ErrChallengeFailed is returned when the human check was not passed
	ErrChallengeFailed = errors.New("challenge failed")
	// ErrChallengeUnavailable is returned when the challenge provider
	// cannot be asked
	ErrChallengeUnavailable = errors.New("challenge provider unavailable")
)

// PhoneVerifier gates phone sign-in. Issue trades a solved challenge for a
// token bound to one phone number; Verify accepts that token once.
type PhoneVerifier interface {
	Issue(ctx context.Context, phone, challengeResponse, remoteIP string) (token string, expiresAt time.Time, err error)
	Verify(ctx context.Context, token, phone string) error
}

// HMACVerifier issues tokens of the form "<unix-expiry>.<nonce>.<mac>".
// Spent tokens are reserved in used until they expire.
type HMACVerifier struct {
	secret    []byte
	ttl       time.Duration
	challenge ChallengeVerifier
	used      shared.IdempotencyStore
	now       func() time.Time
}

// NewHMACVerifier creates a verifier whose tokens are valid for ttl
func NewHMACVerifier(secret string, ttl time.Duration, challenge ChallengeVerifier, used shared.IdempotencyStore) *HMACVerifier {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &HMACVerifier{secret: []byte(secret), ttl: ttl, challenge: challenge, used: used, now: time.Now}
}

func (v *HMACVerifier) mac(phone, exp, nonce string) string {
	h := hmac.New(sha256.New, v.secret)
	for _, part := range []string{phone, exp, nonce} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}

// Issue checks the challenge response and returns a token for phone
func (v *HMACVerifier) Issue(ctx context.Context, phone, challengeResponse, remoteIP string) (string, time.Time, error) {
	if err := v.challenge.Check(ctx, challengeResponse, remoteIP); err != nil {
		return "", time.Time{}, err
	}
	var raw [12]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate nonce: %w", err)
	}
	nonce := base64.RawURLEncoding.EncodeToString(raw[:])
	expiresAt := v.now().Add(v.ttl).Truncate(time.Second)
	exp := strconv.FormatInt(expiresAt.Unix(), 10)
	return exp + "." + nonce + "." + v.mac(phone, exp, nonce), expiresAt, nil
}

// Verify checks the token's MAC and expiry and spends it. A store failure
// is returned as is, so callers can tell it from a rejection.
func (v *HMACVerifier) Verify(ctx context.Context, token, phone string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrVerifierRejected
	}
	exp, nonce, mac := parts[0], parts[1], parts[2]
	unix, err := strconv.ParseInt(exp, 10, 64)
	if err != nil {
		return ErrVerifierRejected
	}
	if !hmac.Equal([]byte(mac), []byte(v.mac(phone, exp, nonce))) {
		return ErrVerifierRejected
	}
	remaining := time.Unix(unix, 0).Sub(v.now())
	if remaining <= 0 {
		return ErrVerifierRejected
	}

	fresh, err := v.used.Reserve(ctx, "verifier:"+mac, remaining)
	if err != nil {
		return fmt.Errorf("spend verifier: %w", err)
	}
	if !fresh {
		return ErrVerifierRejected
	}
	return nil
}

var _ PhoneVerifier = (*HMACVerifier)(nil)
