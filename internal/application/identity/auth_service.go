// Package identity implements the identity provider: sign-up, the sign-in
// methods, token refresh, sign-out and auth-state notifications.
package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/identity"
	"github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/auth"
	"github.com/medistore/backend/internal/infrastructure/logger"
	"github.com/medistore/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var (
	errBadCredentials = shared.ErrAuth.WithMessage("Invalid email or password")
	errAccountLocked  = shared.ErrAuth.WithMessage("Account is temporarily locked. Please try again later")
	errAccountBlocked = shared.ErrAuth.WithMessage("Account has been disabled")
	errBadCode        = shared.ErrAuth.WithMessage("Invalid or expired verification code")
	errBadSession     = shared.ErrAuth.WithMessage("Session is no longer valid. Please sign in again")
	errBadVerifier    = shared.ErrAuth.WithMessage("Verification failed. Please try again")
	errCodeCooldown   = shared.ErrRateLimited.WithMessage("A code was sent to this number recently. Please wait before asking again")
)

// SignInRecorder counts sign-in attempts per provider
type SignInRecorder interface {
	SignIn(provider string, ok bool)
}

// AuthServiceConfig contains configuration for the auth service
type AuthServiceConfig struct {
	BcryptCost       int
	MaxLoginAttempts int           // failed password attempts before lock
	LockDuration     time.Duration // how long to lock after max attempts
	OTPLength        int
	OTPTTL           time.Duration
	OTPMaxAttempts   int
	SMSCooldown      time.Duration // minimum gap between codes sent to one phone
}

// DefaultAuthServiceConfig returns default configuration
func DefaultAuthServiceConfig() AuthServiceConfig {
	return AuthServiceConfig{
		BcryptCost:       identity.DefaultBcryptCost,
		MaxLoginAttempts: 5,
		LockDuration:     15 * time.Minute,
		OTPLength:        6,
		OTPTTL:           5 * time.Minute,
		OTPMaxAttempts:   5,
		SMSCooldown:      time.Minute,
	}
}

// AuthDeps are the collaborators of AuthService. Providers maps an OAuth
// provider name to its ID-token verifier. Cooldowns holds the per-phone
// "sms:<phone>" reservations. Metrics and Cooldowns may be nil.
type AuthDeps struct {
	Accounts  identity.AccountRepository
	Tokens    *auth.JWTService
	Blacklist auth.TokenBlacklist
	OTP       auth.OTPStore
	Verifier  auth.PhoneVerifier
	Cooldowns shared.IdempotencyStore
	SMS       auth.SMSSender
	Providers map[string]auth.IDTokenVerifier
	Events    shared.EventPublisher
	Broker    session.ChangeBroker
	Metrics   SignInRecorder
}

// AuthService handles authentication operations
type AuthService struct {
	AuthDeps
	config AuthServiceConfig
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService creates a new authentication service
func NewAuthService(deps AuthDeps, config AuthServiceConfig, logger *zap.Logger) *AuthService {
	def := DefaultAuthServiceConfig()
	if config.OTPLength <= 0 {
		config.OTPLength = def.OTPLength
	}
	if config.OTPTTL <= 0 {
		config.OTPTTL = def.OTPTTL
	}
	if config.OTPMaxAttempts <= 0 {
		config.OTPMaxAttempts = def.OTPMaxAttempts
	}
	if config.SMSCooldown < 0 {
		config.SMSCooldown = 0
	}
	return &AuthService{AuthDeps: deps, config: config, logger: logger, now: time.Now}
}

// WithClock overrides the service clock
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// SignUp creates a password account and signs it in
func (s *AuthService) SignUp(ctx context.Context, input SignUpInput) (result *AuthResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "auth", "signup")
	defer func() { telemetry.EndSpan(span, err) }()

	now := s.now()
	account, err := identity.NewPasswordAccount(input.Email, input.Password, s.config.BcryptCost, now)
	if err != nil {
		return nil, err
	}
	account.RecordSignIn(identity.ProviderPassword, now)
	if err := s.Accounts.Create(ctx, account); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			return nil, shared.ErrAlreadyExists.WithMessage("Email is already registered")
		}
		return nil, err
	}
	logger.Or(ctx, s.logger).Info("Account registered",
		zap.String("user_id", account.ID.String()),
		zap.String("provider", string(identity.ProviderPassword)))

	return s.complete(ctx, account, identity.ProviderPassword, true)
}

// SignIn authenticates with email and password. Unknown email and wrong
// password fail with the same AuthError.
func (s *AuthService) SignIn(ctx context.Context, input SignInInput) (result *AuthResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "auth", "signin",
		attribute.String("auth.provider", string(identity.ProviderPassword)))
	defer func() {
		s.record(identity.ProviderPassword, err)
		telemetry.EndSpan(span, err)
	}()
	log := logger.Or(ctx, s.logger)

	email, err := identity.NormalizeEmail(input.Email)
	if err != nil {
		return nil, errBadCredentials
	}
	account, err := s.Accounts.FindByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		log.Warn("Sign-in for unknown email")
		return nil, errBadCredentials
	}
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.checkCanSignIn(account, now); err != nil {
		log.Warn("Sign-in refused", zap.String("user_id", account.ID.String()), zap.String("status", string(account.Status)))
		return nil, err
	}

	if !account.VerifyPassword(input.Password) {
		locked := account.RecordSignInFailure(s.config.MaxLoginAttempts, s.config.LockDuration, now)
		if err := s.Accounts.Update(ctx, account); err != nil {
			log.Error("Failed to update account after sign-in failure", zap.Error(err))
		}
		if locked {
			log.Warn("Account locked after too many failed attempts",
				zap.String("user_id", account.ID.String()),
				zap.Int("attempts", account.FailedAttempts))
			return nil, errAccountLocked
		}
		log.Warn("Invalid password attempt",
			zap.String("user_id", account.ID.String()),
			zap.Int("failed_attempts", account.FailedAttempts))
		return nil, errBadCredentials
	}

	account.RecordSignIn(identity.ProviderPassword, now)
	if err := s.Accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	return s.complete(ctx, account, identity.ProviderPassword, false)
}

// SignInWithOAuth signs in with a federated provider credential. The account
// is matched on the provider's verified email and created on first use.
func (s *AuthService) SignInWithOAuth(ctx context.Context, input OAuthInput) (result *AuthResult, err error) {
	provider := identity.Provider(input.Provider)
	ctx, span := telemetry.StartServiceSpan(ctx, "auth", "signin_oauth",
		attribute.String("auth.provider", input.Provider))
	defer func() {
		s.record(provider, err)
		telemetry.EndSpan(span, err)
	}()
	log := logger.Or(ctx, s.logger)

	verifier, ok := s.Providers[input.Provider]
	if !ok {
		return nil, shared.ErrInvalidInput.WithMessage(fmt.Sprintf("Unsupported sign-in provider %q", input.Provider))
	}
	ident, err := verifier.Verify(ctx, input.Credential)
	if err != nil {
		log.Warn("Federated credential rejected", zap.String("provider", input.Provider), zap.Error(err))
		return nil, shared.ErrAuth.WithMessage("Sign-in with " + input.Provider + " failed")
	}
	if !ident.EmailVerified {
		return nil, shared.ErrAuth.WithMessage("Email address is not verified with " + input.Provider)
	}

	now := s.now()
	account, err := s.Accounts.FindByEmail(ctx, ident.Email)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		account, err = identity.NewFederatedAccount(ident.Email, ident.Name, ident.Picture, provider, now)
		if err != nil {
			return nil, err
		}
		account.RecordSignIn(provider, now)
		if err := s.Accounts.Create(ctx, account); err != nil {
			return nil, err
		}
		log.Info("Account registered",
			zap.String("user_id", account.ID.String()),
			zap.String("provider", input.Provider))
		return s.complete(ctx, account, provider, true)
	case err != nil:
		return nil, err
	}

	if err := s.checkCanSignIn(account, now); err != nil {
		return nil, err
	}
	if account.LinkProvider(provider, now) {
		log.Info("Provider linked to account",
			zap.String("user_id", account.ID.String()),
			zap.String("provider", input.Provider))
	}
	if account.DisplayName == "" {
		account.DisplayName = ident.Name
	}
	if account.PhotoURL == "" {
		account.PhotoURL = ident.Picture
	}
	account.RecordSignIn(provider, now)
	if err := s.Accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	return s.complete(ctx, account, provider, false)
}

// IssuePhoneVerifier trades a solved human check for a token that
// StartPhoneSignIn accepts once for the same phone number.
func (s *AuthService) IssuePhoneVerifier(ctx context.Context, input PhoneVerifierInput) (*VerifierResult, error) {
	phone, err := identity.NormalizePhone(input.Phone)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.Verifier.Issue(ctx, phone, input.ChallengeResponse, input.RemoteIP)
	switch {
	case errors.Is(err, auth.ErrChallengeFailed):
		logger.Or(ctx, s.logger).Warn("Phone challenge failed", zap.Error(err))
		return nil, errBadVerifier
	case err != nil:
		return nil, fmt.Errorf("%w: issue verifier: %v", shared.ErrUnavailable, err)
	}
	return &VerifierResult{Token: token, ExpiresAt: expiresAt}, nil
}

// StartPhoneSignIn spends the verifier token, then texts a one-time code
// and returns the confirmation id it is stored under. Each phone number
// gets at most one code per SMSCooldown.
func (s *AuthService) StartPhoneSignIn(ctx context.Context, input PhoneStartInput) (result *PhoneStartResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "auth", "phone_start")
	defer func() { telemetry.EndSpan(span, err) }()
	log := logger.Or(ctx, s.logger)

	phone, err := identity.NormalizePhone(input.Phone)
	if err != nil {
		return nil, err
	}
	if err := s.Verifier.Verify(ctx, input.VerifierToken, phone); err != nil {
		if errors.Is(err, auth.ErrVerifierRejected) {
			log.Warn("Phone verifier rejected", zap.Error(err))
			return nil, errBadVerifier
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrUnavailable, err)
	}

	release, err := s.holdCooldown(ctx, phone)
	if err != nil {
		return nil, err
	}

	code, err := auth.GenerateOTP(s.config.OTPLength)
	if err != nil {
		release()
		return nil, fmt.Errorf("generate code: %w", err)
	}
	id := uuid.NewString()
	entry := auth.OTPEntry{Phone: phone, CodeHash: auth.HashOTP(code)}
	if err := s.OTP.Save(ctx, id, entry, s.config.OTPTTL); err != nil {
		release()
		return nil, fmt.Errorf("%w: store confirmation: %v", shared.ErrUnavailable, err)
	}
	if err := s.SMS.Send(ctx, phone, fmt.Sprintf("Your MediStore verification code is %s", code)); err != nil {
		if derr := s.OTP.Delete(ctx, id); derr != nil {
			log.Warn("Failed to discard confirmation", zap.Error(derr))
		}
		release()
		return nil, fmt.Errorf("%w: send code: %v", shared.ErrUnavailable, err)
	}

	log.Info("Phone sign-in started", zap.String("confirmation_id", id))
	return &PhoneStartResult{ConfirmationID: id, ExpiresAt: s.now().Add(s.config.OTPTTL)}, nil
}

// holdCooldown reserves the phone number for SMSCooldown. The returned func
// gives the reservation back when no code went out.
func (s *AuthService) holdCooldown(ctx context.Context, phone string) (func(), error) {
	if s.Cooldowns == nil || s.config.SMSCooldown <= 0 {
		return func() {}, nil
	}
	key := "sms:" + phone
	fresh, err := s.Cooldowns.Reserve(ctx, key, s.config.SMSCooldown)
	if err != nil {
		return nil, fmt.Errorf("%w: sms cooldown: %v", shared.ErrUnavailable, err)
	}
	if !fresh {
		return nil, errCodeCooldown
	}
	return func() {
		if err := s.Cooldowns.Release(context.WithoutCancel(ctx), key); err != nil {
			logger.Or(ctx, s.logger).Warn("Failed to release sms cooldown", zap.Error(err))
		}
	}, nil
}

// ConfirmPhoneSignIn checks the code. A confirmation is single-use and is
// discarded after OTPMaxAttempts wrong codes. The account is created on
// first sign-in with the phone number.
func (s *AuthService) ConfirmPhoneSignIn(ctx context.Context, input PhoneConfirmInput) (result *AuthResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "auth", "phone_confirm",
		attribute.String("auth.provider", string(identity.ProviderPhone)))
	defer func() {
		s.record(identity.ProviderPhone, err)
		telemetry.EndSpan(span, err)
	}()
	log := logger.Or(ctx, s.logger).With(zap.String("confirmation_id", input.ConfirmationID))

	entry, err := s.OTP.Consume(ctx, input.ConfirmationID, input.Code, s.config.OTPMaxAttempts)
	switch {
	case errors.Is(err, auth.ErrOTPExhausted):
		log.Warn("Confirmation discarded after too many attempts")
		return nil, errBadCode
	case errors.Is(err, auth.ErrOTPNotFound), errors.Is(err, auth.ErrOTPMismatch):
		return nil, errBadCode
	case err != nil:
		return nil, fmt.Errorf("%w: load confirmation: %v", shared.ErrUnavailable, err)
	}

	now := s.now()
	account, err := s.Accounts.FindByPhone(ctx, entry.Phone)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		account, err = identity.NewPhoneAccount(entry.Phone, now)
		if err != nil {
			return nil, err
		}
		account.RecordSignIn(identity.ProviderPhone, now)
		if err := s.Accounts.Create(ctx, account); err != nil {
			return nil, err
		}
		log.Info("Account registered",
			zap.String("user_id", account.ID.String()),
			zap.String("provider", string(identity.ProviderPhone)))
		return s.complete(ctx, account, identity.ProviderPhone, true)
	case err != nil:
		return nil, err
	}

	if err := s.checkCanSignIn(account, now); err != nil {
		return nil, err
	}
	account.RecordSignIn(identity.ProviderPhone, now)
	if err := s.Accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	return s.complete(ctx, account, identity.ProviderPhone, false)
}

// SignOut ends the session the presented tokens belong to and announces it
// to that session only. Revoking an already revoked token is not an error.
func (s *AuthService) SignOut(ctx context.Context, input SignOutInput) error {
	if input.Claims == nil {
		return errBadSession
	}
	now := s.now()
	if err := s.Blacklist.Revoke(ctx, input.Claims.ID, input.Claims.RemainingTTL(now)); err != nil {
		return fmt.Errorf("%w: revoke token: %v", shared.ErrUnavailable, err)
	}
	if input.RefreshToken != "" {
		claims, err := s.Tokens.ValidateRefreshToken(input.RefreshToken)
		if err == nil && claims.Subject == input.Claims.Subject && claims.SessionID == input.Claims.SessionID {
			if err := s.Blacklist.Revoke(ctx, claims.ID, claims.RemainingTTL(now)); err != nil {
				logger.Or(ctx, s.logger).Warn("Failed to revoke refresh token", zap.Error(err))
			}
		}
	}

	s.announce(ctx, session.Change{
		UserID:    input.Claims.Subject,
		SessionID: input.Claims.SessionID,
		Reason:    session.ReasonSignedOut,
		At:        now,
	})
	logger.Or(ctx, s.logger).Info("User signed out",
		zap.String("user_id", input.Claims.Subject),
		zap.String("session_id", input.Claims.SessionID))
	return nil
}

// SignOutEverywhere revokes every token issued to the user so far and
// signs out all of their sessions.
func (s *AuthService) SignOutEverywhere(ctx context.Context, claims *auth.Claims) error {
	if claims == nil {
		return errBadSession
	}
	now := s.now()
	if err := s.Blacklist.RevokeUser(ctx, claims.Subject, now, s.Tokens.RefreshTokenTTL()); err != nil {
		return fmt.Errorf("%w: revoke sessions: %v", shared.ErrUnavailable, err)
	}
	s.announce(ctx, session.Change{UserID: claims.Subject, Reason: session.ReasonSignedOut, At: now})
	logger.Or(ctx, s.logger).Info("User signed out everywhere", zap.String("user_id", claims.Subject))
	return nil
}

// Refresh exchanges a refresh token for a new pair. The presented refresh
// token is revoked so it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	log := logger.Or(ctx, s.logger)

	claims, err := s.Tokens.ValidateRefreshToken(refreshToken)
	if err != nil {
		log.Warn("Refresh token validation failed", zap.Error(err))
		return nil, errBadSession
	}
	revoked, err := s.Blacklist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: check token: %v", shared.ErrUnavailable, err)
	}
	if !revoked {
		revoked, err = s.Blacklist.IsUserRevoked(ctx, claims.Subject, claims.IssuedAtTime())
		if err != nil {
			return nil, fmt.Errorf("%w: check token: %v", shared.ErrUnavailable, err)
		}
	}
	if revoked {
		log.Warn("Revoked refresh token presented", zap.String("user_id", claims.Subject))
		return nil, errBadSession
	}

	userID, err := claims.UserID()
	if err != nil {
		return nil, errBadSession
	}
	account, err := s.Accounts.FindByID(ctx, userID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, errBadSession
	}
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.checkCanSignIn(account, now); err != nil {
		return nil, err
	}

	if err := s.Blacklist.Revoke(ctx, claims.ID, claims.RemainingTTL(now)); err != nil {
		return nil, fmt.Errorf("%w: revoke token: %v", shared.ErrUnavailable, err)
	}
	sub := subject(account)
	sub.SessionID = claims.SessionID
	pair, err := s.Tokens.GenerateTokenPair(sub)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}
	return pair, nil
}

// UpdateProfile changes display name and/or photo URL
func (s *AuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, input UpdateProfileInput) (*session.User, error) {
	account, err := s.Accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := account.UpdateProfile(input.DisplayName, input.PhotoURL, now); err != nil {
		return nil, err
	}
	if err := s.Accounts.Update(ctx, account); err != nil {
		return nil, err
	}
	s.publish(ctx, account)

	user := ToSessionUser(account)
	s.announce(ctx, session.Change{UserID: user.ID, User: &user, Reason: session.ReasonProfileUpdated, At: now})
	return &user, nil
}

// CurrentUser returns the session identity of userID
func (s *AuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*session.User, error) {
	account, err := s.Accounts.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user := ToSessionUser(account)
	return &user, nil
}

// WatchAuthState delivers the auth-state changes that concern one session
// of userID to fn, in publish order, until the returned func is called or
// ctx ends. Changes scoped to the user's other sessions are skipped.
func (s *AuthService) WatchAuthState(ctx context.Context, userID uuid.UUID, sessionID string, fn func(session.Change)) (func(), error) {
	id := userID.String()
	unsubscribe, err := s.Broker.Subscribe(ctx, func(c session.Change) {
		if c.For(id, sessionID) {
			fn(c)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe: %v", shared.ErrUnavailable, err)
	}
	return unsubscribe, nil
}

// complete runs after a successful sign-in or sign-up has been persisted:
// it publishes the account's domain events, issues tokens and announces the
// new auth state.
func (s *AuthService) complete(ctx context.Context, account *identity.Account, provider identity.Provider, created bool) (*AuthResult, error) {
	s.publish(ctx, account)

	pair, err := s.Tokens.GenerateTokenPair(subject(account))
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}

	user := ToSessionUser(account)
	reason := session.ReasonSignedIn
	if created {
		reason = session.ReasonSignedUp
	}
	s.announce(ctx, session.Change{UserID: user.ID, User: &user, Reason: reason, At: s.now()})

	logger.Or(ctx, s.logger).Info("User signed in",
		zap.String("user_id", user.ID),
		zap.String("provider", string(provider)),
		zap.Bool("new_account", created))
	return &AuthResult{Tokens: pair, User: user, NewAccount: created}, nil
}

func (s *AuthService) publish(ctx context.Context, account *identity.Account) {
	events := account.GetDomainEvents()
	account.ClearDomainEvents()
	if s.Events == nil || len(events) == 0 {
		return
	}
	if err := s.Events.Publish(ctx, events...); err != nil {
		logger.Or(ctx, s.logger).Error("Failed to publish account events", zap.Error(err))
	}
}

func (s *AuthService) announce(ctx context.Context, change session.Change) {
	if s.Broker == nil {
		return
	}
	if err := s.Broker.Publish(ctx, change); err != nil {
		logger.Or(ctx, s.logger).Warn("Failed to publish auth state change",
			zap.String("reason", string(change.Reason)), zap.Error(err))
	}
}

func (s *AuthService) checkCanSignIn(account *identity.Account, now time.Time) error {
	if account.CanSignIn(now) {
		return nil
	}
	if account.Status == identity.AccountStatusDisabled {
		return errAccountBlocked
	}
	return errAccountLocked
}

func (s *AuthService) record(provider identity.Provider, err error) {
	if s.Metrics != nil {
		s.Metrics.SignIn(string(provider), err == nil)
	}
}

func subject(a *identity.Account) auth.TokenSubject {
	return auth.TokenSubject{
		UserID:      a.ID,
		Email:       a.Email,
		Phone:       a.Phone,
		DisplayName: a.DisplayName,
	}
}

// ToSessionUser maps an account to the identity reported to clients
func ToSessionUser(a *identity.Account) session.User {
	return session.User{
		ID:          a.ID.String(),
		Email:       a.Email,
		PhoneNumber: a.Phone,
		DisplayName: a.DisplayName,
		PhotoURL:    a.PhotoURL,
	}
}
