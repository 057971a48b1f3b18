package identity

import (
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/medistore/backend/internal/domain/shared"
	"golang.org/x/crypto/bcrypt"
)

// AccountStatus represents the status of an account
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusLocked   AccountStatus = "locked"   // too many failed sign-ins
	AccountStatusDisabled AccountStatus = "disabled" // manually disabled
)

// Provider identifies how an account can sign in
type Provider string

const (
	ProviderPassword Provider = "password"
	ProviderGoogle   Provider = "google"
	ProviderPhone    Provider = "phone"
)

// DefaultBcryptCost is used when no cost is configured
const DefaultBcryptCost = 12

const minPasswordLength = 8

var phoneRegex = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

// Account is the identity provider's record of a signed-up user.
// It is the aggregate root for credential and profile-name changes.
type Account struct {
	shared.BaseAggregateRoot
	Email          string
	Phone          string
	PasswordHash   string
	DisplayName    string
	PhotoURL       string
	Providers      []Provider
	Status         AccountStatus
	LastLoginAt    *time.Time
	FailedAttempts int
	LockedUntil    *time.Time
}

// NewPasswordAccount creates an account that signs in with email and password
func NewPasswordAccount(email, password string, cost int, now time.Time) (*Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	if err := ValidatePassword(password); err != nil {
		return nil, err
	}
	hash, err := HashPassword(password, cost)
	if err != nil {
		return nil, err
	}

	a := &Account{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		Email:             email,
		PasswordHash:      hash,
		Providers:         []Provider{ProviderPassword},
		Status:            AccountStatusActive,
	}
	a.AddDomainEvent(NewAccountRegisteredEvent(a, ProviderPassword))
	return a, nil
}

// NewFederatedAccount creates an account for an external provider with a verified email
func NewFederatedAccount(email, displayName, photoURL string, provider Provider, now time.Time) (*Account, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return nil, err
	}
	a := &Account{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		Email:             email,
		DisplayName:       strings.TrimSpace(displayName),
		PhotoURL:          strings.TrimSpace(photoURL),
		Providers:         []Provider{provider},
		Status:            AccountStatusActive,
	}
	a.AddDomainEvent(NewAccountRegisteredEvent(a, provider))
	return a, nil
}

// NewPhoneAccount creates an account identified only by a verified phone number
func NewPhoneAccount(phone string, now time.Time) (*Account, error) {
	phone, err := NormalizePhone(phone)
	if err != nil {
		return nil, err
	}
	a := &Account{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(now),
		Phone:             phone,
		Providers:         []Provider{ProviderPhone},
		Status:            AccountStatusActive,
	}
	a.AddDomainEvent(NewAccountRegisteredEvent(a, ProviderPhone))
	return a, nil
}

// VerifyPassword verifies if the provided password matches
func (a *Account) VerifyPassword(password string) bool {
	if a.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

// LinkProvider records that the account can also sign in through p
func (a *Account) LinkProvider(p Provider, now time.Time) bool {
	if a.HasProvider(p) {
		return false
	}
	a.Providers = append(a.Providers, p)
	a.Touch(now)
	a.IncrementVersion()
	return true
}

// HasProvider reports whether p is linked
func (a *Account) HasProvider(p Provider) bool {
	return slices.Contains(a.Providers, p)
}

// UpdateProfile applies a partial update; nil fields are left untouched
func (a *Account) UpdateProfile(displayName, photoURL *string, now time.Time) error {
	if displayName == nil && photoURL == nil {
		return shared.ErrInvalidInput.WithMessage("Nothing to update")
	}
	if displayName != nil {
		name := strings.TrimSpace(*displayName)
		if len(name) > 200 {
			return shared.ErrInvalidInput.WithMessage("Display name cannot exceed 200 characters")
		}
		a.DisplayName = name
	}
	if photoURL != nil {
		url := strings.TrimSpace(*photoURL)
		if len(url) > 500 {
			return shared.ErrInvalidInput.WithMessage("Photo URL cannot exceed 500 characters")
		}
		a.PhotoURL = url
	}
	a.Touch(now)
	a.IncrementVersion()
	a.AddDomainEvent(NewProfileUpdatedEvent(a, now))
	return nil
}

// RecordSignIn records a successful sign-in
func (a *Account) RecordSignIn(provider Provider, now time.Time) {
	a.LastLoginAt = &now
	a.FailedAttempts = 0
	if a.Status == AccountStatusLocked {
		a.Status = AccountStatusActive
		a.LockedUntil = nil
	}
	a.Touch(now)
	a.IncrementVersion()
	a.AddDomainEvent(NewSignedInEvent(a, provider, now))
}

// RecordSignInFailure records a failed password attempt.
// Returns true if the account became locked.
func (a *Account) RecordSignInFailure(maxAttempts int, lockFor time.Duration, now time.Time) bool {
	a.FailedAttempts++
	a.Touch(now)
	a.IncrementVersion()
	if maxAttempts > 0 && a.FailedAttempts >= maxAttempts {
		until := now.Add(lockFor)
		a.Status = AccountStatusLocked
		a.LockedUntil = &until
		return true
	}
	return false
}

// CanSignIn returns true if the account is neither disabled nor locked at now
func (a *Account) CanSignIn(now time.Time) bool {
	switch a.Status {
	case AccountStatusDisabled:
		return false
	case AccountStatusLocked:
		return a.LockedUntil != nil && now.After(*a.LockedUntil)
	}
	return true
}

// Disable disables the account
func (a *Account) Disable(now time.Time) {
	a.Status = AccountStatusDisabled
	a.Touch(now)
	a.IncrementVersion()
}

// HashPassword hashes password with bcrypt at cost, falling back to DefaultBcryptCost
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", shared.NewDomainError("PASSWORD_HASH_ERROR", "Failed to hash password")
	}
	return string(hash), nil
}

// ValidatePassword checks password strength
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return shared.ErrInvalidInput.WithMessage("Password must be at least 8 characters")
	}
	if len(password) > 72 {
		return shared.ErrInvalidInput.WithMessage("Password cannot exceed 72 bytes")
	}
	return nil
}

// NormalizeEmail validates and lower-cases an email address
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", shared.ErrInvalidInput.WithMessage("Email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", shared.ErrInvalidInput.WithMessage("Invalid email format")
	}
	return email, nil
}

// NormalizePhone validates an E.164 phone number
func NormalizePhone(phone string) (string, error) {
	phone = strings.ReplaceAll(strings.TrimSpace(phone), " ", "")
	if !phoneRegex.MatchString(phone) {
		return "", shared.ErrInvalidInput.WithMessage("Phone must be in E.164 format")
	}
	return phone, nil
}
