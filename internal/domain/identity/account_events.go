package identity

import (
	"time"

	"github.com/medistore/backend/internal/domain/shared"
)

// AggregateTypeAccount is the aggregate type of Account events
const AggregateTypeAccount = "Account"

// Account domain event types
const (
	EventTypeAccountRegistered = "AccountRegistered"
	EventTypeSignedIn          = "SignedIn"
	EventTypeProfileUpdated    = "AccountProfileUpdated"
)

// AccountRegisteredEvent is published when an account is created
type AccountRegisteredEvent struct {
	shared.BaseDomainEvent
	Email    string   `json:"email"`
	Phone    string   `json:"phone"`
	Provider Provider `json:"provider"`
}

// NewAccountRegisteredEvent creates a new AccountRegisteredEvent
func NewAccountRegisteredEvent(a *Account, provider Provider) *AccountRegisteredEvent {
	return &AccountRegisteredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAccountRegistered, AggregateTypeAccount, a.ID, a.CreatedAt),
		Email:           a.Email,
		Phone:           a.Phone,
		Provider:        provider,
	}
}

// SignedInEvent is published after every successful sign-in
type SignedInEvent struct {
	shared.BaseDomainEvent
	Provider Provider `json:"provider"`
}

// NewSignedInEvent creates a new SignedInEvent
func NewSignedInEvent(a *Account, provider Provider, at time.Time) *SignedInEvent {
	return &SignedInEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSignedIn, AggregateTypeAccount, a.ID, at),
		Provider:        provider,
	}
}

// ProfileUpdatedEvent is published when display name or photo changes
type ProfileUpdatedEvent struct {
	shared.BaseDomainEvent
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
}

// NewProfileUpdatedEvent creates a new ProfileUpdatedEvent
func NewProfileUpdatedEvent(a *Account, at time.Time) *ProfileUpdatedEvent {
	return &ProfileUpdatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeProfileUpdated, AggregateTypeAccount, a.ID, at),
		DisplayName:     a.DisplayName,
		PhotoURL:        a.PhotoURL,
	}
}
