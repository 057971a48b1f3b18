// Package profile holds the per-user profile record shown on the dashboard.
package profile

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/shared"
)

// NewUserWindow is how long after creation an account counts as new
const NewUserWindow = 24 * time.Hour

// Counters are the dashboard tallies kept on the profile
type Counters struct {
	Appointments  int `json:"appointments"`
	Prescriptions int `json:"prescriptions"`
	Orders        int `json:"orders"`
	Notifications int `json:"notifications"`
}

// Record is the stored profile document, keyed by user id
type Record struct {
	UserID    uuid.UUID
	Username  string
	Email     string
	AvatarKey string
	CreatedAt time.Time
	LastLogin *time.Time
	Counters  Counters
	UpdatedAt time.Time
}

// NewRecord creates the profile written when an account signs up
func NewRecord(userID uuid.UUID, email string, createdAt time.Time) (*Record, error) {
	if userID == uuid.Nil {
		return nil, shared.ErrInvalidInput.WithMessage("User ID cannot be empty")
	}
	return &Record{
		UserID:    userID,
		Email:     strings.ToLower(strings.TrimSpace(email)),
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}, nil
}

// SetUsername sets the chosen username
func (r *Record) SetUsername(username string, now time.Time) error {
	username = strings.TrimSpace(username)
	if len(username) > 100 {
		return shared.ErrInvalidInput.WithMessage("Username cannot exceed 100 characters")
	}
	r.Username = username
	r.UpdatedAt = now
	return nil
}

// IsNewUser reports whether the record was created less than 24h before now.
// Exactly 24h is no longer new.
func (r *Record) IsNewUser(now time.Time) bool {
	return IsNewUser(r.CreatedAt, now)
}

// IsNewUser reports whether now - createdAt < NewUserWindow
func IsNewUser(createdAt, now time.Time) bool {
	return now.Sub(createdAt) < NewUserWindow
}

// DisplayUsername returns the stored username or the email local-part
func (r *Record) DisplayUsername() string {
	return DisplayUsername(r.Username, r.Email)
}

// DisplayUsername returns username when set, otherwise the part of email before '@'
func DisplayUsername(username, email string) string {
	if u := strings.TrimSpace(username); u != "" {
		return u
	}
	return EmailLocalPart(email)
}

// EmailLocalPart returns the part of email before the last '@'
func EmailLocalPart(email string) string {
	email = strings.TrimSpace(email)
	if i := strings.LastIndex(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
