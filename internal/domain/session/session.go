// Package session describes the signed-in viewer and the route guard that
// gates protected pages on it.
package session

import "time"

// User is the identity reported by the identity provider
type User struct {
	ID          string `json:"uid"`
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// ChangeReason says why the auth state changed
type ChangeReason string

const (
	ReasonRestored       ChangeReason = "restored"
	ReasonSignedUp       ChangeReason = "signed_up"
	ReasonSignedIn       ChangeReason = "signed_in"
	ReasonProfileUpdated ChangeReason = "profile_updated"
	ReasonSignedOut      ChangeReason = "signed_out"
)

// Change is one auth-state notification. User is nil when signed out.
// SessionID limits the change to one session of the user; empty means every
// session.
type Change struct {
	UserID    string       `json:"user_id"`
	SessionID string       `json:"session_id,omitempty"`
	User      *User        `json:"user"`
	Reason    ChangeReason `json:"reason"`
	At        time.Time    `json:"at"`
}

// For reports whether the change concerns the given session of userID
func (c Change) For(userID, sessionID string) bool {
	return c.UserID == userID && (c.SessionID == "" || c.SessionID == sessionID)
}

// SignedIn reports whether the change carries a user
func (c Change) SignedIn() bool {
	return c.User != nil
}
