package profile

import (
	"time"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/profile"
)

// View is the profile as the dashboard shows it
type View struct {
	UserID    uuid.UUID        `json:"user_id"`
	Username  string           `json:"username"`
	Email     string           `json:"email"`
	AvatarURL string           `json:"avatar_url,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	LastLogin *time.Time       `json:"last_login,omitempty"`
	IsNewUser bool             `json:"is_new_user"`
	Counters  profile.Counters `json:"counters"`
}

// NewView derives the display view of rec at now
func NewView(rec *profile.Record, now time.Time) *View {
	return &View{
		UserID:    rec.UserID,
		Username:  rec.DisplayUsername(),
		Email:     rec.Email,
		CreatedAt: rec.CreatedAt,
		LastLogin: rec.LastLogin,
		IsNewUser: rec.IsNewUser(now),
		Counters:  rec.Counters,
	}
}
