// Package profile loads the dashboard profile for the signed-in viewer and
// degrades to display values derived from the session when it cannot.
package profile

import (
	"context"
	"errors"
	"strings"
	"time"

	profileapp "github.com/medistore/backend/internal/application/profile"
	profiledomain "github.com/medistore/backend/internal/domain/profile"
	"github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/domain/shared"
	"go.uber.org/zap"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Source fetches the viewer's stored profile
type Source interface {
	Profile(ctx context.Context) (*profileapp.View, error)
}

// View is what the dashboard shows. Loaded is false when the values are
// the session-derived fallback.
type View struct {
	Username  string
	Greeting  string
	Email     string
	AvatarURL string
	CreatedAt time.Time
	LastLogin *time.Time
	IsNewUser bool
	Counters  profiledomain.Counters
	Loaded    bool
}

// Accessor loads profile views
type Accessor struct {
	source Source
	now    func() time.Time
	logger *zap.Logger
}

// NewAccessor creates an accessor over source
func NewAccessor(source Source, logger *zap.Logger) *Accessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accessor{source: source, now: time.Now, logger: logger}
}

// WithClock returns a copy using now to decide IsNewUser
func (a *Accessor) WithClock(now func() time.Time) *Accessor {
	clone := *a
	clone.now = now
	return &clone
}

// Load returns the profile of user. On failure the view still carries
// fallback display values next to the error: NotFound while the record
// has not been written yet, Unavailable when the backend cannot be reached.
func (a *Accessor) Load(ctx context.Context, user *session.User) (View, error) {
	if user == nil {
		return View{}, shared.ErrAuth.WithMessage("Not signed in")
	}

	rec, err := a.source.Profile(ctx)
	if err != nil {
		fallback := a.fallback(user)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			a.logger.Info("Profile not created yet", zap.String("user_id", user.ID))
		case errors.Is(err, shared.ErrUnavailable):
			a.logger.Warn("Profile unavailable, showing fallback", zap.String("user_id", user.ID), zap.Error(err))
		default:
			a.logger.Error("Failed to load profile", zap.String("user_id", user.ID), zap.Error(err))
		}
		return fallback, err
	}

	email := rec.Email
	if email == "" {
		email = user.Email
	}
	username := profiledomain.DisplayUsername(rec.Username, email)
	return View{
		Username:  username,
		Greeting:  greeting(user.DisplayName, username),
		Email:     email,
		AvatarURL: rec.AvatarURL,
		CreatedAt: rec.CreatedAt,
		LastLogin: rec.LastLogin,
		// recomputed on every load, never cached
		IsNewUser: profiledomain.IsNewUser(rec.CreatedAt, a.now()),
		Counters:  rec.Counters,
		Loaded:    true,
	}, nil
}

func (a *Accessor) fallback(user *session.User) View {
	username := profiledomain.EmailLocalPart(user.Email)
	if username == "" {
		username = user.PhoneNumber
	}
	return View{
		Username:  username,
		Greeting:  greeting(user.DisplayName, username),
		Email:     user.Email,
		AvatarURL: user.PhotoURL,
	}
}

var nameSeparators = strings.NewReplacer(".", " ", "_", " ", "-", " ")

// greeting prefers the provider display name, otherwise title-cases the
// username: "jane.doe" becomes "Jane Doe"
func greeting(displayName, username string) string {
	if d := strings.TrimSpace(displayName); d != "" {
		return d
	}
	words := strings.Fields(nameSeparators.Replace(username))
	if len(words) == 0 {
		return username
	}
	return cases.Title(language.English).String(strings.Join(words, " "))
}
