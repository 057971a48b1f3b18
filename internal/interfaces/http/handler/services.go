package handler

import (
	"context"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/application/identity"
	orderapp "github.com/medistore/backend/internal/application/order"
	profileapp "github.com/medistore/backend/internal/application/profile"
	"github.com/medistore/backend/internal/domain/order"
	"github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/auth"
)

// AuthService is the identity provider as seen by the HTTP layer
type AuthService interface {
	SignUp(ctx context.Context, input identity.SignUpInput) (*identity.AuthResult, error)
	SignIn(ctx context.Context, input identity.SignInInput) (*identity.AuthResult, error)
	SignInWithOAuth(ctx context.Context, input identity.OAuthInput) (*identity.AuthResult, error)
	IssuePhoneVerifier(ctx context.Context, input identity.PhoneVerifierInput) (*identity.VerifierResult, error)
	StartPhoneSignIn(ctx context.Context, input identity.PhoneStartInput) (*identity.PhoneStartResult, error)
	ConfirmPhoneSignIn(ctx context.Context, input identity.PhoneConfirmInput) (*identity.AuthResult, error)
	SignOut(ctx context.Context, input identity.SignOutInput) error
	SignOutEverywhere(ctx context.Context, claims *auth.Claims) error
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, input identity.UpdateProfileInput) (*session.User, error)
	CurrentUser(ctx context.Context, userID uuid.UUID) (*session.User, error)
	WatchAuthState(ctx context.Context, userID uuid.UUID, sessionID string, fn func(session.Change)) (func(), error)
}

// ProfileService loads profile records
type ProfileService interface {
	Load(ctx context.Context, userID uuid.UUID) (*profileapp.View, error)
	UpdateUsername(ctx context.Context, userID uuid.UUID, username string) (*profileapp.View, error)
	AvatarUploadURL(ctx context.Context, userID uuid.UUID, contentType string) (*profileapp.AvatarUpload, error)
}

// OrderService submits and lists orders
type OrderService interface {
	Submit(ctx context.Context, input orderapp.SubmitInput) (*orderapp.SubmitResult, error)
	Get(ctx context.Context, userID, orderID uuid.UUID) (*order.Order, error)
	List(ctx context.Context, userID uuid.UUID, filter shared.Filter) (*shared.Paginated[*order.Order], error)
}

var (
	_ AuthService    = (*identity.AuthService)(nil)
	_ ProfileService = (*profileapp.Service)(nil)
	_ OrderService   = (*orderapp.Service)(nil)
)
