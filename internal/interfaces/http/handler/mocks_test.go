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
	"github.com/stretchr/testify/mock"
)

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) result(args mock.Arguments) (*identity.AuthResult, error) {
	if r := args.Get(0); r != nil {
		return r.(*identity.AuthResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthService) SignUp(ctx context.Context, input identity.SignUpInput) (*identity.AuthResult, error) {
	return m.result(m.Called(ctx, input))
}

func (m *MockAuthService) SignIn(ctx context.Context, input identity.SignInInput) (*identity.AuthResult, error) {
	return m.result(m.Called(ctx, input))
}

func (m *MockAuthService) SignInWithOAuth(ctx context.Context, input identity.OAuthInput) (*identity.AuthResult, error) {
	return m.result(m.Called(ctx, input))
}

func (m *MockAuthService) IssuePhoneVerifier(ctx context.Context, input identity.PhoneVerifierInput) (*identity.VerifierResult, error) {
	args := m.Called(ctx, input)
	if r := args.Get(0); r != nil {
		return r.(*identity.VerifierResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthService) StartPhoneSignIn(ctx context.Context, input identity.PhoneStartInput) (*identity.PhoneStartResult, error) {
	args := m.Called(ctx, input)
	if r := args.Get(0); r != nil {
		return r.(*identity.PhoneStartResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthService) ConfirmPhoneSignIn(ctx context.Context, input identity.PhoneConfirmInput) (*identity.AuthResult, error) {
	return m.result(m.Called(ctx, input))
}

func (m *MockAuthService) SignOut(ctx context.Context, input identity.SignOutInput) error {
	return m.Called(ctx, input).Error(0)
}

func (m *MockAuthService) SignOutEverywhere(ctx context.Context, claims *auth.Claims) error {
	return m.Called(ctx, claims).Error(0)
}

func (m *MockAuthService) Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error) {
	args := m.Called(ctx, refreshToken)
	if r := args.Get(0); r != nil {
		return r.(*auth.TokenPair), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthService) UpdateProfile(ctx context.Context, userID uuid.UUID, input identity.UpdateProfileInput) (*session.User, error) {
	args := m.Called(ctx, userID, input)
	if r := args.Get(0); r != nil {
		return r.(*session.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthService) CurrentUser(ctx context.Context, userID uuid.UUID) (*session.User, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.(*session.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAuthService) WatchAuthState(ctx context.Context, userID uuid.UUID, sessionID string, fn func(session.Change)) (func(), error) {
	args := m.Called(ctx, userID, sessionID, fn)
	if r := args.Get(0); r != nil {
		return r.(func()), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockProfileService struct {
	mock.Mock
}

func (m *MockProfileService) Load(ctx context.Context, userID uuid.UUID) (*profileapp.View, error) {
	args := m.Called(ctx, userID)
	if r := args.Get(0); r != nil {
		return r.(*profileapp.View), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfileService) UpdateUsername(ctx context.Context, userID uuid.UUID, username string) (*profileapp.View, error) {
	args := m.Called(ctx, userID, username)
	if r := args.Get(0); r != nil {
		return r.(*profileapp.View), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockProfileService) AvatarUploadURL(ctx context.Context, userID uuid.UUID, contentType string) (*profileapp.AvatarUpload, error) {
	args := m.Called(ctx, userID, contentType)
	if r := args.Get(0); r != nil {
		return r.(*profileapp.AvatarUpload), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) Submit(ctx context.Context, input orderapp.SubmitInput) (*orderapp.SubmitResult, error) {
	args := m.Called(ctx, input)
	if r := args.Get(0); r != nil {
		return r.(*orderapp.SubmitResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderService) Get(ctx context.Context, userID, orderID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, userID, orderID)
	if r := args.Get(0); r != nil {
		return r.(*order.Order), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockOrderService) List(ctx context.Context, userID uuid.UUID, filter shared.Filter) (*shared.Paginated[*order.Order], error) {
	args := m.Called(ctx, userID, filter)
	if r := args.Get(0); r != nil {
		return r.(*shared.Paginated[*order.Order]), args.Error(1)
	}
	return nil, args.Error(1)
}
