package provider

import (
	"context"
	"errors"
	"net/url"

	"github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/domain/shared"
	"go.uber.org/zap"
)

type authResponse struct {
	Token      tokenPair    `json:"token"`
	User       session.User `json:"user"`
	NewAccount bool         `json:"new_account"`
}

// SignUp creates an email account and signs it in
func (c *Client) SignUp(ctx context.Context, email, password string) (*session.User, error) {
	return c.signIn(ctx, request{
		method: "POST",
		path:   "/auth/signup",
		body:   map[string]string{"email": email, "password": password},
	})
}

// SignIn signs in with email and password
func (c *Client) SignIn(ctx context.Context, email, password string) (*session.User, error) {
	return c.signIn(ctx, request{
		method: "POST",
		path:   "/auth/login",
		body:   map[string]string{"email": email, "password": password},
	})
}

// SignInWithOAuth exchanges a federated credential, e.g. a Google ID token
func (c *Client) SignInWithOAuth(ctx context.Context, provider, credential string) (*session.User, error) {
	return c.signIn(ctx, request{
		method: "POST",
		path:   "/auth/oauth/" + url.PathEscape(provider),
		body:   map[string]string{"credential": credential},
	})
}

// PhoneVerifier trades a solved reCAPTCHA or hCaptcha response for the
// single-use token phone sign-in requires
func (c *Client) PhoneVerifier(ctx context.Context, phone, challengeResponse string) (string, error) {
	var out struct {
		VerifierToken string `json:"verifier_token"`
	}
	_, err := c.do(ctx, request{
		method: "POST",
		path:   "/auth/phone/verifier",
		body:   map[string]string{"phone": phone, "challenge_response": challengeResponse},
	}, &out)
	return out.VerifierToken, err
}

// StartPhoneSignIn sends a code to phone and returns the confirmation id
func (c *Client) StartPhoneSignIn(ctx context.Context, phone, verifierToken string) (string, error) {
	var out struct {
		ConfirmationID string `json:"confirmation_id"`
	}
	_, err := c.do(ctx, request{
		method: "POST",
		path:   "/auth/phone/start",
		body:   map[string]string{"phone": phone, "verifier_token": verifierToken},
	}, &out)
	return out.ConfirmationID, err
}

// ConfirmPhoneSignIn completes a phone sign-in with the received code
func (c *Client) ConfirmPhoneSignIn(ctx context.Context, confirmationID, code string) (*session.User, error) {
	return c.signIn(ctx, request{
		method: "POST",
		path:   "/auth/phone/confirm",
		body:   map[string]string{"confirmation_id": confirmationID, "code": code},
	})
}

func (c *Client) signIn(ctx context.Context, req request) (*session.User, error) {
	var out authResponse
	if _, err := c.do(ctx, req, &out); err != nil {
		return nil, err
	}
	if err := c.saveSession(ctx, &storedSession{
		AccessToken:  out.Token.AccessToken,
		RefreshToken: out.Token.RefreshToken,
		User:         out.User,
	}); err != nil {
		return nil, err
	}
	c.logger.Info("Signed in",
		zap.String("user_id", out.User.ID),
		zap.Bool("new_account", out.NewAccount))
	return &out.User, nil
}

// CurrentUser returns the signed-in identity as the server sees it
func (c *Client) CurrentUser(ctx context.Context) (*session.User, error) {
	var user session.User
	err := c.authed(ctx, func(token string) error {
		_, err := c.do(ctx, request{method: "GET", path: "/auth/me", token: token}, &user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// SignOut revokes the session on the server and forgets it locally. The
// local session is cleared even when the server cannot be reached; that
// failure is still returned. Signing out while signed out does nothing.
func (c *Client) SignOut(ctx context.Context) error {
	return c.signOut(ctx, "/auth/logout")
}

// SignOutEverywhere ends every session of the signed-in user, on all
// devices, and forgets the local one
func (c *Client) SignOutEverywhere(ctx context.Context) error {
	return c.signOut(ctx, "/auth/logout-all")
}

func (c *Client) signOut(ctx context.Context, path string) error {
	s, err := c.loadSession(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		return nil
	}

	_, remoteErr := c.do(ctx, request{
		method: "POST",
		path:   path,
		body:   map[string]string{"refresh_token": s.RefreshToken},
		token:  s.AccessToken,
	}, nil)
	if errors.Is(remoteErr, shared.ErrAuth) {
		// already expired or revoked
		remoteErr = nil
	}

	if err := c.saveSession(ctx, nil); err != nil {
		return errors.Join(remoteErr, err)
	}
	c.logger.Info("Signed out", zap.String("user_id", s.User.ID), zap.String("path", path))
	return remoteErr
}
