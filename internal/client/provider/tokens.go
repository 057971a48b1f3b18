package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// SessionKey is the local-storage key holding the signed-in session
const SessionKey = "session"

type storedSession struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         session.User `json:"user"`
}

type tokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// loadSession returns the persisted session, or nil when signed out
func (c *Client) loadSession(ctx context.Context) (*storedSession, error) {
	raw, err := c.storage.Get(ctx, SessionKey)
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}
	if raw == "" {
		return nil, nil
	}
	var s storedSession
	if err := json.Unmarshal([]byte(raw), &s); err != nil || s.AccessToken == "" {
		c.logger.Warn("Discarding unreadable session", zap.Error(err))
		return nil, nil
	}
	return &s, nil
}

func (c *Client) saveSession(ctx context.Context, s *storedSession) error {
	value := ""
	if s != nil {
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("encode session: %w", err)
		}
		value = string(b)
	}
	if err := c.storage.Set(ctx, SessionKey, value); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	c.notify()
	return nil
}

// notify wakes every watcher waiting on the current session
func (c *Client) notify() {
	c.mu.Lock()
	close(c.changed)
	c.changed = make(chan struct{})
	c.mu.Unlock()
}

// sessionChanged returns a channel closed on the next session write
func (c *Client) sessionChanged() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.changed
}

// refresh rotates the token pair. A rejected refresh token signs the
// viewer out locally.
func (c *Client) refresh(ctx context.Context, s *storedSession) (*storedSession, error) {
	if s.RefreshToken == "" {
		return nil, shared.ErrAuth.WithMessage("Session expired")
	}
	var out struct {
		Token tokenPair `json:"token"`
	}
	_, err := c.do(ctx, request{
		method: "POST",
		path:   "/auth/refresh",
		body:   map[string]string{"refresh_token": s.RefreshToken},
	}, &out)
	if err != nil {
		if errors.Is(err, shared.ErrAuth) {
			c.logger.Info("Refresh token rejected, clearing session", zap.String("user_id", s.User.ID))
			if clearErr := c.saveSession(ctx, nil); clearErr != nil {
				c.logger.Error("Failed to clear session", zap.Error(clearErr))
			}
		}
		return nil, err
	}
	next := &storedSession{
		AccessToken:  out.Token.AccessToken,
		RefreshToken: out.Token.RefreshToken,
		User:         s.User,
	}
	if err := c.saveSession(ctx, next); err != nil {
		return nil, err
	}
	return next, nil
}

// authed runs call with the current access token, refreshing once when the
// server rejects it
func (c *Client) authed(ctx context.Context, call func(token string) error) error {
	s, err := c.loadSession(ctx)
	if err != nil {
		return err
	}
	if s == nil {
		return shared.ErrAuth.WithMessage("Not signed in")
	}
	err = call(s.AccessToken)
	if !errors.Is(err, shared.ErrAuth) || s.RefreshToken == "" {
		return err
	}
	s, refreshErr := c.refresh(ctx, s)
	if refreshErr != nil {
		return err
	}
	return call(s.AccessToken)
}
