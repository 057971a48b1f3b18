package provider

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/medistore/backend/internal/domain/session"
	"github.com/medistore/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const (
	eventAuthState = "auth_state"
	maxEventSize   = 64 * 1024
)

// Subscribe reports the signed-in user, or nil, to fn until the returned
// unsubscribe func is called or ctx ends. fn runs on one goroutine in the
// order changes happen. While signed in the server's event stream is
// followed and reconnected after failures; local sign-ins and sign-outs
// restart the watch.
func (c *Client) Subscribe(ctx context.Context, fn func(*session.User)) (func(), error) {
	if _, err := c.loadSession(ctx); err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.watch(watchCtx, fn)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}, nil
}

func (c *Client) watch(ctx context.Context, fn func(*session.User)) {
	emitted, signedOut := false, false
	emit := func(u *session.User) {
		if u == nil && emitted && signedOut {
			return
		}
		emitted, signedOut = true, u == nil
		fn(u)
	}

	failures := 0
	for ctx.Err() == nil {
		changed := c.sessionChanged()
		s, err := c.loadSession(ctx)
		if err != nil {
			c.logger.Error("Failed to read session", zap.Error(err))
			failures++
			c.pause(ctx, changed, failures)
			continue
		}
		if s == nil {
			emit(nil)
			failures = 0
			select {
			case <-ctx.Done():
			case <-changed:
			}
			continue
		}

		ended, err := c.follow(ctx, changed, s.AccessToken, emit)
		switch {
		case ctx.Err() != nil:
			return
		case ended:
			failures = 0
		case errors.Is(err, shared.ErrAuth):
			if _, err := c.refresh(ctx, s); err != nil && !errors.Is(err, shared.ErrAuth) {
				failures++
				c.pause(ctx, changed, failures)
			}
		default:
			if err != nil {
				c.logger.Warn("Auth event stream interrupted", zap.Error(err))
			}
			failures++
			c.pause(ctx, changed, failures)
		}
	}
}

// pause waits before reconnecting, up to 30s, returning early on a session change
func (c *Client) pause(ctx context.Context, changed <-chan struct{}, failures int) {
	wait := min(c.backoff*time.Duration(failures), 30*time.Second)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-changed:
	case <-timer.C:
	}
}

// follow reads one event stream until it ends. ended is true when the
// server reported a sign-out, which also clears the local session.
func (c *Client) follow(ctx context.Context, changed <-chan struct{}, token string, emit func(*session.User)) (ended bool, err error) {
	streamCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-changed:
			cancel()
		case <-streamCtx.Done():
		}
	}()
	defer func() {
		cancel()
		wg.Wait()
	}()

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, c.baseURL+"/auth/events", nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.stream.Do(req)
	if err != nil {
		return false, transportError(streamCtx, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, apiError(resp.StatusCode, nil)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 4096), maxEventSize)
	var event string
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if event == eventAuthState && data.Len() > 0 {
				if c.dispatch(ctx, data.String(), emit) {
					return true, nil
				}
			}
			event = ""
			data.Reset()
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			event = value
		case "data":
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return false, transportError(streamCtx, err)
	}
	return false, nil
}

// dispatch emits one auth_state event and reports whether it was a sign-out
func (c *Client) dispatch(ctx context.Context, data string, emit func(*session.User)) bool {
	var change session.Change
	if err := json.Unmarshal([]byte(data), &change); err != nil {
		c.logger.Warn("Ignoring malformed auth event", zap.String("data", data), zap.Error(err))
		return false
	}
	emit(change.User)
	if change.SignedIn() {
		return false
	}
	c.logger.Info("Signed out by server", zap.String("user_id", change.UserID))
	if err := c.saveSession(ctx, nil); err != nil {
		c.logger.Error("Failed to clear session", zap.Error(err))
	}
	return true
}
