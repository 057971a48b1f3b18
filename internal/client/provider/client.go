// Package provider is the client side of the MediStore API: it signs the
// viewer in and out, streams auth-state changes, and calls the profile and
// order endpoints. Session tokens persist in local storage between runs.
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// Storage persists the session between runs. Setting "" clears a key.
type Storage interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

// Config configures a Client
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// Client talks to the MediStore API
type Client struct {
	baseURL    string
	http       *http.Client
	stream     *http.Client
	storage    Storage
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger

	mu      sync.Mutex
	changed chan struct{}
}

// New creates a client. Streams use a client without a timeout so they can
// stay open; every other call is bounded by cfg.Timeout.
func New(cfg Config, storage Storage, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 500 * time.Millisecond
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + "/api/v1",
		http:       &http.Client{Timeout: cfg.Timeout},
		stream:     &http.Client{},
		storage:    storage,
		maxRetries: max(cfg.MaxRetries, 0),
		backoff:    cfg.RetryBackoff,
		logger:     logger,
		changed:    make(chan struct{}),
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *dto.ErrorInfo  `json:"error"`
	Meta    *dto.Meta       `json:"meta"`
}

type request struct {
	method string
	path   string
	body   any
	token  string
	header map[string]string
}

type response struct {
	status int
	header http.Header
	meta   *dto.Meta
}

// do sends req and decodes the envelope's data into out when out is non-nil
func (c *Client) do(ctx context.Context, req request, out any) (*response, error) {
	var body io.Reader
	if req.body != nil {
		b, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+req.token)
	}
	for k, v := range req.header {
		httpReq.Header.Set(k, v)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil && !errors.Is(err, io.EOF) {
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, apiError(resp.StatusCode, nil)
		}
		return nil, fmt.Errorf("failed to decode %s %s response: %w", req.method, req.path, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		return nil, apiError(resp.StatusCode, env.Error)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return nil, fmt.Errorf("failed to decode %s %s data: %w", req.method, req.path, err)
		}
	}
	return &response{status: resp.StatusCode, header: resp.Header, meta: env.Meta}, nil
}

// transportError reports an unreachable server as Unavailable. Cancellation
// by the caller is returned as the context error.
func transportError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return shared.ErrUnavailable.WithMessage(fmt.Sprintf("Server unreachable: %v", err))
}

// apiError converts an error envelope into a DomainError
func apiError(status int, info *dto.ErrorInfo) error {
	code, message := "", http.StatusText(status)
	if info != nil {
		code = dto.ToDomainCode(info.Code)
		if info.Message != "" {
			message = info.Message
		}
	}
	if code == "" {
		switch {
		case status == http.StatusUnauthorized:
			code = shared.CodeAuth
		case status == http.StatusNotFound:
			code = shared.CodeNotFound
		case status == http.StatusTooManyRequests:
			code = shared.CodeRateLimited
		case status >= http.StatusInternalServerError:
			code = shared.CodeUnavailable
		default:
			code = shared.CodeInvalidInput
		}
	}
	return shared.NewDomainError(code, message)
}

// retry runs fn until it succeeds, fails with anything but Unavailable, or
// the retry budget is spent. The wait grows linearly with each attempt.
func (c *Client) retry(ctx context.Context, op string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, shared.ErrUnavailable) || attempt >= c.maxRetries {
			return err
		}
		wait := c.backoff * time.Duration(attempt+1)
		c.logger.Warn("Retrying request",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
