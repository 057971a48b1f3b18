package storage

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	profileapp "github.com/medistore/backend/internal/application/profile"
)

var _ profileapp.ObjectStorage = (*StubObjectStorage)(nil)

// StubObjectStorage hands out unsigned URLs under BaseURL.
// Used when no bucket is configured.
type StubObjectStorage struct {
	BaseURL string
	now     func() time.Time

	mu      sync.Mutex
	deleted []string
}

// NewStubObjectStorage creates a stub rooted at baseURL
func NewStubObjectStorage(baseURL string) *StubObjectStorage {
	if baseURL == "" {
		baseURL = "http://localhost:8080/static"
	}
	return &StubObjectStorage{BaseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

func (s *StubObjectStorage) url(kind, key string, expiresAt time.Time) string {
	return s.BaseURL + "/" + kind + "/" + key + "?expires=" + url.QueryEscape(expiresAt.UTC().Format(time.RFC3339))
}

// GenerateUploadURL returns a stub upload URL
func (s *StubObjectStorage) GenerateUploadURL(_ context.Context, key, _ string, expiresIn time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, ErrEmptyKey
	}
	expiresAt := s.now().Add(expiresIn)
	return s.url("upload", key, expiresAt), expiresAt, nil
}

// GenerateDownloadURL returns a stub download URL
func (s *StubObjectStorage) GenerateDownloadURL(_ context.Context, key string, expiresIn time.Duration) (string, time.Time, error) {
	if key == "" {
		return "", time.Time{}, ErrEmptyKey
	}
	expiresAt := s.now().Add(expiresIn)
	return s.url("download", key, expiresAt), expiresAt, nil
}

// DeleteObject records the key
func (s *StubObjectStorage) DeleteObject(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	s.mu.Lock()
	s.deleted = append(s.deleted, key)
	s.mu.Unlock()
	return nil
}

// Deleted returns the keys passed to DeleteObject
func (s *StubObjectStorage) Deleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.deleted...)
}
