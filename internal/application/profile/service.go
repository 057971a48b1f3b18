// Package profile serves the dashboard profile record and keeps it current
// from identity and order events.
package profile

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/profile"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/logger"
	"github.com/medistore/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ObjectStorage issues presigned URLs for avatar objects
type ObjectStorage interface {
	GenerateUploadURL(ctx context.Context, key, contentType string, expiresIn time.Duration) (string, time.Time, error)
	GenerateDownloadURL(ctx context.Context, key string, expiresIn time.Duration) (string, time.Time, error)
	DeleteObject(ctx context.Context, key string) error
}

var avatarContentTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

// ServiceConfig holds profile service settings
type ServiceConfig struct {
	AvatarURLExpiry time.Duration
}

// Service reads and maintains profile records
type Service struct {
	repo    profile.Repository
	storage ObjectStorage
	config  ServiceConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a profile service. storage may be nil, which disables avatars.
func NewService(repo profile.Repository, storage ObjectStorage, cfg ServiceConfig, logger *zap.Logger) *Service {
	if cfg.AvatarURLExpiry <= 0 {
		cfg.AvatarURLExpiry = 15 * time.Minute
	}
	return &Service{repo: repo, storage: storage, config: cfg, logger: logger, now: time.Now}
}

// WithClock overrides the clock used for isNewUser and timestamps
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Load returns the profile view for userID. isNewUser is computed against
// the service clock on every call.
func (s *Service) Load(ctx context.Context, userID uuid.UUID) (view *View, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "profile", "load", attribute.String("user.id", userID.String()))
	defer func() { telemetry.EndSpan(span, err) }()

	rec, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	view = NewView(rec, s.now())
	if rec.AvatarKey != "" && s.storage != nil {
		url, _, err := s.storage.GenerateDownloadURL(ctx, rec.AvatarKey, s.config.AvatarURLExpiry)
		if err != nil {
			logger.Or(ctx, s.logger).Warn("Failed to sign avatar URL", zap.Error(err))
		} else {
			view.AvatarURL = url
		}
	}
	return view, nil
}

// Create writes the initial record for a new account
func (s *Service) Create(ctx context.Context, userID uuid.UUID, email string, createdAt time.Time) error {
	rec, err := profile.NewRecord(userID, email, createdAt)
	if err != nil {
		return err
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

// Touch records a sign-in as the profile's lastLogin
func (s *Service) Touch(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return s.repo.TouchLastLogin(ctx, userID, at)
}

// IncrementOrders bumps counters.orders by one
func (s *Service) IncrementOrders(ctx context.Context, userID uuid.UUID) error {
	return s.repo.IncrementCounter(ctx, userID, profile.CounterOrders, 1)
}

// UpdateUsername sets the stored username; an empty name restores the email fallback
func (s *Service) UpdateUsername(ctx context.Context, userID uuid.UUID, username string) (*View, error) {
	rec, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := rec.SetUsername(username, now); err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, err
	}
	return NewView(rec, now), nil
}

// AvatarUpload is a presigned upload target
type AvatarUpload struct {
	UploadURL string    `json:"upload_url"`
	Key       string    `json:"key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AvatarUploadURL issues an upload URL for a new avatar and records its key.
// The previous avatar object is deleted best-effort.
func (s *Service) AvatarUploadURL(ctx context.Context, userID uuid.UUID, contentType string) (*AvatarUpload, error) {
	if s.storage == nil {
		return nil, shared.ErrUnavailable.WithMessage("Avatar storage is not configured")
	}
	ext, ok := avatarContentTypes[strings.ToLower(strings.TrimSpace(contentType))]
	if !ok {
		return nil, shared.ErrInvalidInput.WithMessage("Avatar must be a JPEG, PNG or WebP image")
	}
	rec, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	key := path.Join("avatars", userID.String(), uuid.NewString()+ext)
	url, expiresAt, err := s.storage.GenerateUploadURL(ctx, key, contentType, s.config.AvatarURLExpiry)
	if err != nil {
		return nil, fmt.Errorf("%w: sign avatar upload: %v", shared.ErrUnavailable, err)
	}

	previous := rec.AvatarKey
	rec.AvatarKey = key
	rec.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, rec); err != nil {
		return nil, err
	}
	if previous != "" {
		if err := s.storage.DeleteObject(ctx, previous); err != nil {
			logger.Or(ctx, s.logger).Warn("Failed to delete previous avatar",
				zap.String("key", previous), zap.Error(err))
		}
	}
	return &AvatarUpload{UploadURL: url, Key: key, ExpiresAt: expiresAt}, nil
}
