package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/profile"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormProfileRepository implements profile.Repository using GORM
type GormProfileRepository struct {
	db *gorm.DB
}

// NewGormProfileRepository creates a new GormProfileRepository
func NewGormProfileRepository(db *gorm.DB) *GormProfileRepository {
	return &GormProfileRepository{db: db}
}

// Create inserts a profile record
func (r *GormProfileRepository) Create(ctx context.Context, rec *profile.Record) error {
	return translateError(r.db.WithContext(ctx).Create(models.ProfileModelFromDomain(rec)).Error)
}

// Save overwrites the editable fields of a profile
func (r *GormProfileRepository) Save(ctx context.Context, rec *profile.Record) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProfileModel{}).
		Where("user_id = ?", rec.UserID).
		Updates(map[string]any{
			"username":   rec.Username,
			"email":      rec.Email,
			"avatar_key": rec.AvatarKey,
			"updated_at": rec.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByUserID loads the profile of a user
func (r *GormProfileRepository) FindByUserID(ctx context.Context, userID uuid.UUID) (*profile.Record, error) {
	var model models.ProfileModel
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

// TouchLastLogin sets last_login
func (r *GormProfileRepository) TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&models.ProfileModel{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{"last_login": at, "updated_at": at})
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// IncrementCounter adds delta to a counter atomically
func (r *GormProfileRepository) IncrementCounter(ctx context.Context, userID uuid.UUID, c profile.Counter, delta int) error {
	column, ok := models.CounterColumn(c)
	if !ok {
		return shared.ErrInvalidInput.WithMessage("Unknown counter: " + string(c))
	}
	result := r.db.WithContext(ctx).
		Model(&models.ProfileModel{}).
		Where("user_id = ?", userID).
		UpdateColumn(column, gorm.Expr(column+" + ?", delta))
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

var _ profile.Repository = (*GormProfileRepository)(nil)
