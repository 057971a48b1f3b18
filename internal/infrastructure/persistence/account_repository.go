package persistence

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/identity"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormAccountRepository implements identity.AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// Create inserts a new account
func (r *GormAccountRepository) Create(ctx context.Context, account *identity.Account) error {
	model := models.AccountModelFromDomain(account)
	return translateError(r.db.WithContext(ctx).Create(model).Error)
}

// Update persists all mutable fields of an account
func (r *GormAccountRepository) Update(ctx context.Context, account *identity.Account) error {
	model := models.AccountModelFromDomain(account)
	result := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("id = ?", account.ID).
		Select("*").
		Omit("id", "created_at").
		Updates(model)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds an account by its ID
func (r *GormAccountRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.Account, error) {
	return r.findOne(ctx, "id = ?", id)
}

// FindByEmail finds an account by email, case-insensitively
func (r *GormAccountRepository) FindByEmail(ctx context.Context, email string) (*identity.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, shared.ErrNotFound
	}
	return r.findOne(ctx, "email = ?", email)
}

// FindByPhone finds an account by its E.164 phone number
func (r *GormAccountRepository) FindByPhone(ctx context.Context, phone string) (*identity.Account, error) {
	if phone == "" {
		return nil, shared.ErrNotFound
	}
	return r.findOne(ctx, "phone = ?", phone)
}

func (r *GormAccountRepository) findOne(ctx context.Context, query string, arg any) (*identity.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).Where(query, arg).First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	return model.ToDomain(), nil
}

var _ identity.AccountRepository = (*GormAccountRepository)(nil)
