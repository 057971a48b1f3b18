package identity

import (
	"context"

	"github.com/google/uuid"
)

// AccountRepository defines the interface for account persistence
type AccountRepository interface {
	// Create creates a new account.
	// Returns shared.ErrAlreadyExists when the email or phone is taken.
	Create(ctx context.Context, account *Account) error

	// Update persists changes to an existing account
	Update(ctx context.Context, account *Account) error

	// FindByID finds an account by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Account, error)

	// FindByEmail finds an account by normalized email
	FindByEmail(ctx context.Context, email string) (*Account, error)

	// FindByPhone finds an account by E.164 phone
	FindByPhone(ctx context.Context, phone string) (*Account, error)
}
