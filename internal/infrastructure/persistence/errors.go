package persistence

import (
	"context"
	"errors"
	"fmt"

	"github.com/medistore/backend/internal/domain/shared"
	"gorm.io/gorm"
)

// translateError maps GORM errors onto domain errors. Anything that is not a
// missing row or a duplicate is treated as the store being unavailable.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return shared.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return shared.ErrAlreadyExists
	case errors.Is(err, context.Canceled):
		return err
	}
	return fmt.Errorf("%w: %v", shared.ErrUnavailable, err)
}
