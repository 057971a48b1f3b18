package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/order"
	"github.com/medistore/backend/internal/domain/shared"
	"github.com/medistore/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormOrderRepository implements order.Repository using GORM
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new GormOrderRepository
func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Create inserts an order
func (r *GormOrderRepository) Create(ctx context.Context, o *order.Order) error {
	model, err := models.OrderModelFromDomain(o)
	if err != nil {
		return shared.ErrInvalidInput.WithMessage(err.Error())
	}
	return translateError(r.db.WithContext(ctx).Create(model).Error)
}

// FindByID finds an order owned by userID
func (r *GormOrderRepository) FindByID(ctx context.Context, userID, id uuid.UUID) (*order.Order, error) {
	return r.findOne(ctx, r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID))
}

// FindByIdempotencyKey finds the order a user placed under key
func (r *GormOrderRepository) FindByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*order.Order, error) {
	if key == "" {
		return nil, shared.ErrNotFound
	}
	return r.findOne(ctx, r.db.WithContext(ctx).Where("user_id = ? AND idempotency_key = ?", userID, key))
}

func (r *GormOrderRepository) findOne(_ context.Context, query *gorm.DB) (*order.Order, error) {
	var model models.OrderModel
	if err := query.First(&model).Error; err != nil {
		return nil, translateError(err)
	}
	o, err := model.ToDomain()
	if err != nil {
		return nil, translateError(err)
	}
	return o, nil
}

// FindByUser lists a user's orders, newest first unless the filter says otherwise
func (r *GormOrderRepository) FindByUser(ctx context.Context, userID uuid.UUID, filter shared.Filter) ([]*order.Order, int64, error) {
	filter = filter.Normalize()
	byUser := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&models.OrderModel{}).Where("user_id = ?", userID)
	}

	var total int64
	if err := byUser().Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var rows []models.OrderModel
	if err := byUser().
		Order(orderBy(filter, orderSortColumns)).
		Offset(filter.Offset()).
		Limit(filter.PageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, translateError(err)
	}

	orders := make([]*order.Order, 0, len(rows))
	for i := range rows {
		o, err := rows[i].ToDomain()
		if err != nil {
			return nil, 0, translateError(err)
		}
		orders = append(orders, o)
	}
	return orders, total, nil
}

var _ order.Repository = (*GormOrderRepository)(nil)
