package profile

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Counter names a field of Counters
type Counter string

const (
	CounterAppointments  Counter = "appointments"
	CounterPrescriptions Counter = "prescriptions"
	CounterOrders        Counter = "orders"
	CounterNotifications Counter = "notifications"
)

// Valid reports whether c names a known counter
func (c Counter) Valid() bool {
	switch c {
	case CounterAppointments, CounterPrescriptions, CounterOrders, CounterNotifications:
		return true
	}
	return false
}

// Repository persists profile records.
// FindByUserID returns shared.ErrNotFound for unknown users and
// shared.ErrUnavailable when the database cannot be reached.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	Save(ctx context.Context, r *Record) error
	FindByUserID(ctx context.Context, userID uuid.UUID) (*Record, error)
	TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time) error
	IncrementCounter(ctx context.Context, userID uuid.UUID, c Counter, delta int) error
}
