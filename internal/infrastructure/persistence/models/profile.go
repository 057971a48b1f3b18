package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/medistore/backend/internal/domain/profile"
)

// ProfileModel is the persistence model for profile.Record
type ProfileModel struct {
	UserID        uuid.UUID `gorm:"type:uuid;primary_key"`
	Username      string    `gorm:"type:varchar(100)"`
	Email         string    `gorm:"type:varchar(320)"`
	AvatarKey     string    `gorm:"type:varchar(500)"`
	CreatedAt     time.Time `gorm:"not null"`
	LastLogin     *time.Time
	Appointments  int       `gorm:"not null;default:0"`
	Prescriptions int       `gorm:"not null;default:0"`
	Orders        int       `gorm:"not null;default:0"`
	Notifications int       `gorm:"not null;default:0"`
	UpdatedAt     time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProfileModel) TableName() string {
	return "profiles"
}

// ToDomain converts the model to a domain Record
func (m *ProfileModel) ToDomain() *profile.Record {
	return &profile.Record{
		UserID:    m.UserID,
		Username:  m.Username,
		Email:     m.Email,
		AvatarKey: m.AvatarKey,
		CreatedAt: m.CreatedAt,
		LastLogin: m.LastLogin,
		Counters: profile.Counters{
			Appointments:  m.Appointments,
			Prescriptions: m.Prescriptions,
			Orders:        m.Orders,
			Notifications: m.Notifications,
		},
		UpdatedAt: m.UpdatedAt,
	}
}

// ProfileModelFromDomain creates a new persistence model from a domain Record
func ProfileModelFromDomain(r *profile.Record) *ProfileModel {
	return &ProfileModel{
		UserID:        r.UserID,
		Username:      r.Username,
		Email:         r.Email,
		AvatarKey:     r.AvatarKey,
		CreatedAt:     r.CreatedAt,
		LastLogin:     r.LastLogin,
		Appointments:  r.Counters.Appointments,
		Prescriptions: r.Counters.Prescriptions,
		Orders:        r.Counters.Orders,
		Notifications: r.Counters.Notifications,
		UpdatedAt:     r.UpdatedAt,
	}
}

// CounterColumn returns the column backing c
func CounterColumn(c profile.Counter) (string, bool) {
	switch c {
	case profile.CounterAppointments:
		return "appointments", true
	case profile.CounterPrescriptions:
		return "prescriptions", true
	case profile.CounterOrders:
		return "orders", true
	case profile.CounterNotifications:
		return "notifications", true
	}
	return "", false
}
