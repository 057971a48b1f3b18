package models

import (
	"strings"
	"time"

	"github.com/medistore/backend/internal/domain/identity"
)

// AccountModel is the persistence model for identity.Account
type AccountModel struct {
	AggregateModel
	Email          *string    `gorm:"type:varchar(320);uniqueIndex"`
	Phone          *string    `gorm:"type:varchar(20);uniqueIndex"`
	PasswordHash   string     `gorm:"type:varchar(255)"`
	DisplayName    string     `gorm:"type:varchar(200)"`
	PhotoURL       string     `gorm:"type:varchar(500)"`
	Providers      string     `gorm:"type:varchar(100);not null"` // comma-separated
	Status         string     `gorm:"type:varchar(20);not null;default:'active'"`
	LastLoginAt    *time.Time
	FailedAttempts int `gorm:"not null;default:0"`
	LockedUntil    *time.Time
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "accounts"
}

// ToDomain converts the model to a domain Account
func (m *AccountModel) ToDomain() *identity.Account {
	var providers []identity.Provider
	for p := range strings.SplitSeq(m.Providers, ",") {
		if p != "" {
			providers = append(providers, identity.Provider(p))
		}
	}
	return &identity.Account{
		BaseAggregateRoot: m.root(),
		Email:             deref(m.Email),
		Phone:             deref(m.Phone),
		PasswordHash:      m.PasswordHash,
		DisplayName:       m.DisplayName,
		PhotoURL:          m.PhotoURL,
		Providers:         providers,
		Status:            identity.AccountStatus(m.Status),
		LastLoginAt:       m.LastLoginAt,
		FailedAttempts:    m.FailedAttempts,
		LockedUntil:       m.LockedUntil,
	}
}

// FromDomain populates the model from a domain Account
func (m *AccountModel) FromDomain(a *identity.Account) {
	m.setRoot(a.BaseAggregateRoot)
	m.Email = nullable(a.Email)
	m.Phone = nullable(a.Phone)
	m.PasswordHash = a.PasswordHash
	m.DisplayName = a.DisplayName
	m.PhotoURL = a.PhotoURL
	names := make([]string, len(a.Providers))
	for i, p := range a.Providers {
		names[i] = string(p)
	}
	m.Providers = strings.Join(names, ",")
	m.Status = string(a.Status)
	m.LastLoginAt = a.LastLoginAt
	m.FailedAttempts = a.FailedAttempts
	m.LockedUntil = a.LockedUntil
}

// AccountModelFromDomain creates a new persistence model from domain Account
func AccountModelFromDomain(a *identity.Account) *AccountModel {
	m := &AccountModel{}
	m.FromDomain(a)
	return m
}
