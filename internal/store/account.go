// Package store persists sealbox accounts and secrets behind GORM, with an
// optional Redis cache in front of account lookups.
package store

import (
	"time"

	"github.com/sealbox/sealbox/internal/auth"
)

// AccountModel is the GORM persistence shape for an account.
type AccountModel struct {
	ID         string `gorm:"primaryKey;size:64"`
	TelegramID string `gorm:"uniqueIndex;size:32"`
	Username   string `gorm:"size:128"`
	Role       string `gorm:"size:16;default:user"`
	Active     bool   `gorm:"default:true"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// TableName overrides the GORM table name.
func (AccountModel) TableName() string { return "accounts" }

func (m *AccountModel) toAccount() *auth.Account {
	return &auth.Account{
		ID:         m.ID,
		TelegramID: m.TelegramID,
		Username:   m.Username,
		Role:       auth.Role(m.Role),
		Active:     m.Active,
	}
}

func fromAccount(a *auth.Account) *AccountModel {
	return &AccountModel{
		ID:         a.ID,
		TelegramID: a.TelegramID,
		Username:   a.Username,
		Role:       string(a.Role),
		Active:     a.Active,
	}
}
