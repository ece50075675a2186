package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sealbox/sealbox/internal/auth"
	"github.com/sealbox/sealbox/internal/database"
	"github.com/sealbox/sealbox/internal/logger"
)

// AccountStore is the GORM-backed account repository. It satisfies
// auth.AccountLookup and adds the write operations the account flows need.
type AccountStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewAccountStore creates an account store over the given database.
func NewAccountStore(db *database.DB, log *logger.Logger) *AccountStore {
	return &AccountStore{db: db.GormDB, log: log.WithComponent("account_store")}
}

// Migrate creates or updates the accounts table.
func (s *AccountStore) Migrate() error {
	return s.db.AutoMigrate(&AccountModel{})
}

// FindByID implements auth.AccountLookup.
func (s *AccountStore) FindByID(ctx context.Context, id string) (*auth.Account, error) {
	var m AccountModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account by id: %w", err)
	}
	return m.toAccount(), nil
}

// FindByTelegramID implements auth.AccountLookup.
func (s *AccountStore) FindByTelegramID(ctx context.Context, telegramID string) (*auth.Account, error) {
	var m AccountModel
	err := s.db.WithContext(ctx).First(&m, "telegram_id = ?", telegramID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, auth.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("account by telegram id: %w", err)
	}
	return m.toAccount(), nil
}

// Ensure creates an account for the Telegram identity if none exists and
// returns the stored account either way. New accounts get a fresh id, the
// user role, and an active flag.
func (s *AccountStore) Ensure(ctx context.Context, telegramID, username string) (*auth.Account, error) {
	existing, err := s.FindByTelegramID(ctx, telegramID)
	if err == nil {
		if username != "" && username != existing.Username {
			if err := s.db.WithContext(ctx).Model(&AccountModel{}).
				Where("id = ?", existing.ID).
				Update("username", username).Error; err != nil {
				return nil, fmt.Errorf("account username refresh: %w", err)
			}
			existing.Username = username
		}
		return existing, nil
	}
	if !errors.Is(err, auth.ErrAccountNotFound) {
		return nil, err
	}

	m := AccountModel{
		ID:         uuid.NewString(),
		TelegramID: telegramID,
		Username:   username,
		Role:       string(auth.RoleUser),
		Active:     true,
	}
	// Two concurrent first logins can race on the unique telegram_id index;
	// the loser falls back to reading the winner's row.
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "telegram_id"}},
		DoNothing: true,
	}).Create(&m).Error
	if err != nil {
		return nil, fmt.Errorf("account create: %w", err)
	}
	s.log.Info("Account ensured", logger.Fields(
		logger.FieldTelegramID, telegramID,
	))
	return s.FindByTelegramID(ctx, telegramID)
}

// Save upserts the full account record.
func (s *AccountStore) Save(ctx context.Context, a *auth.Account) error {
	m := fromAccount(a)
	if err := s.db.WithContext(ctx).Save(m).Error; err != nil {
		return fmt.Errorf("account save: %w", err)
	}
	return nil
}

var _ auth.AccountLookup = (*AccountStore)(nil)
