package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sealbox/sealbox/internal/crypto"
	"github.com/sealbox/sealbox/internal/database"
	"github.com/sealbox/sealbox/internal/logger"
	"github.com/sealbox/sealbox/internal/secret"
)

// SecretModel is the GORM persistence shape for a sealed secret.
type SecretModel struct {
	ID             string `gorm:"primaryKey;size:64"`
	OwnerAccountID string `gorm:"index;size:64"`
	Ciphertext     []byte `gorm:"not null"`
	Algorithm      string `gorm:"size:32"`
	OneTime        bool
	CreatedAt      time.Time
	ExpiresAt      time.Time `gorm:"index"`
	BurnedAt       *time.Time
}

// TableName overrides the GORM table name.
func (SecretModel) TableName() string { return "secrets" }

func (m *SecretModel) toRecord() *secret.Record {
	return &secret.Record{
		ID:             m.ID,
		OwnerAccountID: m.OwnerAccountID,
		Ciphertext:     m.Ciphertext,
		Algorithm:      crypto.Algorithm(m.Algorithm),
		OneTime:        m.OneTime,
		CreatedAt:      m.CreatedAt,
		ExpiresAt:      m.ExpiresAt,
		BurnedAt:       m.BurnedAt,
	}
}

// SecretStore is the GORM-backed secret repository.
type SecretStore struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewSecretStore creates a secret store over the given database.
func NewSecretStore(db *database.DB, log *logger.Logger) *SecretStore {
	return &SecretStore{db: db.GormDB, log: log.WithComponent("secret_store")}
}

// Migrate creates or updates the secrets table.
func (s *SecretStore) Migrate() error {
	return s.db.AutoMigrate(&SecretModel{})
}

// Create implements secret.Repository.
func (s *SecretStore) Create(ctx context.Context, rec *secret.Record) error {
	m := SecretModel{
		ID:             rec.ID,
		OwnerAccountID: rec.OwnerAccountID,
		Ciphertext:     rec.Ciphertext,
		Algorithm:      string(rec.Algorithm),
		OneTime:        rec.OneTime,
		CreatedAt:      rec.CreatedAt,
		ExpiresAt:      rec.ExpiresAt,
	}
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		return fmt.Errorf("secret create: %w", err)
	}
	return nil
}

// Get implements secret.Repository.
func (s *SecretStore) Get(ctx context.Context, id string) (*secret.Record, error) {
	var m SecretModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, secret.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("secret get: %w", err)
	}
	return m.toRecord(), nil
}

// MarkBurned implements secret.Repository. The update is conditional on the
// record not already being burned, so concurrent reveals resolve to exactly
// one winner even without the Redis lock.
func (s *SecretStore) MarkBurned(ctx context.Context, id string, at time.Time) error {
	res := s.db.WithContext(ctx).Model(&SecretModel{}).
		Where("id = ? AND burned_at IS NULL", id).
		Update("burned_at", at)
	if res.Error != nil {
		return fmt.Errorf("secret burn: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return secret.ErrNotFound
	}
	return nil
}

// Delete implements secret.Repository.
func (s *SecretStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&SecretModel{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("secret delete: %w", err)
	}
	return nil
}

// DeleteExpired implements secret.Repository.
func (s *SecretStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Delete(&SecretModel{}, "expires_at <= ?", now)
	if res.Error != nil {
		return 0, fmt.Errorf("secret purge: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// ListByOwner implements secret.Repository.
func (s *SecretStore) ListByOwner(ctx context.Context, ownerID string) ([]*secret.Record, error) {
	var models []SecretModel
	err := s.db.WithContext(ctx).
		Where("owner_account_id = ?", ownerID).
		Order("created_at DESC").
		Find(&models).Error
	if err != nil {
		return nil, fmt.Errorf("secret list: %w", err)
	}
	out := make([]*secret.Record, 0, len(models))
	for i := range models {
		out = append(out, models[i].toRecord())
	}
	return out, nil
}

var _ secret.Repository = (*SecretStore)(nil)
