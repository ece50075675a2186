// Package secret implements sealbox's core feature: sharing a short payload
// that is encrypted at rest, expires after a TTL, and can optionally burn
// itself on first view.
package secret

import (
	"context"
	"errors"
	"time"

	"github.com/sealbox/sealbox/internal/crypto"
)

// MaxPayloadBytes bounds the plaintext a caller may store.
const MaxPayloadBytes = 64 * 1024

// DefaultTTL applies when a create request does not carry one.
const DefaultTTL = 24 * time.Hour

// MaxTTL caps how long a secret may live.
const MaxTTL = 7 * 24 * time.Hour

// Record is the stored shape of a secret. The payload is sealed before it
// reaches the repository; plaintext exists only inside Service calls.
type Record struct {
	ID             string
	OwnerAccountID string
	Ciphertext     []byte
	Algorithm      crypto.Algorithm
	OneTime        bool
	CreatedAt      time.Time
	ExpiresAt      time.Time
	BurnedAt       *time.Time
}

// Expired reports whether the record's TTL has elapsed at now.
func (r *Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Burned reports whether a one-time record was already viewed.
func (r *Record) Burned() bool {
	return r.OneTime && r.BurnedAt != nil
}

// ErrNotFound is returned by Repository when no record matches.
var ErrNotFound = errors.New("secret: not found")

// Repository persists secret records. Implementations must be safe for
// concurrent use.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	MarkBurned(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*Record, error)
}
