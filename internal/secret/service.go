package secret

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sealbox/sealbox/internal/auth"
	"github.com/sealbox/sealbox/internal/crypto"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	"github.com/sealbox/sealbox/internal/logger"
	"github.com/sealbox/sealbox/internal/redis"
)

// burnLockTTL bounds how long a reveal holds the one-time lock. Long enough
// to cover the database round trips, short enough that a crashed reveal does
// not wedge the secret forever.
const burnLockTTL = 30 * time.Second

// Notifier delivers share notifications. Satisfied by telegram.Client
// and telegram.LogNotifier.
type Notifier interface {
	SendMessage(ctx context.Context, chatID string, text string) error
}

// Service owns the secret lifecycle: sealing on create, TTL and burn
// enforcement on reveal, and owner-scoped listing and deletion.
type Service struct {
	repo     Repository
	sealer   crypto.Sealer
	key      string
	locks    *redis.Client
	notifier Notifier
	log      *logger.Logger
	now      func() time.Time
}

// NewService creates the secret service. locks may be nil; one-time burns
// then rely on the repository's conditional update alone.
func NewService(repo Repository, sealer crypto.Sealer, key string, locks *redis.Client, log *logger.Logger) *Service {
	return &Service{
		repo:   repo,
		sealer: sealer,
		key:    key,
		locks:  locks,
		log:    log.WithComponent("secret_service"),
		now:    time.Now,
	}
}

// WithNotifier attaches a share notifier and returns the receiver.
func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

// CreateInput carries a validated create request.
type CreateInput struct {
	Payload string
	TTL     time.Duration
	OneTime bool

	// RecipientTelegramID, when set, is the chat to notify about the new
	// secret. Delivery is best effort and never fails the create.
	RecipientTelegramID string
}

// Created is the caller-visible result of a create.
type Created struct {
	ID        string
	ExpiresAt time.Time
	OneTime   bool
}

// Create seals the payload and stores a new record owned by the principal.
func (s *Service) Create(ctx context.Context, p *auth.Principal, in CreateInput) (*Created, error) {
	if in.Payload == "" {
		return nil, apperrors.Validation("payload is required")
	}
	if len(in.Payload) > MaxPayloadBytes {
		return nil, apperrors.Validation("payload too large")
	}
	ttl := in.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if ttl > MaxTTL {
		return nil, apperrors.Validation("ttl exceeds maximum")
	}

	sealed, err := s.sealer.Seal([]byte(in.Payload))
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	now := s.now()
	rec := &Record{
		ID:             uuid.NewString(),
		OwnerAccountID: ownerKey(p),
		Ciphertext:     sealed,
		Algorithm:      s.sealer.Algorithm(),
		OneTime:        in.OneTime,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return nil, apperrors.DatabaseError(err)
	}

	s.log.Info("Secret created", logger.Fields(
		"secret_id", rec.ID,
		logger.FieldAccountID, p.AccountID,
		"one_time", rec.OneTime,
	))

	if in.RecipientTelegramID != "" && s.notifier != nil {
		s.notifyRecipient(ctx, in.RecipientTelegramID, rec.ID)
	}
	return &Created{ID: rec.ID, ExpiresAt: rec.ExpiresAt, OneTime: rec.OneTime}, nil
}

// notifyRecipient tells the recipient a secret is waiting for them. The
// message never carries the payload, only the id needed to reveal it.
func (s *Service) notifyRecipient(ctx context.Context, chatID, secretID string) {
	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		text := "A secret was shared with you. ID: " + secretID
		if err := s.notifier.SendMessage(nctx, chatID, text); err != nil {
			s.log.Warn("Share notification failed", logger.Fields(
				"secret_id", secretID,
				logger.FieldError, err.Error(),
			))
		}
	}()
}

// Revealed is the caller-visible result of a reveal.
type Revealed struct {
	Payload   string
	OneTime   bool
	ExpiresAt time.Time
}

// Reveal returns the decrypted payload. Expired and already-burned secrets
// read as not found so a reveal response never confirms past existence. A
// one-time secret is burned before its payload is returned; concurrent
// reveals race on a Redis lock and then on the repository's conditional
// burn, so at most one caller wins.
func (s *Service) Reveal(ctx context.Context, id string) (*Revealed, error) {
	rec, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.OneTime {
		if err := s.burn(ctx, rec); err != nil {
			return nil, err
		}
	}

	opened, err := s.open(rec)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.log.Info("Secret revealed", logger.Fields(
		"secret_id", rec.ID,
		"one_time", rec.OneTime,
	))
	return &Revealed{Payload: string(opened), OneTime: rec.OneTime, ExpiresAt: rec.ExpiresAt}, nil
}

// Delete removes a secret. Only the owner or an admin may delete.
func (s *Service) Delete(ctx context.Context, p *auth.Principal, id string) error {
	rec, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if rec.OwnerAccountID != ownerKey(p) && !p.HasRole(auth.RoleAdmin) {
		return apperrors.InsufficientRole()
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.DatabaseError(err)
	}
	s.log.Info("Secret deleted", logger.Fields("secret_id", id))
	return nil
}

// Metadata describes a secret without its payload.
type Metadata struct {
	ID        string
	OneTime   bool
	CreatedAt time.Time
	ExpiresAt time.Time
}

// ListMine returns metadata for the principal's live secrets.
func (s *Service) ListMine(ctx context.Context, p *auth.Principal) ([]Metadata, error) {
	recs, err := s.repo.ListByOwner(ctx, ownerKey(p))
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	now := s.now()
	out := make([]Metadata, 0, len(recs))
	for _, rec := range recs {
		if rec.Expired(now) || rec.Burned() {
			continue
		}
		out = append(out, Metadata{
			ID:        rec.ID,
			OneTime:   rec.OneTime,
			CreatedAt: rec.CreatedAt,
			ExpiresAt: rec.ExpiresAt,
		})
	}
	return out, nil
}

// PurgeExpired deletes all records past their TTL. Run periodically by the
// bootstrap's janitor loop.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, apperrors.DatabaseError(err)
	}
	if n > 0 {
		s.log.Info("Expired secrets purged", logger.Fields("count", n))
	}
	return n, nil
}

// ownerKey derives the ownership key for a principal. The Telegram identity
// wins whenever present: it is the one identifier that survives the
// platform-principal-to-account transition at login, so secrets created
// before the first login stay owned by the same caller afterwards. Only
// token principals without a linkage fall back to the account id.
func ownerKey(p *auth.Principal) string {
	if p.TelegramID != "" {
		return "tg:" + p.TelegramID
	}
	return p.AccountID
}

func (s *Service) load(ctx context.Context, id string) (*Record, error) {
	rec, err := s.repo.Get(ctx, id)
	if err == ErrNotFound {
		return nil, apperrors.NotFound("secret", id)
	}
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if rec.Expired(s.now()) || rec.Burned() {
		return nil, apperrors.NotFound("secret", id)
	}
	return rec, nil
}

func (s *Service) burn(ctx context.Context, rec *Record) error {
	if s.locks != nil {
		won, err := s.locks.SetNX(ctx, "sealbox:burn:"+rec.ID, 1, burnLockTTL)
		if err != nil {
			s.log.Warn("Burn lock unavailable, falling back to db burn", logger.Fields(
				"secret_id", rec.ID,
				logger.FieldError, err.Error(),
			))
		} else if !won {
			return apperrors.NotFound("secret", rec.ID)
		}
	}
	if err := s.repo.MarkBurned(ctx, rec.ID, s.now()); err != nil {
		if err == ErrNotFound {
			return apperrors.NotFound("secret", rec.ID)
		}
		return apperrors.DatabaseError(err)
	}
	return nil
}

func (s *Service) open(rec *Record) ([]byte, error) {
	if rec.Algorithm == s.sealer.Algorithm() {
		return s.sealer.Open(rec.Ciphertext)
	}
	sealer, err := crypto.ForAlgorithm(s.key, rec.Algorithm)
	if err != nil {
		return nil, err
	}
	return sealer.Open(rec.Ciphertext)
}
