// Package account handles login: it exchanges a verified Telegram identity
// for a sealbox account and a bearer token.
package account

import (
	"context"
	"time"

	"github.com/sealbox/sealbox/internal/auth"
	"github.com/sealbox/sealbox/internal/auth/token"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	"github.com/sealbox/sealbox/internal/logger"
)

// Accounts is the write side of account storage the login flow needs.
// Implemented by store.AccountStore.
type Accounts interface {
	Ensure(ctx context.Context, telegramID, username string) (*auth.Account, error)
}

// Service turns a platform-authenticated principal into an account plus a
// self-issued bearer token.
type Service struct {
	accounts Accounts
	issuer   *token.Issuer
	tokenTTL time.Duration
	log      *logger.Logger
}

// NewService creates the account service.
func NewService(accounts Accounts, issuer *token.Issuer, tokenTTL time.Duration, log *logger.Logger) *Service {
	if tokenTTL <= 0 {
		tokenTTL = token.DefaultAccessTokenTTL
	}
	return &Service{
		accounts: accounts,
		issuer:   issuer,
		tokenTTL: tokenTTL,
		log:      log.WithComponent("account_service"),
	}
}

// Session is the result of a successful login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Account   *auth.Account
}

// Login ensures an account exists for the platform identity and issues a
// bearer token for it. The caller must have been authenticated on the
// platform path; a token-authenticated principal cannot mint fresh tokens
// here.
func (s *Service) Login(ctx context.Context, p *auth.Principal) (*Session, error) {
	if p.Method != auth.MethodPlatform || p.TelegramID == "" {
		return nil, apperrors.MissingCredential()
	}

	acct, err := s.accounts.Ensure(ctx, p.TelegramID, p.Username)
	if err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	if !acct.Active {
		return nil, apperrors.AccountInactive()
	}

	signed, err := s.issuer.Issue(acct.ID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	s.log.Info("Login succeeded", logger.Fields(
		logger.FieldAccountID, acct.ID,
		logger.FieldTelegramID, acct.TelegramID,
	))
	return &Session{
		Token:     signed,
		ExpiresAt: time.Now().Add(s.tokenTTL),
		Account:   acct,
	}, nil
}
