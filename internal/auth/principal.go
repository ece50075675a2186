// Package auth implements the sealbox trust boundary: credential
// resolution, signature and token verification, and role authorization for
// inbound HTTP requests.
//
// Every route is registered with a Requirement describing which credential
// kinds it accepts and which roles it demands; a single Guard inspects the
// request, verifies the presented credential, and attaches an immutable
// Principal to the request context for downstream handlers.
package auth

import (
	"context"
	"errors"
)

// AuthMethod identifies which credential authenticated the request.
type AuthMethod string

const (
	// MethodToken: a bearer token issued by sealbox itself.
	MethodToken AuthMethod = "token"
	// MethodPlatform: signed Telegram mini-app init data.
	MethodPlatform AuthMethod = "platform"
)

// Role is an account's authorization level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal is the resolved, request-scoped identity. It is constructed
// exactly once per request, only after the presented credential verified,
// and is never shared across requests.
type Principal struct {
	// Method is the credential kind that authenticated this request.
	Method AuthMethod
	// AccountID is the sealbox account id. Empty on the platform path when
	// the Telegram user has no stored account yet.
	AccountID string
	// TelegramID is the external platform identity.
	TelegramID string
	// Username is the platform username, when known.
	Username string
	// Role is the account's authorization level.
	Role Role
	// LinkedTelegramID is the platform identity linked to a
	// token-authenticated account.
	LinkedTelegramID string
}

// HasRole reports whether the principal's role is in the given set.
func (p *Principal) HasRole(roles ...Role) bool {
	for _, r := range roles {
		if p.Role == r {
			return true
		}
	}
	return false
}

// Account is the stored account state the guard reads. Long-lived state;
// mutated only by account-management flows outside this package.
type Account struct {
	ID         string
	TelegramID string
	Username   string
	Role       Role
	Active     bool
}

// ErrAccountNotFound is returned by AccountLookup when no account matches.
var ErrAccountNotFound = errors.New("auth: account not found")

// AccountLookup is the read-only principal store consumed by the guard.
// Implementations must be safe for concurrent use.
type AccountLookup interface {
	// FindByID looks up an account by its sealbox account id.
	FindByID(ctx context.Context, id string) (*Account, error)
	// FindByTelegramID looks up an account by its linked platform identity.
	FindByTelegramID(ctx context.Context, telegramID string) (*Account, error)
}

// TokenVerifier verifies a bearer token and returns the subject account id.
// Satisfied by token.Issuer.
type TokenVerifier interface {
	Verify(token string) (subjectID string, err error)
}

// TokenVerifierFunc adapts an ordinary function to the TokenVerifier interface.
type TokenVerifierFunc func(token string) (string, error)

// Verify implements TokenVerifier.
func (f TokenVerifierFunc) Verify(token string) (string, error) {
	return f(token)
}
