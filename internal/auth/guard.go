package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/sealbox/sealbox/internal/errors"
	"github.com/sealbox/sealbox/internal/auth/initdata"
	"github.com/sealbox/sealbox/internal/logger"
)

// DecisionRecorder receives the outcome of every authentication decision,
// for metrics. Implementations must be safe for concurrent use.
type DecisionRecorder interface {
	RecordDecision(ctx context.Context, method string, kind string)
}

// Guard is the single authentication decision point. It resolves the
// credential a request presents, verifies it, and attaches a Principal.
// All route-specific behavior comes from the Requirement; there is exactly
// one guard implementation.
type Guard struct {
	verifier TokenVerifier
	initData *initdata.Validator
	accounts AccountLookup
	log      *logger.Logger
	metrics  DecisionRecorder
}

// NewGuard creates a guard from its collaborators.
func NewGuard(verifier TokenVerifier, validator *initdata.Validator, accounts AccountLookup, log *logger.Logger) *Guard {
	return &Guard{
		verifier: verifier,
		initData: validator,
		accounts: accounts,
		log:      log.WithComponent("auth.guard"),
	}
}

// WithMetrics attaches a decision recorder and returns the receiver.
func (g *Guard) WithMetrics(m DecisionRecorder) *Guard {
	g.metrics = m
	return g
}

// Middleware returns the gin middleware enforcing the given requirement.
// On success the Principal is attached to the request context; on failure
// the request is aborted with the decision's error kind.
func (g *Guard) Middleware(req Requirement) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, authErr := g.Decide(c.Request.Context(), c.Request, req)
		if authErr != nil {
			g.reject(c, authErr)
			return
		}
		g.accept(c, principal)
		c.Next()
	}
}

// Decide runs the authentication state machine for a single request.
// It is terminal on the first success or first hard failure and never
// returns both a principal and an error.
func (g *Guard) Decide(ctx context.Context, r *http.Request, req Requirement) (*Principal, *apperrors.AppError) {
	mode := req.mode()

	// Bearer tokens short-circuit: when present, the platform payload is
	// not evaluated at all.
	if mode != ModePlatform {
		if bearer := extractBearer(r); bearer != "" {
			return g.decideToken(ctx, bearer, req)
		}
		if mode == ModeToken {
			return nil, apperrors.MissingCredential()
		}
	}

	body := peekBody(r)
	cred := decodeBodyCredential(body)
	raw := extractRaw(r, body, cred)

	if mode == ModeFlexible {
		return g.decideFlexible(ctx, raw)
	}

	if raw != "" {
		return g.decideRaw(ctx, raw, cred)
	}
	return g.decideStructured(ctx, cred)
}

// decideToken verifies a bearer token and resolves its account.
func (g *Guard) decideToken(ctx context.Context, bearer string, req Requirement) (*Principal, *apperrors.AppError) {
	subjectID, err := g.verifier.Verify(bearer)
	if err != nil {
		return nil, apperrors.InvalidOrExpiredToken().WithCause(err)
	}

	acct, err := g.accounts.FindByID(ctx, subjectID)
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return nil, apperrors.AccountInactive().WithCause(err)
	case err != nil:
		// A store failure says nothing about the account; do not let a
		// transient outage read as a deactivation.
		return nil, apperrors.DatabaseError(err)
	case !acct.Active:
		return nil, apperrors.AccountInactive()
	}
	if !req.SkipLinkageCheck && acct.TelegramID == "" {
		return nil, apperrors.MissingPlatformLinkage()
	}

	return &Principal{
		Method:           MethodToken,
		AccountID:        acct.ID,
		TelegramID:       acct.TelegramID,
		Username:         acct.Username,
		Role:             acct.Role,
		LinkedTelegramID: acct.TelegramID,
	}, nil
}

// decideRaw verifies a raw init-data payload and, when the body also
// carries a structured credential, requires both representations to agree
// before trusting either.
func (g *Guard) decideRaw(ctx context.Context, raw string, cred *bodyCredential) (*Principal, *apperrors.AppError) {
	if err := g.initData.CheckRaw(raw); err != nil {
		return nil, signatureError(err)
	}
	payload, err := initdata.Parse(raw)
	if err != nil || payload.User == nil {
		// A valid signature without a recoverable user id cannot yield an
		// identity; treat as a verification failure.
		return nil, apperrors.InvalidPlatformSignature()
	}

	if structured := extractStructured(cred); structured != nil {
		if mismatch := crossCheck(payload, structured); mismatch != nil {
			return nil, mismatch
		}
	}
	return g.platformPrincipal(ctx, payload.User)
}

// decideStructured verifies a structured-only credential from the body.
func (g *Guard) decideStructured(ctx context.Context, cred *bodyCredential) (*Principal, *apperrors.AppError) {
	structured := extractStructured(cred)
	if structured == nil {
		return nil, apperrors.MissingCredential()
	}
	if err := g.initData.CheckStructured(structured); err != nil {
		return nil, signatureError(err)
	}
	id, _ := strconv.ParseInt(structured.TelegramID, 10, 64)
	return g.platformPrincipal(ctx, &initdata.User{
		ID:        id,
		FirstName: structured.FirstName,
		LastName:  structured.LastName,
		Username:  structured.Username,
	})
}

// decideFlexible resolves the platform path for flexible routes: only a
// signed raw payload is accepted, with no structured-body fallback and no
// cross-checking.
func (g *Guard) decideFlexible(ctx context.Context, raw string) (*Principal, *apperrors.AppError) {
	if raw == "" {
		return nil, apperrors.MissingCredential()
	}
	if err := g.initData.CheckRaw(raw); err != nil {
		return nil, signatureError(err)
	}
	payload, err := initdata.Parse(raw)
	if err != nil || payload.User == nil {
		return nil, apperrors.InvalidPlatformSignature()
	}
	return g.platformPrincipal(ctx, payload.User)
}

// crossCheck requires exact equality of external id, auth timestamp, and
// signature between the raw payload and its structured counterpart. Any
// disagreement rejects the request even though the raw signature verified.
func crossCheck(payload *initdata.Payload, structured *initdata.StructuredCredential) *apperrors.AppError {
	rawID := strconv.FormatInt(payload.User.ID, 10)
	if structured.TelegramID != rawID ||
		structured.AuthDate != payload.AuthDate ||
		structured.Hash != payload.Hash {
		return apperrors.PayloadMismatch()
	}
	return nil
}

// platformPrincipal builds the principal for a verified platform identity,
// enriching it with stored account state when the Telegram user is known.
func (g *Guard) platformPrincipal(ctx context.Context, user *initdata.User) (*Principal, *apperrors.AppError) {
	telegramID := strconv.FormatInt(user.ID, 10)
	principal := &Principal{
		Method:     MethodPlatform,
		TelegramID: telegramID,
		Username:   user.Username,
		Role:       RoleUser,
	}

	acct, err := g.accounts.FindByTelegramID(ctx, telegramID)
	switch {
	case err == nil:
		if !acct.Active {
			return nil, apperrors.AccountInactive()
		}
		principal.AccountID = acct.ID
		principal.Role = acct.Role
		if acct.Username != "" {
			principal.Username = acct.Username
		}
		principal.LinkedTelegramID = acct.TelegramID
	case errors.Is(err, ErrAccountNotFound):
		// First contact from this Telegram user; the verified identity
		// stands on its own with the default role.
	default:
		g.log.Warn("account lookup failed", logger.Fields(
			logger.FieldTelegramID, telegramID,
			logger.FieldError, err.Error(),
		))
	}
	return principal, nil
}

// signatureError maps validator failures onto the stable error kinds.
func signatureError(err error) *apperrors.AppError {
	if errors.Is(err, initdata.ErrStale) {
		return apperrors.StalePayload()
	}
	return apperrors.InvalidPlatformSignature().WithCause(err)
}

// accept attaches the principal and records the decision.
func (g *Guard) accept(c *gin.Context, principal *Principal) {
	c.Request = c.Request.WithContext(setPrincipal(c.Request.Context(), principal))
	if g.metrics != nil {
		g.metrics.RecordDecision(c.Request.Context(), string(principal.Method), "authorized")
	}
	g.log.Debug("request authorized", logger.Fields(
		logger.FieldAuthMethod, string(principal.Method),
		logger.FieldTelegramID, principal.TelegramID,
		logger.FieldRoute, c.FullPath(),
	))
}

// reject aborts the request with the decision's kind. Only the kind and a
// generic message reach the client; credential material is never echoed and
// the Authorization header is redacted before logging.
func (g *Guard) reject(c *gin.Context, authErr *apperrors.AppError) {
	if g.metrics != nil {
		g.metrics.RecordDecision(c.Request.Context(), "none", string(authErr.Code))
	}
	g.log.Warn("request rejected", logger.Fields(
		logger.FieldAuthKind, string(authErr.Code),
		logger.FieldRoute, c.FullPath(),
		"method", c.Request.Method,
		"authorization", RedactAuthorization(c.Request.Header.Get("Authorization")),
	))
	c.AbortWithStatusJSON(authErr.HTTPStatus, authErr.ToResponse())
}

// RedactAuthorization strips the credential value from an Authorization
// header, preserving only the scheme for logs.
func RedactAuthorization(header string) string {
	if header == "" {
		return ""
	}
	scheme, _, found := cutSpace(header)
	if !found {
		return "[REDACTED]"
	}
	return scheme + " [REDACTED]"
}

func cutSpace(s string) (before, after string, found bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == ' ' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}
