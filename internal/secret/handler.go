package secret

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sealbox/sealbox/internal/auth"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	"github.com/sealbox/sealbox/internal/server"
	"github.com/sealbox/sealbox/internal/validation"
)

// Handler exposes the secret lifecycle over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates the secret HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type createRequest struct {
	// Payload is the plaintext to seal. Create requests also carry the
	// caller's init data, so the guard can read the same body.
	Payload string `json:"payload" validate:"required"`
	// TTL is a Go duration string like "30m" or "48h".
	TTL     string `json:"ttl" validate:"omitempty,max=32"`
	OneTime bool   `json:"oneTime"`
	// Recipient is the Telegram chat id to notify about the new secret.
	Recipient string `json:"recipient" validate:"omitempty,numeric,max=32"`
}

type createResponse struct {
	ID        string    `json:"id"`
	ExpiresAt time.Time `json:"expiresAt"`
	OneTime   bool      `json:"oneTime"`
}

// Create handles POST /api/v1/secrets.
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		server.RespondWithError(c, apperrors.Validation("invalid request body"))
		return
	}
	if err := validation.Validate(req); err != nil {
		server.RespondWithError(c, err)
		return
	}

	var ttl time.Duration
	if req.TTL != "" {
		parsed, err := time.ParseDuration(req.TTL)
		if err != nil || parsed <= 0 {
			server.RespondWithError(c, apperrors.Validation("ttl must be a positive duration"))
			return
		}
		ttl = parsed
	}

	p := auth.MustPrincipal(c.Request.Context())
	created, err := h.svc.Create(c.Request.Context(), p, CreateInput{
		Payload:             req.Payload,
		TTL:                 ttl,
		OneTime:             req.OneTime,
		RecipientTelegramID: req.Recipient,
	})
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	server.RespondCreated(c, createResponse{
		ID:        created.ID,
		ExpiresAt: created.ExpiresAt,
		OneTime:   created.OneTime,
	})
}

type revealResponse struct {
	Payload   string    `json:"payload"`
	OneTime   bool      `json:"oneTime"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Reveal handles GET /api/v1/secrets/:id. The recipient is often not the
// owner, so any authenticated principal may reveal; possession of the id is
// the capability.
func (h *Handler) Reveal(c *gin.Context) {
	id := c.Param("id")
	v := validation.New()
	if appErr := v.RequiredUUID("id", id).Validate(); appErr != nil {
		server.RespondWithError(c, appErr)
		return
	}

	revealed, err := h.svc.Reveal(c.Request.Context(), id)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	server.RespondOK(c, revealResponse{
		Payload:   revealed.Payload,
		OneTime:   revealed.OneTime,
		ExpiresAt: revealed.ExpiresAt,
	})
}

// Delete handles DELETE /api/v1/secrets/:id.
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")
	v := validation.New()
	if appErr := v.RequiredUUID("id", id).Validate(); appErr != nil {
		server.RespondWithError(c, appErr)
		return
	}

	p := auth.MustPrincipal(c.Request.Context())
	if err := h.svc.Delete(c.Request.Context(), p, id); err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondNoContent(c)
}

type metadataResponse struct {
	ID        string    `json:"id"`
	OneTime   bool      `json:"oneTime"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// List handles GET /api/v1/secrets.
func (h *Handler) List(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	metas, err := h.svc.ListMine(c.Request.Context(), p)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	out := make([]metadataResponse, 0, len(metas))
	for _, m := range metas {
		out = append(out, metadataResponse{
			ID:        m.ID,
			OneTime:   m.OneTime,
			CreatedAt: m.CreatedAt,
			ExpiresAt: m.ExpiresAt,
		})
	}
	server.RespondOK(c, out)
}

type purgeResponse struct {
	Purged int64 `json:"purged"`
}

// Purge handles POST /api/v1/admin/secrets/purge. The route is registered
// admin-only; the janitor does the same sweep on a timer.
func (h *Handler) Purge(c *gin.Context) {
	n, err := h.svc.PurgeExpired(c.Request.Context())
	if err != nil {
		server.RespondWithError(c, err)
		return
	}
	server.RespondOK(c, purgeResponse{Purged: n})
}
