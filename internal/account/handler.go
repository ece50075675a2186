package account

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sealbox/sealbox/internal/auth"
	"github.com/sealbox/sealbox/internal/server"
)

// Handler exposes login and identity inspection over HTTP.
type Handler struct {
	svc *Service
}

// NewHandler creates the account HTTP handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

type accountResponse struct {
	ID         string `json:"id"`
	TelegramID string `json:"telegramId"`
	Username   string `json:"username,omitempty"`
	Role       string `json:"role"`
}

type loginResponse struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expiresAt"`
	Account   accountResponse `json:"account"`
}

// Login handles POST /api/v1/auth/login. The route runs under the
// platform-only requirement, so the guard has already verified the init
// data; the body needs no further binding here.
func (h *Handler) Login(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())

	session, err := h.svc.Login(c.Request.Context(), p)
	if err != nil {
		server.RespondWithError(c, err)
		return
	}

	server.RespondOK(c, loginResponse{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		Account: accountResponse{
			ID:         session.Account.ID,
			TelegramID: session.Account.TelegramID,
			Username:   session.Account.Username,
			Role:       string(session.Account.Role),
		},
	})
}

type meResponse struct {
	Method           string `json:"method"`
	AccountID        string `json:"accountId,omitempty"`
	TelegramID       string `json:"telegramId,omitempty"`
	Username         string `json:"username,omitempty"`
	Role             string `json:"role"`
	LinkedTelegramID string `json:"linkedTelegramId,omitempty"`
}

// Me handles GET /api/v1/auth/me and mirrors back the resolved principal.
func (h *Handler) Me(c *gin.Context) {
	p := auth.MustPrincipal(c.Request.Context())
	server.RespondOK(c, meResponse{
		Method:           string(p.Method),
		AccountID:        p.AccountID,
		TelegramID:       p.TelegramID,
		Username:         p.Username,
		Role:             string(p.Role),
		LinkedTelegramID: p.LinkedTelegramID,
	})
}
