package account

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sealbox/sealbox/internal/auth"
	"github.com/sealbox/sealbox/internal/auth/token"
	apperrors "github.com/sealbox/sealbox/internal/errors"
	"github.com/sealbox/sealbox/internal/logger"
)

type fakeAccounts struct {
	byTG   map[string]*auth.Account
	nextID int
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{byTG: make(map[string]*auth.Account)}
}

func (f *fakeAccounts) Ensure(_ context.Context, telegramID, username string) (*auth.Account, error) {
	if a, ok := f.byTG[telegramID]; ok {
		return a, nil
	}
	f.nextID++
	a := &auth.Account{
		ID:         "acct-" + telegramID,
		TelegramID: telegramID,
		Username:   username,
		Role:       auth.RoleUser,
		Active:     true,
	}
	f.byTG[telegramID] = a
	return a, nil
}

func testIssuer(t *testing.T) *token.Issuer {
	t.Helper()
	issuer, err := token.NewIssuer(token.Config{Secret: "login-test-secret"})
	if err != nil {
		t.Fatalf("create issuer: %v", err)
	}
	return issuer
}

func testLoginService(t *testing.T, accounts Accounts) *Service {
	t.Helper()
	return NewService(accounts, testIssuer(t), time.Hour, logger.NewDefault("account-test"))
}

func platformPrincipal(tgID, username string) *auth.Principal {
	return &auth.Principal{
		Method:     auth.MethodPlatform,
		TelegramID: tgID,
		Username:   username,
		Role:       auth.RoleUser,
	}
}

func TestLoginIssuesVerifiableToken(t *testing.T) {
	accounts := newFakeAccounts()
	svc := testLoginService(t, accounts)

	session, err := svc.Login(context.Background(), platformPrincipal("42", "alice"))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.Token == "" {
		t.Fatal("expected a token")
	}
	if session.Account.TelegramID != "42" {
		t.Fatalf("unexpected account: %+v", session.Account)
	}

	claims, err := testIssuer(t).Verify(session.Token)
	if err != nil {
		t.Fatalf("issued token should verify: %v", err)
	}
	if claims.SubjectID() != session.Account.ID {
		t.Fatalf("token subject %q, want %q", claims.SubjectID(), session.Account.ID)
	}
}

func TestLoginIsIdempotentPerIdentity(t *testing.T) {
	accounts := newFakeAccounts()
	svc := testLoginService(t, accounts)
	ctx := context.Background()

	s1, err := svc.Login(ctx, platformPrincipal("7", "bob"))
	if err != nil {
		t.Fatalf("first login: %v", err)
	}
	s2, err := svc.Login(ctx, platformPrincipal("7", "bob"))
	if err != nil {
		t.Fatalf("second login: %v", err)
	}
	if s1.Account.ID != s2.Account.ID {
		t.Fatalf("expected same account, got %q and %q", s1.Account.ID, s2.Account.ID)
	}
}

func TestLoginRejectsTokenPrincipal(t *testing.T) {
	svc := testLoginService(t, newFakeAccounts())

	p := &auth.Principal{Method: auth.MethodToken, AccountID: "acct-1", Role: auth.RoleUser}
	_, err := svc.Login(context.Background(), p)
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeMissingCredential {
		t.Fatalf("expected missing_credential, got %v", err)
	}
}

func TestLoginRejectsInactiveAccount(t *testing.T) {
	accounts := newFakeAccounts()
	accounts.byTG["13"] = &auth.Account{
		ID:         "acct-13",
		TelegramID: "13",
		Role:       auth.RoleUser,
		Active:     false,
	}
	svc := testLoginService(t, accounts)

	_, err := svc.Login(context.Background(), platformPrincipal("13", ""))
	appErr, ok := apperrors.AsAppError(err)
	if !ok || appErr.Code != apperrors.ErrCodeAccountInactive {
		t.Fatalf("expected account_inactive, got %v", err)
	}
}

func TestLoginHandlerResponseShape(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := testLoginService(t, newFakeAccounts())
	h := NewHandler(svc)

	engine := gin.New()
	engine.POST("/login", func(c *gin.Context) {
		ctx := auth.ContextWithPrincipal(c.Request.Context(), platformPrincipal("99", "carol"))
		c.Request = c.Request.WithContext(ctx)
		h.Login(c)
	})

	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, httptest.NewRequest("POST", "/login", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var body struct {
		Data struct {
			Token   string `json:"token"`
			Account struct {
				TelegramID string `json:"telegramId"`
				Role       string `json:"role"`
			} `json:"account"`
		} `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Data.Token == "" || body.Data.Account.TelegramID != "99" || body.Data.Account.Role != "user" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}

func TestMeHandlerMirrorsPrincipal(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHandler(testLoginService(t, newFakeAccounts()))

	engine := gin.New()
	engine.GET("/me", func(c *gin.Context) {
		p := &auth.Principal{
			Method:           auth.MethodToken,
			AccountID:        "acct-5",
			LinkedTelegramID: "555",
			Role:             auth.RoleAdmin,
		}
		ctx := auth.ContextWithPrincipal(c.Request.Context(), p)
		c.Request = c.Request.WithContext(ctx)
		h.Me(c)
	})

	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, httptest.NewRequest("GET", "/me", http.NoBody))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Data meResponse `json:"data"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Data.Method != "token" || body.Data.AccountID != "acct-5" || body.Data.Role != "admin" {
		t.Fatalf("unexpected body: %s", rr.Body.String())
	}
}
