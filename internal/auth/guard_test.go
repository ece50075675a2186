package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sealbox/sealbox/internal/auth"
	"github.com/sealbox/sealbox/internal/auth/initdata"
	"github.com/sealbox/sealbox/internal/auth/token"
	"github.com/sealbox/sealbox/internal/logger"
)

const (
	testBotToken  = "TESTTOKEN"
	testAuthDate  = int64(1700000000)
	testJWTSecret = "test-jwt-secret"
)

func testClock() time.Time {
	return time.Unix(testAuthDate, 0).Add(time.Hour)
}

// fakeAccounts is an in-memory AccountLookup.
type fakeAccounts struct {
	byID       map[string]*auth.Account
	byTelegram map[string]*auth.Account

	// findErr, when set, is returned from every lookup to simulate a
	// failing store.
	findErr error
}

func newFakeAccounts(accounts ...*auth.Account) *fakeAccounts {
	f := &fakeAccounts{
		byID:       make(map[string]*auth.Account),
		byTelegram: make(map[string]*auth.Account),
	}
	for _, a := range accounts {
		f.byID[a.ID] = a
		if a.TelegramID != "" {
			f.byTelegram[a.TelegramID] = a
		}
	}
	return f
}

func (f *fakeAccounts) FindByID(_ context.Context, id string) (*auth.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if a, ok := f.byID[id]; ok {
		return a, nil
	}
	return nil, auth.ErrAccountNotFound
}

func (f *fakeAccounts) FindByTelegramID(_ context.Context, telegramID string) (*auth.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	if a, ok := f.byTelegram[telegramID]; ok {
		return a, nil
	}
	return nil, auth.ErrAccountNotFound
}

type guardFixture struct {
	guard     *auth.Guard
	issuer    *token.Issuer
	validator *initdata.Validator
	accounts  *fakeAccounts
}

func newFixture(t *testing.T, accounts ...*auth.Account) *guardFixture {
	t.Helper()
	issuer, err := token.NewIssuer(token.Config{Secret: testJWTSecret})
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	validator := initdata.NewValidator(testBotToken, initdata.WithClock(testClock))
	store := newFakeAccounts(accounts...)
	guard := auth.NewGuard(
		auth.TokenVerifierFunc(issuer.VerifierFunc()),
		validator, store, logger.NewDefault("test"),
	)
	return &guardFixture{guard: guard, issuer: issuer, validator: validator, accounts: store}
}

// signedRaw builds a signed raw init-data payload for the given user.
func signedRaw(t *testing.T, v *initdata.Validator, user string, authDate int64) string {
	t.Helper()
	raw := "auth_date=" + strconv.FormatInt(authDate, 10) + "&user=" + url.QueryEscape(user)
	payload, err := initdata.Parse(raw)
	if err != nil {
		t.Fatalf("parse payload under construction: %v", err)
	}
	return raw + "&hash=" + v.Sign(payload.DataCheckString())
}

func defaultUser() string { return `{"id":123,"first_name":"Jo"}` }

// serve runs a request through the guard middleware and an echo handler
// that reports the attached principal.
func (f *guardFixture) serve(t *testing.T, req *http.Request, requirement auth.Requirement, extra ...gin.HandlerFunc) (*httptest.ResponseRecorder, *auth.Principal) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := gin.New()

	var captured *auth.Principal
	handlers := append([]gin.HandlerFunc{f.guard.Middleware(requirement)}, extra...)
	handlers = append(handlers, func(c *gin.Context) {
		captured, _ = auth.PrincipalFromContext(c.Request.Context())
		c.Status(http.StatusOK)
	})
	engine.Any("/probe", handlers...)

	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	return rr, captured
}

// errorKind decodes the machine-readable kind from a rejection body.
func errorKind(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (%s)", err, rr.Body.String())
	}
	return body.Error.Code
}

func activeLinkedAccount() *auth.Account {
	return &auth.Account{ID: "acct-1", TelegramID: "123", Username: "jo", Role: auth.RoleUser, Active: true}
}

// --- token path ---

func TestGuard_TokenPath(t *testing.T) {
	f := newFixture(t, activeLinkedAccount())
	bearer, _ := f.issuer.Issue("acct-1")

	req := httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+bearer)

	rr, principal := f.serve(t, req, auth.Requirement{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if principal == nil || principal.Method != auth.MethodToken {
		t.Fatalf("principal = %+v, want token method", principal)
	}
	if principal.AccountID != "acct-1" || principal.LinkedTelegramID != "123" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestGuard_TokenPriorityOverPlatform(t *testing.T) {
	f := newFixture(t, activeLinkedAccount())
	bearer, _ := f.issuer.Issue("acct-1")

	// A tampered platform payload rides along; the token path must win and
	// the platform payload must not be evaluated at all.
	req := httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set(auth.HeaderInitData, "auth_date=1&hash=bogus")

	rr, principal := f.serve(t, req, auth.Requirement{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if principal.Method != auth.MethodToken {
		t.Fatalf("method = %s, want token", principal.Method)
	}
}

func TestGuard_InvalidToken(t *testing.T) {
	f := newFixture(t, activeLinkedAccount())

	req := httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set("Authorization", "Bearer not-a-token")

	rr, _ := f.serve(t, req, auth.Requirement{})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if kind := errorKind(t, rr); kind != "invalid_or_expired_token" {
		t.Fatalf("kind = %s", kind)
	}
}

func TestGuard_TokenUnknownOrInactiveAccount(t *testing.T) {
	inactive := &auth.Account{ID: "acct-2", TelegramID: "456", Role: auth.RoleUser, Active: false}
	f := newFixture(t, inactive)

	for _, subject := range []string{"acct-2", "acct-missing"} {
		bearer, _ := f.issuer.Issue(subject)
		req := httptest.NewRequest("GET", "/probe", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+bearer)

		rr, _ := f.serve(t, req, auth.Requirement{})
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("subject %s: status = %d, want 401", subject, rr.Code)
		}
		if kind := errorKind(t, rr); kind != "account_inactive" {
			t.Fatalf("subject %s: kind = %s", subject, kind)
		}
	}
}

func TestGuard_TokenStoreFailure(t *testing.T) {
	f := newFixture(t, activeLinkedAccount())
	f.accounts.findErr = errors.New("dial tcp: connection refused")
	bearer, _ := f.issuer.Issue("acct-1")

	req := httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+bearer)

	// A store outage is not a verdict on the account; it must surface as a
	// server-side error, not as a deactivation.
	rr, _ := f.serve(t, req, auth.Requirement{})
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500 (body = %s)", rr.Code, rr.Body.String())
	}
	if kind := errorKind(t, rr); kind == "account_inactive" {
		t.Fatalf("store failure reported as account_inactive")
	}
}

func TestGuard_MissingLinkage(t *testing.T) {
	unlinked := &auth.Account{ID: "acct-3", Role: auth.RoleUser, Active: true}
	f := newFixture(t, unlinked)
	bearer, _ := f.issuer.Issue("acct-3")

	req := httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+bearer)

	rr, _ := f.serve(t, req, auth.Requirement{})
	if kind := errorKind(t, rr); kind != "missing_platform_linkage" {
		t.Fatalf("kind = %s, want missing_platform_linkage", kind)
	}

	// The same request passes when the route opts out of the linkage check.
	req = httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+bearer)
	rr, principal := f.serve(t, req, auth.Requirement{SkipLinkageCheck: true})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d with linkage check skipped", rr.Code)
	}
	if principal.AccountID != "acct-3" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

// --- platform raw path ---

func TestGuard_RawHeader(t *testing.T) {
	f := newFixture(t, activeLinkedAccount())
	raw := signedRaw(t, f.validator, defaultUser(), testAuthDate)

	req := httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set(auth.HeaderInitData, raw)

	rr, principal := f.serve(t, req, auth.Requirement{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if principal.Method != auth.MethodPlatform || principal.TelegramID != "123" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
	if principal.AccountID != "acct-1" {
		t.Fatalf("expected stored account to enrich principal: %+v", principal)
	}
}

func TestGuard_RawQueryFallback(t *testing.T) {
	f := newFixture(t)
	raw := signedRaw(t, f.validator, defaultUser(), testAuthDate)

	req := httptest.NewRequest("GET", "/probe?"+auth.QueryInitData+"="+url.QueryEscape(raw), http.NoBody)

	rr, principal := f.serve(t, req, auth.Requirement{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	// No stored account for this Telegram user: default role applies.
	if principal.Role != auth.RoleUser || principal.AccountID != "" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestGuard_RawBodyField(t *testing.T) {
	f := newFixture(t, activeLinkedAccount())
	raw := signedRaw(t, f.validator, defaultUser(), testAuthDate)

	body, _ := json.Marshal(map[string]string{"initDataRaw": raw})
	req := httptest.NewRequest("POST", "/probe", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")

	rr, principal := f.serve(t, req, auth.Requirement{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if principal.Method != auth.MethodPlatform {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestGuard_RawTextBody(t *testing.T) {
	f := newFixture(t)
	raw := signedRaw(t, f.validator, defaultUser(), testAuthDate)

	req := httptest.NewRequest("POST", "/probe", strings.NewReader(raw))
	req.Header.Set("Content-Type", "text/plain")

	rr, principal := f.serve(t, req, auth.Requirement{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if principal.TelegramID != "123" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestGuard_CarrierPriority(t *testing.T) {
	f := newFixture(t)
	valid := signedRaw(t, f.validator, defaultUser(), testAuthDate)

	// Valid payload in the body field, garbage in the header: the body
	// field has priority and the header must not be consulted.
	body, _ := json.Marshal(map[string]string{"initDataRaw": valid})
	req := httptest.NewRequest("POST", "/probe", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(auth.HeaderInitData, "auth_date=1&hash=bogus")

	rr, _ := f.serve(t, req, auth.Requirement{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestGuard_TamperedRaw(t *testing.T) {
	f := newFixture(t)
	raw := signedRaw(t, f.validator, defaultUser(), testAuthDate)
	tampered := strings.Replace(raw, "Jo", "Ja", 1)

	req := httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set(auth.HeaderInitData, tampered)

	rr, _ := f.serve(t, req, auth.Requirement{})
	if kind := errorKind(t, rr); kind != "invalid_platform_signature" {
		t.Fatalf("kind = %s, want invalid_platform_signature", kind)
	}
}

func TestGuard_StaleRaw(t *testing.T) {
	f := newFixture(t)
	// Signed correctly but 25h before the pinned clock.
	old := testClock().Add(-25 * time.Hour).Unix()
	raw := signedRaw(t, f.validator, defaultUser(), old)

	req := httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set(auth.HeaderInitData, raw)

	rr, _ := f.serve(t, req, auth.Requirement{})
	if kind := errorKind(t, rr); kind != "stale_payload" {
		t.Fatalf("kind = %s, want stale_payload", kind)
	}
}

func TestGuard_InactiveAccountOnPlatformPath(t *testing.T) {
	inactive := &auth.Account{ID: "acct-9", TelegramID: "123", Role: auth.RoleUser, Active: false}
	f := newFixture(t, inactive)
	raw := signedRaw(t, f.validator, defaultUser(), testAuthDate)

	req := httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set(auth.HeaderInitData, raw)

	rr, _ := f.serve(t, req, auth.Requirement{})
	if kind := errorKind(t, rr); kind != "account_inactive" {
		t.Fatalf("kind = %s, want account_inactive", kind)
	}
}

// --- cross-check ---

func TestGuard_CrossCheckMismatchedID(t *testing.T) {
	f := newFixture(t)
	raw := signedRaw(t, f.validator, defaultUser(), testAuthDate)
	payload, _ := initdata.Parse(raw)

	// The raw payload alone is valid, but the structured credential claims
	// a different Telegram id. Substitution must be rejected.
	body, _ := json.Marshal(map[string]any{
		"initDataRaw": raw,
		"telegramId":  "999",
		"authDate":    testAuthDate,
		"hash":        payload.Hash,
	})
	req := httptest.NewRequest("POST", "/probe", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")

	rr, _ := f.serve(t, req, auth.Requirement{})
	if kind := errorKind(t, rr); kind != "payload_mismatch" {
		t.Fatalf("kind = %s, want payload_mismatch", kind)
	}
}

func TestGuard_CrossCheckMismatchedAuthDate(t *testing.T) {
	f := newFixture(t)
	raw := signedRaw(t, f.validator, defaultUser(), testAuthDate)
	payload, _ := initdata.Parse(raw)

	body, _ := json.Marshal(map[string]any{
		"initDataRaw": raw,
		"telegramId":  "123",
		"authDate":    testAuthDate + 5,
		"hash":        payload.Hash,
	})
	req := httptest.NewRequest("POST", "/probe", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")

	rr, _ := f.serve(t, req, auth.Requirement{})
	if kind := errorKind(t, rr); kind != "payload_mismatch" {
		t.Fatalf("kind = %s, want payload_mismatch", kind)
	}
}

func TestGuard_CrossCheckConsistent(t *testing.T) {
	f := newFixture(t)
	raw := signedRaw(t, f.validator, defaultUser(), testAuthDate)
	payload, _ := initdata.Parse(raw)

	body, _ := json.Marshal(map[string]any{
		"initDataRaw": raw,
		"telegramId":  "123",
		"authDate":    testAuthDate,
		"hash":        payload.Hash,
	})
	req := httptest.NewRequest("POST", "/probe", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")

	rr, principal := f.serve(t, req, auth.Requirement{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if principal.TelegramID != "123" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

// --- structured-only path ---

func TestGuard_StructuredOnly(t *testing.T) {
	f := newFixture(t)
	cred := &initdata.StructuredCredential{TelegramID: "123", FirstName: "Jo", AuthDate: testAuthDate}
	dcs, _ := cred.DataCheckString()
	cred.Hash = f.validator.Sign(dcs)

	body, _ := json.Marshal(cred)
	req := httptest.NewRequest("POST", "/probe", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")

	rr, principal := f.serve(t, req, auth.Requirement{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	if principal.Method != auth.MethodPlatform || principal.TelegramID != "123" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestGuard_StructuredNested(t *testing.T) {
	f := newFixture(t)
	cred := &initdata.StructuredCredential{TelegramID: "123", FirstName: "Jo", AuthDate: testAuthDate}
	dcs, _ := cred.DataCheckString()
	cred.Hash = f.validator.Sign(dcs)

	body, _ := json.Marshal(map[string]any{"initData": cred})
	req := httptest.NewRequest("POST", "/probe", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")

	rr, _ := f.serve(t, req, auth.Requirement{})
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestGuard_StructuredForged(t *testing.T) {
	f := newFixture(t)
	cred := &initdata.StructuredCredential{TelegramID: "123", AuthDate: testAuthDate, Hash: "forged"}

	body, _ := json.Marshal(cred)
	req := httptest.NewRequest("POST", "/probe", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")

	rr, _ := f.serve(t, req, auth.Requirement{})
	if kind := errorKind(t, rr); kind != "invalid_platform_signature" {
		t.Fatalf("kind = %s, want invalid_platform_signature", kind)
	}
}

func TestGuard_NoCredential(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest("GET", "/probe", http.NoBody)
	rr, _ := f.serve(t, req, auth.Requirement{})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
	if kind := errorKind(t, rr); kind != "missing_credential" {
		t.Fatalf("kind = %s, want missing_credential", kind)
	}
}

// --- modes ---

func TestGuard_ModeToken(t *testing.T) {
	f := newFixture(t, activeLinkedAccount())
	raw := signedRaw(t, f.validator, defaultUser(), testAuthDate)

	// A valid platform payload is not accepted on a token-only route.
	req := httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set(auth.HeaderInitData, raw)

	rr, _ := f.serve(t, req, auth.Requirement{Mode: auth.ModeToken})
	if kind := errorKind(t, rr); kind != "missing_credential" {
		t.Fatalf("kind = %s, want missing_credential", kind)
	}
}

func TestGuard_ModePlatformIgnoresBearer(t *testing.T) {
	f := newFixture(t, activeLinkedAccount())
	bearer, _ := f.issuer.Issue("acct-1")

	req := httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+bearer)

	rr, _ := f.serve(t, req, auth.Requirement{Mode: auth.ModePlatform})
	if kind := errorKind(t, rr); kind != "missing_credential" {
		t.Fatalf("kind = %s, want missing_credential", kind)
	}
}

func TestGuard_FlexibleAcceptsBearerAndRaw(t *testing.T) {
	f := newFixture(t, activeLinkedAccount())

	bearer, _ := f.issuer.Issue("acct-1")
	req := httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+bearer)
	rr, principal := f.serve(t, req, auth.Requirement{Mode: auth.ModeFlexible})
	if rr.Code != http.StatusOK || principal.Method != auth.MethodToken {
		t.Fatalf("bearer: status = %d, principal = %+v", rr.Code, principal)
	}

	raw := signedRaw(t, f.validator, defaultUser(), testAuthDate)
	req = httptest.NewRequest("GET", "/probe", http.NoBody)
	req.Header.Set(auth.HeaderInitData, raw)
	rr, principal = f.serve(t, req, auth.Requirement{Mode: auth.ModeFlexible})
	if rr.Code != http.StatusOK || principal.Method != auth.MethodPlatform {
		t.Fatalf("raw: status = %d, principal = %+v", rr.Code, principal)
	}
}

func TestGuard_FlexibleRejectsStructuredBody(t *testing.T) {
	f := newFixture(t)
	cred := &initdata.StructuredCredential{TelegramID: "123", FirstName: "Jo", AuthDate: testAuthDate}
	dcs, _ := cred.DataCheckString()
	cred.Hash = f.validator.Sign(dcs)

	// A correctly signed structured body is still not a flexible-route
	// credential: only the raw payload is trusted there.
	body, _ := json.Marshal(cred)
	req := httptest.NewRequest("POST", "/probe", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")

	rr, _ := f.serve(t, req, auth.Requirement{Mode: auth.ModeFlexible})
	if kind := errorKind(t, rr); kind != "missing_credential" {
		t.Fatalf("kind = %s, want missing_credential", kind)
	}
}

// --- role authorization ---

func TestRequireRoles_Gating(t *testing.T) {
	admin := &auth.Account{ID: "acct-a", TelegramID: "700", Role: auth.RoleAdmin, Active: true}
	user := &auth.Account{ID: "acct-u", TelegramID: "701", Role: auth.RoleUser, Active: true}
	f := newFixture(t, admin, user)

	for _, tc := range []struct {
		account    *auth.Account
		wantStatus int
	}{
		{admin, http.StatusOK},
		{user, http.StatusForbidden},
	} {
		bearer, _ := f.issuer.Issue(tc.account.ID)
		req := httptest.NewRequest("GET", "/probe", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+bearer)

		rr, _ := f.serve(t, req, auth.Requirement{}, f.guard.RequireRoles(auth.RoleAdmin))
		if rr.Code != tc.wantStatus {
			t.Fatalf("account %s: status = %d, want %d", tc.account.ID, rr.Code, tc.wantStatus)
		}
		if tc.wantStatus == http.StatusForbidden {
			if kind := errorKind(t, rr); kind != "insufficient_role" {
				t.Fatalf("kind = %s, want insufficient_role", kind)
			}
		}
	}
}

func TestRequireRoles_FallbackWithoutGuard(t *testing.T) {
	admin := &auth.Account{ID: "acct-a", TelegramID: "123", Role: auth.RoleAdmin, Active: true}
	f := newFixture(t, admin)

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	// Misregistered legacy route: role middleware without the guard.
	engine.GET("/legacy", f.guard.RequireRoles(auth.RoleAdmin), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	raw := signedRaw(t, f.validator, defaultUser(), testAuthDate)
	req := httptest.NewRequest("GET", "/legacy", http.NoBody)
	req.Header.Set(auth.HeaderInitData, raw)

	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	// Without any header the fallback has nothing to resolve.
	req = httptest.NewRequest("GET", "/legacy", http.NoBody)
	rr = httptest.NewRecorder()
	engine.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rr.Code)
	}
}

// --- handler body reuse ---

func TestGuard_BodyRemainsReadable(t *testing.T) {
	f := newFixture(t)
	raw := signedRaw(t, f.validator, defaultUser(), testAuthDate)

	body, _ := json.Marshal(map[string]string{"initDataRaw": raw, "payload": "hello"})

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.POST("/echo", f.guard.Middleware(auth.Requirement{}), func(c *gin.Context) {
		var in struct {
			Payload string `json:"payload"`
		}
		if err := c.ShouldBindJSON(&in); err != nil {
			c.Status(http.StatusBadRequest)
			return
		}
		c.String(http.StatusOK, in.Payload)
	})

	req := httptest.NewRequest("POST", "/echo", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || rr.Body.String() != "hello" {
		t.Fatalf("status = %d, body = %q; guard must restore the request body", rr.Code, rr.Body.String())
	}
}

func TestRedactAuthorization(t *testing.T) {
	cases := map[string]string{
		"":                 "",
		"Bearer abc.def":   "Bearer [REDACTED]",
		"tokenwithnospace": "[REDACTED]",
	}
	for in, want := range cases {
		if got := auth.RedactAuthorization(in); got != want {
			t.Fatalf("RedactAuthorization(%q) = %q, want %q", in, got, want)
		}
	}
}
