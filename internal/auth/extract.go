package auth

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/sealbox/sealbox/internal/auth/initdata"
)

// Boundary contract with the mini-app client: these carrier names are fixed
// by the deployed frontend and must not be renamed.
const (
	// HeaderInitData carries raw init data as a request header.
	HeaderInitData = "x-telegram-init-data"
	// QueryInitData carries raw init data as a query parameter fallback.
	QueryInitData = "tgInitData"
	// BodyInitDataRaw is the JSON body field carrying raw init data.
	BodyInitDataRaw = "initDataRaw"
)

// maxPeekBody bounds how much of the request body the guard inspects. The
// server's body-size middleware enforces the real limit; this is a backstop.
const maxPeekBody = 1 << 20

// peekBody reads the request body for credential extraction and restores it
// so handlers can bind it again. Returns nil when there is no body.
func peekBody(r *http.Request) []byte {
	if r.Body == nil || r.Body == http.NoBody {
		return nil
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxPeekBody))
	r.Body.Close()
	r.Body = io.NopCloser(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	return data
}

// bodyCredential is the loose shape of an authenticated request body: the
// raw init-data string, the structured fields at the root, or the same
// structured fields nested under initData.
type bodyCredential struct {
	initdata.StructuredCredential
	InitDataRaw string                         `json:"initDataRaw"`
	InitData    *initdata.StructuredCredential `json:"initData"`
}

// decodeBodyCredential parses the body as JSON. Non-JSON bodies return nil;
// the raw-text carrier handles those.
func decodeBodyCredential(body []byte) *bodyCredential {
	if len(body) == 0 {
		return nil
	}
	var cred bodyCredential
	if err := json.Unmarshal(body, &cred); err != nil {
		return nil
	}
	return &cred
}

// extractBearer returns the token from an "Authorization: Bearer" header,
// or "" when the header is absent or not a bearer scheme.
func extractBearer(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// extractRaw searches the request for a raw init-data payload in priority
// order: body initDataRaw field, the platform header, the query fallback,
// and finally a raw text body that looks like init data. The first
// non-empty match wins.
func extractRaw(r *http.Request, body []byte, cred *bodyCredential) string {
	if cred != nil && cred.InitDataRaw != "" {
		return cred.InitDataRaw
	}
	if v := r.Header.Get(HeaderInitData); v != "" {
		return v
	}
	if v := r.URL.Query().Get(QueryInitData); v != "" {
		return v
	}
	if cred == nil && len(body) > 0 {
		text := string(body)
		if strings.Contains(text, "auth_date=") && strings.Contains(text, "hash=") {
			return strings.TrimSpace(text)
		}
	}
	return ""
}

// extractStructured returns the structured credential from the body, root
// fields taking precedence over the nested initData object. Returns nil
// when no complete credential is present.
func extractStructured(cred *bodyCredential) *initdata.StructuredCredential {
	if cred == nil {
		return nil
	}
	if cred.StructuredCredential.Complete() {
		c := cred.StructuredCredential
		return &c
	}
	if cred.InitData.Complete() {
		return cred.InitData
	}
	return nil
}
