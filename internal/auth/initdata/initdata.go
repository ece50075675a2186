// Package initdata verifies Telegram Mini App init data.
//
// Verification follows the platform's documented scheme: the signing key is
// HMAC-SHA256("WebAppData", botToken) and the payload digest is
// HMAC-SHA256(signingKey, dataCheckString), where the data-check-string is
// the sorted, newline-joined list of key=value pairs excluding the hash
// field itself. Both the raw URL-encoded payload and its client-decoded
// structured form can be verified against the same bot token.
//
// All verification functions are pure apart from reading the wall clock for
// the freshness window; malformed input yields false, never a panic.
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultMaxAge is the freshness window for auth_date. Payloads older than
// this are rejected even when the signature verifies.
const DefaultMaxAge = 24 * time.Hour

// User is the Telegram user object embedded in init data.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	PhotoURL  string `json:"photo_url,omitempty"`
}

// Payload is a parsed raw init-data string. Pairs preserves the received
// order with values URL-decoded; Hash is the extracted signature.
type Payload struct {
	Pairs    []Pair
	Hash     string
	AuthDate int64
	User     *User
}

// Pair is a single key=value entry from the raw payload.
type Pair struct {
	Key   string
	Value string
}

// Parse splits a raw init-data string into ordered key=value pairs with
// URL-decoded values, extracting the hash, auth_date, and embedded user.
// A payload without a user, or with an unparseable user JSON, still parses;
// callers decide whether a missing user is fatal.
func Parse(raw string) (*Payload, error) {
	p := &Payload{}
	for _, part := range strings.Split(raw, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		decodedKey, err := url.QueryUnescape(key)
		if err != nil {
			return nil, err
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			return nil, err
		}
		switch decodedKey {
		case "hash":
			p.Hash = decodedValue
			continue
		case "auth_date":
			p.AuthDate, _ = strconv.ParseInt(decodedValue, 10, 64)
		case "user":
			var u User
			if err := json.Unmarshal([]byte(decodedValue), &u); err == nil && u.ID != 0 {
				p.User = &u
			}
		}
		p.Pairs = append(p.Pairs, Pair{Key: decodedKey, Value: decodedValue})
	}
	return p, nil
}

// DataCheckString builds the canonical signing input: pairs (hash excluded)
// sorted lexicographically by key and joined as key=value lines.
func (p *Payload) DataCheckString() string {
	lines := make([]string, 0, len(p.Pairs))
	for _, pair := range p.Pairs {
		lines = append(lines, pair.Key+"="+pair.Value)
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// Validator verifies init-data signatures against a bot token.
// The zero value is not usable; construct with NewValidator.
type Validator struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// Option configures a Validator.
type Option func(*Validator)

// WithMaxAge overrides the auth_date freshness window.
func WithMaxAge(d time.Duration) Option {
	return func(v *Validator) { v.maxAge = d }
}

// WithClock overrides the wall clock used for freshness checks. Tests use
// this to pin verification time.
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

// NewValidator creates a Validator for the given bot token.
func NewValidator(botToken string, opts ...Option) *Validator {
	v := &Validator{
		secret: []byte(botToken),
		maxAge: DefaultMaxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verification failure reasons. CheckRaw and CheckStructured report these;
// the boolean Verify wrappers collapse them to false.
var (
	ErrEmptySecret       = errors.New("initdata: empty secret")
	ErrMalformed         = errors.New("initdata: malformed payload")
	ErrMissingHash       = errors.New("initdata: missing hash")
	ErrStale             = errors.New("initdata: auth_date outside freshness window")
	ErrSignatureMismatch = errors.New("initdata: signature mismatch")
)

// VerifyRaw reports whether a raw init-data string carries a valid signature
// and a fresh auth_date. Missing hash, empty secret, or any parse failure
// yields false.
func (v *Validator) VerifyRaw(raw string) bool {
	return v.CheckRaw(raw) == nil
}

// CheckRaw verifies a raw init-data string and reports why verification
// failed. An empty secret fails closed.
func (v *Validator) CheckRaw(raw string) error {
	if len(v.secret) == 0 {
		return ErrEmptySecret
	}
	if raw == "" {
		return ErrMalformed
	}
	payload, err := Parse(raw)
	if err != nil {
		return ErrMalformed
	}
	if payload.Hash == "" {
		return ErrMissingHash
	}
	if !v.fresh(payload.AuthDate) {
		return ErrStale
	}
	if !v.matches(payload.DataCheckString(), payload.Hash) {
		return ErrSignatureMismatch
	}
	return nil
}

// fresh reports whether authDate falls inside the freshness window.
// A zero authDate (field absent) is accepted; staleness can only be judged
// against a present timestamp.
func (v *Validator) fresh(authDate int64) bool {
	if authDate == 0 {
		return true
	}
	issued := time.Unix(authDate, 0)
	return v.now().Sub(issued) <= v.maxAge
}

// matches compares the computed digest to the received hash in constant time.
func (v *Validator) matches(dataCheckString, receivedHash string) bool {
	signingKey := hmacSHA256([]byte("WebAppData"), v.secret)
	digest := hmacSHA256(signingKey, []byte(dataCheckString))
	expected := hex.EncodeToString(digest)
	return hmac.Equal([]byte(expected), []byte(receivedHash))
}

func hmacSHA256(key, message []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(message)
	return mac.Sum(nil)
}

// Sign computes the hex signature for a data-check-string with the
// validator's secret. Exposed for tests and fixture generation.
func (v *Validator) Sign(dataCheckString string) string {
	signingKey := hmacSHA256([]byte("WebAppData"), v.secret)
	return hex.EncodeToString(hmacSHA256(signingKey, []byte(dataCheckString)))
}
