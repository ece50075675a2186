package initdata

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// StructuredCredential is the client-decoded form of init data carried as
// named JSON fields, either at the request body root or under "initData".
// It can be forged independently of the raw string, so it is only trusted
// after VerifyStructured, and cross-checked against the raw payload when
// both are present.
type StructuredCredential struct {
	TelegramID string `json:"telegramId"`
	FirstName  string `json:"firstName,omitempty"`
	LastName   string `json:"lastName,omitempty"`
	Username   string `json:"username,omitempty"`
	PhotoURL   string `json:"photoUrl,omitempty"`
	AuthDate   int64  `json:"authDate"`
	Hash       string `json:"hash"`
}

// Complete reports whether the credential carries the three fields required
// for verification.
func (c *StructuredCredential) Complete() bool {
	return c != nil && c.TelegramID != "" && c.AuthDate != 0 && c.Hash != ""
}

// userJSON rebuilds the platform's user object from the structured fields.
// Field order matches the platform's encoding: id, first_name, last_name,
// username, photo_url, with empty optionals omitted.
func (c *StructuredCredential) userJSON() (string, bool) {
	id, err := strconv.ParseInt(c.TelegramID, 10, 64)
	if err != nil {
		return "", false
	}
	u := User{
		ID:        id,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Username:  c.Username,
		PhotoURL:  c.PhotoURL,
	}
	encoded, err := json.Marshal(u)
	if err != nil {
		return "", false
	}
	return string(encoded), true
}

// DataCheckString builds the canonical signing input from the structured
// fields: the auth_date and re-encoded user lines, sorted and newline-joined.
func (c *StructuredCredential) DataCheckString() (string, bool) {
	user, ok := c.userJSON()
	if !ok {
		return "", false
	}
	lines := []string{
		"auth_date=" + strconv.FormatInt(c.AuthDate, 10),
		"user=" + user,
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n"), true
}

// VerifyStructured reports whether a structured credential carries a valid
// signature and a fresh authDate. Incomplete or malformed credentials
// yield false.
func (v *Validator) VerifyStructured(cred *StructuredCredential) bool {
	return v.CheckStructured(cred) == nil
}

// CheckStructured verifies a structured credential and reports why
// verification failed. An empty secret fails closed.
func (v *Validator) CheckStructured(cred *StructuredCredential) error {
	if len(v.secret) == 0 {
		return ErrEmptySecret
	}
	if !cred.Complete() {
		return ErrMalformed
	}
	if !v.fresh(cred.AuthDate) {
		return ErrStale
	}
	dcs, ok := cred.DataCheckString()
	if !ok {
		return ErrMalformed
	}
	if !v.matches(dcs, cred.Hash) {
		return ErrSignatureMismatch
	}
	return nil
}
