// Package token signs and verifies sealbox access tokens.
//
// Tokens are HS256 JWTs whose subject is the account id. The issuer is the
// only component that knows the signing secret; everything else treats the
// token as opaque and consumes the verified Claims.
package token

import (
	"errors"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// Claims are the verified contents of an access token.
type Claims struct {
	gojwt.RegisteredClaims
}

// SubjectID returns the account id the token was issued for.
func (c *Claims) SubjectID() string {
	return c.Subject
}

// Issuer signs and verifies access tokens.
type Issuer struct {
	cfg Config
	now func() time.Time
}

// NewIssuer creates a token issuer from config.
func NewIssuer(cfg Config) (*Issuer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("token: %w", err)
	}
	return &Issuer{cfg: cfg, now: time.Now}, nil
}

// Issue creates a signed access token for the given account id.
func (i *Issuer) Issue(accountID string) (string, error) {
	now := i.now()
	claims := &Claims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    i.cfg.Issuer,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(i.cfg.AccessTokenTTL)),
		},
	}
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).
		SignedString([]byte(i.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Verify validates a token string and returns its claims. Signature,
// expiry, and issuer are all checked.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := gojwt.ParseWithClaims(tokenString, claims, i.keyFunc,
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithIssuer(i.cfg.Issuer),
		gojwt.WithTimeFunc(func() time.Time { return i.now() }),
	)
	if err != nil {
		return nil, fmt.Errorf("token: parse: %w", err)
	}
	if !parsed.Valid {
		return nil, errors.New("token: invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token: missing subject")
	}
	return claims, nil
}

// VerifierFunc returns a function that verifies a token and yields just the
// subject account id. This bridges the issuer with guard code that does not
// care about the full claims shape.
func (i *Issuer) VerifierFunc() func(string) (string, error) {
	return func(tokenString string) (string, error) {
		claims, err := i.Verify(tokenString)
		if err != nil {
			return "", err
		}
		return claims.SubjectID(), nil
	}
}

func (i *Issuer) keyFunc(t *gojwt.Token) (interface{}, error) {
	if t.Method.Alg() != gojwt.SigningMethodHS256.Alg() {
		return nil, fmt.Errorf("token: unexpected signing method: %s", t.Method.Alg())
	}
	return []byte(i.cfg.Secret), nil
}
