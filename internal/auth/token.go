// Package auth verifies identity tokens minted by the identity service.
// A token is "<claims>.<mac>": base64url JSON claims followed by their
// base64url HMAC-SHA256 under the shared secret.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"afropedia/api/internal/rbac"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

// Claims is the signed part of a token. Role carries one of the rbac roles.
type Claims struct {
	Sub  string `json:"sub"`
	Name string `json:"name"`
	Role string `json:"role"`
	Exp  int64  `json:"exp"`
}

// Identity is the caller the engine acts on behalf of.
type Identity struct {
	UserID string
	Name   string
	Role   rbac.Role
}

// identity checks the claims against now and resolves them to a caller.
func (c Claims) identity(now time.Time) (Identity, error) {
	if c.Sub == "" || c.Exp == 0 {
		return Identity{}, fmt.Errorf("%w: missing subject or expiry", ErrInvalidToken)
	}
	if now.Unix() >= c.Exp {
		return Identity{}, ErrExpiredToken
	}
	role, err := rbac.Parse(c.Role)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	name := c.Name
	if name == "" {
		name = c.Sub
	}
	return Identity{UserID: c.Sub, Name: name, Role: role}, nil
}

// IssueToken signs claims. The engine only verifies tokens; issuing exists
// for the token command and tests.
func IssueToken(secret []byte, claims Claims) (string, error) {
	raw, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	body := base64.RawURLEncoding.EncodeToString(raw)
	return body + "." + mac(secret, body), nil
}

// Verify authenticates a token and returns the caller it names.
func Verify(secret []byte, token string) (Identity, error) {
	claims, err := decode(secret, token)
	if err != nil {
		return Identity{}, err
	}
	return claims.identity(time.Now())
}

func decode(secret []byte, token string) (Claims, error) {
	body, signature, found := strings.Cut(token, ".")
	if !found || strings.Contains(signature, ".") {
		return Claims{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(signature), []byte(mac(secret, body))) {
		return Claims{}, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var claims Claims
	if err := json.Unmarshal(raw, &claims); err != nil {
		return Claims{}, ErrInvalidToken
	}
	return claims, nil
}

func mac(secret []byte, body string) string {
	h := hmac.New(sha256.New, secret)
	_, _ = h.Write([]byte(body))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
