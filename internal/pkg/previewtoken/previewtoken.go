// Package previewtoken signs and verifies short-lived tokens that bind an
// edge preview session's name to an expiry, so a caller holding the token
// can prove it was the one that minted that specific preview session.
package previewtoken

import (
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
)

// defaultSecret is a development-only fallback; edge.New refuses to start
// without an explicit preview_token.secret outside of development mode, so
// this value should never sign a token anyone outside a local dev stack
// could act on.
const defaultSecret = "linkup-preview-secret-change-me"

var secret = []byte(defaultSecret)

// SetSecret configures the signing secret (call on startup).
func SetSecret(s string) {
	if s != "" {
		secret = []byte(s)
	}
}

// Claims binds a preview session name to a standard expiry claim.
type Claims struct {
	SessionName string `json:"session_name"`
	jwtlib.RegisteredClaims
}

// Sign creates a signed token for the given preview session name.
func Sign(sessionName string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionName: sessionName,
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwtlib.NewNumericDate(now),
		},
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// Parse validates a token string and returns the claims.
func Parse(tokenStr string) (*Claims, error) {
	token, err := jwtlib.ParseWithClaims(tokenStr, &Claims{}, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}
