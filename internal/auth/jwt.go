package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenSigner issues and verifies the HS256 JWTs used by the admin token
// integration. This is a local convenience surface, not the OAuth2 provider:
// gateway CRUD routes authenticate via introspection or API key only.
type TokenSigner struct {
	secret        []byte
	expiration    time.Duration
	refreshExpiry time.Duration
}

func NewTokenSigner(secret string, expiration, refreshExpiry time.Duration) *TokenSigner {
	return &TokenSigner{
		secret:        []byte(secret),
		expiration:    expiration,
		refreshExpiry: refreshExpiry,
	}
}

func (s *TokenSigner) AccessExpiration() time.Duration {
	return s.expiration
}

// SignAccess issues an access token with the username as subject.
func (s *TokenSigner) SignAccess(username string) (string, error) {
	return s.sign(username, s.expiration)
}

// SignRefresh issues a refresh token with a longer validity.
func (s *TokenSigner) SignRefresh(username string) (string, error) {
	return s.sign(username, s.refreshExpiry)
}

func (s *TokenSigner) sign(username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyJWT checks signature and expiry and returns the subject username.
func (s *TokenSigner) VerifyJWT(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
